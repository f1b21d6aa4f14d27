package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// LifecycleService is the slice of the service layer the lifecycle handler
// needs: the operations with no dedicated actor payload.
type LifecycleService interface {
	Finalize(ctx context.Context, marketID string) (domain.Market, error)
	Migrate(ctx context.Context, marketID string) (domain.Market, error)
	SetCreatorFee(ctx context.Context, marketID string, caller common.Address, feeBps int64) (domain.Market, error)
}

// LifecycleHandler serves finalization, migration, and fee mutation.
type LifecycleHandler struct {
	svc    LifecycleService
	logger *slog.Logger
}

// NewLifecycleHandler creates a LifecycleHandler.
func NewLifecycleHandler(svc LifecycleService, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{svc: svc, logger: logger}
}

// Finalize commits the tentative winner once the dispute tail has passed.
// POST /api/markets/{id}/finalize
func (h *LifecycleHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snap, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: finalize rejected",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}

// Migrate advances a market waiting on a fork or no-report migration.
// POST /api/markets/{id}/migrate
func (h *LifecycleHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	snap, err := h.svc.Migrate(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: migrate rejected",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}

// feeRequest is the PUT /api/markets/{id}/fee body.
type feeRequest struct {
	Caller string `json:"caller"`
	FeeBps int64  `json:"fee_bps"`
}

// SetCreatorFee lowers the creator settlement fee. Owner-gated; increases are
// rejected.
// PUT /api/markets/{id}/fee
func (h *LifecycleHandler) SetCreatorFee(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req feeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "caller must be a hex address")
		return
	}

	snap, err := h.svc.SetCreatorFee(r.Context(), id, common.HexToAddress(req.Caller), req.FeeBps)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}
