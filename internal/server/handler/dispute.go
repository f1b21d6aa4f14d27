package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// DisputeService is the slice of the service layer the dispute handler needs.
type DisputeService interface {
	Dispute(ctx context.Context, marketID string, round domain.DisputeRound, disputer common.Address) (domain.Market, error)
}

// DisputeHandler serves the dispute endpoint.
type DisputeHandler struct {
	svc    DisputeService
	logger *slog.Logger
}

// NewDisputeHandler creates a DisputeHandler.
func NewDisputeHandler(svc DisputeService, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{svc: svc, logger: logger}
}

// disputeRequest is the POST /api/markets/{id}/dispute body.
type disputeRequest struct {
	Round    string `json:"round"` // designated | limited | all
	Disputer string `json:"disputer"`
}

// Dispute posts the bond for the requested round against the current
// tentative winner.
// POST /api/markets/{id}/dispute
func (h *DisputeHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req disputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Disputer) {
		writeError(w, http.StatusBadRequest, "disputer must be a hex address")
		return
	}

	snap, err := h.svc.Dispute(r.Context(), id, domain.DisputeRound(req.Round), common.HexToAddress(req.Disputer))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: dispute rejected",
			slog.String("market_id", id),
			slog.String("round", req.Round),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}
