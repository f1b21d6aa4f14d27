package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// ReportService is the slice of the service layer the report handler needs.
type ReportService interface {
	SubmitReport(ctx context.Context, marketID string, reporter common.Address, numerators []int64, signature string) (domain.Market, error)
	Stake(ctx context.Context, marketID string, staker common.Address, numerators []int64, amount *big.Int) (domain.Market, error)
}

// ReportHandler serves the designated-report and staking endpoints.
type ReportHandler struct {
	svc    ReportService
	logger *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(svc ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

// submitReportRequest is the POST /api/markets/{id}/report body. Signature is
// required when the service enforces signed reports.
type submitReportRequest struct {
	Reporter   string  `json:"reporter"`
	Numerators []int64 `json:"numerators"`
	Signature  string  `json:"signature,omitempty"`
}

// SubmitReport records the designated reporter's report.
// POST /api/markets/{id}/report
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req submitReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Reporter) {
		writeError(w, http.StatusBadRequest, "reporter must be a hex address")
		return
	}

	snap, err := h.svc.SubmitReport(r.Context(), id, common.HexToAddress(req.Reporter), req.Numerators, req.Signature)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: report rejected",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}

// stakeRequest is the POST /api/markets/{id}/stake body. Amount is a decimal
// attostake string.
type stakeRequest struct {
	Staker     string  `json:"staker"`
	Numerators []int64 `json:"numerators"`
	Amount     string  `json:"amount"`
}

// Stake backs a distribution with reputation during an open reporting phase.
// POST /api/markets/{id}/stake
func (h *ReportHandler) Stake(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Staker) {
		writeError(w, http.StatusBadRequest, "staker must be a hex address")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be a decimal attostake string")
		return
	}

	snap, err := h.svc.Stake(r.Context(), id, common.HexToAddress(req.Staker), req.Numerators, amount)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: stake rejected",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}
