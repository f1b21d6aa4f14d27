package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
	"github.com/alanyoungcy/resolvd/internal/service"
)

// MarketService is the slice of the service layer the market handler needs.
type MarketService interface {
	CreateMarket(ctx context.Context, p service.CreateMarketParams) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetState(ctx context.Context, id string) (domain.ReportingState, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	StakeTokens(ctx context.Context, id string) ([]domain.StakeTokenView, error)
	Bonds(ctx context.Context, id string) ([]domain.DisputeBond, error)
	StakeEvents(ctx context.Context, id string, opts domain.ListOpts) ([]domain.StakeEvent, error)
}

// MarketHandler serves market creation and read endpoints.
type MarketHandler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(svc MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logger}
}

// createMarketRequest is the POST /api/markets body.
type createMarketRequest struct {
	NumOutcomes        int    `json:"num_outcomes"`
	NumTicks           int64  `json:"num_ticks"`
	EndTime            string `json:"end_time"` // RFC 3339
	Owner              string `json:"owner"`
	DesignatedReporter string `json:"designated_reporter,omitempty"`
	CreatorFeeBps      int64  `json:"creator_fee_bps"`
}

// CreateMarket initializes a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC 3339")
		return
	}
	if !common.IsHexAddress(req.Owner) {
		writeError(w, http.StatusBadRequest, "owner must be a hex address")
		return
	}
	var reporter common.Address
	if req.DesignatedReporter != "" {
		if !common.IsHexAddress(req.DesignatedReporter) {
			writeError(w, http.StatusBadRequest, "designated_reporter must be a hex address")
			return
		}
		reporter = common.HexToAddress(req.DesignatedReporter)
	}

	snap, err := h.svc.CreateMarket(r.Context(), service.CreateMarketParams{
		NumOutcomes:        req.NumOutcomes,
		NumTicks:           req.NumTicks,
		EndTime:            endTime,
		Owner:              common.HexToAddress(req.Owner),
		DesignatedReporter: reporter,
		CreatorFeeBps:      req.CreatorFeeBps,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create market failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMarketJSON(snap))
}

// ListMarkets returns market snapshots with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.svc.ListMarkets(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": toMarketJSONList(markets),
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetMarket returns a single market snapshot.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	snap, err := h.svc.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(snap))
}

// GetState returns the market's current lifecycle phase, computed fresh from
// the clock rather than read from the snapshot.
// GET /api/markets/{id}/state
func (h *MarketHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	state, err := h.svc.GetState(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"market_id": id,
		"state":     string(state),
	})
}

// GetStakes returns the market's per-distribution stake ledgers.
// GET /api/markets/{id}/stakes
func (h *MarketHandler) GetStakes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	views, err := h.svc.StakeTokens(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]stakeTokenJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toStakeTokenJSON(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": out})
}

// GetBonds returns the market's current dispute bonds.
// GET /api/markets/{id}/bonds
func (h *MarketHandler) GetBonds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	bonds, err := h.svc.Bonds(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]bondJSON, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, toBondJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bonds": out})
}

// GetEvents returns the market's append-only stake event history.
// GET /api/markets/{id}/events
func (h *MarketHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	events, err := h.svc.StakeEvents(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventJSON(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
