// Package handler serves the HTTP API: market reads, lifecycle operations,
// and health. Handlers depend on narrow, locally declared service interfaces
// so the package never imports the concrete service implementation.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain sentinel to its HTTP status and writes the
// wrapped message. Unknown errors become a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrWrongPhase),
		errors.Is(err, domain.ErrAlreadyDisputed),
		errors.Is(err, domain.ErrAlreadyForking),
		errors.Is(err, domain.ErrUnresolvedFork),
		errors.Is(err, domain.ErrNoWinner),
		errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLockHeld):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "operation in progress, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// pathParam extracts a named path parameter via Go 1.22+ pattern routing.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ---------------------------------------------------------------------------
// wire representations
// ---------------------------------------------------------------------------

// marketJSON is the API shape of a market snapshot. Amounts and hashes are
// strings; absent timestamps are omitted.
type marketJSON struct {
	ID                 string `json:"id"`
	UniverseID         string `json:"universe_id"`
	WindowStart        string `json:"window_start"`
	NumOutcomes        int    `json:"num_outcomes"`
	NumTicks           int64  `json:"num_ticks"`
	EndTime            string `json:"end_time"`
	Owner              string `json:"owner"`
	DesignatedReporter string `json:"designated_reporter,omitempty"`
	CreatorFeeBps      int64  `json:"creator_fee_bps"`
	State              string `json:"state"`
	TentativeWinner    string `json:"tentative_winner,omitempty"`
	SecondPlace        string `json:"second_place,omitempty"`
	FinalWinner        string `json:"final_winner,omitempty"`
	DesignatedReportAt string `json:"designated_report_at,omitempty"`
	FinalizedAt        string `json:"finalized_at,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func toMarketJSON(m domain.Market) marketJSON {
	out := marketJSON{
		ID:            m.ID,
		UniverseID:    m.UniverseID,
		WindowStart:   m.WindowStart.UTC().Format(time.RFC3339),
		NumOutcomes:   m.NumOutcomes,
		NumTicks:      m.NumTicks,
		EndTime:       m.EndTime.UTC().Format(time.RFC3339),
		Owner:         m.Owner.Hex(),
		CreatorFeeBps: m.CreatorFeeBps,
		State:         string(m.State),
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !isZeroAddr(m.DesignatedReporter.Hex()) {
		out.DesignatedReporter = m.DesignatedReporter.Hex()
	}
	if !isZeroHash(m.TentativeWinner.Hex()) {
		out.TentativeWinner = m.TentativeWinner.Hex()
	}
	if !isZeroHash(m.SecondPlace.Hex()) {
		out.SecondPlace = m.SecondPlace.Hex()
	}
	if !isZeroHash(m.FinalWinner.Hex()) {
		out.FinalWinner = m.FinalWinner.Hex()
	}
	if m.DesignatedReportAt != nil {
		out.DesignatedReportAt = m.DesignatedReportAt.UTC().Format(time.RFC3339)
	}
	if m.FinalizedAt != nil {
		out.FinalizedAt = m.FinalizedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toMarketJSONList(ms []domain.Market) []marketJSON {
	out := make([]marketJSON, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMarketJSON(m))
	}
	return out
}

// bondJSON is the API shape of a dispute bond.
type bondJSON struct {
	ID           string `json:"id"`
	MarketID     string `json:"market_id"`
	Round        string `json:"round"`
	Poster       string `json:"poster"`
	Amount       string `json:"amount"`
	DisputedHash string `json:"disputed_hash"`
	PostedAt     string `json:"posted_at"`
}

func toBondJSON(b domain.DisputeBond) bondJSON {
	return bondJSON{
		ID:           b.ID,
		MarketID:     b.MarketID,
		Round:        string(b.Round),
		Poster:       b.Poster.Hex(),
		Amount:       b.Amount.String(),
		DisputedHash: b.DisputedHash.Hex(),
		PostedAt:     b.PostedAt.UTC().Format(time.RFC3339),
	}
}

// stakeTokenJSON is the API shape of one per-distribution stake ledger.
type stakeTokenJSON struct {
	Hash        string  `json:"hash"`
	Numerators  []int64 `json:"numerators"`
	TotalSupply string  `json:"total_supply"`
}

func toStakeTokenJSON(v domain.StakeTokenView) stakeTokenJSON {
	return stakeTokenJSON{
		Hash:        v.Hash.Hex(),
		Numerators:  v.Payout.Numerators,
		TotalSupply: v.TotalSupply.String(),
	}
}

// eventJSON is the API shape of one stake event.
type eventJSON struct {
	ID         string `json:"id"`
	MarketID   string `json:"market_id"`
	Kind       string `json:"kind"`
	Actor      string `json:"actor,omitempty"`
	PayoutHash string `json:"payout_hash,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Round      string `json:"round,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toEventJSON(ev domain.StakeEvent) eventJSON {
	out := eventJSON{
		ID:        ev.ID,
		MarketID:  ev.MarketID,
		Kind:      string(ev.Kind),
		Round:     string(ev.Round),
		CreatedAt: ev.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !isZeroAddr(ev.Actor.Hex()) {
		out.Actor = ev.Actor.Hex()
	}
	if !isZeroHash(ev.PayoutHash.Hex()) {
		out.PayoutHash = ev.PayoutHash.Hex()
	}
	if ev.Amount != nil && ev.Amount.Sign() != 0 {
		out.Amount = ev.Amount.String()
	}
	return out
}

func isZeroAddr(hex string) bool {
	return hex == "0x0000000000000000000000000000000000000000"
}

func isZeroHash(hex string) bool {
	return hex == "0x0000000000000000000000000000000000000000000000000000000000000000"
}
