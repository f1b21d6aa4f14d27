// Package universe provides the in-process collaborators the market core
// depends on: universes, reporting windows, and the staking (reputation)
// token. One mutex per universe tree serializes mutation of shared state so
// migration scans always see a coherent fork status.
package universe

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// Params holds the epoch geometry shared by every universe in a tree.
type Params struct {
	// WindowDuration is the full length of a reporting window.
	WindowDuration time.Duration

	// DisputePhaseDuration is the tail of each window reserved for disputes.
	DisputePhaseDuration time.Duration

	// ForkDuration is how long a fork stays open for stake migration.
	ForkDuration time.Duration

	// DesignatedOffset shifts a market's window assignment past the
	// designated reporting and dispute periods when a designated reporter
	// is configured.
	DesignatedOffset time.Duration
}

// DefaultParams returns the stock epoch geometry.
func DefaultParams() Params {
	return Params{
		WindowDuration:       30 * 24 * time.Hour,
		DisputePhaseDuration: 3 * 24 * time.Hour,
		ForkDuration:         60 * 24 * time.Hour,
		DesignatedOffset:     6 * 24 * time.Hour,
	}
}

// Universe is a namespace of reporting windows sharing one reputation token.
// All universes descended from one genesis share a single mutex.
type Universe struct {
	mu     *sync.Mutex
	id     string
	clock  domain.Clock
	params Params

	parent           *Universe
	parentPayoutHash common.Hash
	children         map[common.Hash]*Universe
	childOrder       []common.Hash

	windows map[int64]*ReportingWindow

	forkingMarket domain.ForkSubject
	forkEndTime   time.Time

	rep *ReputationToken
}

// NewGenesis creates a root universe with its reputation token.
func NewGenesis(clock domain.Clock, params Params) *Universe {
	u := &Universe{
		mu:       &sync.Mutex{},
		id:       uuid.New().String(),
		clock:    clock,
		params:   params,
		children: make(map[common.Hash]*Universe),
		windows:  make(map[int64]*ReportingWindow),
	}
	u.rep = newReputationToken(u)
	return u
}

// ID implements domain.Universe.
func (u *Universe) ID() string { return u.id }

// ParentPayoutDistributionHash returns the payout hash that keyed this
// universe off its parent; zero for the genesis universe.
func (u *Universe) ParentPayoutDistributionHash() common.Hash {
	return u.parentPayoutHash
}

// ReputationToken returns the universe's staking currency.
func (u *Universe) ReputationToken() domain.ReputationToken { return u.rep }

// Rep returns the concrete token for provisioning and migration calls.
func (u *Universe) Rep() *ReputationToken { return u.rep }

// ForkingMarket returns the market currently forking this universe, or nil.
func (u *Universe) ForkingMarket() domain.ForkSubject {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.forkingMarket
}

// Fork marks the universe as forking on behalf of m and opens the fork
// window. A universe forks at most once.
func (u *Universe) Fork(m domain.ForkSubject) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.forkingMarket != nil {
		return fmt.Errorf("universe %s: %w", u.id, domain.ErrAlreadyForking)
	}
	u.forkingMarket = m
	u.forkEndTime = u.clock.Now().Add(u.params.ForkDuration)
	return nil
}

// ForkEndTime returns when the fork's migration window closes; zero when the
// universe is not forking.
func (u *Universe) ForkEndTime() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.forkEndTime
}

// NextReportingWindow returns the window after the one containing now.
func (u *Universe) NextReportingWindow(now time.Time) domain.ReportingWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.windowFor(now.Add(u.params.WindowDuration))
}

// ReportingWindowForForkEndTime returns the window containing the fork's end.
func (u *Universe) ReportingWindowForForkEndTime() domain.ReportingWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.windowFor(u.forkEndTime)
}

// ReportingWindowByMarketEndTime returns the window a market reports in,
// given its end time. Markets with a designated reporter skip past the
// designated reporting and dispute periods first.
func (u *Universe) ReportingWindowByMarketEndTime(endTime time.Time, hasDesignatedReporter bool) domain.ReportingWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	target := endTime
	if hasDesignatedReporter {
		target = target.Add(u.params.DesignatedOffset)
	}
	return u.windowFor(target)
}

// windowFor returns the window containing t, creating it on first use.
// Callers hold u.mu.
func (u *Universe) windowFor(t time.Time) *ReportingWindow {
	sec := int64(u.params.WindowDuration / time.Second)
	idx := t.Unix() / sec
	if t.Unix() < 0 && t.Unix()%sec != 0 {
		idx--
	}
	if w, ok := u.windows[idx]; ok {
		return w
	}
	w := newReportingWindow(u, time.Unix(idx*sec, 0).UTC())
	u.windows[idx] = w
	return w
}

// GetOrCreateChildUniverse returns the child universe keyed by the winning
// payout hash, creating it (with a fresh, empty reputation token) on first
// use. Children share the parent's mutex, clock, and geometry.
func (u *Universe) GetOrCreateChildUniverse(winning common.Hash) domain.Universe {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.childFor(winning)
}

// childFor returns the child keyed by hash. Callers hold u.mu.
func (u *Universe) childFor(winning common.Hash) *Universe {
	if c, ok := u.children[winning]; ok {
		return c
	}
	c := &Universe{
		mu:               u.mu,
		id:               uuid.New().String(),
		clock:            u.clock,
		params:           u.params,
		parent:           u,
		parentPayoutHash: winning,
		children:         make(map[common.Hash]*Universe),
		windows:          make(map[int64]*ReportingWindow),
	}
	c.rep = newReputationToken(c)
	u.children[winning] = c
	u.childOrder = append(u.childOrder, winning)
	return c
}

// Compile-time interface check.
var _ domain.Universe = (*Universe)(nil)
