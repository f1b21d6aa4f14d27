package universe

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// ReputationToken is the universe's staking currency ledger. Transfers
// initiated by the market core are trusted; there is no allowance
// bookkeeping. During a fork, holders migrate balances into a child
// universe's token; the parent's total supply is left standing as the
// pre-fork denominator for the majority check.
type ReputationToken struct {
	u           *Universe
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
}

func newReputationToken(u *Universe) *ReputationToken {
	return &ReputationToken{
		u:           u,
		balances:    make(map[common.Address]*big.Int),
		totalSupply: new(big.Int),
	}
}

// Universe implements domain.ReputationToken.
func (r *ReputationToken) Universe() domain.Universe { return r.u }

// TotalSupply returns the token's total supply.
func (r *ReputationToken) TotalSupply() *big.Int {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	return new(big.Int).Set(r.totalSupply)
}

// BalanceOf returns the balance of addr.
func (r *ReputationToken) BalanceOf(addr common.Address) *big.Int {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if b, ok := r.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Mint credits freshly issued supply to addr. Used for genesis provisioning.
func (r *ReputationToken) Mint(addr common.Address, amount *big.Int) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.credit(addr, amount)
	r.totalSupply.Add(r.totalSupply, amount)
}

// TrustedTransfer moves amount from one holder to another.
func (r *ReputationToken) TrustedTransfer(from, to common.Address, amount *big.Int) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("reputation: transfer amount must be non-negative: %w", domain.ErrInvalidConfiguration)
	}
	bal, ok := r.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("reputation: %s holds %s, needs %s: %w", from, bal, amount, domain.ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	r.credit(to, amount)
	return nil
}

// MigrateToChild moves a holder's balance into the token of the child
// universe keyed by the winning payout hash, creating the child on first
// use. The parent's total supply is not reduced.
func (r *ReputationToken) MigrateToChild(holder common.Address, winning common.Hash, amount *big.Int) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.forkingMarket == nil {
		return fmt.Errorf("reputation: universe %s is not forking: %w", r.u.id, domain.ErrWrongPhase)
	}
	bal, ok := r.balances[holder]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("reputation: %s holds %s, needs %s: %w", holder, bal, amount, domain.ErrInsufficientBalance)
	}
	child := r.u.childFor(winning)
	bal.Sub(bal, amount)
	child.rep.credit(holder, amount)
	child.rep.totalSupply.Add(child.rep.totalSupply, amount)
	return nil
}

// TopMigrationDestination returns the child token that has received the most
// migrated stake, or nil when nothing has migrated. Ties keep the earlier
// child.
func (r *ReputationToken) TopMigrationDestination() domain.ReputationToken {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var best *ReputationToken
	for _, h := range r.u.childOrder {
		c := r.u.children[h]
		if c.rep.totalSupply.Sign() == 0 {
			continue
		}
		if best == nil || c.rep.totalSupply.Cmp(best.totalSupply) > 0 {
			best = c.rep
		}
	}
	if best == nil {
		return nil
	}
	return best
}

// credit adds amount to addr's balance. Callers hold u.mu.
func (r *ReputationToken) credit(addr common.Address, amount *big.Int) {
	if _, ok := r.balances[addr]; !ok {
		r.balances[addr] = new(big.Int)
	}
	r.balances[addr].Add(r.balances[addr], amount)
}

// Compile-time interface check.
var _ domain.ReputationToken = (*ReputationToken)(nil)
