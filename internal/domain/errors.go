package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrWrongPhase           = errors.New("operation not allowed in current reporting state")
	ErrAlreadyDisputed      = errors.New("dispute bond already posted for this round")
	ErrUnresolvedFork       = errors.New("forking market has not finalized")
	ErrNoWinner             = errors.New("no winning payout distribution")
	ErrForkDepthExceeded    = errors.New("fork migration depth exceeded")
	ErrInsufficientBalance  = errors.New("insufficient staking token balance")
	ErrAlreadyForking       = errors.New("universe already has a forking market")
	ErrLockHeld             = errors.New("lock already held")
)
