package models

import "github.com/pkg/errors"

// Operation error kinds. Callers classify with errors.Is; wrapping with
// errors.Wrap keeps the kind intact.
var (
	ErrRoundClosed        = errors.New("round is closed")
	ErrInvalidDeposit     = errors.New("invalid deposit amount")
	ErrNoDeposits         = errors.New("no deposits in the current round")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoPrize            = errors.New("no prize available to claim")
	ErrInvalidWinner      = errors.New("winner did not deposit in the current round")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrOverflow           = errors.New("arithmetic overflow")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrCorruptState       = errors.New("corrupt ledger state")

	// Transfer errors reported by the custody collaborator.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDestinationInvalid = errors.New("invalid transfer destination")
)
