package services

import (
	"math/bits"

	"github.com/pkg/errors"

	"potledger/internal/custody"
	"potledger/internal/models"
)

// DefaultFeePercent is the house share of a claimed prize.
const DefaultFeePercent = 5

// Accounts names the custody accounts the pool moves value through.
type Accounts struct {
	RoundVault models.PrincipalID // deposits of the open round
	PrizeVault models.PrincipalID // drawn, not yet claimed prizes and fees
	Treasury   models.PrincipalID // admin withdrawals; empty means the admin itself
}

// FeePolicy splits a claimed prize between the house and the winner. With no
// House the fee stays in the prize vault as operator funds.
type FeePolicy struct {
	Percent uint64
	House   models.PrincipalID
}

// Split is the outcome of applying a FeePolicy to one prize.
type Split struct {
	Fee    uint64
	Payout uint64
}

// Enabled reports whether claims pay a fee.
func (p FeePolicy) Enabled() bool {
	return p.Percent > 0
}

// Split returns fee = floor(amount*Percent/100) and the remainder as payout.
func (p FeePolicy) Split(amount uint64) Split {
	if !p.Enabled() {
		return Split{Payout: amount}
	}
	// Percent <= 100, so hi < 100 and the division cannot overflow.
	hi, lo := bits.Mul64(amount, p.Percent)
	fee, _ := bits.Div64(hi, lo, 100)
	return Split{Fee: fee, Payout: amount - fee}
}

// PayoutEngine issues the transfer legs of every pool operation against a
// single vault transaction.
type PayoutEngine struct {
	accounts Accounts
	fee      FeePolicy
}

// NewPayoutEngine validates the account layout and fee policy.
func NewPayoutEngine(accounts Accounts, fee FeePolicy) (*PayoutEngine, error) {
	if accounts.RoundVault == "" || accounts.PrizeVault == "" {
		return nil, errors.New("round vault and prize vault must be named")
	}
	if accounts.RoundVault == accounts.PrizeVault {
		return nil, errors.New("round vault and prize vault must differ")
	}
	if fee.Percent > 100 {
		return nil, errors.Errorf("fee percent %d is above 100", fee.Percent)
	}
	if fee.House != "" && (fee.House == accounts.RoundVault || fee.House == accounts.PrizeVault) {
		return nil, errors.Errorf("house account %q is a pool vault", fee.House)
	}
	if accounts.Treasury != "" && (accounts.Treasury == accounts.RoundVault || accounts.Treasury == accounts.PrizeVault) {
		return nil, errors.Errorf("treasury account %q is a pool vault", accounts.Treasury)
	}
	return &PayoutEngine{accounts: accounts, fee: fee}, nil
}

// Collect moves a deposit from the depositor into the round vault.
func (e *PayoutEngine) Collect(tx custody.VaultTx, depositor models.PrincipalID, amount uint64) error {
	return tx.Transfer(depositor, e.accounts.RoundVault, amount)
}

// Sweep moves a drawn pot from the round vault into the prize vault.
func (e *PayoutEngine) Sweep(tx custody.VaultTx, prize uint64) error {
	return tx.Transfer(e.accounts.RoundVault, e.accounts.PrizeVault, prize)
}

// Distribute pays a claimed prize: the fee leg to the house first, then the
// payout leg to the claimant. Zero legs are skipped.
func (e *PayoutEngine) Distribute(tx custody.VaultTx, claimant models.PrincipalID, amount uint64) (Split, error) {
	split := e.fee.Split(amount)
	if split.Fee > 0 && e.fee.House != "" {
		if err := tx.Transfer(e.accounts.PrizeVault, e.fee.House, split.Fee); err != nil {
			return Split{}, errors.Wrap(err, "fee leg")
		}
	}
	if split.Payout > 0 {
		if err := tx.Transfer(e.accounts.PrizeVault, claimant, split.Payout); err != nil {
			return Split{}, errors.Wrap(err, "payout leg")
		}
	}
	return split, nil
}

// Release moves amount out of the prize vault to an operator account. The
// reserved part of the vault, owed to unclaimed winners, cannot be released.
func (e *PayoutEngine) Release(tx custody.VaultTx, to models.PrincipalID, amount, reserved uint64) error {
	balance := tx.Balance(e.accounts.PrizeVault)
	if balance < reserved || balance-reserved < amount {
		return errors.Wrapf(models.ErrInsufficientFunds,
			"prize vault holds %d of which %d is owed to winners", balance, reserved)
	}
	return tx.Transfer(e.accounts.PrizeVault, to, amount)
}

// IsPoolAccount reports whether account is one of the accounts the engine
// moves pool funds through.
func (e *PayoutEngine) IsPoolAccount(account models.PrincipalID) bool {
	if account == "" {
		return false
	}
	switch account {
	case e.accounts.RoundVault, e.accounts.PrizeVault, e.accounts.Treasury, e.fee.House:
		return true
	}
	return false
}

// PrizeVault returns the prize vault account.
func (e *PayoutEngine) PrizeVault() models.PrincipalID {
	return e.accounts.PrizeVault
}
