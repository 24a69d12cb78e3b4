// Package custody is the value-transfer collaborator of the pool: named
// accounts with balances and all-or-nothing multi-leg transactions.
package custody

import (
	"sort"
	"sync"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"potledger/internal/models"
)

// Vault moves value between custody accounts.
type Vault interface {
	Begin() VaultTx
	Balance(account models.PrincipalID) uint64
}

// VaultTx stages transfers. Nothing is visible to other callers until
// Commit; Rollback discards every staged leg.
type VaultTx interface {
	Transfer(from, to models.PrincipalID, amount uint64) error
	Balance(account models.PrincipalID) uint64
	Commit()
	Rollback()
}

// Account is one custody balance.
type Account struct {
	Name    models.PrincipalID `json:"name"`
	Balance uint64             `json:"balance"`
}

// Ledger is an in-process Vault.
type Ledger struct {
	mu       sync.Mutex
	balances map[models.PrincipalID]uint64
}

// NewLedger creates a ledger with no accounts.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[models.PrincipalID]uint64)}
}

// Fund credits account out of thin air. It is used for genesis balances.
func (l *Ledger) Fund(account models.PrincipalID, amount uint64) error {
	if account == "" {
		return models.ErrDestinationInvalid
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := models.CheckedAdd(l.balances[account], amount)
	if err != nil {
		return errors.Wrapf(err, "fund %s", account)
	}
	l.balances[account] = balance
	return nil
}

// Balance returns the committed balance of account.
func (l *Ledger) Balance(account models.PrincipalID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Accounts lists every non-empty account ordered by name.
func (l *Ledger) Accounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Account, 0, len(l.balances))
	for name, balance := range l.balances {
		if balance > 0 {
			out = append(out, Account{Name: name, Balance: balance})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Begin opens a transaction. The ledger stays locked until the transaction
// commits or rolls back, so staged balances cannot go stale.
func (l *Ledger) Begin() VaultTx {
	l.mu.Lock()
	return &Txn{ledger: l, staged: make(map[models.PrincipalID]uint64)}
}

// Txn is a Ledger transaction.
type Txn struct {
	ledger *Ledger
	staged map[models.PrincipalID]uint64
	legs   int
	done   bool
}

// Transfer stages a move of amount from one account to another.
func (t *Txn) Transfer(from, to models.PrincipalID, amount uint64) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	if amount == 0 {
		return errors.Wrapf(models.ErrInvalidAmount, "transfer %s -> %s", from, to)
	}
	if to == "" || to == from {
		return errors.Wrapf(models.ErrDestinationInvalid, "transfer %s -> %q", from, to)
	}

	fromBalance := t.Balance(from)
	if fromBalance < amount {
		return errors.Wrapf(models.ErrInsufficientFunds, "%s holds %d, needs %d", from, fromBalance, amount)
	}
	toBalance, err := models.CheckedAdd(t.Balance(to), amount)
	if err != nil {
		return errors.Wrapf(err, "credit %s", to)
	}

	t.staged[from] = fromBalance - amount
	t.staged[to] = toBalance
	t.legs++
	return nil
}

// Balance returns account's balance including staged legs.
func (t *Txn) Balance(account models.PrincipalID) uint64 {
	if b, ok := t.staged[account]; ok {
		return b
	}
	return t.ledger.balances[account]
}

// Commit publishes every staged leg at once.
func (t *Txn) Commit() {
	if t.done {
		return
	}
	for account, balance := range t.staged {
		if balance == 0 {
			delete(t.ledger.balances, account)
			continue
		}
		t.ledger.balances[account] = balance
	}
	if t.legs > 0 {
		logger.Infof("custody: committed %d transfer(s)", t.legs)
	}
	t.finish()
}

// Rollback discards the staged legs.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.finish()
}

func (t *Txn) finish() {
	t.done = true
	t.staged = nil
	t.ledger.mu.Unlock()
}
