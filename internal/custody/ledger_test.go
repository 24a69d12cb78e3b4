package custody

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potledger/internal/models"
)

func fundedLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger()
	require.NoError(t, l.Fund("alice", 1000))
	require.NoError(t, l.Fund("bob", 500))
	return l
}

func TestLedger_Transfer(t *testing.T) {
	l := fundedLedger(t)

	t.Run("commit publishes every leg", func(t *testing.T) {
		tx := l.Begin()
		require.NoError(t, tx.Transfer("alice", "vault", 100))
		require.NoError(t, tx.Transfer("bob", "vault", 50))
		assert.Equal(t, uint64(150), tx.Balance("vault"))
		tx.Commit()

		assert.Equal(t, uint64(900), l.Balance("alice"))
		assert.Equal(t, uint64(450), l.Balance("bob"))
		assert.Equal(t, uint64(150), l.Balance("vault"))
	})

	t.Run("rollback discards staged legs", func(t *testing.T) {
		tx := l.Begin()
		require.NoError(t, tx.Transfer("vault", "alice", 150))
		tx.Rollback()

		assert.Equal(t, uint64(150), l.Balance("vault"))
		assert.Equal(t, uint64(900), l.Balance("alice"))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		tx := l.Begin()
		defer tx.Rollback()
		err := tx.Transfer("bob", "vault", 451)
		assert.True(t, errors.Is(err, models.ErrInsufficientFunds))
	})

	t.Run("invalid destination", func(t *testing.T) {
		tx := l.Begin()
		defer tx.Rollback()
		assert.True(t, errors.Is(tx.Transfer("bob", "", 1), models.ErrDestinationInvalid))
		assert.True(t, errors.Is(tx.Transfer("bob", "bob", 1), models.ErrDestinationInvalid))
	})

	t.Run("zero amount", func(t *testing.T) {
		tx := l.Begin()
		defer tx.Rollback()
		assert.True(t, errors.Is(tx.Transfer("bob", "vault", 0), models.ErrInvalidAmount))
	})

	t.Run("later leg failing leaves earlier legs uncommitted", func(t *testing.T) {
		tx := l.Begin()
		require.NoError(t, tx.Transfer("vault", "alice", 100))
		require.Error(t, tx.Transfer("vault", "bob", 100))
		tx.Rollback()

		assert.Equal(t, uint64(150), l.Balance("vault"))
		assert.Equal(t, uint64(900), l.Balance("alice"))
	})
}

func TestLedger_Fund(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Fund("alice", math.MaxUint64))
	assert.True(t, errors.Is(l.Fund("alice", 1), models.ErrOverflow))
	assert.True(t, errors.Is(l.Fund("", 1), models.ErrDestinationInvalid))
}

func TestLedger_Accounts(t *testing.T) {
	l := fundedLedger(t)
	tx := l.Begin()
	require.NoError(t, tx.Transfer("bob", "alice", 500))
	tx.Commit()

	accounts := l.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, Account{Name: "alice", Balance: 1500}, accounts[0])
}
