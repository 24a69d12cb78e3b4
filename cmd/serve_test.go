package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potledger/internal/custody"
	"potledger/internal/services"
	"potledger/internal/store"
)

func TestReseedVaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	accounts := services.Accounts{RoundVault: "round-vault", PrizeVault: "prize-vault"}
	opts := services.Options{Accounts: accounts, Fee: services.FeePolicy{Percent: 5}, Asset: "SOL"}

	st, err := store.Open(store.BoltDriver, path)
	require.NoError(t, err)
	ledger := custody.NewLedger()
	require.NoError(t, ledger.Fund("alice", 100))
	require.NoError(t, ledger.Fund("bob", 100))
	svc, err := services.NewPoolService(st, ledger, opts)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize("admin"))
	_, err = svc.Deposit("alice", 30)
	require.NoError(t, err)
	_, err = svc.DrawWinner("admin", "alice")
	require.NoError(t, err)
	_, err = svc.Deposit("bob", 20)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Restart with a fresh in-memory ledger.
	st, err = store.Open(store.BoltDriver, path)
	require.NoError(t, err)
	defer st.Close()
	ledger = custody.NewLedger()
	svc, err = services.NewPoolService(st, ledger, opts)
	require.NoError(t, err)
	require.True(t, svc.Initialized())
	require.NoError(t, reseedVaults(ledger, svc, accounts))

	assert.Equal(t, uint64(20), ledger.Balance("round-vault"))
	assert.Equal(t, uint64(30), ledger.Balance("prize-vault"))

	receipt, err := svc.ClaimReward("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(29), receipt.Payout)
	assert.Equal(t, uint64(1), ledger.Balance("prize-vault"))
}

func TestRender(t *testing.T) {
	st, err := store.Open(store.MemoryDriver, "")
	require.NoError(t, err)
	svc, err := services.NewPoolService(st, custody.NewLedger(), services.Options{
		Accounts: services.Accounts{RoundVault: "round-vault", PrizeVault: "prize-vault"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize("admin"))
	state, err := st.Load()
	require.NoError(t, err)
	assert.NoError(t, render(state, 9))
}
