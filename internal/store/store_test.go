package store

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potledger/internal/models"
)

func openAll(t *testing.T) map[string]*Store {
	t.Helper()
	dir := t.TempDir()
	stores := make(map[string]*Store)
	for _, driver := range Drivers() {
		s, err := Open(driver, filepath.Join(dir, driver))
		require.NoError(t, err, driver)
		t.Cleanup(func() { s.Close() })
		stores[driver] = s
	}
	return stores
}

func sampleState(t *testing.T) *models.State {
	t.Helper()
	st := models.NewState("admin", "USDC")
	st.Config.RoundSequence = 3
	_, err := st.Round.Record("alice", 100)
	require.NoError(t, err)
	_, err = st.Round.Record("bob", 50)
	require.NoError(t, err)
	st.Winners.Put(models.WinnerRecord{Winner: "carol", Amount: 70})
	return st
}

func TestDrivers(t *testing.T) {
	assert.Equal(t, []string{BoltDriver, LevelDBDriver, MemoryDriver}, Drivers())

	_, err := Open("pegasus", "")
	assert.Error(t, err)
}

func TestStore_LoadEmpty(t *testing.T) {
	for driver, s := range openAll(t) {
		t.Run(driver, func(t *testing.T) {
			_, err := s.Load()
			assert.True(t, errors.Is(err, models.ErrNotInitialized))
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for driver, s := range openAll(t) {
		t.Run(driver, func(t *testing.T) {
			want := sampleState(t)
			b := NewBatch()
			b.PutState(want)
			require.NoError(t, s.Write(b))

			got, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, *want.Config, *got.Config)
			assert.Equal(t, want.Round.Stakes, got.Round.Stakes)
			assert.Equal(t, want.Round.Total, got.Round.Total)
			assert.True(t, got.Round.IsOpen)
			assert.Equal(t, want.Winners.Records(), got.Winners.Records())
			require.NoError(t, got.Round.Check())
		})
	}
}

func TestStore_IncrementalBatches(t *testing.T) {
	for driver, s := range openAll(t) {
		t.Run(driver, func(t *testing.T) {
			st := sampleState(t)
			b := NewBatch()
			b.PutState(st)
			require.NoError(t, s.Write(b))

			// A draw: stakes removed, round reset, winner credited.
			b = NewBatch()
			b.DeleteStakes(0, st.Round.Len())
			b.PutRound(true, 0, 0)
			b.PutWinner(models.WinnerRecord{Winner: "alice", Amount: 150})
			require.NoError(t, s.Write(b))

			got, err := s.Load()
			require.NoError(t, err)
			assert.Zero(t, got.Round.Len())
			assert.Zero(t, got.Round.Total)
			assert.Equal(t, 2, got.Winners.Len())

			// A claim: winner removed.
			b = NewBatch()
			b.PutWinner(models.WinnerRecord{Winner: "alice"})
			require.NoError(t, s.Write(b))

			got, err = s.Load()
			require.NoError(t, err)
			_, ok := got.Winners.Get("alice")
			assert.False(t, ok)
		})
	}
}

func TestStore_DetectsCorruption(t *testing.T) {
	for driver, s := range openAll(t) {
		t.Run(driver, func(t *testing.T) {
			b := NewBatch()
			b.PutState(sampleState(t))
			b.PutRound(true, 150, 3)
			require.NoError(t, s.Write(b))

			_, err := s.Load()
			assert.True(t, errors.Is(err, models.ErrCorruptState))
		})
	}
}

func TestStore_EmptyBatchIsNoop(t *testing.T) {
	s, err := Open(MemoryDriver, "")
	require.NoError(t, err)
	require.NoError(t, s.Write(NewBatch()))

	_, err = s.Load()
	assert.True(t, errors.Is(err, models.ErrNotInitialized))
}
