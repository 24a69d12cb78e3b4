package models

import (
	"sort"

	"github.com/pkg/errors"
)

// WinnerRecord is a prize earmarked for a winner and not yet claimed.
type WinnerRecord struct {
	Winner PrincipalID `json:"winner"`
	Amount uint64      `json:"amount"`
}

// WinnerRegistry holds unclaimed prizes across rounds. A winner drawn again
// before claiming accumulates into the same record. Zero amounts are never
// stored.
type WinnerRegistry struct {
	records map[PrincipalID]uint64
}

// NewWinnerRegistry creates an empty registry.
func NewWinnerRegistry() *WinnerRegistry {
	return &WinnerRegistry{records: make(map[PrincipalID]uint64)}
}

// RestoreWinnerRegistry rebuilds a registry from persisted records.
func RestoreWinnerRegistry(records []WinnerRecord) (*WinnerRegistry, error) {
	w := NewWinnerRegistry()
	for _, rec := range records {
		if rec.Amount == 0 {
			return nil, errors.Wrapf(ErrCorruptState, "zero prize recorded for %s", rec.Winner)
		}
		if _, dup := w.records[rec.Winner]; dup {
			return nil, errors.Wrapf(ErrCorruptState, "winner %s recorded twice", rec.Winner)
		}
		w.records[rec.Winner] = rec.Amount
	}
	return w, nil
}

// Get returns the unclaimed record for winner.
func (w *WinnerRegistry) Get(winner PrincipalID) (WinnerRecord, bool) {
	amount, ok := w.records[winner]
	if !ok || amount == 0 {
		return WinnerRecord{}, false
	}
	return WinnerRecord{Winner: winner, Amount: amount}, true
}

// PlanCredit computes the record winner would hold after receiving prize.
func (w *WinnerRegistry) PlanCredit(winner PrincipalID, prize uint64) (WinnerRecord, error) {
	amount, err := CheckedAdd(w.records[winner], prize)
	if err != nil {
		return WinnerRecord{}, errors.Wrapf(err, "prize owed to %s", winner)
	}
	return WinnerRecord{Winner: winner, Amount: amount}, nil
}

// Put stores rec, removing the entry when the amount is zero.
func (w *WinnerRegistry) Put(rec WinnerRecord) {
	if rec.Amount == 0 {
		delete(w.records, rec.Winner)
		return
	}
	w.records[rec.Winner] = rec.Amount
}

// Remove deletes winner's entry.
func (w *WinnerRegistry) Remove(winner PrincipalID) {
	delete(w.records, winner)
}

// Len returns the number of unclaimed entries.
func (w *WinnerRegistry) Len() int {
	return len(w.records)
}

// Outstanding returns the sum of all unclaimed prizes.
func (w *WinnerRegistry) Outstanding() (uint64, error) {
	var sum uint64
	for winner, amount := range w.records {
		var err error
		if sum, err = CheckedAdd(sum, amount); err != nil {
			return 0, errors.Wrapf(err, "outstanding prizes at %s", winner)
		}
	}
	return sum, nil
}

// Records lists the entries ordered by winner.
func (w *WinnerRegistry) Records() []WinnerRecord {
	out := make([]WinnerRecord, 0, len(w.records))
	for winner, amount := range w.records {
		out = append(out, WinnerRecord{Winner: winner, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Winner < out[j].Winner })
	return out
}

// Clone returns a deep copy.
func (w *WinnerRegistry) Clone() *WinnerRegistry {
	c := NewWinnerRegistry()
	for winner, amount := range w.records {
		c.records[winner] = amount
	}
	return c
}
