package models

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Stake is one depositor's running contribution to the current round.
type Stake struct {
	Depositor PrincipalID `json:"depositor"`
	Amount    uint64      `json:"amount"`
}

// Round is the active pool. Stakes keeps insertion order for auditing and
// index maps each depositor to its position in Stakes, so repeat deposits are
// O(1). Both are only ever changed together through Round's methods.
type Round struct {
	IsOpen bool    `json:"isOpen"`
	Total  uint64  `json:"total"`
	Stakes []Stake `json:"stakes"`

	index map[PrincipalID]int
}

// NewRound creates an empty, open round.
func NewRound() *Round {
	return &Round{
		IsOpen: true,
		index:  make(map[PrincipalID]int),
	}
}

// RestoreRound rebuilds a round from persisted stakes and verifies that the
// result satisfies every round invariant.
func RestoreRound(isOpen bool, total uint64, stakes []Stake) (*Round, error) {
	r := &Round{
		IsOpen: isOpen,
		Total:  total,
		Stakes: stakes,
		index:  make(map[PrincipalID]int, len(stakes)),
	}
	for i, s := range stakes {
		if _, dup := r.index[s.Depositor]; dup {
			return nil, errors.Wrapf(ErrCorruptState, "depositor %s staked twice", s.Depositor)
		}
		r.index[s.Depositor] = i
	}
	if err := r.Check(); err != nil {
		return nil, err
	}
	return r, nil
}

// Deposit is a validated but uncommitted change to a round.
type Deposit struct {
	Depositor PrincipalID
	Amount    uint64
	Position  int
	Stake     uint64 // depositor's stake after the deposit
	Total     uint64 // round total after the deposit
	Appended  bool
}

// PlanDeposit checks a deposit against the round and computes its effect
// without touching the round.
func (r *Round) PlanDeposit(depositor PrincipalID, amount uint64) (Deposit, error) {
	if !r.IsOpen {
		return Deposit{}, ErrRoundClosed
	}
	if amount == 0 {
		return Deposit{}, ErrInvalidDeposit
	}
	total, err := CheckedAdd(r.Total, amount)
	if err != nil {
		return Deposit{}, errors.Wrap(err, "round total")
	}

	d := Deposit{Depositor: depositor, Amount: amount, Total: total}
	if pos, ok := r.index[depositor]; ok {
		stake, err := CheckedAdd(r.Stakes[pos].Amount, amount)
		if err != nil {
			return Deposit{}, errors.Wrapf(err, "stake of %s", depositor)
		}
		d.Position, d.Stake = pos, stake
	} else {
		d.Position, d.Stake, d.Appended = len(r.Stakes), amount, true
	}
	return d, nil
}

// Apply commits a deposit planned on this round. No other mutation may happen
// between PlanDeposit and Apply.
func (r *Round) Apply(d Deposit) {
	if r.index == nil {
		r.reindex()
	}
	if d.Appended {
		r.Stakes = append(r.Stakes, Stake{Depositor: d.Depositor, Amount: d.Stake})
		r.index[d.Depositor] = d.Position
	} else {
		r.Stakes[d.Position].Amount = d.Stake
	}
	r.Total = d.Total
}

// Record plans and applies a deposit in one step.
func (r *Round) Record(depositor PrincipalID, amount uint64) (Deposit, error) {
	d, err := r.PlanDeposit(depositor, amount)
	if err != nil {
		return Deposit{}, err
	}
	r.Apply(d)
	return d, nil
}

// Contains reports whether depositor has a stake in the round.
func (r *Round) Contains(depositor PrincipalID) bool {
	_, ok := r.index[depositor]
	return ok
}

// StakeOf returns depositor's stake, zero when absent.
func (r *Round) StakeOf(depositor PrincipalID) uint64 {
	if pos, ok := r.index[depositor]; ok {
		return r.Stakes[pos].Amount
	}
	return 0
}

// Len returns the number of distinct depositors.
func (r *Round) Len() int {
	return len(r.Stakes)
}

// Reset empties the round and reopens it.
func (r *Round) Reset() {
	r.Total = 0
	r.Stakes = nil
	r.index = make(map[PrincipalID]int)
	r.IsOpen = true
}

// Clone returns a deep copy.
func (r *Round) Clone() *Round {
	c := &Round{
		IsOpen: r.IsOpen,
		Total:  r.Total,
		Stakes: append([]Stake(nil), r.Stakes...),
	}
	c.reindex()
	return c
}

// Check verifies the round invariants: positive stakes, a total equal to the
// sum of stakes, and an index that is a bijection onto Stakes.
func (r *Round) Check() error {
	if len(r.index) != len(r.Stakes) {
		return errors.Wrapf(ErrCorruptState, "index has %d entries for %d stakes", len(r.index), len(r.Stakes))
	}
	var sum uint64
	for i, s := range r.Stakes {
		if s.Amount == 0 {
			return errors.Wrapf(ErrCorruptState, "zero stake at position %d", i)
		}
		if pos, ok := r.index[s.Depositor]; !ok || pos != i {
			return errors.Wrapf(ErrCorruptState, "index does not point %s at position %d", s.Depositor, i)
		}
		var err error
		if sum, err = CheckedAdd(sum, s.Amount); err != nil {
			return errors.Wrap(ErrCorruptState, "stake sum overflows")
		}
	}
	if sum != r.Total {
		return errors.Wrapf(ErrCorruptState, "total %d does not match stake sum %d", r.Total, sum)
	}
	return nil
}

func (r *Round) reindex() {
	r.index = make(map[PrincipalID]int, len(r.Stakes))
	for i, s := range r.Stakes {
		r.index[s.Depositor] = i
	}
}

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}
