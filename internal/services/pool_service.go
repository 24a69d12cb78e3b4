package services

import (
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"potledger/internal/custody"
	"potledger/internal/models"
	"potledger/internal/store"
)

// Store persists pool state.
type Store interface {
	Load() (*models.State, error)
	Write(b *store.Batch) error
}

// Options configures a PoolService.
type Options struct {
	Accounts Accounts
	Fee      FeePolicy
	Asset    string
	Metrics  *Metrics
}

// PoolService runs the round lifecycle. Every operation is one unit of work:
// all checks run first, transfers are staged in a vault transaction, the
// state change is written as one store batch, and only then are the vault
// and the in-memory state committed. A failure at any step leaves all three
// untouched.
type PoolService struct {
	mu      sync.Mutex
	state   *models.State // nil until initialized
	store   Store
	vault   custody.Vault
	payout  *PayoutEngine
	opts    Options
	metrics *Metrics
}

// NewPoolService loads any persisted state from st.
func NewPoolService(st Store, vault custody.Vault, opts Options) (*PoolService, error) {
	payout, err := NewPayoutEngine(opts.Accounts, opts.Fee)
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	s := &PoolService{
		store:   st,
		vault:   vault,
		payout:  payout,
		opts:    opts,
		metrics: opts.Metrics,
	}

	state, err := st.Load()
	switch {
	case errors.Is(err, models.ErrNotInitialized):
		logger.Infof("No pool state found, waiting for initialization")
	case err != nil:
		return nil, errors.Wrap(err, "load pool state")
	default:
		s.state = state
		s.metrics.track(state)
		logger.Infof("Loaded pool: admin %s, %d rounds drawn, %d depositors, %d unclaimed prizes",
			state.Config.Admin, state.Config.RoundSequence, state.Round.Len(), state.Winners.Len())
	}
	return s, nil
}

// Initialized reports whether the pool has a config.
func (s *PoolService) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil
}

// Snapshot returns a deep copy of the current state.
func (s *PoolService) Snapshot() (*models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, models.ErrNotInitialized
	}
	cfg := *s.state.Config
	return &models.State{
		Config:  &cfg,
		Round:   s.state.Round.Clone(),
		Winners: s.state.Winners.Clone(),
	}, nil
}

func (s *PoolService) finish(op string, start time.Time, err error) {
	s.metrics.observe(op, start, err)
	if err != nil {
		logger.Warningf("%s rejected: %v", op, err)
		return
	}
	s.metrics.track(s.state)
}

// commit writes b and then publishes the staged transfers. A failed write
// rolls the transfers back.
func (s *PoolService) commit(tx custody.VaultTx, b *store.Batch) error {
	if err := s.store.Write(b); err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

// Initialize creates the pool with admin as its operator. It can succeed
// only once.
func (s *PoolService) Initialize(admin models.PrincipalID) (err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("initialize", start, err) }()

	if s.state != nil {
		return models.ErrAlreadyInitialized
	}
	if admin == "" {
		return errors.Wrap(models.ErrUnauthorized, "empty admin")
	}

	st := models.NewState(admin, s.opts.Asset)
	b := store.NewBatch()
	b.PutState(st)
	if err := s.store.Write(b); err != nil {
		return err
	}
	s.state = st
	logger.Infof("Pool initialized with admin %s", admin)
	return nil
}

// Deposit adds amount to caller's stake in the open round and moves the
// funds into the round vault.
func (s *PoolService) Deposit(caller models.PrincipalID, amount uint64) (receipt *models.DepositReceipt, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("deposit", start, err) }()

	if s.state == nil {
		return nil, models.ErrNotInitialized
	}
	if err := RequireIdentity(caller); err != nil {
		return nil, err
	}
	if s.payout.IsPoolAccount(caller) {
		return nil, errors.Wrapf(models.ErrUnauthorized, "%q is a pool account", caller)
	}
	round := s.state.Round
	plan, err := round.PlanDeposit(caller, amount)
	if err != nil {
		return nil, err
	}

	tx := s.vault.Begin()
	if err := s.payout.Collect(tx, caller, amount); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "collect deposit")
	}
	count := round.Len()
	if plan.Appended {
		count++
	}
	b := store.NewBatch()
	b.PutStake(plan.Position, models.Stake{Depositor: caller, Amount: plan.Stake})
	b.PutRound(round.IsOpen, plan.Total, count)
	if err := s.commit(tx, b); err != nil {
		return nil, err
	}

	round.Apply(plan)
	logger.Infof("Deposit of %d from %s recorded, stake %d, round total %d", amount, caller, plan.Stake, plan.Total)
	return &models.DepositReceipt{
		Depositor:  caller,
		Amount:     amount,
		Stake:      plan.Stake,
		RoundTotal: plan.Total,
	}, nil
}

// DrawWinner closes the round in favour of winner: the pot moves to the
// prize vault, winner is credited in the registry, and the round reopens
// empty. Only the admin may draw, and winner must have deposited this round.
func (s *PoolService) DrawWinner(caller, winner models.PrincipalID) (receipt *models.DrawReceipt, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("draw", start, err) }()

	if s.state == nil {
		return nil, models.ErrNotInitialized
	}
	if err := RequireAdmin(s.state.Config, caller); err != nil {
		return nil, err
	}
	round := s.state.Round
	if !round.IsOpen {
		return nil, models.ErrRoundClosed
	}
	if round.Len() == 0 {
		return nil, models.ErrNoDeposits
	}
	if !round.Contains(winner) {
		return nil, errors.Wrapf(models.ErrInvalidWinner, "%q", winner)
	}

	prize := round.Total
	rec, err := s.state.Winners.PlanCredit(winner, prize)
	if err != nil {
		return nil, err
	}
	cfg := *s.state.Config
	cfg.RoundSequence++

	tx := s.vault.Begin()
	if err := s.payout.Sweep(tx, prize); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "sweep pot")
	}
	b := store.NewBatch()
	b.PutConfig(&cfg)
	b.DeleteStakes(0, round.Len())
	b.PutRound(true, 0, 0)
	b.PutWinner(rec)
	if err := s.commit(tx, b); err != nil {
		return nil, err
	}

	s.state.Config = &cfg
	s.state.Winners.Put(rec)
	round.Reset()
	logger.Infof("Round %d drawn: %s wins %d, owed %d", cfg.RoundSequence, winner, prize, rec.Amount)
	return &models.DrawReceipt{
		Round:  cfg.RoundSequence,
		Winner: winner,
		Prize:  prize,
		Owed:   rec.Amount,
	}, nil
}

// ClaimReward pays caller's whole unclaimed prize, minus the house fee, and
// removes the registry entry.
func (s *PoolService) ClaimReward(caller models.PrincipalID) (receipt *models.ClaimReceipt, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("claim", start, err) }()

	if s.state == nil {
		return nil, models.ErrNotInitialized
	}
	rec, ok := s.state.Winners.Get(caller)
	if !ok {
		return nil, errors.Wrapf(models.ErrNoPrize, "%q", caller)
	}
	if err := RequireClaimant(caller, rec); err != nil {
		return nil, err
	}

	tx := s.vault.Begin()
	split, err := s.payout.Distribute(tx, caller, rec.Amount)
	if err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "distribute prize")
	}
	b := store.NewBatch()
	b.DeleteWinner(caller)
	if err := s.commit(tx, b); err != nil {
		return nil, err
	}

	s.state.Winners.Remove(caller)
	logger.Infof("Prize of %d claimed by %s: fee %d, payout %d", rec.Amount, caller, split.Fee, split.Payout)
	return &models.ClaimReceipt{
		Winner: caller,
		Amount: rec.Amount,
		Fee:    split.Fee,
		Payout: split.Payout,
	}, nil
}

// AdminWithdraw moves operator funds, such as collected fees, out of the
// prize vault. Prizes owed to unclaimed winners stay in the vault.
func (s *PoolService) AdminWithdraw(caller models.PrincipalID, amount uint64) (receipt *models.WithdrawReceipt, err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("withdraw", start, err) }()

	if s.state == nil {
		return nil, models.ErrNotInitialized
	}
	if err := RequireAdmin(s.state.Config, caller); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, models.ErrInvalidAmount
	}
	reserved, err := s.state.Winners.Outstanding()
	if err != nil {
		return nil, err
	}
	to := s.opts.Accounts.Treasury
	if to == "" {
		to = caller
	}

	tx := s.vault.Begin()
	if err := s.payout.Release(tx, to, amount, reserved); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "release funds")
	}
	remaining := tx.Balance(s.payout.PrizeVault())
	if err := s.commit(tx, store.NewBatch()); err != nil {
		return nil, err
	}

	logger.Infof("Admin %s withdrew %d to %s, %d left in prize vault", caller, amount, to, remaining)
	return &models.WithdrawReceipt{To: to, Amount: amount, Remaining: remaining}, nil
}

// ChangeOwner hands the admin role to newAdmin. The handoff is immediate.
func (s *PoolService) ChangeOwner(caller, newAdmin models.PrincipalID) (err error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.finish("change_owner", start, err) }()

	if s.state == nil {
		return models.ErrNotInitialized
	}
	if err := RequireAdmin(s.state.Config, caller); err != nil {
		return err
	}
	if newAdmin == "" {
		return errors.Wrap(models.ErrUnauthorized, "empty new admin")
	}

	cfg := *s.state.Config
	cfg.Admin = newAdmin
	b := store.NewBatch()
	b.PutConfig(&cfg)
	if err := s.store.Write(b); err != nil {
		return err
	}
	s.state.Config = &cfg
	logger.Infof("Admin changed from %s to %s", caller, newAdmin)
	return nil
}
