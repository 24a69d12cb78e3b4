// Package store persists pool state as keyed records. Every operation's
// changes are written as one atomic batch.
package store

import (
	"bytes"
	"sort"

	"github.com/google/logger"
	"github.com/pkg/errors"

	"potledger/internal/models"
)

// Driver names accepted by Open.
const (
	MemoryDriver  = "memory"
	BoltDriver    = "bolt"
	LevelDBDriver = "leveldb"
)

type op struct {
	key   []byte
	value []byte
	del   bool
}

// backend is a byte-oriented key/value engine.
type backend interface {
	write(ops []op) error
	get(key []byte) ([]byte, error) // nil, nil when absent
	scan(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

type creator func(path string) (backend, error)

var backends = map[string]creator{}

func register(driver string, c creator) {
	if _, dup := backends[driver]; dup {
		panic("store: driver registered twice: " + driver)
	}
	backends[driver] = c
}

// Drivers lists the registered drivers.
func Drivers() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store reads and writes pool state.
type Store struct {
	driver string
	db     backend
}

// Open opens the store for driver at path. path is ignored by the memory
// driver.
func Open(driver, path string) (*Store, error) {
	c, ok := backends[driver]
	if !ok {
		return nil, errors.Errorf("store: unknown driver %q", driver)
	}
	db, err := c(path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s at %s", driver, path)
	}
	logger.Infof("store: opened %s backend at %q", driver, path)
	return &Store{driver: driver, db: db}, nil
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write applies b atomically.
func (s *Store) Write(b *Batch) error {
	if b.err != nil {
		return b.err
	}
	if len(b.ops) == 0 {
		return nil
	}
	return errors.Wrap(s.db.write(b.ops), "store: write batch")
}

// Load reads the full state. It returns models.ErrNotInitialized when the
// store holds no pool.
func (s *Store) Load() (*models.State, error) {
	raw, err := s.db.get(keyConfig)
	if err != nil {
		return nil, errors.Wrap(err, "store: read config")
	}
	if raw == nil {
		return nil, models.ErrNotInitialized
	}
	var cfg configRecord
	if err := decode(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	raw, err = s.db.get(keyRound)
	if err != nil {
		return nil, errors.Wrap(err, "store: read round")
	}
	if raw == nil {
		return nil, errors.Wrap(models.ErrCorruptState, "round record missing")
	}
	var header roundRecord
	if err := decode(raw, &header); err != nil {
		return nil, errors.Wrap(err, "round")
	}

	var stakes []models.Stake
	err = s.db.scan(prefixStake, func(key, value []byte) error {
		if !bytes.Equal(key, stakeKey(len(stakes))) {
			return errors.Wrapf(models.ErrCorruptState, "stake key %x out of sequence", key)
		}
		var rec stakeRecord
		if err := decode(value, &rec); err != nil {
			return err
		}
		stakes = append(stakes, models.Stake{Depositor: models.PrincipalID(rec.Depositor), Amount: rec.Amount})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "stakes")
	}
	if uint64(len(stakes)) != header.Count {
		return nil, errors.Wrapf(models.ErrCorruptState, "round lists %d stakes, found %d", header.Count, len(stakes))
	}
	round, err := models.RestoreRound(header.IsOpen, header.Total, stakes)
	if err != nil {
		return nil, err
	}

	var records []models.WinnerRecord
	err = s.db.scan(prefixWinner, func(key, value []byte) error {
		var rec winnerRecord
		if err := decode(value, &rec); err != nil {
			return err
		}
		if !bytes.Equal(key, winnerKey(models.PrincipalID(rec.Winner))) {
			return errors.Wrapf(models.ErrCorruptState, "winner key %q does not match record", key)
		}
		records = append(records, models.WinnerRecord{Winner: models.PrincipalID(rec.Winner), Amount: rec.Amount})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "winners")
	}
	winners, err := models.RestoreWinnerRegistry(records)
	if err != nil {
		return nil, err
	}

	return &models.State{
		Config: &models.Config{
			Admin:         models.PrincipalID(cfg.Admin),
			RoundSequence: cfg.RoundSequence,
			Asset:         cfg.Asset,
		},
		Round:   round,
		Winners: winners,
	}, nil
}

// Batch collects record changes. The first encoding error is kept and
// returned by Store.Write.
type Batch struct {
	ops []op
	err error
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Len returns the number of queued changes.
func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) put(key []byte, rec interface{}) {
	if b.err != nil {
		return
	}
	value, err := encode(rec)
	if err != nil {
		b.err = err
		return
	}
	b.ops = append(b.ops, op{key: key, value: value})
}

func (b *Batch) delete(key []byte) {
	b.ops = append(b.ops, op{key: key, del: true})
}

// PutConfig stores the pool config.
func (b *Batch) PutConfig(cfg *models.Config) {
	b.put(keyConfig, &configRecord{
		Admin:         string(cfg.Admin),
		RoundSequence: cfg.RoundSequence,
		Asset:         cfg.Asset,
	})
}

// PutRound stores the round header.
func (b *Batch) PutRound(isOpen bool, total uint64, count int) {
	b.put(keyRound, &roundRecord{IsOpen: isOpen, Total: total, Count: uint64(count)})
}

// PutStake stores the stake at position pos.
func (b *Batch) PutStake(pos int, s models.Stake) {
	b.put(stakeKey(pos), &stakeRecord{Depositor: string(s.Depositor), Amount: s.Amount})
}

// DeleteStakes removes the stakes at positions [from, to).
func (b *Batch) DeleteStakes(from, to int) {
	for pos := from; pos < to; pos++ {
		b.delete(stakeKey(pos))
	}
}

// PutWinner stores rec, or deletes it when the amount is zero.
func (b *Batch) PutWinner(rec models.WinnerRecord) {
	if rec.Amount == 0 {
		b.DeleteWinner(rec.Winner)
		return
	}
	b.put(winnerKey(rec.Winner), &winnerRecord{Winner: string(rec.Winner), Amount: rec.Amount})
}

// DeleteWinner removes winner's record.
func (b *Batch) DeleteWinner(winner models.PrincipalID) {
	b.delete(winnerKey(winner))
}

// PutState stores every record of st.
func (b *Batch) PutState(st *models.State) {
	b.PutConfig(st.Config)
	b.PutRound(st.Round.IsOpen, st.Round.Total, st.Round.Len())
	for pos, s := range st.Round.Stakes {
		b.PutStake(pos, s)
	}
	for _, rec := range st.Winners.Records() {
		b.PutWinner(rec)
	}
}
