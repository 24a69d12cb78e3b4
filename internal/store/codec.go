package store

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"go.dedis.ch/protobuf"

	"potledger/internal/models"
)

// recordVersion prefixes every stored value so a value is never empty.
const recordVersion byte = 1

var (
	keyConfig    = []byte("config")
	keyRound     = []byte("round")
	prefixStake  = []byte("stake/")
	prefixWinner = []byte("winner/")
)

type configRecord struct {
	Admin         string
	RoundSequence uint64
	Asset         string
}

type roundRecord struct {
	IsOpen bool
	Total  uint64
	Count  uint64
}

type stakeRecord struct {
	Depositor string
	Amount    uint64
}

type winnerRecord struct {
	Winner string
	Amount uint64
}

func stakeKey(pos int) []byte {
	key := make([]byte, len(prefixStake)+8)
	copy(key, prefixStake)
	binary.BigEndian.PutUint64(key[len(prefixStake):], uint64(pos))
	return key
}

func winnerKey(winner models.PrincipalID) []byte {
	return append(append([]byte(nil), prefixWinner...), string(winner)...)
}

func encode(rec interface{}) ([]byte, error) {
	buf, err := protobuf.Encode(rec)
	if err != nil {
		return nil, errors.Wrap(err, "encode record")
	}
	return append([]byte{recordVersion}, buf...), nil
}

func decode(value []byte, rec interface{}) error {
	if len(value) == 0 || value[0] != recordVersion {
		return errors.Wrap(models.ErrCorruptState, "unknown record version")
	}
	if err := protobuf.Decode(value[1:], rec); err != nil {
		return errors.Wrapf(models.ErrCorruptState, "decode record: %v", err)
	}
	return nil
}
