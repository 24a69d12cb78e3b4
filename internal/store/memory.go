package store

import (
	"bytes"
	"sort"
	"sync"
)

func init() {
	register(MemoryDriver, func(string) (backend, error) {
		return newMemDB(), nil
	})
}

type memDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemDB() *memDB {
	return &memDB{data: make(map[string][]byte)}
}

func (db *memDB) write(ops []op) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, o := range ops {
		if o.del {
			delete(db.data, string(o.key))
			continue
		}
		db.data[string(o.key)] = append([]byte(nil), o.value...)
	}
	return nil
}

func (db *memDB) get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (db *memDB) scan(prefix []byte, fn func(key, value []byte) error) error {
	db.mu.RLock()
	var keys []string
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = db.data[k]
	}
	db.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (db *memDB) Close() error {
	return nil
}
