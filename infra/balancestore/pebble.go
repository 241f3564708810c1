package balancestore

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// Pebble is the durable balance store. One key per account, value is
// the engine's balance codec output. The store itself offers no
// transactions — atomicity is entirely engine-managed.
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db}, nil
}

func (s *Pebble) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key. A missing key is not an
// error: it reports ok=false and the engine treats it as balance 0.
func (s *Pebble) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	out := append([]byte(nil), val...)
	return out, true, nil
}

// Put durably overwrites the value for key.
func (s *Pebble) Put(key, val []byte) error {
	return s.db.Set(key, val, pebble.Sync)
}
