package ledger

import "fmt"

// txn is the transaction context for one engine operation: the
// account key, the balance observed at transaction start, and whether
// any speculative write has been applied. The store keeps no shadow
// copy, so rollback is a compensating write of the original value.
type txn struct {
	store     KVStore
	key       []byte
	orig      int64
	dirty     bool
	committed bool
}

// begin reads the current balance and opens a transaction context.
// An absent balance record reads as 0.
func (e *Engine) begin(acct string) (*txn, error) {
	key := []byte(acct)
	val, ok, err := e.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("ledger: read balance %q: %w", acct, err)
	}

	var orig int64
	if ok {
		orig, err = decodeBalance(val)
		if err != nil {
			return nil, err
		}
	}
	return &txn{store: e.store, key: key, orig: orig}, nil
}

// put applies a speculative write. The value is durable immediately;
// it stands only if the transaction commits.
func (t *txn) put(v int64) error {
	if err := t.store.Put(t.key, encodeBalance(v)); err != nil {
		return fmt.Errorf("ledger: write balance %q: %w", t.key, err)
	}
	t.dirty = true
	return nil
}

// commit makes the tentative writes final.
func (t *txn) commit() {
	t.committed = true
}

// finish runs on every exit path. If the transaction did not commit
// and has written, it restores the original balance before the caller
// observes the failure. A rollback failure supersedes the original
// fault: the engine must not report a clean rollback it cannot prove.
func (t *txn) finish(err error) error {
	if t.committed || !t.dirty {
		return err
	}
	if rbErr := t.store.Put(t.key, encodeBalance(t.orig)); rbErr != nil {
		return fmt.Errorf("ledger: rollback %q to %d: %w", t.key, t.orig, rbErr)
	}
	return err
}
