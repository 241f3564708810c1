// Package ledger implements a transactional account ledger on top of
// a plain key/value store and an append-only intent log, neither of
// which supplies transactions of its own.
//
// Every operation first appends an intent record, then mutates the
// store speculatively, then validates the non-negative-balance
// invariant. On violation the engine rolls the store back to the
// value observed at transaction start; the intent record is never
// rolled back. The log records attempts, the store records outcomes.
//
// The engine performs no internal locking: callers must guarantee at
// most one in-flight operation per account (see service.LedgerService
// for the keyed-lock dispatcher). Operations on different accounts
// are independent.
package ledger

import "fmt"

// KVStore is the durable balance map. No transactional or batch
// guarantee is assumed; atomicity is entirely engine-managed.
type KVStore interface {
	Get(key []byte) (val []byte, ok bool, err error)
	Put(key, val []byte) error
}

// IntentLog is the shared append-only record of attempted operations.
type IntentLog interface {
	Append(payload []byte) (seq uint64, err error)
	Length() uint64
	Slice(start, finish uint64) ([][]byte, error)
}

// Engine sequences each operation into one log record plus store
// mutation(s) and enforces the non-negative-balance invariant.
type Engine struct {
	store KVStore
	log   IntentLog
}

func New(store KVStore, log IntentLog) *Engine {
	return &Engine{store: store, log: log}
}

// Balance appends a Balance intent and returns the current balance
// (0 if the account has never been touched). Querying is not free of
// log growth: the appended record is an observable side effect.
func (e *Engine) Balance(acct string) (int64, error) {
	if _, err := e.log.Append(balanceIntent(acct)); err != nil {
		return 0, fmt.Errorf("ledger: append balance intent: %w", err)
	}
	tx, err := e.begin(acct)
	if err != nil {
		return 0, err
	}
	return tx.orig, nil
}

// Credit adds amount to the balance, returning the new balance and
// the sequence of the appended intent record.
// It never fails on invariant grounds: no upper bound exists, and the
// sign of amount is not validated, so a negative credit silently
// decreases the balance. Flagged in DESIGN.md as a likely defect;
// callers wanting stricter rules must enforce them above this layer.
func (e *Engine) Credit(acct string, amount int64) (bal int64, seq uint64, err error) {
	seq, err = e.log.Append(creditIntent(acct, amount))
	if err != nil {
		return 0, 0, fmt.Errorf("ledger: append credit intent: %w", err)
	}
	tx, err := e.begin(acct)
	if err != nil {
		return 0, seq, err
	}
	defer func() { err = tx.finish(err) }()

	if err := tx.put(tx.orig + amount); err != nil {
		return 0, seq, err
	}
	tx.commit()
	return tx.orig + amount, seq, nil
}

// Debit subtracts amount from the balance, returning the new balance
// and the sequence of the appended intent record. The new value is
// written speculatively before validation; if amount exceeds the
// balance the write is rolled back and ErrInsufficientFunds is
// returned. The intent record of the failed attempt stays in the log.
func (e *Engine) Debit(acct string, amount int64) (bal int64, seq uint64, err error) {
	seq, err = e.log.Append(debitIntent(acct, amount))
	if err != nil {
		return 0, 0, fmt.Errorf("ledger: append debit intent: %w", err)
	}
	tx, err := e.begin(acct)
	if err != nil {
		return 0, seq, err
	}
	defer func() { err = tx.finish(err) }()

	if err := tx.put(tx.orig - amount); err != nil {
		return 0, seq, err
	}
	if amount > tx.orig {
		return 0, seq, &InsufficientFundsError{
			Account:   acct,
			Balance:   tx.orig,
			Requested: amount,
		}
	}
	tx.commit()
	return tx.orig - amount, seq, nil
}

// MultiDebit runs a sequence of debit steps against one account under
// a single intent record carrying the aggregate sum.
//
// Each step's tentative write subtracts that step's amount from the
// balance observed at transaction start, not from the previous step's
// result; the failure check runs on a separately tracked cumulative
// balance. If the cumulative balance ever goes negative, every
// tentative write is rolled back and the whole call fails. On success
// the stored value is the last step's write while the returned value
// is original minus the full sum; the two differ whenever more than
// one step ran. That mismatch is deliberate pending product
// clarification (DESIGN.md) and must not be quietly repaired here.
func (e *Engine) MultiDebit(acct string, amounts []int64) (bal int64, seq uint64, err error) {
	var sum int64
	for _, a := range amounts {
		sum += a
	}

	seq, err = e.log.Append(multiDebitIntent(acct, sum))
	if err != nil {
		return 0, 0, fmt.Errorf("ledger: append multidebit intent: %w", err)
	}
	tx, err := e.begin(acct)
	if err != nil {
		return 0, seq, err
	}
	defer func() { err = tx.finish(err) }()

	cbal := tx.orig
	for _, a := range amounts {
		if err := tx.put(tx.orig - a); err != nil {
			return 0, seq, err
		}
		cbal -= a
		if cbal < 0 {
			return 0, seq, &InsufficientFundsError{
				Account:   acct,
				Balance:   tx.orig,
				Requested: sum,
			}
		}
	}
	tx.commit()
	return tx.orig - sum, seq, nil
}

// LogLength returns the number of intent records ever appended,
// across all accounts.
func (e *Engine) LogLength() uint64 {
	return e.log.Length()
}

// LogSlice returns the intent records in [start, finish) decoded to
// text.
func (e *Engine) LogSlice(start, finish uint64) ([]string, error) {
	raw, err := e.log.Slice(start, finish)
	if err != nil {
		return nil, fmt.Errorf("ledger: slice log [%d,%d): %w", start, finish, err)
	}
	out := make([]string, len(raw))
	for i, b := range raw {
		out[i] = string(b)
	}
	return out, nil
}
