package ledger_test

import (
	"errors"
	"strings"
	"testing"

	"tally/domain/ledger"
	"tally/infra/balancestore"
	"tally/infra/txlog"
)

func newTestEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	tlog, err := txlog.Open(txlog.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open txlog: %v", err)
	}
	t.Cleanup(func() { _ = tlog.Close() })
	return ledger.New(balancestore.NewMemory(), tlog)
}

func mustBalance(t *testing.T, e *ledger.Engine, acct string) int64 {
	t.Helper()
	bal, err := e.Balance(acct)
	if err != nil {
		t.Fatalf("balance %s: %v", acct, err)
	}
	return bal
}

func TestCreditDebitSequence(t *testing.T) {
	e := newTestEngine(t)

	bal, _, err := e.Credit("a-123", 5000)
	if err != nil || bal != 5000 {
		t.Fatalf("credit: bal=%d err=%v", bal, err)
	}
	if got := mustBalance(t, e, "a-123"); got != 5000 {
		t.Fatalf("balance after credit: %d", got)
	}

	bal, _, err = e.Debit("a-123", 3000)
	if err != nil || bal != 2000 {
		t.Fatalf("debit: bal=%d err=%v", bal, err)
	}

	bal, _, err = e.Credit("a-123", 7000)
	if err != nil || bal != 9000 {
		t.Fatalf("credit: bal=%d err=%v", bal, err)
	}
	if got := mustBalance(t, e, "a-123"); got != 9000 {
		t.Fatalf("balance mid-sequence: %d", got)
	}

	bal, _, err = e.Debit("a-123", 8000)
	if err != nil || bal != 1000 {
		t.Fatalf("debit: bal=%d err=%v", bal, err)
	}
	if got := mustBalance(t, e, "a-123"); got != 1000 {
		t.Fatalf("final balance: %d", got)
	}

	if got := e.LogLength(); got != 7 {
		t.Fatalf("expected 7 log records, got %d", got)
	}
	recs, err := e.LogSlice(0, 7)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(recs) != 7 {
		t.Fatalf("expected 7 records in slice, got %d", len(recs))
	}
	want := []string{
		"Credit:a-123 5000",
		"Balance:a-123",
		"Debit:a-123 3000",
		"Credit:a-123 7000",
		"Balance:a-123",
		"Debit:a-123 8000",
		"Balance:a-123",
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Fatalf("record %d: expected %q, got %q", i, want[i], recs[i])
		}
	}
}

func TestDebitInsufficientFundsRollsBack(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 5000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := mustBalance(t, e, "a-123"); got != 5000 {
		t.Fatalf("balance before debit: %d", got)
	}

	_, _, err := e.Debit("a-123", 7000)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	var ife *ledger.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("expected typed fault, got %T", err)
	}
	if ife.Account != "a-123" || ife.Balance != 5000 || ife.Requested != 7000 {
		t.Fatalf("fault details: %+v", ife)
	}

	// the failed attempt is still on the log
	if got := e.LogLength(); got != 3 {
		t.Fatalf("expected 3 log records, got %d", got)
	}
	// and the balance is untouched
	if got := mustBalance(t, e, "a-123"); got != 5000 {
		t.Fatalf("balance after failed debit: %d", got)
	}
}

func TestMultiDebitInsufficientFundsRollsBack(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 5000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := mustBalance(t, e, "a-123"); got != 5000 {
		t.Fatalf("balance before multidebit: %d", got)
	}

	_, _, err := e.MultiDebit("a-123", []int64{1000, 2000, 4000})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// one record for the whole multi-debit, regardless of outcome
	if got := e.LogLength(); got != 3 {
		t.Fatalf("expected 3 log records, got %d", got)
	}
	if got := mustBalance(t, e, "a-123"); got != 5000 {
		t.Fatalf("balance after failed multidebit: %d", got)
	}

	recs, err := e.LogSlice(2, 3)
	if err != nil || len(recs) != 1 {
		t.Fatalf("slice: recs=%v err=%v", recs, err)
	}
	if recs[0] != "MultiDebit:a-123 7000" {
		t.Fatalf("expected aggregate-sum intent, got %q", recs[0])
	}
}

func TestMultiDebitStoredValueTracksLastStep(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 9000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Documented quirk: the returned balance reflects the full sum,
	// the stored balance reflects only the last step's write.
	bal, _, err := e.MultiDebit("a-123", []int64{1000, 2000})
	if err != nil {
		t.Fatalf("multidebit: %v", err)
	}
	if bal != 6000 {
		t.Fatalf("expected returned balance 6000, got %d", bal)
	}
	if got := mustBalance(t, e, "a-123"); got != 7000 {
		t.Fatalf("expected stored balance 7000, got %d", got)
	}
}

func TestMultiDebitExactBalanceSucceeds(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 3000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, _, err := e.MultiDebit("a-123", []int64{1000, 2000})
	if err != nil {
		t.Fatalf("expected exact drain to succeed: %v", err)
	}
	if bal != 0 {
		t.Fatalf("expected returned balance 0, got %d", bal)
	}
}

func TestMultiDebitEmpty(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, _, err := e.MultiDebit("a-123", nil)
	if err != nil || bal != 500 {
		t.Fatalf("empty multidebit: bal=%d err=%v", bal, err)
	}
	if got := e.LogLength(); got != 2 {
		t.Fatalf("empty multidebit must still log: got %d records", got)
	}
}

func TestDebitExactBalance(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 3000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, _, err := e.Debit("a-123", 3000)
	if err != nil || bal != 0 {
		t.Fatalf("debit to zero: bal=%d err=%v", bal, err)
	}
}

func TestCreditWithoutSignValidation(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 1000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	// Negative credits pass through unvalidated; see DESIGN.md.
	bal, _, err := e.Credit("a-123", -300)
	if err != nil {
		t.Fatalf("negative credit: %v", err)
	}
	if bal != 700 {
		t.Fatalf("expected 700, got %d", bal)
	}
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	e := newTestEngine(t)

	if got := mustBalance(t, e, "ghost"); got != 0 {
		t.Fatalf("expected 0 for untouched account, got %d", got)
	}
	// the query itself still grew the log
	if got := e.LogLength(); got != 1 {
		t.Fatalf("expected 1 log record, got %d", got)
	}
}

func TestRepeatedBalanceIsStable(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-123", 4200); err != nil {
		t.Fatalf("credit: %v", err)
	}
	before := e.LogLength()
	for i := 0; i < 5; i++ {
		if got := mustBalance(t, e, "a-123"); got != 4200 {
			t.Fatalf("query %d: expected 4200, got %d", i, got)
		}
	}
	if got := e.LogLength(); got != before+5 {
		t.Fatalf("each query must append: expected %d records, got %d", before+5, got)
	}
}

func TestAccountsAreIndependent(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-1", 100); err != nil {
		t.Fatalf("credit a-1: %v", err)
	}
	if _, _, err := e.Credit("a-2", 200); err != nil {
		t.Fatalf("credit a-2: %v", err)
	}
	if _, _, err := e.Debit("a-1", 150); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds on a-1, got %v", err)
	}
	if got := mustBalance(t, e, "a-2"); got != 200 {
		t.Fatalf("a-2 must be unaffected: %d", got)
	}
}

// -------------------- storage fault injection --------------------

type faultStore struct {
	ledger.KVStore
	failGet   bool
	failPut   bool
	putCalls  int
	failPutNo int // fail exactly the Nth put (1-based); 0 disables
}

var errStoreDown = errors.New("store down")

func (s *faultStore) Get(key []byte) ([]byte, bool, error) {
	if s.failGet {
		return nil, false, errStoreDown
	}
	return s.KVStore.Get(key)
}

func (s *faultStore) Put(key, val []byte) error {
	s.putCalls++
	if s.failPut || s.putCalls == s.failPutNo {
		return errStoreDown
	}
	return s.KVStore.Put(key, val)
}

func newFaultEngine(t *testing.T, fs *faultStore) *ledger.Engine {
	t.Helper()
	tlog, err := txlog.Open(txlog.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open txlog: %v", err)
	}
	t.Cleanup(func() { _ = tlog.Close() })
	fs.KVStore = balancestore.NewMemory()
	return ledger.New(fs, tlog)
}

func TestStorageErrorsPropagate(t *testing.T) {
	fs := &faultStore{failGet: true}
	e := newFaultEngine(t, fs)

	if _, _, err := e.Credit("a-123", 100); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}

	fs.failGet = false
	fs.failPut = true
	if _, _, err := e.Credit("a-123", 100); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error on put, got %v", err)
	}
}

func TestMultiDebitStepFailureRollsBackEarlierWrites(t *testing.T) {
	fs := &faultStore{}
	e := newFaultEngine(t, fs)

	if _, _, err := e.Credit("a-123", 9000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// First step writes, second step's put fails; the compensating
	// write must restore the original balance.
	fs.failPutNo = fs.putCalls + 2
	if _, _, err := e.MultiDebit("a-123", []int64{1000, 2000}); err == nil {
		t.Fatal("expected step failure")
	}

	if got := mustBalance(t, e, "a-123"); got != 9000 {
		t.Fatalf("expected rollback to 9000, got %d", got)
	}
}

func TestLogSliceDecodesToText(t *testing.T) {
	e := newTestEngine(t)

	if _, _, err := e.Credit("a-9", 1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	recs, err := e.LogSlice(0, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("slice: %v %v", recs, err)
	}
	if !strings.HasPrefix(recs[0], "Credit:a-9 ") {
		t.Fatalf("unexpected record text %q", recs[0])
	}
}
