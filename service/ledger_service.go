package service

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tally/domain/ledger"
)

/*
LedgerService is the ONLY write entry point into the system.

All coordination between:
- domain (ledger engine)
- infra (balance store, intent log, outbox)
happens here.
*/

// EventSink receives one durable event per committed mutation,
// keyed by the mutation's intent-log sequence. The log sequence is
// durable and strictly monotonic across restarts, so staged events
// never collide with records a previous process left undelivered.
// infra/outbox implements it.
type EventSink interface {
	PutNew(seq uint64, payload []byte) error
}

// Event is the committed-mutation payload handed to the sink. Seq is
// the intent-log sequence of the mutation that produced it. Failed
// operations emit no event; the intent log already holds the attempt.
type Event struct {
	V       int    `json:"v"`
	ID      string `json:"id"`
	Seq     uint64 `json:"seq"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

type LedgerService struct {
	engine *ledger.Engine
	locks  *keyLocks
	sink   EventSink
	log    *zap.Logger
}

// NewLedgerService wires all dependencies. sink may be nil when no
// event delivery is configured.
func NewLedgerService(engine *ledger.Engine, sink EventSink, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		engine: engine,
		locks:  newKeyLocks(),
		sink:   sink,
		log:    logger,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *LedgerService) Credit(acct string, amount int64) (int64, error) {
	unlock := s.locks.lock(acct)
	defer unlock()

	bal, seq, err := s.engine.Credit(acct, amount)
	if err != nil {
		return 0, err
	}
	s.emit("credit", acct, amount, bal, seq)
	return bal, nil
}

func (s *LedgerService) Debit(acct string, amount int64) (int64, error) {
	unlock := s.locks.lock(acct)
	defer unlock()

	bal, seq, err := s.engine.Debit(acct, amount)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.log.Warn("debit rejected",
				zap.String("account", acct),
				zap.Int64("amount", amount),
			)
		}
		return 0, err
	}
	s.emit("debit", acct, amount, bal, seq)
	return bal, nil
}

func (s *LedgerService) MultiDebit(acct string, amounts []int64) (int64, error) {
	unlock := s.locks.lock(acct)
	defer unlock()

	bal, seq, err := s.engine.MultiDebit(acct, amounts)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.log.Warn("multidebit rejected",
				zap.String("account", acct),
				zap.Int("steps", len(amounts)),
			)
		}
		return 0, err
	}

	var sum int64
	for _, a := range amounts {
		sum += a
	}
	s.emit("multidebit", acct, sum, bal, seq)
	return bal, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (s *LedgerService) Balance(acct string) (int64, error) {
	unlock := s.locks.lock(acct)
	defer unlock()

	return s.engine.Balance(acct)
}

func (s *LedgerService) LogLength() uint64 {
	return s.engine.LogLength()
}

func (s *LedgerService) LogSlice(start, finish uint64) ([]string, error) {
	return s.engine.LogSlice(start, finish)
}

//
// ──────────────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────────────
//

// emit stages a committed-mutation event for async delivery, keyed by
// the mutation's intent-log sequence. The ledger mutation is already
// durable at this point, so a sink failure is logged, not propagated:
// callers never see a committed operation fail.
func (s *LedgerService) emit(typ, acct string, amount, balance int64, seq uint64) {
	if s.sink == nil {
		return
	}

	payload, err := json.Marshal(Event{
		V:       1,
		ID:      uuid.NewString(),
		Seq:     seq,
		Type:    typ,
		Account: acct,
		Amount:  amount,
		Balance: balance,
	})
	if err != nil {
		s.log.Error("marshal event", zap.Error(err))
		return
	}

	if err := s.sink.PutNew(seq, payload); err != nil {
		s.log.Error("stage event",
			zap.Uint64("seq", seq),
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}
