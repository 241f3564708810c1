package audit

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// IntentLog is the slice of the txlog API the tailer needs.
type IntentLog interface {
	Length() uint64
	Slice(start, finish uint64) ([][]byte, error)
}

// Tailer streams intent-log records to an audit topic. The intent log
// records every attempt, including rejected ones, so the audit stream
// sees the full history rather than only committed mutations.
//
// The cursor advances only after a successful write batch, giving
// at-least-once delivery from offset zero.
type Tailer struct {
	log      IntentLog
	writer   *kafka.Writer
	cursor   uint64
	interval time.Duration
	zlog     *zap.Logger
}

func New(
	intentLog IntentLog,
	brokers []string,
	topic string,
	interval time.Duration,
	logger *zap.Logger,
) *Tailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tailer{
		log: intentLog,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		interval: interval,
		zlog:     logger,
	}
}

// Run ships new records until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context) {
	t.zlog.Info("audit tailer started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.ship(ctx)
		}
	}
}

func (t *Tailer) ship(ctx context.Context) {
	head := t.log.Length()
	if head <= t.cursor {
		return
	}

	recs, err := t.log.Slice(t.cursor, head)
	if err != nil {
		t.zlog.Error("read intent log", zap.Error(err))
		return
	}

	msgs := make([]kafka.Message, len(recs))
	for i, rec := range recs {
		msgs[i] = kafka.Message{Value: rec}
	}

	if err := t.writer.WriteMessages(ctx, msgs...); err != nil {
		// cursor holds; the batch is retried next tick
		t.zlog.Warn("audit publish failed",
			zap.Uint64("from", t.cursor),
			zap.Uint64("to", head),
			zap.Error(err),
		)
		return
	}
	t.cursor = head
}

func (t *Tailer) Close() error {
	return t.writer.Close()
}
