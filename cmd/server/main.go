package main

import (
	"context"
	"flag"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tally/api/httpserver"
	"tally/domain/ledger"
	"tally/infra/balancestore"
	"tally/infra/outbox"
	"tally/infra/txlog"
	"tally/jobs/audit"
	"tally/jobs/broadcaster"
	"tally/service"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		dataDir     = flag.String("data-dir", "./data", "base directory for durable state")
		brokers     = flag.String("brokers", "", "comma-separated Kafka brokers (empty disables jobs)")
		eventsTopic = flag.String("events-topic", "ledger.events", "topic for committed-mutation events")
		auditTopic  = flag.String("audit-topic", "ledger.audit", "topic for the intent-log audit stream")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ---------------- Intent Log ----------------

	intentLog, err := txlog.Open(txlog.Config{
		Dir:         *dataDir + "/txlog",
		SegmentSize: 4 * 1024 * 1024,
	})
	if err != nil {
		logger.Fatal("intent log init failed", zap.Error(err))
	}
	defer intentLog.Close()

	// ---------------- Balance Store ----------------

	store, err := balancestore.OpenPebble(*dataDir + "/balances")
	if err != nil {
		logger.Fatal("balance store init failed", zap.Error(err))
	}
	defer store.Close()

	// ---------------- Outbox ----------------

	ob, err := outbox.Open(*dataDir + "/outbox")
	if err != nil {
		logger.Fatal("outbox init failed", zap.Error(err))
	}
	defer ob.Close()

	// ---------------- Domain ----------------

	engine := ledger.New(store, intentLog)

	// ---------------- Service ----------------

	svc := service.NewLedgerService(engine, ob, logger)

	// ---------------- Background Jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *brokers != "" {
		brokerList := strings.Split(*brokers, ",")

		bc, err := broadcaster.New(ob, brokerList, *eventsTopic, 250*time.Millisecond, logger)
		if err != nil {
			logger.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer bc.Close()
		bc.Start(ctx)

		tailer := audit.New(intentLog, brokerList, *auditTopic, time.Second, logger)
		defer tailer.Close()
		go tailer.Run(ctx)
	}

	// ---------------- HTTP ----------------

	srv := httpserver.NewServer(svc, logger)

	logger.Info("ledger engine running", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, srv.Router()); err != nil {
		logger.Fatal("http server exited", zap.Error(err))
	}
}
