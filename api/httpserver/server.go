// Package httpserver adapts LedgerService to HTTP. Handlers only
// parse requests, call the service and map faults to status codes;
// all ledger semantics live below this layer.
package httpserver

import (
	"go.uber.org/zap"

	"tally/service"
)

type Server struct {
	svc *service.LedgerService
	log *zap.Logger
}

func NewServer(svc *service.LedgerService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, log: logger}
}
