package httpserver

import "net/http"

// Router binds the five ledger operations plus log introspection.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /accounts/{id}/balance", s.balance)
	mux.HandleFunc("POST /accounts/{id}/credit", s.credit)
	mux.HandleFunc("POST /accounts/{id}/debit", s.debit)
	mux.HandleFunc("POST /accounts/{id}/multidebit", s.multiDebit)

	mux.HandleFunc("GET /log/length", s.logLength)
	mux.HandleFunc("GET /log", s.logSlice)

	return mux
}
