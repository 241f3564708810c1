package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

type balanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /accounts/{id}/balance
func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("id")

	bal, err := s.svc.Balance(acct)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Account: acct, Balance: bal})
}

// POST /accounts/{id}/credit
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("id")

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bal, err := s.svc.Credit(acct, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.log.Info("credit",
		zap.String("account", acct),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance", bal),
	)
	writeJSON(w, http.StatusOK, balanceResponse{Account: acct, Balance: bal})
}

// POST /accounts/{id}/debit
func (s *Server) debit(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("id")

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bal, err := s.svc.Debit(acct, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.log.Info("debit",
		zap.String("account", acct),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance", bal),
	)
	writeJSON(w, http.StatusOK, balanceResponse{Account: acct, Balance: bal})
}

// POST /accounts/{id}/multidebit
func (s *Server) multiDebit(w http.ResponseWriter, r *http.Request) {
	acct := r.PathValue("id")

	var req struct {
		Amounts []int64 `json:"amounts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bal, err := s.svc.MultiDebit(acct, req.Amounts)
	if err != nil {
		writeErr(w, err)
		return
	}

	s.log.Info("multidebit",
		zap.String("account", acct),
		zap.Int("steps", len(req.Amounts)),
		zap.Int64("balance", bal),
	)
	writeJSON(w, http.StatusOK, balanceResponse{Account: acct, Balance: bal})
}

// GET /log/length
func (s *Server) logLength(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"length": s.svc.LogLength()})
}

// GET /log?start=0&finish=10
func (s *Server) logSlice(w http.ResponseWriter, r *http.Request) {
	start, err := parseBound(r.URL.Query().Get("start"), 0)
	if err != nil {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}
	finish, err := parseBound(r.URL.Query().Get("finish"), s.svc.LogLength())
	if err != nil {
		http.Error(w, "invalid finish", http.StatusBadRequest)
		return
	}

	recs, err := s.svc.LogSlice(start, finish)
	if err != nil {
		writeErr(w, err)
		return
	}
	if recs == nil {
		recs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"records": recs})
}

func parseBound(raw string, fallback uint64) (uint64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
