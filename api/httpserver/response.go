package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"tally/domain/ledger"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps ledger faults to status codes. InsufficientFunds is a
// normal operation failure (the rollback already ran), not a server
// error.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
