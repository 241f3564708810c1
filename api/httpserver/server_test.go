package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tally/domain/ledger"
	"tally/infra/balancestore"
	"tally/infra/txlog"
	"tally/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tlog, err := txlog.Open(txlog.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open txlog: %v", err)
	}
	t.Cleanup(func() { _ = tlog.Close() })

	engine := ledger.New(balancestore.NewMemory(), tlog)
	svc := service.NewLedgerService(engine, nil, zap.NewNop())
	ts := httptest.NewServer(NewServer(svc, zap.NewNop()).Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBalance(t *testing.T, resp *http.Response) int64 {
	t.Helper()
	defer resp.Body.Close()
	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.Balance
}

func TestCreditDebitOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/accounts/a-123/credit", `{"amount":5000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credit status %d", resp.StatusCode)
	}
	if bal := decodeBalance(t, resp); bal != 5000 {
		t.Fatalf("credit balance %d", bal)
	}

	resp = post(t, ts, "/accounts/a-123/debit", `{"amount":3000}`)
	if bal := decodeBalance(t, resp); bal != 2000 {
		t.Fatalf("debit balance %d", bal)
	}

	resp = get(t, ts, "/accounts/a-123/balance")
	if bal := decodeBalance(t, resp); bal != 2000 {
		t.Fatalf("query balance %d", bal)
	}
}

func TestInsufficientFundsMapsToConflict(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/accounts/a-123/credit", `{"amount":100}`)
	resp.Body.Close()

	resp = post(t, ts, "/accounts/a-123/debit", `{"amount":500}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	resp = get(t, ts, "/accounts/a-123/balance")
	if bal := decodeBalance(t, resp); bal != 100 {
		t.Fatalf("balance after rejected debit: %d", bal)
	}
}

func TestMultiDebitOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/accounts/a-123/credit", `{"amount":5000}`)
	resp.Body.Close()

	resp = post(t, ts, "/accounts/a-123/multidebit", `{"amounts":[1000,2000,4000]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for oversized multidebit, got %d", resp.StatusCode)
	}
}

func TestLogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	post(t, ts, "/accounts/a-123/credit", `{"amount":5000}`).Body.Close()
	get(t, ts, "/accounts/a-123/balance").Body.Close()
	post(t, ts, "/accounts/a-123/debit", `{"amount":7000}`).Body.Close()

	resp := get(t, ts, "/log/length")
	defer resp.Body.Close()
	var lengthOut struct {
		Length uint64 `json:"length"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lengthOut); err != nil {
		t.Fatalf("decode length: %v", err)
	}
	if lengthOut.Length != 3 {
		t.Fatalf("expected log length 3, got %d", lengthOut.Length)
	}

	resp = get(t, ts, "/log?start=0&finish=3")
	defer resp.Body.Close()
	var sliceOut struct {
		Records []string `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sliceOut); err != nil {
		t.Fatalf("decode slice: %v", err)
	}
	if len(sliceOut.Records) != 3 {
		t.Fatalf("expected 3 records, got %v", sliceOut.Records)
	}
	if sliceOut.Records[2] != "Debit:a-123 7000" {
		t.Fatalf("expected rejected attempt on the log, got %q", sliceOut.Records[2])
	}
}

func TestBadRequestBody(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/accounts/a-123/credit", `not-json`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
