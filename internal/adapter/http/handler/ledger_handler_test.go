package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/adapter/repository/memory"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) Generate() string {
	s.n++
	return fmt.Sprintf("tx-%d", s.n)
}

type ledgerServiceStub struct {
	err error
}

func (s *ledgerServiceStub) AddEntry(context.Context, usecase.AddEntryInput) (*domain.LedgerEntry, error) {
	return nil, s.err
}

func (s *ledgerServiceStub) QueryHistory(context.Context, usecase.QueryHistoryInput) ([]*domain.LedgerEntry, error) {
	return nil, s.err
}

func (s *ledgerServiceStub) ListEntries(context.Context, *int) ([]*domain.LedgerEntry, error) {
	return nil, s.err
}

func (s *ledgerServiceStub) GetBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, s.err
}

type capturingLedger struct {
	ledgerServiceStub
	limit *int
}

func (s *capturingLedger) ListEntries(_ context.Context, limit *int) ([]*domain.LedgerEntry, error) {
	s.limit = limit
	return nil, nil
}

func (s *capturingLedger) QueryHistory(_ context.Context, input usecase.QueryHistoryInput) ([]*domain.LedgerEntry, error) {
	s.limit = input.Limit
	return nil, nil
}

func newTestRouter(h *LedgerHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/ledger/credit", h.Credit)
	r.Post("/ledger/debit", h.Debit)
	r.Get("/ledger", h.Entries)
	r.Get("/account/{accountNumber}/transactions", h.Transactions)
	r.Get("/account/{accountNumber}/balance", h.Balance)
	r.Get("/ledger/reconciliation/{accountNumber}", h.Reconcile)
	return r
}

func newMemoryHandler(maxLimit int) http.Handler {
	store := memory.NewStore()
	ledger := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager:         store,
		Entries:           store,
		Balances:          store,
		IDGen:             &sequenceIDs{},
		ConsistentHistory: true,
	})
	recon := usecase.NewReconciliationUseCase(store, store, store)
	return newTestRouter(NewLedgerHandler(ledger, recon, maxLimit, zerolog.Nop()))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLedgerHandler_CreditDebitFlow(t *testing.T) {
	h := newMemoryHandler(0)

	rr := do(t, h, http.MethodPost, "/ledger/credit", `{"accountNumber":"ACC-1","creditAmount":"10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var credited dto.EntryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &credited); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if credited.AccountingTypeCode != "C" || credited.TransactionID != "tx-1" || credited.Balance.String() != "10" {
		t.Fatalf("unexpected credit response %+v", credited)
	}

	rr = do(t, h, http.MethodPost, "/ledger/debit", `{"accountNumber":"ACC-1","debitAmount":"3.5"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/account/ACC-1/balance", "")
	var balance dto.BalanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &balance); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if balance.AccountNumber != "ACC-1" || balance.Balance.String() != "6.5" {
		t.Fatalf("unexpected balance %+v", balance)
	}

	rr = do(t, h, http.MethodGet, "/account/ACC-1/transactions", "")
	var history []dto.EntryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].AccountingTypeCode != "D" || history[0].Balance.String() != "6.5" || history[1].Balance.String() != "10" {
		t.Fatalf("unexpected history %+v", history)
	}

	rr = do(t, h, http.MethodGet, "/account/ACC-1/transactions?limit=1", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}

	rr = do(t, h, http.MethodGet, "/ledger/reconciliation/ACC-1", "")
	var recon dto.ReconciliationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &recon); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !recon.IsReconciled || recon.CalculatedBalance.String() != "6.5" {
		t.Fatalf("unexpected reconciliation %+v", recon)
	}
}

func TestLedgerHandler_ListsAllEntries(t *testing.T) {
	h := newMemoryHandler(0)

	rr := do(t, h, http.MethodGet, "/ledger", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty ledger, got %d %s", rr.Code, rr.Body.String())
	}

	do(t, h, http.MethodPost, "/ledger/credit", `{"accountNumber":"ACC-1","creditAmount":"10"}`)
	do(t, h, http.MethodPost, "/ledger/debit", `{"accountNumber":"ACC-2","debitAmount":"4"}`)

	rr = do(t, h, http.MethodGet, "/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"balance"`) {
		t.Fatalf("listing should not carry balances: %s", rr.Body.String())
	}

	var listed []dto.EntrySummaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 2 || listed[0].AccountNumber != "ACC-2" || listed[0].AccountingTypeCode != "D" || listed[1].Amount.String() != "10" {
		t.Fatalf("unexpected listing %+v", listed)
	}

	rr = do(t, h, http.MethodGet, "/ledger?limit=1", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(listed))
	}

	rr = do(t, h, http.MethodGet, "/ledger?limit=-2", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", rr.Code)
	}
}

func TestLedgerHandler_UnknownAccount(t *testing.T) {
	h := newMemoryHandler(0)

	rr := do(t, h, http.MethodGet, "/account/NOPE/transactions", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/account/NOPE/balance", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"balance":"0"`) {
		t.Fatalf("expected zero balance, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLedgerHandler_BadRequests(t *testing.T) {
	h := newMemoryHandler(0)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed body", http.MethodPost, "/ledger/credit", `{"accountNumber":`},
		{"missing account", http.MethodPost, "/ledger/credit", `{"creditAmount":"1"}`},
		{"missing amount", http.MethodPost, "/ledger/debit", `{"accountNumber":"ACC-1"}`},
		{"negative amount", http.MethodPost, "/ledger/credit", `{"accountNumber":"ACC-1","creditAmount":"-1"}`},
		{"non-numeric amount", http.MethodPost, "/ledger/credit", `{"accountNumber":"ACC-1","creditAmount":"ten"}`},
		{"negative limit", http.MethodGet, "/account/ACC-1/transactions?limit=-1", ""},
		{"non-numeric limit", http.MethodGet, "/account/ACC-1/transactions?limit=abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}

			var resp dto.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Fatalf("expected error body, got %s", rr.Body.String())
			}
		})
	}
}

func TestLedgerHandler_StorageFailure(t *testing.T) {
	stub := &ledgerServiceStub{err: domain.NewStorageError("append entry", errors.New("disk full"))}
	h := newTestRouter(NewLedgerHandler(stub, nil, 0, zerolog.Nop()))

	for _, path := range []string{"/ledger", "/account/ACC-1/transactions", "/account/ACC-1/balance"} {
		rr := do(t, h, http.MethodGet, path, "")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rr.Code)
		}
	}

	rr := do(t, h, http.MethodPost, "/ledger/credit", `{"accountNumber":"ACC-1","creditAmount":"1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestLedgerHandler_HistoryMaxLimit(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   int
		header string
	}{
		{"no limit is capped", "", 5, "5"},
		{"large limit is capped", "?limit=50", 5, "5"},
		{"small limit kept", "?limit=2", 2, ""},
		{"zero kept", "?limit=0", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &capturingLedger{}
			h := newTestRouter(NewLedgerHandler(stub, nil, 5, zerolog.Nop()))

			rr := do(t, h, http.MethodGet, "/account/ACC-1/transactions"+tt.query, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if stub.limit == nil || *stub.limit != tt.want {
				t.Fatalf("expected limit %d, got %v", tt.want, stub.limit)
			}
			if got := rr.Header().Get(HistoryLimitHeader); got != tt.header {
				t.Fatalf("expected %s header %q, got %q", HistoryLimitHeader, tt.header, got)
			}
		})
	}
}

func TestLedgerHandler_ListingMaxLimit(t *testing.T) {
	stub := &capturingLedger{}
	h := newTestRouter(NewLedgerHandler(stub, nil, 5, zerolog.Nop()))

	rr := do(t, h, http.MethodGet, "/ledger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if stub.limit == nil || *stub.limit != 5 {
		t.Fatalf("expected limit 5, got %v", stub.limit)
	}
	if got := rr.Header().Get(HistoryLimitHeader); got != "5" {
		t.Fatalf("expected %s header 5, got %q", HistoryLimitHeader, got)
	}
}

func TestLedgerHandler_HistoryUncappedByDefault(t *testing.T) {
	stub := &capturingLedger{}
	h := newTestRouter(NewLedgerHandler(stub, nil, 0, zerolog.Nop()))

	rr := do(t, h, http.MethodGet, "/account/ACC-1/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if stub.limit != nil {
		t.Fatalf("expected no limit, got %d", *stub.limit)
	}
	if got := rr.Header().Get(HistoryLimitHeader); got != "" {
		t.Fatalf("expected no %s header, got %q", HistoryLimitHeader, got)
	}
}
