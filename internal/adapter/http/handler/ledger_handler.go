package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// LedgerService is the engine surface the handlers need.
type LedgerService interface {
	AddEntry(ctx context.Context, input usecase.AddEntryInput) (*domain.LedgerEntry, error)
	QueryHistory(ctx context.Context, input usecase.QueryHistoryInput) ([]*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)
	ListEntries(ctx context.Context, limit *int) ([]*domain.LedgerEntry, error)
}

// ReconciliationService checks one account.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, accountNumber string) (*usecase.ReconciliationResult, error)
}

// LedgerHandler handles entry postings and account queries.
type LedgerHandler struct {
	ledger          LedgerService
	reconciliation  ReconciliationService
	historyMaxLimit int
	logger          zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler. historyMaxLimit caps the
// limit query parameter of history requests; 0 leaves it uncapped.
func NewLedgerHandler(ledger LedgerService, reconciliation ReconciliationService, historyMaxLimit int, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:          ledger,
		reconciliation:  reconciliation,
		historyMaxLimit: historyMaxLimit,
		logger:          logger,
	}
}

// Credit handles POST /ledger/credit.
func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	h.post(w, r, input)
}

// Debit handles POST /ledger/debit.
func (h *LedgerHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req dto.DebitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	h.post(w, r, input)
}

func (h *LedgerHandler) post(w http.ResponseWriter, r *http.Request, input usecase.AddEntryInput) {
	entry, err := h.ledger.AddEntry(r.Context(), input)
	if err != nil {
		h.logFailure(err, "add entry", input.AccountNumber)
		writeDomainError(w, err, "failed to post entry")
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// HistoryLimitHeader carries the applied row cap when a history request
// was cut down to the configured maximum.
const HistoryLimitHeader = "X-History-Limit"

// Transactions handles GET /account/{accountNumber}/transactions.
func (h *LedgerHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")

	limit, err := domain.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}

	entries, err := h.ledger.QueryHistory(r.Context(), usecase.QueryHistoryInput{
		AccountNumber: accountNumber,
		Limit:         h.capLimit(w, limit),
	})
	if err != nil {
		h.logFailure(err, "query history", accountNumber)
		writeDomainError(w, err, "failed to query transactions")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Entries handles GET /ledger.
func (h *LedgerHandler) Entries(w http.ResponseWriter, r *http.Request) {
	limit, err := domain.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}

	entries, err := h.ledger.ListEntries(r.Context(), h.capLimit(w, limit))
	if err != nil {
		h.logFailure(err, "list entries", "")
		writeDomainError(w, err, "failed to list entries")
		return
	}

	writeJSON(w, http.StatusOK, dto.EntrySummariesFromDomain(entries))
}

// capLimit applies historyMaxLimit and reports an applied cap in
// HistoryLimitHeader.
func (h *LedgerHandler) capLimit(w http.ResponseWriter, limit *int) *int {
	if h.historyMaxLimit <= 0 {
		return limit
	}
	if limit != nil && *limit <= h.historyMaxLimit {
		return limit
	}

	capped := h.historyMaxLimit
	w.Header().Set(HistoryLimitHeader, strconv.Itoa(capped))
	return &capped
}

// Balance handles GET /account/{accountNumber}/balance.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")

	balance, err := h.ledger.GetBalance(r.Context(), accountNumber)
	if err != nil {
		h.logFailure(err, "get balance", accountNumber)
		writeDomainError(w, err, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		AccountNumber: accountNumber,
		Balance:       balance,
	})
}

// Reconcile handles GET /ledger/reconciliation/{accountNumber}.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")

	result, err := h.reconciliation.ReconcileAccount(r.Context(), accountNumber)
	if err != nil {
		h.logFailure(err, "reconcile", accountNumber)
		writeDomainError(w, err, "failed to reconcile account")
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}

func (h *LedgerHandler) logFailure(err error, op, accountNumber string) {
	if mapDomainError(err) != http.StatusInternalServerError {
		return
	}
	h.logger.Error().
		Err(err).
		Str("op", op).
		Str("account_number", accountNumber).
		Msg("request failed")
}
