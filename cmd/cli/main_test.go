package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/ledgerbook/internal/adapter/http"
	"github.com/iho/ledgerbook/internal/adapter/http/handler"
	"github.com/iho/ledgerbook/internal/adapter/repository/memory"
	"github.com/iho/ledgerbook/internal/usecase"
)

type counterIDs struct{ n int }

func (c *counterIDs) Generate() string {
	c.n++
	return fmt.Sprintf("transaction-%04d", c.n)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	ledger := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: store,
		Entries:   store,
		Balances:  store,
		IDGen:     &counterIDs{},
	})
	recon := usecase.NewReconciliationUseCase(store, store, store)

	srv := httptest.NewServer(httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler: handler.NewLedgerHandler(ledger, recon, 0, zerolog.Nop()),
		HealthHandler: handler.NewHealthHandler(),
		Logger:        zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)

	return srv
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	if err := printJSON(&out, []byte("{\"a\":1}\n")); err != nil {
		t.Fatalf("printJSON failed: %v", err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if out.String() != expected {
		t.Fatalf("unexpected json output:\n%s", out.String())
	}
}

func TestCommands(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, srv, "credit", "ACC-1", "10")
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if !strings.Contains(out, "Posted Credit of 10 to ACC-1") || !strings.Contains(out, "Balance: 10") {
		t.Fatalf("unexpected credit output:\n%s", out)
	}

	if _, err := execute(t, srv, "debit", "ACC-1", "2.5"); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	out, err = execute(t, srv, "balance", "ACC-1")
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if strings.TrimSpace(out) != "ACC-1: 7.5" {
		t.Fatalf("unexpected balance output %q", out)
	}

	out, err = execute(t, srv, "history", "ACC-1", "--limit", "1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "D") || !strings.Contains(lines[1], "7.5") {
		t.Fatalf("unexpected history output:\n%s", out)
	}

	if _, err := execute(t, srv, "credit", "ACC-2", "4"); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	out, err = execute(t, srv, "entries")
	if err != nil {
		t.Fatalf("entries failed: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || !strings.Contains(lines[1], "ACC-2") || !strings.Contains(lines[3], "ACC-1") {
		t.Fatalf("unexpected entries output:\n%s", out)
	}

	out, err = execute(t, srv, "entries", "--limit", "1")
	if err != nil {
		t.Fatalf("entries --limit failed: %v", err)
	}
	if lines = strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Fatalf("unexpected limited entries output:\n%s", out)
	}

	out, err = execute(t, srv, "reconcile", "ACC-1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !strings.Contains(out, "Reconciliation PASSED for ACC-1") {
		t.Fatalf("unexpected reconcile output:\n%s", out)
	}

	out, err = execute(t, srv, "--json", "balance", "ACC-1")
	if err != nil {
		t.Fatalf("balance --json failed: %v", err)
	}
	if !strings.Contains(out, "\"balance\": \"7.5\"") {
		t.Fatalf("unexpected json output:\n%s", out)
	}
}

func TestCommandErrors(t *testing.T) {
	srv := newTestServer(t)

	if _, err := execute(t, srv, "credit", "ACC-1", "ten"); err == nil || !strings.Contains(err.Error(), "invalid amount") {
		t.Fatalf("expected invalid amount error, got %v", err)
	}

	_, err := execute(t, srv, "credit", "--", "ACC-1", "-5")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected API error, got %v", err)
	}

	out, err := execute(t, srv, "history", "EMPTY")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if strings.TrimSpace(out) != "No entries" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, srv, "balance"); err == nil {
		t.Fatal("expected argument error")
	}
}
