package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
)

// client talks to the Ledgerbook HTTP API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Reason  string
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Reason, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Reason, e.Status)
}

func (c *client) postEntry(kind, accountNumber, amount string, out any) ([]byte, error) {
	body := map[string]string{
		"accountNumber":  accountNumber,
		kind + "Amount": amount,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return c.do(http.MethodPost, "/ledger/"+kind, bytes.NewReader(payload), out)
}

func (c *client) history(accountNumber string, limit int, out any) ([]byte, error) {
	path := "/account/" + url.PathEscape(accountNumber) + "/transactions"
	if limit >= 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) entries(limit int, out any) ([]byte, error) {
	path := "/ledger"
	if limit >= 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) balance(accountNumber string, out any) ([]byte, error) {
	return c.do(http.MethodGet, "/account/"+url.PathEscape(accountNumber)+"/balance", nil, out)
}

func (c *client) reconcile(accountNumber string, out any) ([]byte, error) {
	return c.do(http.MethodGet, "/ledger/reconciliation/"+url.PathEscape(accountNumber), nil, out)
}

func (c *client) do(method, path string, body io.Reader, out any) ([]byte, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp dto.ErrorResponse
		if json.Unmarshal(raw, &errResp) != nil || errResp.Error == "" {
			errResp.Error = strings.TrimSpace(string(raw))
		}
		return nil, &apiError{Status: resp.StatusCode, Reason: errResp.Error, Message: errResp.Message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return raw, nil
}
