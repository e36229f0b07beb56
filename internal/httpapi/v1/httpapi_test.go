package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/vault/internal/storage/memory"
	"github.com/tinoosan/vault/internal/vault"
)

type stubReleaser struct {
	err   error
	calls int
}

func (r *stubReleaser) Release(context.Context, uuid.UUID, money.Amount) error {
	r.calls++
	return r.err
}

func setup(t *testing.T, capacityMinor, limitMinor int64, rel *stubReleaser) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	if rel == nil {
		rel = &stubReleaser{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	params, err := vault.NewParams("USD", capacityMinor, limitMinor)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	svc, err := vault.New(params, store, store, rel, nil, logger)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	srv := httptest.NewServer(New(svc, store, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func post(t *testing.T, srv *httptest.Server, path, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	return v
}

func depositBody(account uuid.UUID, amountMinor int64) string {
	return fmt.Sprintf(`{"account_id":%q,"amount_minor":%d}`, account, amountMinor)
}

func TestDepositEndpoint(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()

	resp, body := post(t, srv, "/v1/deposits", depositBody(a, 500), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	out := decode[operationResponse](t, body)
	if out.Kind != "deposit" || out.AccountID != a {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.AmountMinor != 500 || out.NewBalanceMinor != 500 || out.Currency != "USD" {
		t.Fatalf("unexpected amounts: %+v", out)
	}

	resp, body = get(t, srv, "/v1/accounts/"+a.String()+"/balance")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	bal := decode[balanceResponse](t, body)
	if bal.BalanceMinor != 500 {
		t.Fatalf("expected balance 500, got %d", bal.BalanceMinor)
	}

	resp, body = get(t, srv, "/v1/vault")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	v := decode[vaultResponse](t, body)
	if v.TotalHeldMinor != 500 || v.Deposits != 1 || v.CapacityMinor != 1000 || v.WithdrawalLimitMinor != 100 {
		t.Fatalf("unexpected vault state: %+v", v)
	}
}

func TestDepositEndpoint_CapacityExceeded(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a, b := uuid.New(), uuid.New()

	if resp, body := post(t, srv, "/v1/deposits", depositBody(a, 500), nil); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	resp, body := post(t, srv, "/v1/deposits", depositBody(b, 600), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	e := decode[errorResponse](t, body)
	if e.Code != "capacity_exceeded" {
		t.Fatalf("expected capacity_exceeded, got %q", e.Code)
	}
	if e.Details["attempted_total_minor"] != float64(1100) || e.Details["capacity_minor"] != float64(1000) {
		t.Fatalf("unexpected details: %+v", e.Details)
	}
}

func TestDepositEndpoint_ZeroAmount(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	resp, body := post(t, srv, "/v1/deposits", depositBody(uuid.New(), 0), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	if e := decode[errorResponse](t, body); e.Code != "zero_amount" {
		t.Fatalf("expected zero_amount, got %q", e.Code)
	}
}

func TestWithdrawalEndpoint(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()
	post(t, srv, "/v1/deposits", depositBody(a, 500), nil)

	// above the per-operation limit
	resp, body := post(t, srv, "/v1/withdrawals", depositBody(a, 150), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	e := decode[errorResponse](t, body)
	if e.Code != "withdrawal_limit_exceeded" {
		t.Fatalf("expected withdrawal_limit_exceeded, got %q", e.Code)
	}
	if e.Details["requested_minor"] != float64(150) || e.Details["limit_minor"] != float64(100) {
		t.Fatalf("unexpected details: %+v", e.Details)
	}

	// within limit
	resp, body = post(t, srv, "/v1/withdrawals", depositBody(a, 50), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	out := decode[operationResponse](t, body)
	if out.Kind != "withdrawal" || out.NewBalanceMinor != 450 {
		t.Fatalf("unexpected response: %+v", out)
	}

	// more than the balance reports insufficiency, not the limit
	resp, body = post(t, srv, "/v1/withdrawals", depositBody(a, 1000), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	e = decode[errorResponse](t, body)
	if e.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %q", e.Code)
	}
	if e.Details["available_minor"] != float64(450) || e.Details["requested_minor"] != float64(1000) {
		t.Fatalf("unexpected details: %+v", e.Details)
	}
}

func TestWithdrawalEndpoint_TransferFailed(t *testing.T) {
	rel := &stubReleaser{err: errors.New("recipient unreachable")}
	srv, store := setup(t, 1000, 100, rel)
	a := uuid.New()
	post(t, srv, "/v1/deposits", depositBody(a, 500), nil)

	resp, body := post(t, srv, "/v1/withdrawals", depositBody(a, 50), nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.StatusCode, body)
	}
	e := decode[errorResponse](t, body)
	if e.Code != "transfer_failed" {
		t.Fatalf("expected transfer_failed, got %q", e.Code)
	}
	if rel.calls != 1 {
		t.Fatalf("expected one release attempt, got %d", rel.calls)
	}
	if bal, _ := store.BalanceMinor(context.Background(), a); bal != 500 {
		t.Fatalf("expected balance restored to 500, got %d", bal)
	}
}

func TestReceiptEndpoint(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()

	// plain receipt credits like a deposit
	resp, body := post(t, srv, "/v1/receipts", depositBody(a, 200), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	if out := decode[operationResponse](t, body); out.NewBalanceMinor != 200 {
		t.Fatalf("unexpected response: %+v", out)
	}

	// plain receipt rejects zero
	resp, body = post(t, srv, "/v1/receipts", depositBody(a, 0), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}

	// unrecognized instruction with value credits through the fallback path
	withInstr := fmt.Sprintf(`{"account_id":%q,"amount_minor":100,"instruction":"mystery"}`, a)
	resp, body = post(t, srv, "/v1/receipts", withInstr, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	// unrecognized instruction with zero value is a silent no-op
	zeroInstr := fmt.Sprintf(`{"account_id":%q,"amount_minor":0,"instruction":"mystery"}`, a)
	resp, body = post(t, srv, "/v1/receipts", zeroInstr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	out := decode[operationResponse](t, body)
	if !out.NoOp || out.NewBalanceMinor != 300 {
		t.Fatalf("expected no-op at balance 300, got %+v", out)
	}
}

func TestIdempotentReplay(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()
	body := depositBody(a, 500)
	hdr := map[string]string{"Idempotency-Key": "op-1"}

	resp, first := post(t, srv, "/v1/deposits", body, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, first)
	}
	resp, second := post(t, srv, "/v1/deposits", body, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d: %s", resp.StatusCode, second)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("replay must return the stored payload:\n%s\n%s", first, second)
	}

	// the replay must not credit a second time
	_, balBody := get(t, srv, "/v1/accounts/"+a.String()+"/balance")
	if bal := decode[balanceResponse](t, balBody); bal.BalanceMinor != 500 {
		t.Fatalf("expected balance 500 after replay, got %d", bal.BalanceMinor)
	}

	// same key with a different payload is a conflict
	resp, out := post(t, srv, "/v1/deposits", depositBody(a, 100), hdr)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", resp.StatusCode, out)
	}
}

func TestRequestValidation(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()

	t.Run("missing content type", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/deposits", bytes.NewBufferString(depositBody(a, 100)))
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnsupportedMediaType {
			t.Fatalf("expected 415, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		body := fmt.Sprintf(`{"account_id":%q,"amount_minor":100,"extra":true}`, a)
		resp, out := post(t, srv, "/v1/deposits", body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", resp.StatusCode, out)
		}
	})

	t.Run("negative amount", func(t *testing.T) {
		resp, out := post(t, srv, "/v1/deposits", depositBody(a, -5), nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", resp.StatusCode, out)
		}
		if e := decode[errorResponse](t, out); e.Code != "invalid_amount" {
			t.Fatalf("expected invalid_amount, got %q", e.Code)
		}
	})

	t.Run("missing account", func(t *testing.T) {
		resp, out := post(t, srv, "/v1/deposits", `{"amount_minor":100}`, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", resp.StatusCode, out)
		}
	})

	t.Run("malformed account id in path", func(t *testing.T) {
		resp, _ := get(t, srv, "/v1/accounts/not-a-uuid/balance")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestCountersEndpoint(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	a := uuid.New()
	post(t, srv, "/v1/deposits", depositBody(a, 300), nil)
	post(t, srv, "/v1/withdrawals", depositBody(a, 100), nil)

	resp, body := get(t, srv, "/v1/accounts/"+a.String()+"/counters")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	c := decode[countersResponse](t, body)
	if c.Deposits != 1 || c.Withdrawals != 1 {
		t.Fatalf("unexpected counters: %+v", c)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := setup(t, 1000, 100, nil)
	if resp, _ := get(t, srv, "/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}
	if resp, _ := get(t, srv, "/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from readyz, got %d", resp.StatusCode)
	}
}
