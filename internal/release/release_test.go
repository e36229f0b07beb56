package release

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

func amount(t *testing.T, minor int64) money.Amount {
	t.Helper()
	a, err := money.NewAmountFromMinorUnits("USD", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return a
}

func TestWebhookRelease(t *testing.T) {
	var got releasePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recipient := uuid.New()
	if err := NewWebhook(srv.URL).Release(context.Background(), recipient, amount(t, 150)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Recipient != recipient || got.AmountMinor != 150 || got.Currency != "USD" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookRelease_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no liquidity", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Release(context.Background(), uuid.New(), amount(t, 10))
	if err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestWebhookRelease_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if err := NewWebhook(srv.URL).Release(context.Background(), uuid.New(), amount(t, 10)); err == nil {
		t.Fatalf("expected error for unreachable endpoint")
	}
}

func TestNopRelease(t *testing.T) {
	if err := (Nop{}).Release(context.Background(), uuid.New(), amount(t, 10)); err != nil {
		t.Fatalf("nop release: %v", err)
	}
}
