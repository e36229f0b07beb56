// Package release implements the external fund-release primitive: hand an
// amount to a recipient outside the vault and report success or failure.
// Failure is never swallowed; the vault service aborts and rolls back the
// withdrawal when a release errors.
package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// Webhook posts release instructions to an external settlement endpoint.
// Any non-2xx response is a failure.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook constructs a Webhook releaser with a bounded-timeout client.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type releasePayload struct {
	Recipient   uuid.UUID `json:"recipient"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
}

// Release implements vault.Releaser.
func (w *Webhook) Release(ctx context.Context, recipient uuid.UUID, amount money.Amount) error {
	units, _ := amount.MinorUnits()
	body, err := json.Marshal(releasePayload{Recipient: recipient, AmountMinor: units, Currency: amount.Curr().Code()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("release endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Nop accepts every release without side effects. For local development with
// the in-memory store.
type Nop struct{}

// Release implements vault.Releaser.
func (Nop) Release(context.Context, uuid.UUID, money.Amount) error { return nil }
