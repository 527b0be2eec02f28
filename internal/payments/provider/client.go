// Package provider implements the HTTP client for the external payment
// provider used by poll-based reconciliation.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"

	"golang.org/x/time/rate"
)

// PaymentStatus is the provider's view of one payment.
type PaymentStatus struct {
	ExternalID string `json:"id"`
	Status     string `json:"status"`
}

// Client queries the payment provider's REST API. A nil client (provider not
// configured) means reconciliation has nothing to poll.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a provider client. Requests are paced to stay inside the
// provider's API rate limits during large reconcile sweeps.
func NewClient(cfg config.PaymentProviderConfig, log *logger.Logger) *Client {
	if !cfg.IsPaymentProviderEnabled() {
		return nil
	}

	return &Client{
		name:    cfg.GetPaymentProviderName(),
		baseURL: strings.TrimRight(cfg.GetPaymentProviderURL(), "/"),
		apiKey:  cfg.GetPaymentProviderKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:     log,
	}
}

// Name returns the configured provider name used for status mapping.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// GetPayment fetches the provider-side state of one payment.
func (c *Client) GetPayment(ctx context.Context, externalID string) (PaymentStatus, error) {
	if c == nil {
		return PaymentStatus{}, fmt.Errorf("payment provider not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return PaymentStatus{}, err
	}

	url := fmt.Sprintf("%s/payments/%s", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PaymentStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return PaymentStatus{}, fmt.Errorf("provider request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return PaymentStatus{}, fmt.Errorf("payment %s not found at provider", externalID)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return PaymentStatus{}, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return PaymentStatus{}, fmt.Errorf("decode provider response: %w", err)
	}
	return status, nil
}
