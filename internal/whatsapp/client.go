// Package whatsapp delivers campaign and reminder messages through a gowa
// (go-whatsapp-web-multidevice) gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/phone"

	"golang.org/x/time/rate"
)

// Client talks to the gowa HTTP API. A nil client (gateway not configured)
// silently drops messages so the rest of the pipeline keeps working in
// development.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient creates a gowa client. Sends are paced to one per second to stay
// under the gateway's anti-ban threshold.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
		log:      log,
	}
}

// Send delivers one rendered message to a prospect, addressing the chat
// handle when present and falling back to the phone number.
func (c *Client) Send(ctx context.Context, p prospectrepo.Prospect, body string) error {
	target := p.ChatHandle
	if target == "" {
		target = p.Phone
	}
	return c.SendMessage(ctx, target, body)
}

// SendMessage posts one text message to the gateway.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, message string) error {
	if c == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	body, err := json.Marshal(gowaRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
