package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/visitdesk/visitdesk/internal/visits"
)

// ErrWhatsAppDisabled signals that WhatsApp delivery is disabled via configuration.
var ErrWhatsAppDisabled = errors.New("whatsapp: delivery disabled")

// WhatsAppSettings configure the HTTP gateway used for WhatsApp delivery.
type WhatsAppSettings struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// WhatsAppChannel delivers notifications through an HTTP WhatsApp gateway.
// Only the request shape is owned here; the wire mechanics beyond this call
// belong to the provider.
type WhatsAppChannel struct {
	cfg    WhatsAppSettings
	client *http.Client
}

// NewWhatsAppChannel constructs the channel.
func NewWhatsAppChannel(cfg WhatsAppSettings) *WhatsAppChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsAppChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Address(recipient visits.Recipient) string {
	return strings.TrimSpace(recipient.Phone)
}

func (c *WhatsAppChannel) Send(ctx context.Context, address, subject, body string) error {
	if !c.cfg.Enabled {
		return ErrWhatsAppDisabled
	}

	payload, err := json.Marshal(map[string]string{
		"to":      address,
		"message": subject + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
