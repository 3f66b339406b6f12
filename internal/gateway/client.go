// Package gateway is the outbound messaging collaborator. Delivery-side
// idempotency is the gateway's concern; the engine guarantees it never calls
// Send twice for the same job.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers one message to a phone number. On success it returns the
// provider's delivery id.
type Sender interface {
	Send(ctx context.Context, recipientPhone, body string) (deliveryID string, err error)
}

type Config struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, fmt.Errorf("gateway: account sid is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("gateway: auth token is required")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("gateway: from number is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type sendResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, recipientPhone, body string) (string, error) {
	recipientPhone = strings.TrimSpace(recipientPhone)
	body = strings.TrimSpace(body)
	if recipientPhone == "" {
		return "", fmt.Errorf("gateway: recipient is required")
	}
	if body == "" {
		return "", fmt.Errorf("gateway: body is required")
	}

	form := url.Values{}
	form.Set("To", recipientPhone)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && strings.TrimSpace(ae.Message) != "" {
			return "", fmt.Errorf("gateway http %d: %s (code=%d)", resp.StatusCode, ae.Message, ae.Code)
		}
		return "", fmt.Errorf("gateway http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded sendResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("gateway decode error: %w", err)
	}
	if decoded.ErrorMessage != nil && *decoded.ErrorMessage != "" {
		return "", fmt.Errorf("gateway: %s", *decoded.ErrorMessage)
	}
	if decoded.SID == "" {
		return "", fmt.Errorf("gateway: missing delivery id in response")
	}
	return decoded.SID, nil
}
