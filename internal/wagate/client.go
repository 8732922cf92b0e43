package wagate

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

// Client talks to the WhatsApp HTTP API. Authentication is an API key
// and secret concatenated into a bearer-style Authorization header.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// NewClient creates a gateway client. Timeout bounds every outbound call
// so a slow vendor cannot stall request threads; zero means 10s.
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

func (c *Client) authHeader() string {
	return c.apiKey + "." + c.apiSecret
}

// deviceStatusResponse mirrors the vendor's device status payload.
type deviceStatusResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Name     string `json:"name"`
		Number   string `json:"number"`
		IsOnline bool   `json:"is_online"`
	} `json:"data"`
	Message string `json:"message"`
}

// DeviceStatus checks whether the connected WhatsApp device is online.
func (c *Client) DeviceStatus(ctx context.Context) (*Device, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("wa gateway: credentials not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/device/status", nil)
	if err != nil {
		return nil, fmt.Errorf("wa gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wa gateway: device status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("wa gateway: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wa gateway: device status: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed deviceStatusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("wa gateway: parse device status: %w", err)
	}

	return &Device{
		Online: parsed.Data.IsOnline,
		Name:   parsed.Data.Name,
		Number: parsed.Data.Number,
	}, nil
}

// Send attempts to deliver a message to the given phone number. It never
// returns an error: every failure mode collapses into a SendResult with
// Accepted=false so callers can treat delivery as best effort.
func (c *Client) Send(ctx context.Context, phone, message string) *SendResult {
	if !c.Configured() {
		return &SendResult{Accepted: false, Reason: "credentials not configured"}
	}
	if phone == "" {
		return &SendResult{Accepted: false, Reason: "no phone number"}
	}

	form := url.Values{}
	form.Set("phone", phone)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/send-message", strings.NewReader(form.Encode()))
	if err != nil {
		return &SendResult{Accepted: false, Reason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		// Covers network errors and the client timeout.
		return &SendResult{Accepted: false, Reason: fmt.Sprintf("send failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &SendResult{Accepted: false, Reason: fmt.Sprintf("read response: %v", err)}
	}
	raw := strings.TrimSpace(string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SendResult{Accepted: false, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode), Raw: raw}
	}

	var parsed struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &SendResult{Accepted: false, Reason: "malformed response", Raw: raw}
	}
	if !parsed.Status {
		return &SendResult{Accepted: false, Reason: parsed.Message, Raw: raw}
	}

	return &SendResult{Accepted: true, Raw: raw}
}
