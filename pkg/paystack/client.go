package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Paystack API host.
const DefaultBaseURL = "https://api.paystack.co"

// Transaction statuses reported by the verify endpoint.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusReversed  = "reversed"
)

// EventChargeSuccess is the webhook event emitted for a completed charge.
const EventChargeSuccess = "charge.success"

// Config configures a Client.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Paystack transaction API.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client; a nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// InitializeRequest is the payload for POST /transaction/initialize.
type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeResponse carries the hosted checkout details.
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// VerifyResponse is the authoritative transaction state.
type VerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        int64      `json:"id"`
		Status    string     `json:"status"`
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		PaidAt    *time.Time `json:"paid_at"`
	} `json:"data"`
}

// Successful reports whether the gateway considers the charge complete.
func (v *VerifyResponse) Successful() bool {
	return v != nil && v.Status && v.Data.Status == StatusSuccess
}

// Event is the envelope posted to the webhook endpoint.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// APIError is returned for non-2xx gateway responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: status %d: %s", e.StatusCode, e.Message)
}

// Initialize creates a transaction and returns the parsed response along with the raw body.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encode initialize payload: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, raw, err
	}
	var res InitializeResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, raw, fmt.Errorf("decode initialize response: %w", err)
	}
	if !res.Status || res.Data.AuthorizationURL == "" {
		return &res, raw, fmt.Errorf("paystack: initialize rejected: %s", res.Message)
	}
	return &res, raw, nil
}

// Verify requeries the gateway for the state of a transaction reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, []byte, error) {
	if reference == "" {
		return nil, nil, fmt.Errorf("paystack: reference required")
	}
	raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, raw, err
	}
	var res VerifyResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, raw, fmt.Errorf("decode verify response: %w", err)
	}
	return &res, raw, nil
}

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of the raw body keyed by the secret.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return ValidSignature(c.secretKey, body, signature)
}

// ValidSignature compares signature against the expected digest in constant time.
func ValidSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Sign returns the hex HMAC-SHA512 digest of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(resp.StatusCode)
		var envelope struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
			msg = envelope.Message
		}
		return raw, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return raw, nil
}
