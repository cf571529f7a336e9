// Package intasend is a minimal client for the IntaSend M-Pesa STK push API.
package intasend

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

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://sandbox.intasend.com"
	DefaultTimeout = 15 * time.Second
	CurrencyKES    = "KES"

	stkPushPath = "/api/v1/payment/mpesa-stk-push/"
)

// Gateway states reported on the webhook.
const (
	StateComplete = "COMPLETE"
	StateFailed   = "FAILED"
)

var (
	// ErrInvalidResponse means the gateway answered with a body that is not JSON.
	ErrInvalidResponse = errors.New("intasend: invalid response body")
	// ErrUnavailable wraps transport failures (timeouts, refused connections).
	ErrUnavailable = errors.New("intasend: gateway unreachable")
)

// APIError is a non-accepted HTTP status from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("intasend: status %d: %s", e.StatusCode, e.Message)
}

type ChargeRequest struct {
	Amount      decimal.Decimal
	PhoneNumber string
	APIRef      string
	CallbackURL string
}

type chargePayload struct {
	Amount      float64 `json:"amount"`
	PhoneNumber string  `json:"phone_number"`
	Currency    string  `json:"currency"`
	APIRef      string  `json:"api_ref"`
	CallbackURL string  `json:"callback_url"`
}

type ChargeResponse struct {
	Invoice struct {
		InvoiceID string `json:"invoice_id"`
		State     string `json:"state"`
		APIRef    string `json:"api_ref"`
	} `json:"invoice"`
}

type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(secretKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChargeMobileMoney asks the gateway to push an STK prompt to the phone.
// Statuses 200, 201 and 202 count as accepted.
func (c *Client) ChargeMobileMoney(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	payload := chargePayload{
		Amount:      req.Amount.InexactFloat64(),
		PhoneNumber: req.PhoneNumber,
		Currency:    CurrencyKES,
		APIRef:      req.APIRef,
		CallbackURL: req.CallbackURL,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stkPushPath, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, ErrInvalidResponse
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	var out ChargeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, ErrInvalidResponse
	}
	return &out, nil
}

func errorMessage(data map[string]any) string {
	switch v := data["errors"].(type) {
	case nil:
		if detail, ok := data["detail"].(string); ok && detail != "" {
			return detail
		}
		return "Request failed. Verify your phone number."
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, describe(p))
		}
		return strings.Join(parts, "; ")
	default:
		return describe(v)
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if detail, ok := t["detail"].(string); ok {
			return detail
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}
