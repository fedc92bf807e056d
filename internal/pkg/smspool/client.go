package smspool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined is a business refusal: the provider would not sell a number.
	ErrDeclined = errors.New("provider declined purchase")

	// ErrUnavailable is a business refusal: no price for the service right now.
	ErrUnavailable = errors.New("provider has no price for service")
)

// TransportError wraps network-level and malformed-response failures.
// Callers retry these; business refusals above are authoritative.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smspool transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Config holds SMSPool API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the SMSPool HTTP API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// PurchaseResult is the outcome of renting a number
type PurchaseResult struct {
	OrderRef  string
	Number    string
	CostCents int64
}

// PollResult is one status check of an active order. StatusCode carries the
// provider's raw code (numeric codes arrive as strings); interpretation is
// the caller's contract, not this client's.
type PollResult struct {
	StatusCode string
	SMS        string
}

// NewClient creates a new SMSPool API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

type priceResponse struct {
	Price json.Number `json:"price"`
}

// Quote returns the provider cost in cents for a service in a country.
// A missing or zero price is ErrUnavailable.
func (c *Client) Quote(ctx context.Context, service, country string) (int64, error) {
	body, err := c.post(ctx, "/request/price", url.Values{
		"service": {service},
		"country": {country},
	})
	if err != nil {
		return 0, err
	}

	var out priceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, &TransportError{Op: "quote", Err: err}
	}

	cents, err := parseCents(string(out.Price))
	if err != nil || cents <= 0 {
		return 0, fmt.Errorf("%w: service=%s country=%s", ErrUnavailable, service, country)
	}
	return cents, nil
}

type purchaseResponse struct {
	Success int         `json:"success"`
	OrderID string      `json:"order_id"`
	Number  string      `json:"number"`
	Price   json.Number `json:"price"`
	Message string      `json:"message"`
}

// Purchase rents a number for a service in a country.
func (c *Client) Purchase(ctx context.Context, service, country string) (*PurchaseResult, error) {
	body, err := c.post(ctx, "/purchase/sms", url.Values{
		"service": {service},
		"country": {country},
	})
	if err != nil {
		return nil, err
	}

	var out purchaseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{Op: "purchase", Err: err}
	}

	if out.Success != 1 || out.OrderID == "" || out.Number == "" {
		return nil, fmt.Errorf("%w: %s", ErrDeclined, out.Message)
	}

	cents, err := parseCents(string(out.Price))
	if err != nil {
		cents = 0
	}

	return &PurchaseResult{
		OrderRef:  out.OrderID,
		Number:    out.Number,
		CostCents: cents,
	}, nil
}

type checkResponse struct {
	Status json.Number `json:"status"`
	SMS    string      `json:"sms"`
}

// Poll checks an order for a received SMS.
func (c *Client) Poll(ctx context.Context, orderRef string) (*PollResult, error) {
	body, err := c.post(ctx, "/sms/check", url.Values{
		"orderid": {orderRef},
	})
	if err != nil {
		return nil, err
	}

	var out checkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{Op: "poll", Err: err}
	}

	return &PollResult{
		StatusCode: string(out.Status),
		SMS:        out.SMS,
	}, nil
}

type cancelResponse struct {
	Success int    `json:"success"`
	Message string `json:"message"`
}

// Cancel releases a rented number. A business refusal is not an error:
// a terminal order cannot be cancelled twice and the caller does not care.
func (c *Client) Cancel(ctx context.Context, orderRef string) error {
	body, err := c.post(ctx, "/sms/cancel", url.Values{
		"orderid": {orderRef},
	})
	if err != nil {
		return err
	}

	var out cancelResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return &TransportError{Op: "cancel", Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, &TransportError{Op: path, Err: errors.New("client not initialized")}
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return nil, &TransportError{Op: path, Err: errors.New("base_url is empty")}
	}

	form.Set("key", c.config.APIKey)

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: path, Err: fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, string(body))}
	}

	return body, nil
}

// parseCents converts a provider dollar amount like "0.17" to cents.
func parseCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New("empty price")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
