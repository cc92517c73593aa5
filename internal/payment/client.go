package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// Session statuses reported by the provider.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// MetadataOrderKey is the correlation key the gateway stamps on every
// session so webhook events can be traced back to a local order.
const MetadataOrderKey = "order_number"

// Client talks to the hosted-checkout provider's REST API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL string, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Session is the provider's hosted checkout session.
type Session struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Status          string            `json:"status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentIntentID string            `json:"payment_intent"`
	Metadata        map[string]string `json:"metadata"`
}

// Open reports whether the session can still be completed by the buyer.
func (s *Session) Open() bool {
	return s != nil && s.Status == SessionStatusOpen
}

type CreateSessionParams struct {
	AmountMinor int64
	Currency    string
	Description string
	OrderNumber string
	SuccessURL  string
	CancelURL   string
}

// ProviderError is a non-2xx response from the provider API.
type ProviderError struct {
	Status  int
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s (%s, http %d)", e.Message, e.Type, e.Status)
}

type createSessionRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata"`
}

func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	body := createSessionRequest{
		Amount:      params.AmountMinor,
		Currency:    strings.ToLower(params.Currency),
		Description: params.Description,
		SuccessURL:  params.SuccessURL,
		CancelURL:   params.CancelURL,
		Metadata:    map[string]string{MetadataOrderKey: params.OrderNumber},
	}

	var session Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error.Message == "" {
			envelope.Error.Message = "request failed"
		}
		return &ProviderError{Status: resp.StatusCode, Type: envelope.Error.Type, Message: envelope.Error.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// zeroDecimalCurrencies have no minor unit; amounts are sent as-is.
var zeroDecimalCurrencies = map[string]struct{}{
	"IDR": {},
	"JPY": {},
	"KRW": {},
	"VND": {},
}

// MinorUnits converts a major-unit amount into the provider's integer
// minor-unit representation. The result must be a positive integer; anything
// else means the order's frozen total is not chargeable.
func MinorUnits(amount float64, currency string) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("amount %v is not finite", amount)
	}

	factor := 100.0
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		factor = 1.0
	}

	minor := math.Round(amount * factor)
	if minor < 1 {
		return 0, fmt.Errorf("amount %v %s does not convert to a positive minor-unit integer", amount, currency)
	}
	return int64(minor), nil
}
