package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider's signature over the raw request body.
const SignatureHeader = "X-Provider-Signature"

// Event types this service reconciles. Anything else is acked and ignored.
const (
	EventSessionCompleted   = "checkout.session.completed"
	EventSessionExpired     = "checkout.session.expired"
	EventAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventChargeRefunded     = "charge.refunded"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Event is the provider's notification envelope. Data.Object stays raw until
// the event type determines its shape.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Charge is the payload of refund events. Refunds reference the charge and
// its payment intent, not the checkout session.
type Charge struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent"`
	Refunded        bool   `json:"refunded"`
}

// VerifySignature checks the signature header against the exact raw payload
// bytes. The header format is "t=<unix>,v1=<hex hmac-sha256>", signed over
// "<t>.<payload>". Must run before any parsing or state mutation.
func VerifySignature(payload []byte, header string, secret string, tolerance time.Duration, now time.Time) error {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(timestamp, 0)
	if tolerance > 0 {
		drift := now.Sub(signedAt)
		if drift < 0 {
			drift = -drift
		}
		if drift > tolerance {
			return ErrStaleTimestamp
		}
	}

	expected := ComputeSignature(secret, timestamp, payload)
	for _, candidate := range signatures {
		actual, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(actual, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ComputeSignature returns the raw HMAC for a timestamped payload. Exported
// so tests and provider simulators can produce valid headers.
func ComputeSignature(secret string, timestamp int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignatureHeaderValue renders a valid signature header for a payload.
func SignatureHeaderValue(secret string, timestamp int64, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(ComputeSignature(secret, timestamp, payload)))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

// ParseEvent decodes the envelope after the signature has been verified.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Type == "" {
		return Event{}, errors.New("webhook event has no type")
	}
	return event, nil
}

// SessionFromEvent decodes a checkout-session object out of an event.
func SessionFromEvent(event Event) (Session, error) {
	var session Session
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return Session{}, fmt.Errorf("decode session object: %w", err)
	}
	return session, nil
}

// ChargeFromEvent decodes a charge object out of a refund event.
func ChargeFromEvent(event Event) (Charge, error) {
	var charge Charge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return Charge{}, fmt.Errorf("decode charge object: %w", err)
	}
	return charge, nil
}
