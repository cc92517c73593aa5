package payment

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Unix(1700000000, 0)
	tolerance := 5 * time.Minute

	valid := SignatureHeaderValue(testSecret, now.Unix(), payload)

	cases := []struct {
		name    string
		payload []byte
		header  string
		wantErr error
	}{
		{
			name:    "valid signature",
			payload: payload,
			header:  valid,
		},
		{
			name:    "tampered payload",
			payload: []byte(`{"id":"evt_1","type":"charge.refunded"}`),
			header:  valid,
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "wrong secret",
			payload: payload,
			header:  SignatureHeaderValue("whsec_other", now.Unix(), payload),
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "stale timestamp",
			payload: payload,
			header:  SignatureHeaderValue(testSecret, now.Add(-10*time.Minute).Unix(), payload),
			wantErr: ErrStaleTimestamp,
		},
		{
			name:    "future timestamp outside tolerance",
			payload: payload,
			header:  SignatureHeaderValue(testSecret, now.Add(10*time.Minute).Unix(), payload),
			wantErr: ErrStaleTimestamp,
		},
		{
			name:    "missing header",
			payload: payload,
			header:  "",
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "garbled header",
			payload: payload,
			header:  "t=abc,v1=zz",
			wantErr: ErrInvalidSignature,
		},
		{
			name:    "no v1 entries",
			payload: payload,
			header:  "t=1700000000",
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.payload, tc.header, testSecret, tolerance, now)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != tc.wantErr {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestVerifySignatureAcceptsSecondaryV1(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	now := time.Unix(1700000000, 0)

	// Providers send two v1 entries while rolling secrets; ours is second.
	stale := SignatureHeaderValue("whsec_retired", now.Unix(), payload)
	current := SignatureHeaderValue(testSecret, now.Unix(), payload)
	header := stale + ",v1=" + strings.TrimPrefix(strings.SplitN(current, ",", 2)[1], "v1=")

	if err := VerifySignature(payload, header, testSecret, time.Minute, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "status": "complete", "payment_intent": "pi_9", "metadata": {"order_number": "DRP-0042"}}}
	}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventSessionCompleted {
		t.Fatalf("expected %s, got %s", EventSessionCompleted, event.Type)
	}

	session, err := SessionFromEvent(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_1" || session.PaymentIntentID != "pi_9" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.Metadata[MetadataOrderKey] != "DRP-0042" {
		t.Fatalf("expected order metadata, got %v", session.Metadata)
	}
}

func TestParseEventRejectsJunk(t *testing.T) {
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt_4"}`)); err == nil {
		t.Fatalf("expected missing-type error")
	}
}

func TestChargeFromEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_5",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_9", "refunded": true}}
	}`)

	event, err := ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	charge, err := ChargeFromEvent(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charge.PaymentIntentID != "pi_9" || !charge.Refunded {
		t.Fatalf("unexpected charge: %+v", charge)
	}
}
