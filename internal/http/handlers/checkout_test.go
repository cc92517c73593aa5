package handlers

import (
	"errors"
	"net/http"
	"testing"

	"dropmarket-order-service/internal/payment"
)

func TestDecideCheckout(t *testing.T) {
	openSession := &payment.Session{ID: "cs_1", URL: "https://pay.example.com/cs_1", Status: payment.SessionStatusOpen}

	cases := []struct {
		name     string
		status   string
		existing *payment.Session
		fetchErr error
		want     checkoutAction
		wantCode string
	}{
		{
			name:   "pending without session creates",
			status: "pending",
			want:   checkoutCreate,
		},
		{
			name:     "pending with open session reuses",
			status:   "pending",
			existing: openSession,
			want:     checkoutReuse,
		},
		{
			name:     "pending with expired session creates anew",
			status:   "pending",
			existing: &payment.Session{ID: "cs_1", Status: payment.SessionStatusExpired},
			want:     checkoutCreate,
		},
		{
			name:     "session gone at provider creates anew",
			status:   "pending",
			fetchErr: &payment.ProviderError{Status: http.StatusNotFound, Message: "no such session"},
			want:     checkoutCreate,
		},
		{
			name:     "provider outage rejects",
			status:   "pending",
			fetchErr: &payment.ProviderError{Status: http.StatusServiceUnavailable, Message: "try later"},
			want:     checkoutReject,
			wantCode: "PAYMENT_PROVIDER_ERROR",
		},
		{
			name:     "transport error rejects",
			status:   "pending",
			fetchErr: errors.New("dial tcp: i/o timeout"),
			want:     checkoutReject,
			wantCode: "PAYMENT_PROVIDER_ERROR",
		},
		{
			name:     "paid order rejects",
			status:   "paid",
			want:     checkoutReject,
			wantCode: "ALREADY_PAID",
		},
		{
			// An order paid through a superseded session is paid, full stop;
			// a still-open newer session must not be handed back.
			name:     "paid order rejects even with open session",
			status:   "paid",
			existing: openSession,
			want:     checkoutReject,
			wantCode: "ALREADY_PAID",
		},
		{
			name:     "refunded order rejects",
			status:   "refunded",
			want:     checkoutReject,
			wantCode: "ALREADY_REFUNDED",
		},
		{
			name:     "failed order rejects",
			status:   "failed",
			want:     checkoutReject,
			wantCode: "ORDER_FAILED",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decideCheckout(tc.status, tc.existing, tc.fetchErr)
			if got.Action != tc.want {
				t.Fatalf("expected action %v, got %v", tc.want, got.Action)
			}
			if tc.wantCode != "" && got.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, got.Code)
			}
		})
	}
}

func TestDecideCheckoutSecondCallReuses(t *testing.T) {
	// Repeated checkout calls while the session stays open must keep
	// handing back the same session instead of minting new ones.
	session := &payment.Session{ID: "cs_9", URL: "https://pay.example.com/cs_9", Status: payment.SessionStatusOpen}

	for i := 0; i < 3; i++ {
		decision := decideCheckout("pending", session, nil)
		if decision.Action != checkoutReuse {
			t.Fatalf("call %d: expected reuse, got %v", i+1, decision.Action)
		}
	}
}
