package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSession(t *testing.T) {
	var got createSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Session{
			ID:       "cs_1",
			URL:      "https://pay.example.com/cs_1",
			Status:   SessionStatusOpen,
			Currency: "usd",
			Metadata: got.Metadata,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test")
	session, err := client.CreateSession(context.Background(), CreateSessionParams{
		AmountMinor: 1100,
		Currency:    "USD",
		OrderNumber: "DRP-0042",
		SuccessURL:  "https://shop.example.com/success",
		CancelURL:   "https://shop.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Amount != 1100 || got.Currency != "usd" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if got.Metadata[MetadataOrderKey] != "DRP-0042" {
		t.Fatalf("expected order metadata, got %v", got.Metadata)
	}
	if session.ID != "cs_1" || !session.Open() {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateSessionProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "card_error", "message": "Your card was declined."},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test")
	_, err := client.CreateSession(context.Background(), CreateSessionParams{AmountMinor: 500, Currency: "USD"})
	if err == nil {
		t.Fatalf("expected provider error")
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if providerErr.Status != http.StatusPaymentRequired || providerErr.Type != "card_error" {
		t.Fatalf("unexpected provider error: %+v", providerErr)
	}
}

func TestGetSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions/cs_2" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Session{ID: "cs_2", Status: SessionStatusExpired})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test")
	session, err := client.GetSession(context.Background(), "cs_2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Status != SessionStatusExpired || session.Open() {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "usd two decimals", amount: 11.00, currency: "USD", want: 1100},
		{name: "usd cents rounding", amount: 10.695, currency: "USD", want: 1070},
		{name: "zero-decimal idr", amount: 150000, currency: "IDR", want: 150000},
		{name: "zero-decimal jpy", amount: 990, currency: "jpy", want: 990},
		{name: "zero amount rejected", amount: 0, currency: "USD", wantErr: true},
		{name: "negative rejected", amount: -4.50, currency: "USD", wantErr: true},
		{name: "sub-cent rejected", amount: 0.004, currency: "USD", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinorUnits(tc.amount, tc.currency)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
