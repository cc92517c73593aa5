package handlers

import (
	"testing"

	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/queue"
)

func TestTransitionFor(t *testing.T) {
	cases := []struct {
		name              string
		eventType         string
		known             bool
		from              string
		to                string
		byIntent          bool
		matchSession      bool
		releasesInventory bool
	}{
		{
			name:      "session completed pays a pending order",
			eventType: payment.EventSessionCompleted,
			known:     true,
			from:      "pending",
			to:        "paid",
		},
		{
			name:              "session expired fails and releases",
			eventType:         payment.EventSessionExpired,
			known:             true,
			from:              "pending",
			to:                "failed",
			matchSession:      true,
			releasesInventory: true,
		},
		{
			name:              "async payment failure fails and releases",
			eventType:         payment.EventAsyncPaymentFailed,
			known:             true,
			from:              "pending",
			to:                "failed",
			matchSession:      true,
			releasesInventory: true,
		},
		{
			name:      "refund moves paid to refunded by intent",
			eventType: payment.EventChargeRefunded,
			known:     true,
			from:      "paid",
			to:        "refunded",
			byIntent:  true,
		},
		{
			name:      "unknown event ignored",
			eventType: "invoice.finalized",
		},
		{
			name:      "empty event ignored",
			eventType: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transition, known := transitionFor(tc.eventType)
			if known != tc.known {
				t.Fatalf("expected known=%v, got %v", tc.known, known)
			}
			if !known {
				return
			}
			if transition.From != tc.from || transition.To != tc.to {
				t.Fatalf("expected %s->%s, got %s->%s", tc.from, tc.to, transition.From, transition.To)
			}
			if transition.ByIntent != tc.byIntent {
				t.Fatalf("expected byIntent=%v, got %v", tc.byIntent, transition.ByIntent)
			}
			if transition.MatchSession != tc.matchSession {
				t.Fatalf("expected matchSession=%v, got %v", tc.matchSession, transition.MatchSession)
			}
			if transition.ReleasesInventory != tc.releasesInventory {
				t.Fatalf("expected releasesInventory=%v, got %v", tc.releasesInventory, transition.ReleasesInventory)
			}
		})
	}
}

func TestTransitionForNeverTouchesPaidOnFailure(t *testing.T) {
	// Failure events must only ever move pending orders; a completed
	// payment followed by a late expiry event stays paid.
	for _, eventType := range []string{payment.EventSessionExpired, payment.EventAsyncPaymentFailed} {
		transition, known := transitionFor(eventType)
		if !known {
			t.Fatalf("%s must be a known event", eventType)
		}
		if transition.From != "pending" {
			t.Fatalf("%s must guard on pending, got %s", eventType, transition.From)
		}
	}
}

func TestResolveWebhookTargetReadsOrderMetadata(t *testing.T) {
	// A completed event must name the order through the session's metadata,
	// not the session id: a concurrent checkout call can replace the stored
	// session id, and the payment on the superseded session still counts.
	payload := []byte(`{
		"id": "evt_10",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_A", "status": "complete", "payment_intent": "pi_7", "metadata": {"order_number": "DRP-ORD1"}}}
	}`)
	event, err := payment.ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transition, known := transitionFor(event.Type)
	if !known {
		t.Fatalf("completed must be a known event")
	}

	target, err := resolveWebhookTarget(event, transition)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.OrderNumber != "DRP-ORD1" {
		t.Fatalf("expected order number from metadata, got %+v", target)
	}
	if target.SessionID != "cs_A" || target.IntentID != "pi_7" {
		t.Fatalf("expected session and intent carried along, got %+v", target)
	}
}

func TestResolveWebhookTargetRejectsMissingMetadata(t *testing.T) {
	payload := []byte(`{
		"id": "evt_11",
		"type": "checkout.session.expired",
		"data": {"object": {"id": "cs_B", "status": "expired"}}
	}`)
	event, err := payment.ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transition, _ := transitionFor(event.Type)

	if _, err := resolveWebhookTarget(event, transition); err == nil {
		t.Fatalf("session event without order metadata must be rejected")
	}
}

func TestResolveWebhookTargetRefundByIntent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_12",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1", "payment_intent": "pi_9", "refunded": true}}
	}`)
	event, err := payment.ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transition, _ := transitionFor(event.Type)

	target, err := resolveWebhookTarget(event, transition)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.IntentID != "pi_9" || target.OrderNumber != "" {
		t.Fatalf("refunds must locate by intent only, got %+v", target)
	}
}

func TestResolveWebhookTargetRejectsRefundWithoutIntent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_13",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_2", "refunded": true}}
	}`)
	event, err := payment.ParseEvent(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transition, _ := transitionFor(event.Type)

	if _, err := resolveWebhookTarget(event, transition); err == nil {
		t.Fatalf("refund without a payment intent must be rejected")
	}
}

func TestEventForTransition(t *testing.T) {
	if got := eventForTransition("paid"); got != queue.EventOrderPaid {
		t.Fatalf("expected %s, got %s", queue.EventOrderPaid, got)
	}
	if got := eventForTransition("failed"); got != queue.EventOrderFailed {
		t.Fatalf("expected %s, got %s", queue.EventOrderFailed, got)
	}
	if got := eventForTransition("refunded"); got != queue.EventOrderRefunded {
		t.Fatalf("expected %s, got %s", queue.EventOrderRefunded, got)
	}
	if got := eventForTransition("pending"); got != "" {
		t.Fatalf("expected no event for pending, got %s", got)
	}
}
