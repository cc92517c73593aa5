package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/queue"
	"dropmarket-order-service/internal/reservation"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// paymentTransition is the single-row guarded status move an event maps to.
// The From guard is what makes duplicate and out-of-order deliveries no-ops.
type paymentTransition struct {
	From string
	To   string
	// ByIntent locates the order by payment_intent_id instead of the order
	// number in session metadata. Refunds reference the charge's intent.
	ByIntent bool
	// MatchSession requires the event's session id to still be the order's
	// current checkout session. A failure event for a superseded session
	// must not touch the order.
	MatchSession bool
	// ReleasesInventory restores the drop's remaining quantity in the
	// same transaction as the status flip.
	ReleasesInventory bool
}

func transitionFor(eventType string) (paymentTransition, bool) {
	switch eventType {
	case payment.EventSessionCompleted:
		return paymentTransition{From: "pending", To: "paid"}, true
	case payment.EventSessionExpired, payment.EventAsyncPaymentFailed:
		return paymentTransition{From: "pending", To: "failed", MatchSession: true, ReleasesInventory: true}, true
	case payment.EventChargeRefunded:
		return paymentTransition{From: "paid", To: "refunded", ByIntent: true}, true
	default:
		return paymentTransition{}, false
	}
}

func eventForTransition(to string) string {
	switch to {
	case "paid":
		return queue.EventOrderPaid
	case "failed":
		return queue.EventOrderFailed
	case "refunded":
		return queue.EventOrderRefunded
	default:
		return ""
	}
}

// webhookTarget identifies the order an event refers to. Session events name
// the order through the metadata the gateway stamped at session creation;
// refund events carry only the charge's payment intent.
type webhookTarget struct {
	OrderNumber string
	SessionID   string
	IntentID    string
}

func resolveWebhookTarget(event payment.Event, transition paymentTransition) (webhookTarget, error) {
	if transition.ByIntent {
		charge, err := payment.ChargeFromEvent(event)
		if err != nil {
			return webhookTarget{}, err
		}
		if charge.PaymentIntentID == "" {
			return webhookTarget{}, errors.New("charge event has no payment intent")
		}
		return webhookTarget{IntentID: charge.PaymentIntentID}, nil
	}

	session, err := payment.SessionFromEvent(event)
	if err != nil {
		return webhookTarget{}, err
	}
	orderNumber := session.Metadata[payment.MetadataOrderKey]
	if orderNumber == "" {
		return webhookTarget{}, errors.New("session event has no order metadata")
	}
	return webhookTarget{
		OrderNumber: orderNumber,
		SessionID:   session.ID,
		IntentID:    session.PaymentIntentID,
	}, nil
}

// PaymentWebhook is the sole writer of paid state. The raw body is read and
// verified before any parsing; nothing below the signature check runs on an
// unauthenticated payload.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body")
		return
	}

	header := r.Header.Get(payment.SignatureHeader)
	if err := payment.VerifySignature(payload, header, h.Config.PaymentWebhookSecret, h.Config.PaymentSignatureTolerance, time.Now()); err != nil {
		h.Logger.Warn("webhook signature rejected", zapError(err))
		response.Error(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	event, err := payment.ParseEvent(payload)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid event payload")
		return
	}

	transition, known := transitionFor(event.Type)
	if !known {
		response.JSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	target, err := resolveWebhookTarget(event, transition)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid event payload")
		return
	}

	if err := h.applyPaymentTransition(ctx, transition, target); err != nil {
		h.Logger.Error("webhook transition failed",
			zap.String("eventType", event.Type),
			zap.String("eventId", event.ID),
			zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process event")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *Handler) applyPaymentTransition(ctx context.Context, transition paymentTransition, target webhookTarget) error {
	tx, err := h.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		orderID     int64
		orderNumber string
		dropID      int64
		quantity    int32
	)

	if transition.To == "paid" {
		// The buyer was charged on this session, so the order named in the
		// metadata gets paid even if a concurrent checkout call replaced the
		// stored session id. The winning session is persisted back.
		orderNumber = target.OrderNumber
		err = tx.QueryRow(ctx, `
			UPDATE orders
			SET payment_status = 'paid', payment_intent_id = $2, paid_at = NOW(), checkout_session_id = $3
			WHERE order_number = $1 AND payment_status = 'pending'
			RETURNING id, drop_id, quantity`,
			target.OrderNumber, target.IntentID, target.SessionID,
		).Scan(&orderID, &dropID, &quantity)
	} else if transition.ByIntent {
		err = tx.QueryRow(ctx, `
			UPDATE orders
			SET payment_status = $2
			WHERE payment_intent_id = $1 AND payment_status = $3
			RETURNING id, order_number, drop_id, quantity`,
			target.IntentID, transition.To, transition.From,
		).Scan(&orderID, &orderNumber, &dropID, &quantity)
	} else {
		// Failure events only count against the order's current session; an
		// expiry of a superseded session must not fail a live checkout.
		orderNumber = target.OrderNumber
		err = tx.QueryRow(ctx, `
			UPDATE orders
			SET payment_status = $3
			WHERE order_number = $1 AND checkout_session_id = $2 AND payment_status = $4
			RETURNING id, drop_id, quantity`,
			target.OrderNumber, target.SessionID, transition.To, transition.From,
		).Scan(&orderID, &dropID, &quantity)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Already in (or past) the target state. Ack and move on.
		return nil
	}
	if err != nil {
		return err
	}

	if transition.ReleasesInventory {
		if err := reservation.Release(ctx, tx, dropID, quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if lifecycle := eventForTransition(transition.To); lifecycle != "" {
		h.publishOrderEvent(ctx, queue.OrderEvent{
			Type:        lifecycle,
			OrderID:     orderID,
			OrderNumber: orderNumber,
			DropID:      dropID,
		})
	}
	return nil
}
