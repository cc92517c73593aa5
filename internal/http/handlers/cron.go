package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/queue"
	"dropmarket-order-service/internal/reservation"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// canReleaseSession decides whether a pending order's checkout session no
// longer stands in the way of releasing its inventory. Open sessions keep
// the hold (the buyer may still pay) and so do completed ones (the webhook
// settles them). When the provider cannot be reached the hold stays too;
// the next sweep retries. Only a session that expired or no longer exists
// clears the way.
func canReleaseSession(session *payment.Session, err error) bool {
	if err != nil {
		var providerErr *payment.ProviderError
		return errors.As(err, &providerErr) && providerErr.Status == http.StatusNotFound
	}
	return session.Status == payment.SessionStatusExpired
}

type expiredOrderCandidate struct {
	ID          int64
	OrderNumber string
	DropID      int64
	Quantity    int32
	SessionID   string
}

// CronReleaseExpired fails pending orders older than the configured TTL and
// puts their units back on the drop. Orders whose checkout session is still
// open at the provider are left alone; the buyer may yet pay, and the
// webhook will settle them either way.
func (h *Handler) CronReleaseExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cutoff := time.Now().Add(-h.Config.PendingOrderTTL)

	rows, err := h.DB.Query(ctx, `
		SELECT id, order_number, drop_id, quantity, checkout_session_id
		FROM orders
		WHERE payment_status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT 500`,
		cutoff)
	if err != nil {
		h.Logger.Error("list expired orders failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expired orders")
		return
	}

	candidates := make([]expiredOrderCandidate, 0)
	for rows.Next() {
		var c expiredOrderCandidate
		var sessionID pgtype.Text
		if err := rows.Scan(&c.ID, &c.OrderNumber, &c.DropID, &c.Quantity, &sessionID); err != nil {
			rows.Close()
			h.Logger.Error("scan expired order failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expired orders")
			return
		}
		if sessionID.Valid {
			c.SessionID = sessionID.String
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		h.Logger.Error("list expired orders failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list expired orders")
		return
	}

	released, skipped := 0, 0
	for _, candidate := range candidates {
		if candidate.SessionID != "" && h.Payments != nil {
			session, err := h.Payments.GetSession(ctx, candidate.SessionID)
			if !canReleaseSession(session, err) {
				skipped++
				continue
			}
		}

		ok, err := h.releaseExpiredOrder(ctx, candidate)
		if err != nil {
			h.Logger.Error("release expired order failed",
				zap.String("orderNumber", candidate.OrderNumber), zapError(err))
			continue
		}
		if !ok {
			continue
		}
		released++

		h.publishOrderEvent(ctx, queue.OrderEvent{
			Type:        queue.EventOrderFailed,
			OrderID:     candidate.ID,
			OrderNumber: candidate.OrderNumber,
			DropID:      candidate.DropID,
		})
	}

	response.Success(w, map[string]any{
		"examined": len(candidates),
		"released": released,
		"skipped":  skipped,
	})
}

func (h *Handler) releaseExpiredOrder(ctx context.Context, candidate expiredOrderCandidate) (bool, error) {
	tx, err := h.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'failed'
		WHERE id = $1 AND payment_status = 'pending'`,
		candidate.ID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		// Paid or failed since we listed it. Nothing to release.
		return false, nil
	}

	if err := reservation.Release(ctx, tx, candidate.DropID, candidate.Quantity); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
