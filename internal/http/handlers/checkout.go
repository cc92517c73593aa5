package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dropmarket-order-service/internal/payment"
	"dropmarket-order-service/internal/utils"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type checkoutRequest struct {
	ReturnURL string `json:"returnUrl"`
}

type checkoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	Reused    bool   `json:"reused"`
}

type checkoutAction int

const (
	checkoutCreate checkoutAction = iota
	checkoutReuse
	checkoutReject
)

type checkoutDecision struct {
	Action  checkoutAction
	Status  int
	Code    string
	Message string
}

// decideCheckout maps the order's payment status and its existing provider
// session (nil when none was ever created) onto reuse, create, or reject.
// fetchErr is the GetSession outcome for that session; a provider 404 means
// the session is gone and a fresh one is needed, while any other provider
// failure aborts so a possibly-live session is never silently duplicated.
func decideCheckout(paymentStatus string, existing *payment.Session, fetchErr error) checkoutDecision {
	switch paymentStatus {
	case "paid":
		return checkoutDecision{Action: checkoutReject, Status: http.StatusConflict, Code: "ALREADY_PAID", Message: "Order is already paid"}
	case "refunded":
		return checkoutDecision{Action: checkoutReject, Status: http.StatusConflict, Code: "ALREADY_REFUNDED", Message: "Order has been refunded"}
	case "failed":
		return checkoutDecision{Action: checkoutReject, Status: http.StatusConflict, Code: "ORDER_FAILED", Message: "Order failed; place a new order"}
	}

	if fetchErr != nil {
		var providerErr *payment.ProviderError
		if errors.As(fetchErr, &providerErr) && providerErr.Status == http.StatusNotFound {
			return checkoutDecision{Action: checkoutCreate}
		}
		return checkoutDecision{Action: checkoutReject, Status: http.StatusBadGateway, Code: "PAYMENT_PROVIDER_ERROR", Message: "Payment provider is unavailable"}
	}
	if existing.Open() {
		return checkoutDecision{Action: checkoutReuse}
	}
	return checkoutDecision{Action: checkoutCreate}
}

// PublicOrderCheckout creates or reuses a provider checkout session for a
// pending order. Calling it twice must not produce two live sessions.
func (h *Handler) PublicOrderCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderNumber := strings.TrimSpace(readPathString(r, "orderNumber"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if orderNumber == "" || token == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order number and token are required")
		return
	}
	if !utils.VerifyOrderTrackingToken(h.Config.OrderTrackingTokenSecret, token, orderNumber) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	returnURL := strings.TrimSpace(body.ReturnURL)
	if returnURL == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Return URL is required")
		return
	}

	var (
		orderID       int64
		dropName      string
		totalPaid     float64
		paymentStatus string
		sessionID     pgtype.Text
	)
	err := h.DB.QueryRow(ctx, `
		SELECT id, drop_name, total_paid, payment_status, checkout_session_id
		FROM orders
		WHERE order_number = $1`,
		orderNumber,
	).Scan(&orderID, &dropName, &totalPaid, &paymentStatus, &sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("load order failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	var existing *payment.Session
	var fetchErr error
	if sessionID.Valid && strings.TrimSpace(sessionID.String) != "" {
		existing, fetchErr = h.Payments.GetSession(ctx, sessionID.String)
	}

	decision := decideCheckout(paymentStatus, existing, fetchErr)
	switch decision.Action {
	case checkoutReject:
		if decision.Code == "PAYMENT_PROVIDER_ERROR" {
			h.Logger.Error("fetch checkout session failed", zap.String("sessionId", sessionID.String), zapError(fetchErr))
		}
		response.Error(w, decision.Status, decision.Code, decision.Message)
		return
	case checkoutReuse:
		response.Success(w, checkoutResponse{URL: existing.URL, SessionID: existing.ID, Reused: true})
		return
	}

	amountMinor, err := payment.MinorUnits(totalPaid, h.Config.Currency)
	if err != nil {
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_AMOUNT", "Order total cannot be charged")
		return
	}

	session, err := h.Payments.CreateSession(ctx, payment.CreateSessionParams{
		AmountMinor: amountMinor,
		Currency:    h.Config.Currency,
		Description: dropName + " (" + orderNumber + ")",
		OrderNumber: orderNumber,
		SuccessURL:  returnURL + "?status=success&order=" + orderNumber,
		CancelURL:   returnURL + "?status=cancelled&order=" + orderNumber,
	})
	if err != nil {
		h.Logger.Error("create checkout session failed", zapError(err))
		response.Error(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Failed to create checkout session")
		return
	}

	// Persist only if the stored session id is still the one this call read.
	// Two racing first calls can both create a session, but only one id wins;
	// either way the completed event resolves the order through metadata.
	ct, err := h.DB.Exec(ctx, `
		UPDATE orders
		SET checkout_session_id = $2
		WHERE id = $1 AND payment_status = 'pending'
		  AND checkout_session_id IS NOT DISTINCT FROM $3`,
		orderID, session.ID, sessionID)
	if err != nil || ct.RowsAffected() != 1 {
		h.Logger.Warn("checkout session not persisted", zap.String("orderNumber", orderNumber), zapError(err))
		response.Error(w, http.StatusConflict, "CHECKOUT_CONFLICT", "Checkout changed concurrently; retry")
		return
	}

	response.Success(w, checkoutResponse{URL: session.URL, SessionID: session.ID, Reused: false})
}
