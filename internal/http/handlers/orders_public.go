package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dropmarket-order-service/internal/utils"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PublicOrderDetail is the poll endpoint behind the checkout redirect. The
// tracking token from order creation is the only credential.
func (h *Handler) PublicOrderDetail(w http.ResponseWriter, r *http.Request) {
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

	detail, found, err := h.fetchOrderDetail(ctx, orderNumber)
	if err != nil {
		h.Logger.Error("load order failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	if !found {
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
		return
	}

	response.Success(w, detail)
}

func (h *Handler) fetchOrderDetail(ctx context.Context, orderNumber string) (OrderDetail, bool, error) {
	var detail OrderDetail
	var dropImageURL, notes, deliveryAddress, sessionID pgtype.Text
	var paidAt pgtype.Timestamptz

	err := h.DB.QueryRow(ctx, `
		SELECT id, order_number, drop_id, drop_name, drop_image_url,
		       customer_name, customer_email, quantity, is_bulk, notes,
		       subtotal, booking_fee, delivery_fee, tax_amount, total_paid,
		       payment_status, delivery, delivery_address, checkout_session_id,
		       created_at, paid_at
		FROM orders
		WHERE order_number = $1`,
		orderNumber,
	).Scan(&detail.ID, &detail.OrderNumber, &detail.DropID, &detail.DropName, &dropImageURL,
		&detail.CustomerName, &detail.CustomerEmail, &detail.Quantity, &detail.IsBulk, &notes,
		&detail.Subtotal, &detail.BookingFee, &detail.DeliveryFee, &detail.TaxAmount, &detail.TotalPaid,
		&detail.PaymentStatus, &detail.Delivery, &deliveryAddress, &sessionID,
		&detail.CreatedAt, &paidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderDetail{}, false, nil
	}
	if err != nil {
		return OrderDetail{}, false, err
	}

	detail.DropImageURL = textPtr(dropImageURL)
	detail.Notes = textPtr(notes)
	detail.DeliveryAddress = textPtr(deliveryAddress)
	detail.CheckoutSessionID = textPtr(sessionID)
	detail.PaidAt = timePtr(paidAt)

	rows, err := h.DB.Query(ctx, `
		SELECT menu_item_id, menu_item_name, group_id, group_name,
		       option_id, option_name, option_price
		FROM order_selections
		WHERE order_id = $1
		ORDER BY id ASC`,
		detail.ID)
	if err != nil {
		return OrderDetail{}, false, err
	}
	defer rows.Close()

	detail.Selections = make([]OrderSelectionView, 0)
	for rows.Next() {
		var sel OrderSelectionView
		if err := rows.Scan(&sel.MenuItemID, &sel.MenuItemName, &sel.GroupID, &sel.GroupName,
			&sel.OptionID, &sel.OptionName, &sel.OptionPrice); err != nil {
			return OrderDetail{}, false, err
		}
		detail.Selections = append(detail.Selections, sel)
	}
	return detail, true, rows.Err()
}
