package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dropmarket-order-service/internal/queue"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

func (h *Handler) AdminDropsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = "pending"
	}
	if status != "pending" && status != "approved" && status != "rejected" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "status must be pending, approved, or rejected")
		return
	}

	rows, err := h.DB.Query(ctx, `
		SELECT d.id, d.vendor_id, v.name, d.name, d.description, d.image_url,
		       d.starts_at, d.ends_at, d.unit_price, d.total_qty, d.remaining_qty,
		       d.rejection_reason, d.created_at
		FROM drops d
		JOIN vendors v ON v.id = d.vendor_id
		WHERE d.approval_status = $1
		ORDER BY d.created_at ASC`,
		status)
	if err != nil {
		h.Logger.Error("list admin drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}
	defer rows.Close()

	drops := make([]map[string]any, 0)
	for rows.Next() {
		var d DropSummary
		var vendorName string
		var description, imageURL, rejectionReason pgtype.Text
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&d.ID, &d.VendorID, &vendorName, &d.Name, &description, &imageURL,
			&d.StartsAt, &d.EndsAt, &d.UnitPrice, &d.TotalQty, &d.RemainingQty,
			&rejectionReason, &createdAt); err != nil {
			h.Logger.Error("scan admin drop failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
			return
		}
		entry := map[string]any{
			"id":           d.ID,
			"vendorId":     d.VendorID,
			"vendorName":   vendorName,
			"name":         d.Name,
			"description":  textPtr(description),
			"imageUrl":     textPtr(imageURL),
			"startsAt":     d.StartsAt,
			"endsAt":       d.EndsAt,
			"unitPrice":    d.UnitPrice,
			"totalQty":     d.TotalQty,
			"remainingQty": d.RemainingQty,
			"createdAt":    timePtr(createdAt),
		}
		if reason := textPtr(rejectionReason); reason != nil {
			entry["rejectionReason"] = *reason
		}
		drops = append(drops, entry)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("list admin drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}

	response.Success(w, map[string]any{"drops": drops, "status": status})
}

func (h *Handler) AdminDropApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	ct, err := h.DB.Exec(ctx, `
		UPDATE drops
		SET approval_status = 'approved', rejection_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND approval_status = 'pending'`,
		dropID)
	if err != nil {
		h.Logger.Error("approve drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to approve drop")
		return
	}
	if ct.RowsAffected() != 1 {
		response.Error(w, http.StatusConflict, "DROP_NOT_PENDING", "Drop is not awaiting approval")
		return
	}

	h.publishOrderEvent(ctx, queue.OrderEvent{Type: queue.EventDropApproved, DropID: dropID})
	response.Success(w, map[string]any{"id": dropID, "approvalStatus": "approved"})
}

type adminRejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) AdminDropReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	var body adminRejectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Rejection reason is required")
		return
	}

	ct, err := h.DB.Exec(ctx, `
		UPDATE drops
		SET approval_status = 'rejected', rejection_reason = $2, updated_at = NOW()
		WHERE id = $1 AND approval_status = 'pending'`,
		dropID, reason)
	if err != nil {
		h.Logger.Error("reject drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reject drop")
		return
	}
	if ct.RowsAffected() != 1 {
		response.Error(w, http.StatusConflict, "DROP_NOT_PENDING", "Drop is not awaiting approval")
		return
	}

	response.Success(w, map[string]any{"id": dropID, "approvalStatus": "rejected"})
}
