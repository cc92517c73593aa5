package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"dropmarket-order-service/internal/middleware"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type vendorDropRequest struct {
	Name            string                  `json:"name"`
	Description     *string                 `json:"description"`
	ImageURL        *string                 `json:"imageUrl"`
	StartsAt        time.Time               `json:"startsAt"`
	EndsAt          time.Time               `json:"endsAt"`
	TotalQty        int32                   `json:"totalQty"`
	UnitPrice       float64                 `json:"unitPrice"`
	TaxRate         float64                 `json:"taxRate"`
	DeliveryEnabled bool                    `json:"deliveryEnabled"`
	DeliveryFee     float64                 `json:"deliveryFee"`
	MenuItems       []vendorMenuItemRequest `json:"menuItems"`
}

type vendorMenuItemRequest struct {
	Name      string                       `json:"name"`
	BasePrice float64                      `json:"basePrice"`
	Groups    []vendorModifierGroupRequest `json:"modifierGroups"`
}

type vendorModifierGroupRequest struct {
	Name      string                        `json:"name"`
	MinSelect int32                         `json:"minSelect"`
	MaxSelect int32                         `json:"maxSelect"`
	Options   []vendorModifierOptionRequest `json:"options"`
}

type vendorModifierOptionRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func (h *Handler) vendorID(r *http.Request) (int64, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		return 0, false
	}
	return *authCtx.VendorID, true
}

func validateVendorDropRequest(body vendorDropRequest) (string, bool) {
	if strings.TrimSpace(body.Name) == "" {
		return "Drop name is required", false
	}
	if body.TotalQty < 1 {
		return "Total quantity must be at least 1", false
	}
	if body.UnitPrice < 0 || body.TaxRate < 0 || body.DeliveryFee < 0 {
		return "Prices and rates must not be negative", false
	}
	if !body.EndsAt.After(body.StartsAt) {
		return "Sale window must end after it starts", false
	}
	for _, item := range body.MenuItems {
		if strings.TrimSpace(item.Name) == "" || item.BasePrice < 0 {
			return "Menu items need a name and a non-negative base price", false
		}
		for _, group := range item.Groups {
			if strings.TrimSpace(group.Name) == "" {
				return "Modifier groups need a name", false
			}
			if group.MinSelect < 0 || (group.MaxSelect > 0 && group.MaxSelect < group.MinSelect) {
				return "Modifier group selection bounds are invalid", false
			}
			if group.MinSelect > int32(len(group.Options)) {
				return "Modifier group requires more selections than it has options", false
			}
			for _, option := range group.Options {
				if strings.TrimSpace(option.Name) == "" || option.Price < 0 {
					return "Modifier options need a name and a non-negative price", false
				}
			}
		}
	}
	return "", true
}

func (h *Handler) VendorDropCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendorID, ok := h.vendorID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Vendor access required")
		return
	}

	var body vendorDropRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if msg, ok := validateVendorDropRequest(body); !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("begin tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create drop")
		return
	}
	defer tx.Rollback(ctx)

	var dropID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO drops (
			vendor_id, name, description, image_url, starts_at, ends_at,
			total_qty, remaining_qty, unit_price, tax_rate,
			delivery_enabled, delivery_fee, approval_status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$7,$8,$9,$10,$11,'pending',NOW(),NOW())
		RETURNING id`,
		vendorID, strings.TrimSpace(body.Name), body.Description, body.ImageURL,
		body.StartsAt, body.EndsAt, body.TotalQty, body.UnitPrice, body.TaxRate,
		body.DeliveryEnabled, body.DeliveryFee,
	).Scan(&dropID)
	if err != nil {
		h.Logger.Error("insert drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create drop")
		return
	}

	if err := insertMenuTree(ctx, tx, dropID, body.MenuItems); err != nil {
		h.Logger.Error("insert menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create drop")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create drop")
		return
	}

	response.Created(w, map[string]any{"id": dropID, "approvalStatus": "pending"})
}

func insertMenuTree(ctx context.Context, tx pgx.Tx, dropID int64, items []vendorMenuItemRequest) error {
	for itemOrder, item := range items {
		var itemID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO menu_items (drop_id, name, base_price, display_order)
			VALUES ($1,$2,$3,$4)
			RETURNING id`,
			dropID, strings.TrimSpace(item.Name), item.BasePrice, itemOrder,
		).Scan(&itemID)
		if err != nil {
			return err
		}

		for groupOrder, group := range item.Groups {
			var groupID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO modifier_groups (menu_item_id, name, min_select, max_select, display_order)
				VALUES ($1,$2,$3,$4,$5)
				RETURNING id`,
				itemID, strings.TrimSpace(group.Name), group.MinSelect, group.MaxSelect, groupOrder,
			).Scan(&groupID)
			if err != nil {
				return err
			}

			for optionOrder, option := range group.Options {
				if _, err := tx.Exec(ctx, `
					INSERT INTO modifier_options (group_id, name, price, display_order)
					VALUES ($1,$2,$3,$4)`,
					groupID, strings.TrimSpace(option.Name), option.Price, optionOrder,
				); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (h *Handler) VendorDropsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendorID, ok := h.vendorID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Vendor access required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		SELECT id, name, description, image_url, starts_at, ends_at,
		       unit_price, total_qty, remaining_qty, approval_status, rejection_reason
		FROM drops
		WHERE vendor_id = $1
		ORDER BY created_at DESC`,
		vendorID)
	if err != nil {
		h.Logger.Error("list vendor drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}
	defer rows.Close()

	now := time.Now()
	drops := make([]map[string]any, 0)
	for rows.Next() {
		var (
			d                     DropSummary
			description, imageURL pgtype.Text
			approvalStatus        string
			rejectionReason       pgtype.Text
		)
		if err := rows.Scan(&d.ID, &d.Name, &description, &imageURL, &d.StartsAt, &d.EndsAt,
			&d.UnitPrice, &d.TotalQty, &d.RemainingQty, &approvalStatus, &rejectionReason); err != nil {
			h.Logger.Error("scan vendor drop failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
			return
		}
		entry := map[string]any{
			"id":             d.ID,
			"name":           d.Name,
			"description":    textPtr(description),
			"imageUrl":       textPtr(imageURL),
			"startsAt":       d.StartsAt,
			"endsAt":         d.EndsAt,
			"unitPrice":      d.UnitPrice,
			"totalQty":       d.TotalQty,
			"remainingQty":   d.RemainingQty,
			"approvalStatus": approvalStatus,
		}
		if approvalStatus == "approved" {
			entry["state"] = dropState(d.StartsAt, d.EndsAt, d.RemainingQty, now)
		}
		if reason := textPtr(rejectionReason); reason != nil {
			entry["rejectionReason"] = *reason
		}
		drops = append(drops, entry)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("list vendor drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}

	response.Success(w, map[string]any{"drops": drops})
}

func (h *Handler) VendorDropDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendorID, ok := h.vendorID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Vendor access required")
		return
	}
	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	var detail DropDetail
	var description, imageURL, rejectionReason pgtype.Text
	var approvalStatus string
	err = h.DB.QueryRow(ctx, `
		SELECT id, vendor_id, name, description, image_url,
		       starts_at, ends_at, unit_price, total_qty, remaining_qty,
		       tax_rate, delivery_enabled, delivery_fee, approval_status, rejection_reason
		FROM drops
		WHERE id = $1 AND vendor_id = $2`,
		dropID, vendorID,
	).Scan(&detail.ID, &detail.VendorID, &detail.Name, &description, &imageURL,
		&detail.StartsAt, &detail.EndsAt, &detail.UnitPrice, &detail.TotalQty, &detail.RemainingQty,
		&detail.TaxRate, &detail.DeliveryEnabled, &detail.DeliveryFee, &approvalStatus, &rejectionReason)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "DROP_NOT_FOUND", "Drop not found")
		return
	}
	if err != nil {
		h.Logger.Error("load vendor drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drop")
		return
	}
	detail.Description = textPtr(description)
	detail.ImageURL = textPtr(imageURL)
	if approvalStatus == "approved" {
		detail.State = dropState(detail.StartsAt, detail.EndsAt, detail.RemainingQty, time.Now())
	} else {
		detail.State = approvalStatus
	}

	items, err := h.loadMenuTree(ctx, dropID)
	if err != nil {
		h.Logger.Error("load menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drop")
		return
	}
	detail.MenuItems = menuTreeToViews(items)

	payload := map[string]any{
		"drop":           detail,
		"approvalStatus": approvalStatus,
	}
	if reason := textPtr(rejectionReason); reason != nil {
		payload["rejectionReason"] = *reason
	}
	response.Success(w, payload)
}

// VendorDropUpdate replaces a pending drop wholesale. Once approved, only
// the description and image may change; price, window, quantity, and the
// menu tree are frozen because live orders reference them.
func (h *Handler) VendorDropUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendorID, ok := h.vendorID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Vendor access required")
		return
	}
	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	var body vendorDropRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var approvalStatus string
	err = h.DB.QueryRow(ctx, `
		SELECT approval_status FROM drops WHERE id = $1 AND vendor_id = $2`,
		dropID, vendorID).Scan(&approvalStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusNotFound, "DROP_NOT_FOUND", "Drop not found")
		return
	}
	if err != nil {
		h.Logger.Error("load drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
		return
	}

	if approvalStatus != "pending" {
		_, err := h.DB.Exec(ctx, `
			UPDATE drops SET description = $3, image_url = $4, updated_at = NOW()
			WHERE id = $1 AND vendor_id = $2`,
			dropID, vendorID, body.Description, body.ImageURL)
		if err != nil {
			h.Logger.Error("update drop failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
			return
		}
		response.Success(w, map[string]any{"id": dropID, "frozen": true})
		return
	}

	if msg, ok := validateVendorDropRequest(body); !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("begin tx failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
		return
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE drops
		SET name = $3, description = $4, image_url = $5, starts_at = $6, ends_at = $7,
		    total_qty = $8, remaining_qty = $8, unit_price = $9, tax_rate = $10,
		    delivery_enabled = $11, delivery_fee = $12, updated_at = NOW()
		WHERE id = $1 AND vendor_id = $2 AND approval_status = 'pending'`,
		dropID, vendorID, strings.TrimSpace(body.Name), body.Description, body.ImageURL,
		body.StartsAt, body.EndsAt, body.TotalQty, body.UnitPrice, body.TaxRate,
		body.DeliveryEnabled, body.DeliveryFee)
	if err != nil || ct.RowsAffected() != 1 {
		h.Logger.Error("update drop failed", zapError(err))
		response.Error(w, http.StatusConflict, "DROP_NOT_PENDING", "Drop is no longer editable")
		return
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM menu_items WHERE drop_id = $1`,
		dropID); err != nil {
		h.Logger.Error("clear menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
		return
	}
	if err := insertMenuTree(ctx, tx, dropID, body.MenuItems); err != nil {
		h.Logger.Error("insert menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update drop")
		return
	}

	response.Success(w, map[string]any{"id": dropID})
}

// VendorDropDelete removes a drop that never went live: still pending and
// without any orders against it.
func (h *Handler) VendorDropDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vendorID, ok := h.vendorID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Vendor access required")
		return
	}
	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	var hasOrders bool
	if err := h.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM orders WHERE drop_id = $1)`,
		dropID).Scan(&hasOrders); err != nil {
		h.Logger.Error("check drop orders failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete drop")
		return
	}
	if hasOrders {
		response.Error(w, http.StatusConflict, "DROP_HAS_ORDERS", "Drop already has orders")
		return
	}

	ct, err := h.DB.Exec(ctx, `
		DELETE FROM drops
		WHERE id = $1 AND vendor_id = $2 AND approval_status = 'pending'`,
		dropID, vendorID)
	if err != nil {
		h.Logger.Error("delete drop failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete drop")
		return
	}
	if ct.RowsAffected() != 1 {
		response.Error(w, http.StatusConflict, "DROP_NOT_PENDING", "Only pending drops can be deleted")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
