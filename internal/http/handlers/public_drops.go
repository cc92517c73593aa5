package handlers

import (
	"context"
	"net/http"
	"time"

	"dropmarket-order-service/internal/pricing"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DropStateUpcoming = "upcoming"
	DropStateLive     = "live"
	DropStateSoldOut  = "sold_out"
	DropStateEnded    = "ended"
)

// dropState derives the lifecycle label shown to buyers. Only approved drops
// reach this function; pending and rejected drops are filtered in SQL.
func dropState(startsAt, endsAt time.Time, remaining int32, now time.Time) string {
	if now.Before(startsAt) {
		return DropStateUpcoming
	}
	if now.After(endsAt) {
		return DropStateEnded
	}
	if remaining <= 0 {
		return DropStateSoldOut
	}
	return DropStateLive
}

func (h *Handler) PublicDropsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		SELECT id, vendor_id, name, description, image_url,
		       starts_at, ends_at, unit_price, total_qty, remaining_qty
		FROM drops
		WHERE approval_status = 'approved' AND ends_at > NOW()
		ORDER BY starts_at ASC, id ASC`)
	if err != nil {
		h.Logger.Error("list drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}
	defer rows.Close()

	now := time.Now()
	drops := make([]DropSummary, 0)
	for rows.Next() {
		var d DropSummary
		var description, imageURL pgtype.Text
		if err := rows.Scan(&d.ID, &d.VendorID, &d.Name, &description, &imageURL,
			&d.StartsAt, &d.EndsAt, &d.UnitPrice, &d.TotalQty, &d.RemainingQty); err != nil {
			h.Logger.Error("scan drop failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
			return
		}
		d.Description = textPtr(description)
		d.ImageURL = textPtr(imageURL)
		d.State = dropState(d.StartsAt, d.EndsAt, d.RemainingQty, now)
		drops = append(drops, d)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("list drops failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drops")
		return
	}

	response.Success(w, map[string]any{"drops": drops})
}

func (h *Handler) PublicDropDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dropID, err := readPathInt64(r, "dropId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}

	var detail DropDetail
	var description, imageURL pgtype.Text
	err = h.DB.QueryRow(ctx, `
		SELECT id, vendor_id, name, description, image_url,
		       starts_at, ends_at, unit_price, total_qty, remaining_qty,
		       tax_rate, delivery_enabled, delivery_fee
		FROM drops
		WHERE id = $1 AND approval_status = 'approved'`,
		dropID,
	).Scan(&detail.ID, &detail.VendorID, &detail.Name, &description, &imageURL,
		&detail.StartsAt, &detail.EndsAt, &detail.UnitPrice, &detail.TotalQty, &detail.RemainingQty,
		&detail.TaxRate, &detail.DeliveryEnabled, &detail.DeliveryFee)
	if err != nil {
		response.Error(w, http.StatusNotFound, "DROP_NOT_FOUND", "Drop not found")
		return
	}
	detail.Description = textPtr(description)
	detail.ImageURL = textPtr(imageURL)
	detail.State = dropState(detail.StartsAt, detail.EndsAt, detail.RemainingQty, time.Now())

	items, err := h.loadMenuTree(ctx, dropID)
	if err != nil {
		h.Logger.Error("load menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drop")
		return
	}
	detail.MenuItems = menuTreeToViews(items)

	response.Success(w, detail)
}

// loadMenuTree reads the full item/group/option tree for a drop into the
// pricing engine's types. The same tree backs both the public detail view
// and server-side pricing, so the two can never disagree.
func (h *Handler) loadMenuTree(ctx context.Context, dropID int64) ([]pricing.MenuItem, error) {
	itemRows, err := h.DB.Query(ctx, `
		SELECT id, name, base_price
		FROM menu_items
		WHERE drop_id = $1
		ORDER BY display_order ASC, id ASC`,
		dropID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	items := make([]pricing.MenuItem, 0)
	index := make(map[int64]int)
	for itemRows.Next() {
		var item pricing.MenuItem
		if err := itemRows.Scan(&item.ID, &item.Name, &item.BasePrice); err != nil {
			return nil, err
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	groupRows, err := h.DB.Query(ctx, `
		SELECT g.id, g.menu_item_id, g.name, g.min_select, g.max_select
		FROM modifier_groups g
		JOIN menu_items i ON i.id = g.menu_item_id
		WHERE i.drop_id = $1
		ORDER BY g.display_order ASC, g.id ASC`,
		dropID)
	if err != nil {
		return nil, err
	}
	defer groupRows.Close()

	groupIndex := make(map[int64]struct{ item, group int })
	for groupRows.Next() {
		var group pricing.ModifierGroup
		var menuItemID int64
		if err := groupRows.Scan(&group.ID, &menuItemID, &group.Name, &group.MinSelect, &group.MaxSelect); err != nil {
			return nil, err
		}
		i, ok := index[menuItemID]
		if !ok {
			continue
		}
		groupIndex[group.ID] = struct{ item, group int }{i, len(items[i].Groups)}
		items[i].Groups = append(items[i].Groups, group)
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	optionRows, err := h.DB.Query(ctx, `
		SELECT o.id, o.group_id, o.name, o.price
		FROM modifier_options o
		JOIN modifier_groups g ON g.id = o.group_id
		JOIN menu_items i ON i.id = g.menu_item_id
		WHERE i.drop_id = $1
		ORDER BY o.display_order ASC, o.id ASC`,
		dropID)
	if err != nil {
		return nil, err
	}
	defer optionRows.Close()

	for optionRows.Next() {
		var option pricing.ModifierOption
		var groupID int64
		if err := optionRows.Scan(&option.ID, &groupID, &option.Name, &option.Price); err != nil {
			return nil, err
		}
		pos, ok := groupIndex[groupID]
		if !ok {
			continue
		}
		group := &items[pos.item].Groups[pos.group]
		group.Options = append(group.Options, option)
	}
	return items, optionRows.Err()
}

func menuTreeToViews(items []pricing.MenuItem) []MenuItemView {
	views := make([]MenuItemView, 0, len(items))
	for _, item := range items {
		view := MenuItemView{ID: item.ID, Name: item.Name, BasePrice: item.BasePrice}
		for _, group := range item.Groups {
			groupView := ModifierGroupView{
				ID:        group.ID,
				Name:      group.Name,
				MinSelect: group.MinSelect,
				MaxSelect: group.MaxSelect,
			}
			for _, option := range group.Options {
				groupView.Options = append(groupView.Options, ModifierOptionView{
					ID:    option.ID,
					Name:  option.Name,
					Price: option.Price,
				})
			}
			view.Groups = append(view.Groups, groupView)
		}
		views = append(views, view)
	}
	return views
}
