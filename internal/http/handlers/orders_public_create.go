package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"dropmarket-order-service/internal/pricing"
	"dropmarket-order-service/internal/queue"
	"dropmarket-order-service/internal/reservation"
	"dropmarket-order-service/internal/utils"
	"dropmarket-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type publicOrderRequest struct {
	DropID          int64                  `json:"dropId"`
	AccountID       *int64                 `json:"accountId"`
	CustomerName    string                 `json:"customerName"`
	CustomerEmail   string                 `json:"customerEmail"`
	Quantity        int32                  `json:"quantity"`
	IsBulk          bool                   `json:"isBulk"`
	Notes           *string                `json:"notes"`
	Delivery        bool                   `json:"delivery"`
	DeliveryAddress *string                `json:"deliveryAddress"`
	Selections      []publicOrderSelection `json:"selections"`
}

type publicOrderSelection struct {
	MenuItemID int64   `json:"menuItemId"`
	GroupID    int64   `json:"groupId"`
	OptionIDs  []int64 `json:"optionIds"`
}

type publicOrderCreateResponse struct {
	OrderDetail
	TrackingToken string `json:"trackingToken"`
}

type dropPricingConfig struct {
	UnitPrice       float64
	TaxRate         float64
	DeliveryEnabled bool
	DeliveryFee     float64
}

func (h *Handler) PublicOrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body publicOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	if body.DropID < 1 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid drop id is required")
		return
	}
	if strings.TrimSpace(body.CustomerName) == "" || strings.TrimSpace(body.CustomerEmail) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Customer name and email are required")
		return
	}
	if body.Quantity < 1 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity must be at least 1")
		return
	}
	if body.IsBulk {
		if body.Quantity < h.Config.MinBulkQuantity || body.Quantity > h.Config.MaxBulkQuantity {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Bulk quantity is out of range")
			return
		}
	} else if body.Quantity > h.Config.MaxOrderQuantity {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Quantity exceeds the per-order limit")
		return
	}

	deliveryAddress := ""
	if body.Delivery {
		if body.DeliveryAddress == nil || strings.TrimSpace(*body.DeliveryAddress) == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Delivery address is required")
			return
		}
		deliveryAddress = strings.TrimSpace(*body.DeliveryAddress)
	}

	dropCfg, found, err := h.loadDropPricingConfig(ctx, body.DropID)
	if err != nil {
		h.Logger.Error("load drop config failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drop")
		return
	}
	if !found {
		response.Error(w, http.StatusNotFound, "DROP_NOT_FOUND", "Drop not found")
		return
	}
	if body.Delivery && !dropCfg.DeliveryEnabled {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Delivery is not available for this drop")
		return
	}

	items, err := h.loadMenuTree(ctx, body.DropID)
	if err != nil {
		h.Logger.Error("load menu tree failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load drop")
		return
	}

	selections := toSelections(body.Selections)
	if verr := pricing.ValidateSelections(items, selections); verr != nil {
		response.ErrorWithDetails(w, verr.StatusCode, string(verr.Code), verr.Message, verr.Details)
		return
	}

	// Totals are always re-derived here. Client-side quotes are display only.
	quote, perr := pricing.ComputeQuote(pricing.Input{
		Items:             items,
		Selections:        selections,
		Quantity:          body.Quantity,
		FlatPrice:         dropCfg.UnitPrice,
		TaxRate:           dropCfg.TaxRate,
		DeliveryRequested: body.Delivery,
		DeliveryFee:       dropCfg.DeliveryFee,
		BookingFeePerUnit: h.Config.BookingFeePerUnit,
	})
	if perr != nil {
		response.ErrorWithDetails(w, perr.StatusCode, string(perr.Code), perr.Message, perr.Details)
		return
	}

	snapshot, ok := buildSelectionSnapshot(items, selections)
	if !ok {
		response.Error(w, http.StatusBadRequest, "INCOMPLETE_SELECTION", "Selections reference unknown options")
		return
	}

	orderNumber, err := h.generateOrderNumber(ctx)
	if err != nil {
		h.Logger.Error("generate order number failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	notes := ""
	if body.Notes != nil {
		notes = strings.TrimSpace(*body.Notes)
	}

	result, rerr := reservation.Reserve(ctx, h.DB, reservation.Params{
		DropID:          body.DropID,
		OrderNumber:     orderNumber,
		AccountID:       body.AccountID,
		CustomerName:    strings.TrimSpace(body.CustomerName),
		CustomerEmail:   strings.TrimSpace(body.CustomerEmail),
		Quantity:        body.Quantity,
		IsBulk:          body.IsBulk,
		Notes:           notes,
		Delivery:        body.Delivery,
		DeliveryAddress: deliveryAddress,
		Quote:           quote,
		Selections:      snapshot,
	})
	if rerr != nil {
		if rerr.Code == reservation.ErrPersistence {
			h.Logger.Error("reservation failed", zapError(rerr))
		}
		response.ErrorWithDetails(w, rerr.StatusCode, string(rerr.Code), rerr.Message, rerr.Details)
		return
	}

	h.publishOrderEvent(ctx, queue.OrderEvent{
		Type:        queue.EventOrderCreated,
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		DropID:      body.DropID,
	})
	if result.SoldOut {
		h.publishOrderEvent(ctx, queue.OrderEvent{
			Type:   queue.EventDropSoldOut,
			DropID: body.DropID,
		})
	}

	detail := OrderDetail{
		ID:            result.OrderID,
		OrderNumber:   result.OrderNumber,
		DropID:        body.DropID,
		DropName:      result.DropName,
		CustomerName:  strings.TrimSpace(body.CustomerName),
		CustomerEmail: strings.TrimSpace(body.CustomerEmail),
		Quantity:      body.Quantity,
		IsBulk:        body.IsBulk,
		Subtotal:      quote.Subtotal,
		BookingFee:    quote.BookingFee,
		DeliveryFee:   quote.DeliveryFee,
		TaxAmount:     quote.TaxAmount,
		TotalPaid:     quote.Total,
		PaymentStatus: "pending",
		Delivery:      body.Delivery,
		CreatedAt:     result.CreatedAt,
		Selections:    snapshotToViews(snapshot),
	}
	if result.DropImageURL != "" {
		detail.DropImageURL = &result.DropImageURL
	}
	if notes != "" {
		detail.Notes = &notes
	}
	if deliveryAddress != "" {
		detail.DeliveryAddress = &deliveryAddress
	}

	response.Created(w, publicOrderCreateResponse{
		OrderDetail:   detail,
		TrackingToken: utils.CreateOrderTrackingToken(h.Config.OrderTrackingTokenSecret, result.OrderNumber),
	})
}

func (h *Handler) loadDropPricingConfig(ctx context.Context, dropID int64) (dropPricingConfig, bool, error) {
	var cfg dropPricingConfig
	var taxRate pgtype.Float8
	err := h.DB.QueryRow(ctx, `
		SELECT unit_price, tax_rate, delivery_enabled, delivery_fee
		FROM drops
		WHERE id = $1`,
		dropID,
	).Scan(&cfg.UnitPrice, &taxRate, &cfg.DeliveryEnabled, &cfg.DeliveryFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return dropPricingConfig{}, false, nil
	}
	if err != nil {
		return dropPricingConfig{}, false, err
	}
	if taxRate.Valid {
		cfg.TaxRate = taxRate.Float64
	}
	return cfg, true, nil
}

func toSelections(input []publicOrderSelection) pricing.Selections {
	selections := pricing.Selections{}
	for _, sel := range input {
		if selections[sel.MenuItemID] == nil {
			selections[sel.MenuItemID] = map[int64][]int64{}
		}
		selections[sel.MenuItemID][sel.GroupID] = append(selections[sel.MenuItemID][sel.GroupID], sel.OptionIDs...)
	}
	return selections
}

// buildSelectionSnapshot resolves selected option ids into frozen name/price
// rows. Returns false when a selection points outside the menu tree, which
// ValidateSelections should already have rejected.
func buildSelectionSnapshot(items []pricing.MenuItem, selections pricing.Selections) ([]reservation.Selection, bool) {
	snapshot := make([]reservation.Selection, 0)
	for _, item := range items {
		groups, ok := selections[item.ID]
		if !ok {
			continue
		}
		for _, group := range item.Groups {
			for _, optionID := range groups[group.ID] {
				var matched *pricing.ModifierOption
				for i := range group.Options {
					if group.Options[i].ID == optionID {
						matched = &group.Options[i]
						break
					}
				}
				if matched == nil {
					return nil, false
				}
				snapshot = append(snapshot, reservation.Selection{
					MenuItemID:   item.ID,
					MenuItemName: item.Name,
					GroupID:      group.ID,
					GroupName:    group.Name,
					OptionID:     matched.ID,
					OptionName:   matched.Name,
					OptionPrice:  matched.Price,
				})
			}
		}
	}
	return snapshot, true
}

func snapshotToViews(snapshot []reservation.Selection) []OrderSelectionView {
	views := make([]OrderSelectionView, 0, len(snapshot))
	for _, sel := range snapshot {
		views = append(views, OrderSelectionView{
			MenuItemID:   sel.MenuItemID,
			MenuItemName: sel.MenuItemName,
			GroupID:      sel.GroupID,
			GroupName:    sel.GroupName,
			OptionID:     sel.OptionID,
			OptionName:   sel.OptionName,
			OptionPrice:  sel.OptionPrice,
		})
	}
	return views
}

func (h *Handler) generateOrderNumber(ctx context.Context) (string, error) {
	characters := "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for attempt := 0; attempt < 10; attempt++ {
		var sb strings.Builder
		sb.WriteString("DRP-")
		for i := 0; i < 8; i++ {
			sb.WriteByte(characters[rand.Intn(len(characters))])
		}
		value := sb.String()
		var exists bool
		if err := h.DB.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`,
			value).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return value, nil
		}
	}
	return "DRP-" + strings.ToUpper(time.Now().Format("060102150405")), nil
}

func (h *Handler) publishOrderEvent(ctx context.Context, event queue.OrderEvent) {
	if h.Queue == nil {
		return
	}
	if err := queue.PublishOrderEvent(ctx, h.Queue, event); err != nil {
		h.Logger.Warn("publish event failed", zap.String("type", event.Type), zapError(err))
	}
}
