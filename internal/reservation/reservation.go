package reservation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dropmarket-order-service/internal/pricing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Drop is the drop row as seen under the row lock. Classification reads only
// this snapshot, so the accept/reject decision is testable without a database.
type Drop struct {
	ID           int64
	VendorID     int64
	Name         string
	ImageURL     string
	Approval     string
	StartsAt     time.Time
	EndsAt       time.Time
	TotalQty     int32
	RemainingQty int32
}

// Selection is one frozen option choice persisted alongside the order.
// Names and prices are captured at order time so later catalog edits cannot
// change what the buyer sees on a receipt.
type Selection struct {
	MenuItemID   int64
	MenuItemName string
	GroupID      int64
	GroupName    string
	OptionID     int64
	OptionName   string
	OptionPrice  float64
}

type Params struct {
	DropID          int64
	OrderNumber     string
	AccountID       *int64
	CustomerName    string
	CustomerEmail   string
	Quantity        int32
	IsBulk          bool
	Notes           string
	Delivery        bool
	DeliveryAddress string
	Quote           pricing.Quote
	Selections      []Selection
}

type Result struct {
	OrderID      int64
	OrderNumber  string
	DropName     string
	DropImageURL string
	CreatedAt    time.Time
	// SoldOut is true when this reservation took the last units, so the
	// caller can announce the drop closing exactly once.
	SoldOut bool
}

// Classify decides whether a locked drop can absorb a reservation at the
// given instant. found is false when the SELECT returned no row.
func Classify(drop Drop, found bool, now time.Time, quantity int32) *Error {
	if !found {
		return newError(ErrDropNotFound, "Drop not found", http.StatusNotFound, nil)
	}
	if drop.Approval != "approved" {
		return newError(ErrDropNotApproved, "Drop is not open for ordering", http.StatusConflict, nil)
	}
	if now.Before(drop.StartsAt) || now.After(drop.EndsAt) {
		return newError(ErrDropNotLive, "Drop is outside its sale window", http.StatusConflict, map[string]any{
			"startsAt": drop.StartsAt,
			"endsAt":   drop.EndsAt,
		})
	}
	if drop.RemainingQty < quantity {
		return newError(ErrInsufficientInventory, "Not enough inventory remaining", http.StatusConflict, map[string]any{
			"requested": quantity,
			"remaining": drop.RemainingQty,
		})
	}
	return nil
}

// Reserve verifies, decrements, and records an order in one transaction.
// The drop row is locked first so concurrent requests for the last units
// serialize; the guarded decrement is the final arbiter either way.
func Reserve(ctx context.Context, db *pgxpool.Pool, params Params) (Result, *Error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, persistenceError("Failed to start reservation", err)
	}
	defer tx.Rollback(ctx)

	drop, found, err := lockDrop(ctx, tx, params.DropID)
	if err != nil {
		return Result{}, persistenceError("Failed to load drop", err)
	}
	if rej := Classify(drop, found, time.Now(), params.Quantity); rej != nil {
		return Result{}, rej
	}

	ct, err := tx.Exec(ctx, `
		UPDATE drops
		SET remaining_qty = remaining_qty - $2, updated_at = NOW()
		WHERE id = $1 AND remaining_qty >= $2`,
		params.DropID, params.Quantity)
	if err != nil {
		return Result{}, persistenceError("Failed to reserve inventory", err)
	}
	if ct.RowsAffected() != 1 {
		return Result{}, newError(ErrInsufficientInventory, "Not enough inventory remaining", http.StatusConflict, map[string]any{
			"requested": params.Quantity,
		})
	}

	var orderID int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, drop_id, drop_name, drop_image_url, account_id,
			customer_name, customer_email, quantity, is_bulk, notes,
			subtotal, booking_fee, delivery_fee, tax_amount, total_paid,
			payment_status, delivery, delivery_address, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,'pending',$16,$17,NOW())
		RETURNING id, created_at`,
		params.OrderNumber, params.DropID, drop.Name, drop.ImageURL, params.AccountID,
		params.CustomerName, params.CustomerEmail, params.Quantity, params.IsBulk, params.Notes,
		params.Quote.Subtotal, params.Quote.BookingFee, params.Quote.DeliveryFee,
		params.Quote.TaxAmount, params.Quote.Total,
		params.Delivery, params.DeliveryAddress,
	).Scan(&orderID, &createdAt)
	if err != nil {
		return Result{}, persistenceError("Failed to record order", err)
	}

	for _, sel := range params.Selections {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_selections (
				order_id, menu_item_id, menu_item_name,
				group_id, group_name, option_id, option_name, option_price
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			orderID, sel.MenuItemID, sel.MenuItemName,
			sel.GroupID, sel.GroupName, sel.OptionID, sel.OptionName, sel.OptionPrice,
		); err != nil {
			return Result{}, persistenceError("Failed to record order selections", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, persistenceError("Failed to commit reservation", err)
	}

	return Result{
		OrderID:      orderID,
		OrderNumber:  params.OrderNumber,
		DropName:     drop.Name,
		DropImageURL: drop.ImageURL,
		CreatedAt:    createdAt,
		SoldOut:      drop.RemainingQty == params.Quantity,
	}, nil
}

// Release puts a failed order's units back on the drop, capped at total_qty.
// Runs inside the caller's transaction so the status flip and the restore
// commit together.
func Release(ctx context.Context, tx pgx.Tx, dropID int64, quantity int32) error {
	_, err := tx.Exec(ctx, `
		UPDATE drops
		SET remaining_qty = LEAST(total_qty, remaining_qty + $2), updated_at = NOW()
		WHERE id = $1`,
		dropID, quantity)
	return err
}

func lockDrop(ctx context.Context, tx pgx.Tx, dropID int64) (Drop, bool, error) {
	var drop Drop
	var imageURL pgtype.Text
	err := tx.QueryRow(ctx, `
		SELECT id, vendor_id, name, image_url, approval_status,
		       starts_at, ends_at, total_qty, remaining_qty
		FROM drops
		WHERE id = $1
		FOR UPDATE`,
		dropID,
	).Scan(&drop.ID, &drop.VendorID, &drop.Name, &imageURL, &drop.Approval,
		&drop.StartsAt, &drop.EndsAt, &drop.TotalQty, &drop.RemainingQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return Drop{}, false, nil
	}
	if err != nil {
		return Drop{}, false, err
	}
	if imageURL.Valid {
		drop.ImageURL = imageURL.String
	}
	return drop, true, nil
}
