package pricing

import (
	"fmt"
	"math"
)

// ModifierOption is a priced add-on inside a modifier group.
type ModifierOption struct {
	ID    int64
	Name  string
	Price float64
}

// ModifierGroup carries the selection bounds enforced by ValidateSelections.
// MaxSelect <= 0 means unbounded.
type ModifierGroup struct {
	ID        int64
	Name      string
	MinSelect int32
	MaxSelect int32
	Options   []ModifierOption
}

type MenuItem struct {
	ID        int64
	Name      string
	BasePrice float64
	Groups    []ModifierGroup
}

// Selections maps menu item id -> modifier group id -> selected option ids.
type Selections map[int64]map[int64][]int64

// Input is everything a quote depends on. No clocks, no randomness: the same
// input always prices to the same Quote, on the storefront and on the server.
type Input struct {
	Items             []MenuItem
	Selections        Selections
	Quantity          int32
	FlatPrice         float64 // drop price used when the drop has no menu items
	TaxRate           float64
	DeliveryRequested bool
	DeliveryFee       float64
	BookingFeePerUnit float64
}

type Quote struct {
	UnitPrice   float64 `json:"unitPrice"`
	Subtotal    float64 `json:"subtotal"`
	BookingFee  float64 `json:"bookingFee"`
	DeliveryFee float64 `json:"deliveryFee"`
	TaxAmount   float64 `json:"taxAmount"`
	Total       float64 `json:"total"`
}

// ComputeQuote prices an order. The caller is expected to have run
// ValidateSelections first; unknown option references still fail here rather
// than silently pricing to zero.
func ComputeQuote(in Input) (Quote, *Error) {
	if in.Quantity < 1 {
		return Quote{}, ValidationError(ErrInvalidPricingInput, "Quantity must be at least 1", map[string]any{
			"quantity": in.Quantity,
		})
	}

	unitPrice := in.FlatPrice
	if len(in.Items) > 0 {
		unitPrice = 0
		for _, item := range in.Items {
			itemPrice := item.BasePrice
			for _, group := range item.Groups {
				selected := in.Selections[item.ID][group.ID]
				for _, optionID := range selected {
					option, ok := findOption(group, optionID)
					if !ok {
						return Quote{}, ValidationError(ErrInvalidPricingInput, "Selected option does not belong to this menu item", map[string]any{
							"menuItemId": item.ID,
							"groupId":    group.ID,
							"optionId":   optionID,
						})
					}
					itemPrice += option.Price
				}
			}
			unitPrice += itemPrice
		}
	}

	taxRate := in.TaxRate
	if taxRate < 0 {
		taxRate = 0
	}

	// Subtotal derives from the rounded unit price so the displayed unit
	// price times quantity always matches the charged subtotal.
	qty := float64(in.Quantity)
	quote := Quote{UnitPrice: round2(unitPrice)}
	quote.Subtotal = round2(quote.UnitPrice * qty)
	quote.BookingFee = round2(in.BookingFeePerUnit * qty)
	if in.DeliveryRequested {
		quote.DeliveryFee = round2(in.DeliveryFee)
	}
	quote.TaxAmount = round2((quote.Subtotal + quote.DeliveryFee + quote.BookingFee) * taxRate)
	quote.Total = round2(quote.Subtotal + quote.DeliveryFee + quote.BookingFee + quote.TaxAmount)

	for name, value := range map[string]float64{
		"unitPrice":   quote.UnitPrice,
		"subtotal":    quote.Subtotal,
		"bookingFee":  quote.BookingFee,
		"deliveryFee": quote.DeliveryFee,
		"taxAmount":   quote.TaxAmount,
		"total":       quote.Total,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return Quote{}, ValidationError(ErrInvalidPricingInput, fmt.Sprintf("Computed %s is not a finite amount", name), nil)
		}
		if value < 0 {
			return Quote{}, ValidationError(ErrInvalidPricingInput, fmt.Sprintf("Computed %s is negative", name), nil)
		}
	}

	return quote, nil
}

func findOption(group ModifierGroup, optionID int64) (ModifierOption, bool) {
	for _, option := range group.Options {
		if option.ID == optionID {
			return option, true
		}
	}
	return ModifierOption{}, false
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
