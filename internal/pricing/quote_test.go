package pricing

import (
	"math"
	"testing"
)

func testMenu() []MenuItem {
	return []MenuItem{
		{
			ID:        1,
			Name:      "Smash Burger",
			BasePrice: 8.50,
			Groups: []ModifierGroup{
				{
					ID:        10,
					Name:      "Cheese",
					MinSelect: 1,
					MaxSelect: 1,
					Options: []ModifierOption{
						{ID: 100, Name: "American", Price: 0},
						{ID: 101, Name: "Smoked Cheddar", Price: 1.25},
					},
				},
				{
					ID:        11,
					Name:      "Extras",
					MinSelect: 0,
					MaxSelect: 2,
					Options: []ModifierOption{
						{ID: 110, Name: "Bacon", Price: 2.00},
						{ID: 111, Name: "Pickles", Price: 0.50},
					},
				},
			},
		},
		{
			ID:        2,
			Name:      "Fries",
			BasePrice: 3.00,
		},
	}
}

func TestComputeQuote(t *testing.T) {
	cases := []struct {
		name     string
		input    Input
		expected Quote
	}{
		{
			name: "flat price drop with booking fee",
			input: Input{
				Quantity:          1,
				FlatPrice:         10.00,
				BookingFeePerUnit: 1.00,
			},
			expected: Quote{UnitPrice: 10.00, Subtotal: 10.00, BookingFee: 1.00, Total: 11.00},
		},
		{
			name: "menu items with selected surcharges",
			input: Input{
				Items: testMenu(),
				Selections: Selections{
					1: {10: {101}, 11: {110}},
				},
				Quantity:          2,
				BookingFeePerUnit: 0.50,
			},
			// unit = 8.50 + 1.25 + 2.00 + 3.00 = 14.75
			expected: Quote{UnitPrice: 14.75, Subtotal: 29.50, BookingFee: 1.00, Total: 30.50},
		},
		{
			name: "delivery and tax applied on top of fees",
			input: Input{
				Quantity:          1,
				FlatPrice:         10.00,
				BookingFeePerUnit: 1.00,
				DeliveryRequested: true,
				DeliveryFee:       4.00,
				TaxRate:           0.10,
			},
			// tax = (10 + 4 + 1) * 0.10 = 1.50
			expected: Quote{UnitPrice: 10.00, Subtotal: 10.00, BookingFee: 1.00, DeliveryFee: 4.00, TaxAmount: 1.50, Total: 16.50},
		},
		{
			name: "delivery fee ignored when not requested",
			input: Input{
				Quantity:    3,
				FlatPrice:   5.00,
				DeliveryFee: 4.00,
			},
			expected: Quote{UnitPrice: 5.00, Subtotal: 15.00, Total: 15.00},
		},
		{
			name: "negative tax rate treated as zero",
			input: Input{
				Quantity:  1,
				FlatPrice: 9.99,
				TaxRate:   -0.5,
			},
			expected: Quote{UnitPrice: 9.99, Subtotal: 9.99, Total: 9.99},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeQuote(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %+v, got %+v", tc.expected, got)
			}
		})
	}
}

func TestComputeQuoteRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		input Input
	}{
		{name: "zero quantity", input: Input{Quantity: 0, FlatPrice: 10}},
		{name: "negative quantity", input: Input{Quantity: -2, FlatPrice: 10}},
		{name: "non-finite flat price", input: Input{Quantity: 1, FlatPrice: math.Inf(1)}},
		{name: "nan tax product", input: Input{Quantity: 1, FlatPrice: math.NaN()}},
		{
			name: "option from another group",
			input: Input{
				Items:      testMenu(),
				Selections: Selections{1: {10: {110}}},
				Quantity:   1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeQuote(tc.input)
			if err == nil {
				t.Fatalf("expected error, got none")
			}
			if err.Code != ErrInvalidPricingInput {
				t.Fatalf("expected %s, got %s", ErrInvalidPricingInput, err.Code)
			}
		})
	}
}

func TestComputeQuoteDeterministic(t *testing.T) {
	input := Input{
		Items: testMenu(),
		Selections: Selections{
			1: {10: {100}, 11: {110, 111}},
		},
		Quantity:          4,
		BookingFeePerUnit: 1.00,
		DeliveryRequested: true,
		DeliveryFee:       3.50,
		TaxRate:           0.0825,
	}

	first, err := ComputeQuote(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := ComputeQuote(input)
		if err != nil {
			t.Fatalf("unexpected error on repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("quote drifted on repeat %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestComputeQuoteRounding(t *testing.T) {
	got, err := ComputeQuote(Input{
		Quantity:  3,
		FlatPrice: 3.333,
		TaxRate:   0.07,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UnitPrice != 3.33 {
		t.Fatalf("expected unit price 3.33, got %v", got.UnitPrice)
	}
	if got.Subtotal != 9.99 {
		t.Fatalf("expected subtotal 9.99, got %v", got.Subtotal)
	}
	if got.TaxAmount != 0.70 {
		t.Fatalf("expected tax 0.70, got %v", got.TaxAmount)
	}
	if got.Total != 10.69 {
		t.Fatalf("expected total 10.69, got %v", got.Total)
	}
}
