package pricing

import "testing"

func TestValidateSelections(t *testing.T) {
	cases := []struct {
		name       string
		selections Selections
		wantErr    bool
	}{
		{
			name:       "valid full selection",
			selections: Selections{1: {10: {101}, 11: {110, 111}}},
		},
		{
			name:       "optional group omitted",
			selections: Selections{1: {10: {100}}},
		},
		{
			name:       "required group missing entirely",
			selections: Selections{},
			wantErr:    true,
		},
		{
			name:       "required group under minimum",
			selections: Selections{1: {10: {}}},
			wantErr:    true,
		},
		{
			name:       "over maximum",
			selections: Selections{1: {10: {100}, 11: {110, 111, 110}}},
			wantErr:    true,
		},
		{
			name:       "duplicate option counts twice",
			selections: Selections{1: {10: {100, 100}}},
			wantErr:    true,
		},
		{
			name:       "option from wrong group",
			selections: Selections{1: {10: {110}}},
			wantErr:    true,
		},
		{
			name:       "unknown group on item",
			selections: Selections{1: {10: {100}, 99: {1}}},
			wantErr:    true,
		},
		{
			name:       "unknown menu item",
			selections: Selections{1: {10: {100}}, 42: {}},
			wantErr:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSelections(testMenu(), tc.selections)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected rejection, got none")
				}
				if err.Code != ErrIncompleteSelection {
					t.Fatalf("expected %s, got %s", ErrIncompleteSelection, err.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSelectionsMinTwo(t *testing.T) {
	menu := []MenuItem{{
		ID:        5,
		Name:      "Bento",
		BasePrice: 12,
		Groups: []ModifierGroup{{
			ID:        50,
			Name:      "Sides",
			MinSelect: 2,
			MaxSelect: 3,
			Options: []ModifierOption{
				{ID: 500, Name: "Rice"},
				{ID: 501, Name: "Salad"},
				{ID: 502, Name: "Miso"},
			},
		}},
	}}

	if err := ValidateSelections(menu, Selections{5: {50: {500}}}); err == nil {
		t.Fatalf("expected one-of-two selection to be rejected")
	}
	if err := ValidateSelections(menu, Selections{5: {50: {500, 501}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
