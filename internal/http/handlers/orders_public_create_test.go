package handlers

import (
	"testing"

	"dropmarket-order-service/internal/pricing"
)

func createTestMenu() []pricing.MenuItem {
	return []pricing.MenuItem{
		{
			ID:        1,
			Name:      "Smash Burger",
			BasePrice: 8.50,
			Groups: []pricing.ModifierGroup{
				{
					ID:        10,
					Name:      "Cheese",
					MinSelect: 1,
					MaxSelect: 1,
					Options: []pricing.ModifierOption{
						{ID: 100, Name: "American"},
						{ID: 101, Name: "Smoked Cheddar", Price: 1.25},
					},
				},
			},
		},
	}
}

func TestToSelections(t *testing.T) {
	input := []publicOrderSelection{
		{MenuItemID: 1, GroupID: 10, OptionIDs: []int64{100}},
		{MenuItemID: 1, GroupID: 11, OptionIDs: []int64{110, 111}},
		{MenuItemID: 2, GroupID: 20, OptionIDs: nil},
	}

	selections := toSelections(input)
	if len(selections[1][10]) != 1 || selections[1][10][0] != 100 {
		t.Fatalf("unexpected group 10 selections: %v", selections[1][10])
	}
	if len(selections[1][11]) != 2 {
		t.Fatalf("unexpected group 11 selections: %v", selections[1][11])
	}
	if _, ok := selections[2]; !ok {
		t.Fatalf("empty selection entries must still appear for validation")
	}
}

func TestToSelectionsMergesRepeatedEntries(t *testing.T) {
	input := []publicOrderSelection{
		{MenuItemID: 1, GroupID: 10, OptionIDs: []int64{100}},
		{MenuItemID: 1, GroupID: 10, OptionIDs: []int64{101}},
	}

	selections := toSelections(input)
	if len(selections[1][10]) != 2 {
		t.Fatalf("repeated entries for one group must accumulate, got %v", selections[1][10])
	}
}

func TestBuildSelectionSnapshot(t *testing.T) {
	menu := createTestMenu()
	selections := pricing.Selections{1: {10: {101}}}

	snapshot, ok := buildSelectionSnapshot(menu, selections)
	if !ok {
		t.Fatalf("expected snapshot to build")
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected one frozen row, got %d", len(snapshot))
	}

	row := snapshot[0]
	if row.MenuItemName != "Smash Burger" || row.GroupName != "Cheese" {
		t.Fatalf("unexpected names: %+v", row)
	}
	if row.OptionID != 101 || row.OptionName != "Smoked Cheddar" || row.OptionPrice != 1.25 {
		t.Fatalf("unexpected option snapshot: %+v", row)
	}
}

func TestBuildSelectionSnapshotRejectsUnknownOption(t *testing.T) {
	menu := createTestMenu()
	selections := pricing.Selections{1: {10: {999}}}

	if _, ok := buildSelectionSnapshot(menu, selections); ok {
		t.Fatalf("unknown option must not produce a snapshot")
	}
}
