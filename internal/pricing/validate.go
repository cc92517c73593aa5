package pricing

import "fmt"

// ValidateSelections enforces per-group selection bounds across every menu
// item of the drop. It is a pure pre-condition gate: it never touches storage
// and must run before any pricing or reservation attempt.
func ValidateSelections(items []MenuItem, selections Selections) *Error {
	for _, item := range items {
		itemSelections := selections[item.ID]
		for _, group := range item.Groups {
			selected := itemSelections[group.ID]

			for _, optionID := range selected {
				if _, ok := findOption(group, optionID); !ok {
					return ValidationError(ErrIncompleteSelection,
						fmt.Sprintf("Option does not belong to group %q of %q", group.Name, item.Name),
						selectionDetails(item, group, len(selected)))
				}
			}
			if seen := duplicateOption(selected); seen != 0 {
				return ValidationError(ErrIncompleteSelection,
					fmt.Sprintf("Option selected twice in group %q of %q", group.Name, item.Name),
					selectionDetails(item, group, len(selected)))
			}

			if group.MinSelect > 0 && int32(len(selected)) < group.MinSelect {
				return ValidationError(ErrIncompleteSelection,
					fmt.Sprintf("Group %q of %q requires at least %d selection(s)", group.Name, item.Name, group.MinSelect),
					selectionDetails(item, group, len(selected)))
			}
			if group.MaxSelect > 0 && int32(len(selected)) > group.MaxSelect {
				return ValidationError(ErrIncompleteSelection,
					fmt.Sprintf("Group %q of %q allows at most %d selection(s)", group.Name, item.Name, group.MaxSelect),
					selectionDetails(item, group, len(selected)))
			}
		}

		// Reject selections pointing at groups the item does not have.
		for groupID := range itemSelections {
			if !itemHasGroup(item, groupID) {
				return ValidationError(ErrIncompleteSelection,
					fmt.Sprintf("Selection references an unknown group on %q", item.Name),
					map[string]any{"menuItemId": item.ID, "groupId": groupID})
			}
		}
	}

	for itemID := range selections {
		if !menuHasItem(items, itemID) {
			return ValidationError(ErrIncompleteSelection,
				"Selection references an unknown menu item",
				map[string]any{"menuItemId": itemID})
		}
	}

	return nil
}

func selectionDetails(item MenuItem, group ModifierGroup, selected int) map[string]any {
	return map[string]any{
		"menuItemId": item.ID,
		"menuItem":   item.Name,
		"groupId":    group.ID,
		"group":      group.Name,
		"minSelect":  group.MinSelect,
		"maxSelect":  group.MaxSelect,
		"selected":   selected,
	}
}

func duplicateOption(ids []int64) int64 {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
	}
	return 0
}

func itemHasGroup(item MenuItem, groupID int64) bool {
	for _, group := range item.Groups {
		if group.ID == groupID {
			return true
		}
	}
	return false
}

func menuHasItem(items []MenuItem, itemID int64) bool {
	for _, item := range items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}
