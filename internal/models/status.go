package models

// Status is one named stage of the package lifecycle. DisplayOrder drives
// backfill ranges; it is not unique, ties are broken by ID.
type Status struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	Color        string `json:"color"`
	Active       bool   `json:"active"`
}

type StatusCreate struct {
	Name         string
	DisplayOrder int
	Color        string
}

// StatusPatch touches only the non-nil fields.
type StatusPatch struct {
	Name         *string
	DisplayOrder *int
	Color        *string
}

func (p StatusPatch) Empty() bool {
	return p.Name == nil && p.DisplayOrder == nil && p.Color == nil
}

// StatusLess orders statuses by display order, then by id.
func StatusLess(a, b *Status) bool {
	if a.DisplayOrder != b.DisplayOrder {
		return a.DisplayOrder < b.DisplayOrder
	}
	return a.ID < b.ID
}
