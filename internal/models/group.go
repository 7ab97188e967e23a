package models

// Group is a shipment batch (for example one consolidated flight).
type Group struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	Active    bool    `json:"active"`
}

type GroupCreate struct {
	Name      string
	StartDate *string
	EndDate   *string
}

type GroupPatch struct {
	Name      *string
	StartDate *string
	EndDate   *string
}

func (p GroupPatch) Empty() bool {
	return p.Name == nil && p.StartDate == nil && p.EndDate == nil
}
