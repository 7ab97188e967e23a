package messages

import "time"

type ChangeKind string

const (
	ChangeTransition  ChangeKind = "transition"
	ChangeReversal    ChangeKind = "reversal"
	ChangeRegistered  ChangeKind = "registered"
	ChangeImported    ChangeKind = "imported"
	ChangeUpdated     ChangeKind = "updated"
	ChangeDeactivated ChangeKind = "deactivated"
)

// PackageChanged is published after a package mutation commits. Consumers
// rebuild whatever they derive from the package (the public tracking view).
type PackageChanged struct {
	PackageID              uint64     `json:"package_id"`
	TrackingNumber         string     `json:"tracking_number"`
	PreviousTrackingNumber *string    `json:"previous_tracking_number,omitempty"`
	Kind                   ChangeKind `json:"kind"`
	StatusID               *uint64    `json:"status_id,omitempty"`
	PreviousStatusID       *uint64    `json:"previous_status_id,omitempty"`
	OccurredAt             time.Time  `json:"occurred_at"`
}
