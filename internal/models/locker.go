package models

import "time"

// Locker is a client mailbox. Accounts and lockers are provisioned elsewhere;
// this service only reads them.
type Locker struct {
	ID        uint64 `json:"id"`
	UserID    int64  `json:"user_id"`
	Code      string `json:"code"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`
}

// Assignment links a package to the locker it will be picked up from.
type Assignment struct {
	ID             uint64    `json:"id"`
	PackageID      uint64    `json:"package_id"`
	LockerID       uint64    `json:"locker_id"`
	WeightLB       *float64  `json:"weight_lb,omitempty"`
	Observation    *string   `json:"observation,omitempty"`
	AssignedAt     time.Time `json:"assigned_at"`
	Active         bool      `json:"active"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	LockerCode     string    `json:"locker_code,omitempty"`
	CurrentStatus  *string   `json:"current_status,omitempty"`
}

type AssignmentCreate struct {
	PackageID   uint64
	LockerID    uint64
	WeightLB    *float64
	Observation *string
	AssignedAt  time.Time
}

type AssignmentPatch struct {
	PackageID   *uint64
	LockerID    *uint64
	WeightLB    *float64
	Observation *string
}

func (p AssignmentPatch) Empty() bool {
	return p.PackageID == nil && p.LockerID == nil && p.WeightLB == nil && p.Observation == nil
}
