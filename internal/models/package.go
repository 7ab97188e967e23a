package models

import "time"

// Package is a tracked shipment. CurrentStatusID may point to a status that
// was deactivated after it was applied.
type Package struct {
	ID               uint64    `json:"id"`
	TrackingNumber   string    `json:"tracking_number"`
	Service          *string   `json:"service,omitempty"`
	Carrier          *string   `json:"carrier,omitempty"`
	Sender           *string   `json:"sender,omitempty"`
	WeightLB         *float64  `json:"weight_lb,omitempty"`
	ShipDate         *string   `json:"ship_date,omitempty"`
	CarrierReference *string   `json:"carrier_reference,omitempty"`
	GroupID          *uint64   `json:"group_id,omitempty"`
	CurrentStatusID  *uint64   `json:"current_status_id,omitempty"`
	CurrentStatus    *string   `json:"current_status,omitempty"`
	RegisteredAt     time.Time `json:"registered_at"`
	Active           bool      `json:"active"`
}

// PackageFields are the descriptive fields shared by creation, patching and import.
type PackageFields struct {
	Service          *string
	Carrier          *string
	Sender           *string
	WeightLB         *float64
	ShipDate         *string
	CarrierReference *string
	GroupID          *uint64
}

type PackageCreate struct {
	TrackingNumber string
	PackageFields
	StatusID     *uint64
	RegisteredAt time.Time
}

// PackagePatch touches only the non-nil fields. The current status is never
// part of a patch; it moves through the transition engine only.
type PackagePatch struct {
	TrackingNumber *string
	PackageFields
}

func (p PackagePatch) Empty() bool {
	f := p.PackageFields
	return p.TrackingNumber == nil && f.Service == nil && f.Carrier == nil && f.Sender == nil &&
		f.WeightLB == nil && f.ShipDate == nil && f.CarrierReference == nil && f.GroupID == nil
}

type PackageFilter struct {
	GroupID *uint64
	Limit   int
	Offset  int
}

// ImportRow is one spreadsheet row handed to the upsert.
type ImportRow struct {
	TrackingNumber string
	PackageFields
	StatusID *uint64
}

// TrackingView is the public, client-facing projection of a package.
type TrackingView struct {
	PackageID        uint64             `json:"package_id"`
	TrackingNumber   string             `json:"tracking_number"`
	Service          *string            `json:"service,omitempty"`
	Carrier          *string            `json:"carrier,omitempty"`
	Sender           *string            `json:"sender,omitempty"`
	WeightLB         *float64           `json:"weight_lb,omitempty"`
	ShipDate         *string            `json:"ship_date,omitempty"`
	CarrierReference *string            `json:"carrier_reference,omitempty"`
	CurrentStatus    *string            `json:"current_status,omitempty"`
	History          []TrackingViewStep `json:"history"`
}

type TrackingViewStep struct {
	Status      string  `json:"status"`
	Color       string  `json:"color,omitempty"`
	Observation *string `json:"observation,omitempty"`
	ChangeDate  string  `json:"change_date"`
	ChangeTime  string  `json:"change_time"`
}
