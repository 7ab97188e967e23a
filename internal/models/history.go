package models

import "time"

// Observations written on synthesized backfill entries.
const (
	ObservationInitialState   = "initial state"
	ObservationAutoRegistered = "automatically registered"
)

// Date and time layouts of HistoryEntry.ChangeDate / ChangeTime.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// HistoryEntry is one ledger record of a status assignment. Active is the
// ledger visibility flag; entries are never physically deleted.
type HistoryEntry struct {
	ID             uint64  `json:"id"`
	PackageID      uint64  `json:"package_id"`
	TrackingNumber string  `json:"tracking_number,omitempty"`
	StatusID       uint64  `json:"status_id"`
	StatusName     string  `json:"status_name,omitempty"`
	StatusColor    string  `json:"status_color,omitempty"`
	Observation    *string `json:"observation,omitempty"`
	ChangeDate     string  `json:"change_date"`
	ChangeTime     string  `json:"change_time"`
	ActingUser     *string `json:"acting_user,omitempty"`
	Active         bool    `json:"active"`
}

type HistoryEntryCreate struct {
	PackageID   uint64
	StatusID    uint64
	Observation *string
	ChangeDate  string
	ChangeTime  string
	ActingUser  *string
}

// HistoryPatch touches only the non-nil fields. Package and status are
// deliberately absent so the ledger cannot drift from the package pointer.
type HistoryPatch struct {
	Observation *string
	ChangeDate  *string
	ChangeTime  *string
	ActingUser  *string
}

func (p HistoryPatch) Empty() bool {
	return p.Observation == nil && p.ChangeDate == nil && p.ChangeTime == nil && p.ActingUser == nil
}

// NormalizeDate accepts YYYY-MM-DD only.
func NormalizeDate(s string) (string, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// NormalizeTime accepts HH:MM:SS or HH:MM and returns HH:MM:SS.
func NormalizeTime(s string) (string, bool) {
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), true
		}
	}
	return "", false
}
