// Package storage declares the persistence port shared by the services.
// Implementations report absence with models.ErrNotFound and violations of
// the "unique among active" rules with models.ErrDuplicate.
package storage

import (
	"context"

	"github.com/BearBump/LockerTrack/internal/models"
)

// Querier is the full set of row-level operations. Every method runs either
// on its own or inside the transaction handed out by Store.RunInTx.
type Querier interface {
	StatusQueries
	GroupQueries
	PackageQueries
	HistoryQueries
	LockerQueries
}

type StatusQueries interface {
	// ListActiveStatuses is ordered by (display_order, id).
	ListActiveStatuses(ctx context.Context) ([]*models.Status, error)
	GetStatus(ctx context.Context, id uint64) (*models.Status, error)
	GetActiveStatusByName(ctx context.Context, name string) (*models.Status, error)
	CreateStatus(ctx context.Context, in models.StatusCreate) (*models.Status, error)
	UpdateStatus(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error)
	DeactivateStatus(ctx context.Context, id uint64) error
}

type GroupQueries interface {
	ListActiveGroups(ctx context.Context) ([]*models.Group, error)
	GetGroup(ctx context.Context, id uint64) (*models.Group, error)
	GetActiveGroupByName(ctx context.Context, name string) (*models.Group, error)
	CreateGroup(ctx context.Context, in models.GroupCreate) (*models.Group, error)
	UpdateGroup(ctx context.Context, id uint64, patch models.GroupPatch) (*models.Group, error)
	DeactivateGroup(ctx context.Context, id uint64) error
	// DeactivateGroupPackages deactivates the active packages of a group and
	// returns the affected rows.
	DeactivateGroupPackages(ctx context.Context, groupID uint64) ([]*models.Package, error)
}

type PackageQueries interface {
	GetPackage(ctx context.Context, id uint64) (*models.Package, error)
	// LockPackage reads the package and holds a row lock until the
	// surrounding transaction ends.
	LockPackage(ctx context.Context, id uint64) (*models.Package, error)
	// FindPackageByTracking prefers the active package, then the newest one.
	FindPackageByTracking(ctx context.Context, trackingNumber string, activeOnly bool) (*models.Package, error)
	ListActivePackages(ctx context.Context, f models.PackageFilter) ([]*models.Package, int, error)
	CreatePackage(ctx context.Context, in models.PackageCreate) (*models.Package, error)
	UpdatePackage(ctx context.Context, id uint64, patch models.PackagePatch) (*models.Package, error)
	ReactivatePackage(ctx context.Context, id uint64, fields models.PackageFields) (*models.Package, error)
	SetPackageStatus(ctx context.Context, id uint64, statusID *uint64) error
	DeactivatePackage(ctx context.Context, id uint64) error
}

type HistoryQueries interface {
	// ListActiveHistory is newest first.
	ListActiveHistory(ctx context.Context) ([]*models.HistoryEntry, error)
	GetHistoryEntry(ctx context.Context, id uint64) (*models.HistoryEntry, error)
	// ListPackageHistory is ordered by id ascending.
	ListPackageHistory(ctx context.Context, packageID uint64, includeInactive bool) ([]*models.HistoryEntry, error)
	InsertHistoryEntry(ctx context.Context, in models.HistoryEntryCreate) (*models.HistoryEntry, error)
	UpdateHistoryEntry(ctx context.Context, id uint64, patch models.HistoryPatch) (*models.HistoryEntry, error)
	DeactivateHistoryEntry(ctx context.Context, id uint64) error
}

type LockerQueries interface {
	GetLocker(ctx context.Context, id uint64) (*models.Locker, error)
	GetLockerByUserID(ctx context.Context, userID int64) (*models.Locker, error)
	// ListAssignments returns active assignments, all lockers when lockerID is nil.
	ListAssignments(ctx context.Context, lockerID *uint64) ([]*models.Assignment, error)
	GetAssignment(ctx context.Context, id uint64) (*models.Assignment, error)
	ActiveAssignmentForPackage(ctx context.Context, packageID uint64) (*models.Assignment, error)
	CreateAssignment(ctx context.Context, in models.AssignmentCreate) (*models.Assignment, error)
	UpdateAssignment(ctx context.Context, id uint64, patch models.AssignmentPatch) (*models.Assignment, error)
	DeactivateAssignment(ctx context.Context, id uint64) error
}

// Store adds transactions to Querier. fn receives a Querier bound to the
// transaction; returning an error rolls everything back.
type Store interface {
	Querier
	RunInTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}
