// Package memlocker is an in-memory storage.Store. Transactions are
// serialized and roll back by restoring a snapshot.
package memlocker

import (
	"context"
	"sync"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage"
	"github.com/pkg/errors"
)

type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	s := &Store{failures: map[string]error{}}
	s.st = newState(s.failures)
	return s
}

// FailOn makes every later call of op return err. Used to exercise
// storage failure paths.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// AddLocker provisions a locker the way the account workflow would.
func (s *Store) AddLocker(l models.Locker) *models.Locker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.lockerSeq++
	l.ID = s.st.lockerSeq
	s.st.lockers[l.ID] = l
	return &l
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, q storage.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func with[T any](s *Store, fn func(st *state) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func exec(s *Store, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func notFound(op string) error { return errors.Wrap(models.ErrNotFound, op) }

func duplicate(op string) error { return errors.Wrap(models.ErrDuplicate, op) }

func (s *Store) ListActiveStatuses(ctx context.Context) ([]*models.Status, error) {
	return with(s, func(st *state) ([]*models.Status, error) { return st.ListActiveStatuses(ctx) })
}

func (s *Store) GetStatus(ctx context.Context, id uint64) (*models.Status, error) {
	return with(s, func(st *state) (*models.Status, error) { return st.GetStatus(ctx, id) })
}

func (s *Store) GetActiveStatusByName(ctx context.Context, name string) (*models.Status, error) {
	return with(s, func(st *state) (*models.Status, error) { return st.GetActiveStatusByName(ctx, name) })
}

func (s *Store) CreateStatus(ctx context.Context, in models.StatusCreate) (*models.Status, error) {
	return with(s, func(st *state) (*models.Status, error) { return st.CreateStatus(ctx, in) })
}

func (s *Store) UpdateStatus(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error) {
	return with(s, func(st *state) (*models.Status, error) { return st.UpdateStatus(ctx, id, patch) })
}

func (s *Store) DeactivateStatus(ctx context.Context, id uint64) error {
	return exec(s, func(st *state) error { return st.DeactivateStatus(ctx, id) })
}

func (s *Store) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	return with(s, func(st *state) ([]*models.Group, error) { return st.ListActiveGroups(ctx) })
}

func (s *Store) GetGroup(ctx context.Context, id uint64) (*models.Group, error) {
	return with(s, func(st *state) (*models.Group, error) { return st.GetGroup(ctx, id) })
}

func (s *Store) GetActiveGroupByName(ctx context.Context, name string) (*models.Group, error) {
	return with(s, func(st *state) (*models.Group, error) { return st.GetActiveGroupByName(ctx, name) })
}

func (s *Store) CreateGroup(ctx context.Context, in models.GroupCreate) (*models.Group, error) {
	return with(s, func(st *state) (*models.Group, error) { return st.CreateGroup(ctx, in) })
}

func (s *Store) UpdateGroup(ctx context.Context, id uint64, patch models.GroupPatch) (*models.Group, error) {
	return with(s, func(st *state) (*models.Group, error) { return st.UpdateGroup(ctx, id, patch) })
}

func (s *Store) DeactivateGroup(ctx context.Context, id uint64) error {
	return exec(s, func(st *state) error { return st.DeactivateGroup(ctx, id) })
}

func (s *Store) DeactivateGroupPackages(ctx context.Context, groupID uint64) ([]*models.Package, error) {
	return with(s, func(st *state) ([]*models.Package, error) { return st.DeactivateGroupPackages(ctx, groupID) })
}

func (s *Store) GetPackage(ctx context.Context, id uint64) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) { return st.GetPackage(ctx, id) })
}

func (s *Store) LockPackage(ctx context.Context, id uint64) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) { return st.LockPackage(ctx, id) })
}

func (s *Store) FindPackageByTracking(ctx context.Context, trackingNumber string, activeOnly bool) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) {
		return st.FindPackageByTracking(ctx, trackingNumber, activeOnly)
	})
}

func (s *Store) ListActivePackages(ctx context.Context, f models.PackageFilter) ([]*models.Package, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListActivePackages(ctx, f)
}

func (s *Store) CreatePackage(ctx context.Context, in models.PackageCreate) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) { return st.CreatePackage(ctx, in) })
}

func (s *Store) UpdatePackage(ctx context.Context, id uint64, patch models.PackagePatch) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) { return st.UpdatePackage(ctx, id, patch) })
}

func (s *Store) ReactivatePackage(ctx context.Context, id uint64, fields models.PackageFields) (*models.Package, error) {
	return with(s, func(st *state) (*models.Package, error) { return st.ReactivatePackage(ctx, id, fields) })
}

func (s *Store) SetPackageStatus(ctx context.Context, id uint64, statusID *uint64) error {
	return exec(s, func(st *state) error { return st.SetPackageStatus(ctx, id, statusID) })
}

func (s *Store) DeactivatePackage(ctx context.Context, id uint64) error {
	return exec(s, func(st *state) error { return st.DeactivatePackage(ctx, id) })
}

func (s *Store) ListActiveHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	return with(s, func(st *state) ([]*models.HistoryEntry, error) { return st.ListActiveHistory(ctx) })
}

func (s *Store) GetHistoryEntry(ctx context.Context, id uint64) (*models.HistoryEntry, error) {
	return with(s, func(st *state) (*models.HistoryEntry, error) { return st.GetHistoryEntry(ctx, id) })
}

func (s *Store) ListPackageHistory(ctx context.Context, packageID uint64, includeInactive bool) ([]*models.HistoryEntry, error) {
	return with(s, func(st *state) ([]*models.HistoryEntry, error) {
		return st.ListPackageHistory(ctx, packageID, includeInactive)
	})
}

func (s *Store) InsertHistoryEntry(ctx context.Context, in models.HistoryEntryCreate) (*models.HistoryEntry, error) {
	return with(s, func(st *state) (*models.HistoryEntry, error) { return st.InsertHistoryEntry(ctx, in) })
}

func (s *Store) UpdateHistoryEntry(ctx context.Context, id uint64, patch models.HistoryPatch) (*models.HistoryEntry, error) {
	return with(s, func(st *state) (*models.HistoryEntry, error) { return st.UpdateHistoryEntry(ctx, id, patch) })
}

func (s *Store) DeactivateHistoryEntry(ctx context.Context, id uint64) error {
	return exec(s, func(st *state) error { return st.DeactivateHistoryEntry(ctx, id) })
}

func (s *Store) GetLocker(ctx context.Context, id uint64) (*models.Locker, error) {
	return with(s, func(st *state) (*models.Locker, error) { return st.GetLocker(ctx, id) })
}

func (s *Store) GetLockerByUserID(ctx context.Context, userID int64) (*models.Locker, error) {
	return with(s, func(st *state) (*models.Locker, error) { return st.GetLockerByUserID(ctx, userID) })
}

func (s *Store) ListAssignments(ctx context.Context, lockerID *uint64) ([]*models.Assignment, error) {
	return with(s, func(st *state) ([]*models.Assignment, error) { return st.ListAssignments(ctx, lockerID) })
}

func (s *Store) GetAssignment(ctx context.Context, id uint64) (*models.Assignment, error) {
	return with(s, func(st *state) (*models.Assignment, error) { return st.GetAssignment(ctx, id) })
}

func (s *Store) ActiveAssignmentForPackage(ctx context.Context, packageID uint64) (*models.Assignment, error) {
	return with(s, func(st *state) (*models.Assignment, error) { return st.ActiveAssignmentForPackage(ctx, packageID) })
}

func (s *Store) CreateAssignment(ctx context.Context, in models.AssignmentCreate) (*models.Assignment, error) {
	return with(s, func(st *state) (*models.Assignment, error) { return st.CreateAssignment(ctx, in) })
}

func (s *Store) UpdateAssignment(ctx context.Context, id uint64, patch models.AssignmentPatch) (*models.Assignment, error) {
	return with(s, func(st *state) (*models.Assignment, error) { return st.UpdateAssignment(ctx, id, patch) })
}

func (s *Store) DeactivateAssignment(ctx context.Context, id uint64) error {
	return exec(s, func(st *state) error { return st.DeactivateAssignment(ctx, id) })
}
