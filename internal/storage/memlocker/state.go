package memlocker

import (
	"context"
	"sort"

	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/pkg/errors"
)

type state struct {
	statuses    map[uint64]models.Status
	groups      map[uint64]models.Group
	packages    map[uint64]models.Package
	history     map[uint64]models.HistoryEntry
	lockers     map[uint64]models.Locker
	assignments map[uint64]models.Assignment

	statusSeq, groupSeq, packageSeq, historySeq, lockerSeq, assignmentSeq uint64

	failures map[string]error
}

func newState(failures map[string]error) *state {
	return &state{
		statuses:    map[uint64]models.Status{},
		groups:      map[uint64]models.Group{},
		packages:    map[uint64]models.Package{},
		history:     map[uint64]models.HistoryEntry{},
		lockers:     map[uint64]models.Locker{},
		assignments: map[uint64]models.Assignment{},
		failures:    failures,
	}
}

func cloneMap[V any](m map[uint64]V) map[uint64]V {
	out := make(map[uint64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	c := *st
	c.statuses = cloneMap(st.statuses)
	c.groups = cloneMap(st.groups)
	c.packages = cloneMap(st.packages)
	c.history = cloneMap(st.history)
	c.lockers = cloneMap(st.lockers)
	c.assignments = cloneMap(st.assignments)
	return &c
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (st *state) fail(op string) error {
	if err, ok := st.failures[op]; ok && err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// statuses

func (st *state) ListActiveStatuses(ctx context.Context) ([]*models.Status, error) {
	if err := st.fail("ListActiveStatuses"); err != nil {
		return nil, err
	}
	out := make([]*models.Status, 0)
	for _, id := range sortedKeys(st.statuses) {
		s := st.statuses[id]
		if s.Active {
			out = append(out, &s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return models.StatusLess(out[i], out[j]) })
	return out, nil
}

func (st *state) GetStatus(ctx context.Context, id uint64) (*models.Status, error) {
	if err := st.fail("GetStatus"); err != nil {
		return nil, err
	}
	s, ok := st.statuses[id]
	if !ok {
		return nil, notFound("select status")
	}
	return &s, nil
}

func (st *state) GetActiveStatusByName(ctx context.Context, name string) (*models.Status, error) {
	for _, id := range sortedKeys(st.statuses) {
		if s := st.statuses[id]; s.Active && s.Name == name {
			return &s, nil
		}
	}
	return nil, notFound("select status by name")
}

func (st *state) activeStatusNameTaken(name string, except uint64) bool {
	for id, s := range st.statuses {
		if id != except && s.Active && s.Name == name {
			return true
		}
	}
	return false
}

func (st *state) CreateStatus(ctx context.Context, in models.StatusCreate) (*models.Status, error) {
	if err := st.fail("CreateStatus"); err != nil {
		return nil, err
	}
	if st.activeStatusNameTaken(in.Name, 0) {
		return nil, duplicate("insert status")
	}
	st.statusSeq++
	s := models.Status{ID: st.statusSeq, Name: in.Name, DisplayOrder: in.DisplayOrder, Color: in.Color, Active: true}
	st.statuses[s.ID] = s
	return &s, nil
}

func (st *state) UpdateStatus(ctx context.Context, id uint64, patch models.StatusPatch) (*models.Status, error) {
	s, ok := st.statuses[id]
	if !ok || !s.Active {
		return nil, notFound("update status")
	}
	if patch.Name != nil {
		if st.activeStatusNameTaken(*patch.Name, id) {
			return nil, duplicate("update status")
		}
		s.Name = *patch.Name
	}
	if patch.DisplayOrder != nil {
		s.DisplayOrder = *patch.DisplayOrder
	}
	if patch.Color != nil {
		s.Color = *patch.Color
	}
	st.statuses[id] = s
	return &s, nil
}

func (st *state) DeactivateStatus(ctx context.Context, id uint64) error {
	s, ok := st.statuses[id]
	if !ok || !s.Active {
		return notFound("deactivate status")
	}
	s.Active = false
	st.statuses[id] = s
	return nil
}

// groups

func (st *state) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	keys := sortedKeys(st.groups)
	out := make([]*models.Group, 0)
	for i := len(keys) - 1; i >= 0; i-- {
		if g := st.groups[keys[i]]; g.Active {
			out = append(out, &g)
		}
	}
	return out, nil
}

func (st *state) GetGroup(ctx context.Context, id uint64) (*models.Group, error) {
	g, ok := st.groups[id]
	if !ok {
		return nil, notFound("select group")
	}
	return &g, nil
}

func (st *state) GetActiveGroupByName(ctx context.Context, name string) (*models.Group, error) {
	for _, id := range sortedKeys(st.groups) {
		if g := st.groups[id]; g.Active && g.Name == name {
			return &g, nil
		}
	}
	return nil, notFound("select group by name")
}

func (st *state) activeGroupNameTaken(name string, except uint64) bool {
	for id, g := range st.groups {
		if id != except && g.Active && g.Name == name {
			return true
		}
	}
	return false
}

func (st *state) CreateGroup(ctx context.Context, in models.GroupCreate) (*models.Group, error) {
	if st.activeGroupNameTaken(in.Name, 0) {
		return nil, duplicate("insert group")
	}
	st.groupSeq++
	g := models.Group{ID: st.groupSeq, Name: in.Name, StartDate: in.StartDate, EndDate: in.EndDate, Active: true}
	st.groups[g.ID] = g
	return &g, nil
}

func (st *state) UpdateGroup(ctx context.Context, id uint64, patch models.GroupPatch) (*models.Group, error) {
	g, ok := st.groups[id]
	if !ok || !g.Active {
		return nil, notFound("update group")
	}
	if patch.Name != nil {
		if st.activeGroupNameTaken(*patch.Name, id) {
			return nil, duplicate("update group")
		}
		g.Name = *patch.Name
	}
	if patch.StartDate != nil {
		g.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		g.EndDate = patch.EndDate
	}
	st.groups[id] = g
	return &g, nil
}

func (st *state) DeactivateGroup(ctx context.Context, id uint64) error {
	if err := st.fail("DeactivateGroup"); err != nil {
		return err
	}
	g, ok := st.groups[id]
	if !ok || !g.Active {
		return notFound("deactivate group")
	}
	g.Active = false
	st.groups[id] = g
	return nil
}

func (st *state) DeactivateGroupPackages(ctx context.Context, groupID uint64) ([]*models.Package, error) {
	out := make([]*models.Package, 0)
	for _, id := range sortedKeys(st.packages) {
		p := st.packages[id]
		if !p.Active || p.GroupID == nil || *p.GroupID != groupID {
			continue
		}
		p.Active = false
		st.packages[id] = p
		out = append(out, st.decoratePackage(p))
	}
	return out, nil
}

// packages

func (st *state) decoratePackage(p models.Package) *models.Package {
	p.CurrentStatus = nil
	if p.CurrentStatusID != nil {
		if s, ok := st.statuses[*p.CurrentStatusID]; ok {
			name := s.Name
			p.CurrentStatus = &name
		}
	}
	return &p
}

func (st *state) GetPackage(ctx context.Context, id uint64) (*models.Package, error) {
	if err := st.fail("GetPackage"); err != nil {
		return nil, err
	}
	p, ok := st.packages[id]
	if !ok {
		return nil, notFound("select package")
	}
	return st.decoratePackage(p), nil
}

func (st *state) LockPackage(ctx context.Context, id uint64) (*models.Package, error) {
	if err := st.fail("LockPackage"); err != nil {
		return nil, err
	}
	p, ok := st.packages[id]
	if !ok {
		return nil, notFound("lock package")
	}
	return st.decoratePackage(p), nil
}

func (st *state) FindPackageByTracking(ctx context.Context, trackingNumber string, activeOnly bool) (*models.Package, error) {
	if err := st.fail("FindPackageByTracking"); err != nil {
		return nil, err
	}
	var best *models.Package
	keys := sortedKeys(st.packages)
	for i := len(keys) - 1; i >= 0; i-- {
		p := st.packages[keys[i]]
		if p.TrackingNumber != trackingNumber || (activeOnly && !p.Active) {
			continue
		}
		if p.Active {
			return st.decoratePackage(p), nil
		}
		if best == nil {
			best = st.decoratePackage(p)
		}
	}
	if best == nil {
		return nil, notFound("select package by tracking")
	}
	return best, nil
}

func (st *state) ListActivePackages(ctx context.Context, f models.PackageFilter) ([]*models.Package, int, error) {
	if err := st.fail("ListActivePackages"); err != nil {
		return nil, 0, err
	}
	keys := sortedKeys(st.packages)
	matched := make([]*models.Package, 0)
	for i := len(keys) - 1; i >= 0; i-- {
		p := st.packages[keys[i]]
		if !p.Active {
			continue
		}
		if f.GroupID != nil && (p.GroupID == nil || *p.GroupID != *f.GroupID) {
			continue
		}
		matched = append(matched, st.decoratePackage(p))
	}
	total := len(matched)
	if f.Offset >= total {
		return []*models.Package{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (st *state) activeTrackingTaken(tracking string, except uint64) bool {
	for id, p := range st.packages {
		if id != except && p.Active && p.TrackingNumber == tracking {
			return true
		}
	}
	return false
}

func applyFields(p *models.Package, f models.PackageFields) {
	if f.Service != nil {
		p.Service = f.Service
	}
	if f.Carrier != nil {
		p.Carrier = f.Carrier
	}
	if f.Sender != nil {
		p.Sender = f.Sender
	}
	if f.WeightLB != nil {
		p.WeightLB = f.WeightLB
	}
	if f.ShipDate != nil {
		p.ShipDate = f.ShipDate
	}
	if f.CarrierReference != nil {
		p.CarrierReference = f.CarrierReference
	}
	if f.GroupID != nil {
		p.GroupID = f.GroupID
	}
}

func (st *state) CreatePackage(ctx context.Context, in models.PackageCreate) (*models.Package, error) {
	if err := st.fail("CreatePackage"); err != nil {
		return nil, err
	}
	if st.activeTrackingTaken(in.TrackingNumber, 0) {
		return nil, duplicate("insert package")
	}
	st.packageSeq++
	p := models.Package{
		ID:              st.packageSeq,
		TrackingNumber:  in.TrackingNumber,
		CurrentStatusID: in.StatusID,
		RegisteredAt:    in.RegisteredAt.UTC(),
		Active:          true,
	}
	applyFields(&p, in.PackageFields)
	st.packages[p.ID] = p
	return st.decoratePackage(p), nil
}

func (st *state) UpdatePackage(ctx context.Context, id uint64, patch models.PackagePatch) (*models.Package, error) {
	if err := st.fail("UpdatePackage"); err != nil {
		return nil, err
	}
	p, ok := st.packages[id]
	if !ok || !p.Active {
		return nil, notFound("update package")
	}
	if patch.TrackingNumber != nil {
		if st.activeTrackingTaken(*patch.TrackingNumber, id) {
			return nil, duplicate("update package")
		}
		p.TrackingNumber = *patch.TrackingNumber
	}
	applyFields(&p, patch.PackageFields)
	st.packages[id] = p
	return st.decoratePackage(p), nil
}

func (st *state) ReactivatePackage(ctx context.Context, id uint64, f models.PackageFields) (*models.Package, error) {
	if err := st.fail("ReactivatePackage"); err != nil {
		return nil, err
	}
	p, ok := st.packages[id]
	if !ok {
		return nil, notFound("reactivate package")
	}
	if !p.Active && st.activeTrackingTaken(p.TrackingNumber, id) {
		return nil, duplicate("reactivate package")
	}
	applyFields(&p, f)
	p.Active = true
	st.packages[id] = p
	return st.decoratePackage(p), nil
}

func (st *state) SetPackageStatus(ctx context.Context, id uint64, statusID *uint64) error {
	if err := st.fail("SetPackageStatus"); err != nil {
		return err
	}
	p, ok := st.packages[id]
	if !ok {
		return notFound("update package status")
	}
	p.CurrentStatusID = statusID
	st.packages[id] = p
	return nil
}

func (st *state) DeactivatePackage(ctx context.Context, id uint64) error {
	if err := st.fail("DeactivatePackage"); err != nil {
		return err
	}
	p, ok := st.packages[id]
	if !ok || !p.Active {
		return notFound("deactivate package")
	}
	p.Active = false
	st.packages[id] = p
	return nil
}

// history

func (st *state) decorateHistory(e models.HistoryEntry) *models.HistoryEntry {
	if p, ok := st.packages[e.PackageID]; ok {
		e.TrackingNumber = p.TrackingNumber
	}
	if s, ok := st.statuses[e.StatusID]; ok {
		e.StatusName = s.Name
		e.StatusColor = s.Color
	}
	return &e
}

func (st *state) ListActiveHistory(ctx context.Context) ([]*models.HistoryEntry, error) {
	keys := sortedKeys(st.history)
	out := make([]*models.HistoryEntry, 0)
	for i := len(keys) - 1; i >= 0; i-- {
		if e := st.history[keys[i]]; e.Active {
			out = append(out, st.decorateHistory(e))
		}
	}
	return out, nil
}

func (st *state) GetHistoryEntry(ctx context.Context, id uint64) (*models.HistoryEntry, error) {
	if err := st.fail("GetHistoryEntry"); err != nil {
		return nil, err
	}
	e, ok := st.history[id]
	if !ok {
		return nil, notFound("select history entry")
	}
	return st.decorateHistory(e), nil
}

func (st *state) ListPackageHistory(ctx context.Context, packageID uint64, includeInactive bool) ([]*models.HistoryEntry, error) {
	if err := st.fail("ListPackageHistory"); err != nil {
		return nil, err
	}
	out := make([]*models.HistoryEntry, 0)
	for _, id := range sortedKeys(st.history) {
		e := st.history[id]
		if e.PackageID == packageID && (e.Active || includeInactive) {
			out = append(out, st.decorateHistory(e))
		}
	}
	return out, nil
}

func (st *state) InsertHistoryEntry(ctx context.Context, in models.HistoryEntryCreate) (*models.HistoryEntry, error) {
	if err := st.fail("InsertHistoryEntry"); err != nil {
		return nil, err
	}
	if _, ok := st.packages[in.PackageID]; !ok {
		return nil, errors.New("insert history entry: package foreign key violation")
	}
	if _, ok := st.statuses[in.StatusID]; !ok {
		return nil, errors.New("insert history entry: status foreign key violation")
	}
	st.historySeq++
	e := models.HistoryEntry{
		ID:          st.historySeq,
		PackageID:   in.PackageID,
		StatusID:    in.StatusID,
		Observation: in.Observation,
		ChangeDate:  in.ChangeDate,
		ChangeTime:  in.ChangeTime,
		ActingUser:  in.ActingUser,
		Active:      true,
	}
	st.history[e.ID] = e
	return st.decorateHistory(e), nil
}

func (st *state) UpdateHistoryEntry(ctx context.Context, id uint64, patch models.HistoryPatch) (*models.HistoryEntry, error) {
	e, ok := st.history[id]
	if !ok || !e.Active {
		return nil, notFound("update history entry")
	}
	if patch.Observation != nil {
		e.Observation = patch.Observation
	}
	if patch.ChangeDate != nil {
		e.ChangeDate = *patch.ChangeDate
	}
	if patch.ChangeTime != nil {
		e.ChangeTime = *patch.ChangeTime
	}
	if patch.ActingUser != nil {
		e.ActingUser = patch.ActingUser
	}
	st.history[id] = e
	return st.decorateHistory(e), nil
}

func (st *state) DeactivateHistoryEntry(ctx context.Context, id uint64) error {
	if err := st.fail("DeactivateHistoryEntry"); err != nil {
		return err
	}
	e, ok := st.history[id]
	if !ok || !e.Active {
		return notFound("deactivate history entry")
	}
	e.Active = false
	st.history[id] = e
	return nil
}

// lockers

func (st *state) GetLocker(ctx context.Context, id uint64) (*models.Locker, error) {
	l, ok := st.lockers[id]
	if !ok {
		return nil, notFound("select locker")
	}
	return &l, nil
}

func (st *state) GetLockerByUserID(ctx context.Context, userID int64) (*models.Locker, error) {
	for _, id := range sortedKeys(st.lockers) {
		if l := st.lockers[id]; l.Active && l.UserID == userID {
			return &l, nil
		}
	}
	return nil, notFound("select locker by user")
}

func (st *state) decorateAssignment(a models.Assignment) *models.Assignment {
	if p, ok := st.packages[a.PackageID]; ok {
		a.TrackingNumber = p.TrackingNumber
		a.CurrentStatus = st.decoratePackage(p).CurrentStatus
	}
	if l, ok := st.lockers[a.LockerID]; ok {
		a.LockerCode = l.Code
	}
	return &a
}

func (st *state) ListAssignments(ctx context.Context, lockerID *uint64) ([]*models.Assignment, error) {
	keys := sortedKeys(st.assignments)
	out := make([]*models.Assignment, 0)
	for i := len(keys) - 1; i >= 0; i-- {
		a := st.assignments[keys[i]]
		if !a.Active || (lockerID != nil && a.LockerID != *lockerID) {
			continue
		}
		out = append(out, st.decorateAssignment(a))
	}
	return out, nil
}

func (st *state) GetAssignment(ctx context.Context, id uint64) (*models.Assignment, error) {
	a, ok := st.assignments[id]
	if !ok {
		return nil, notFound("select assignment")
	}
	return st.decorateAssignment(a), nil
}

func (st *state) ActiveAssignmentForPackage(ctx context.Context, packageID uint64) (*models.Assignment, error) {
	for _, id := range sortedKeys(st.assignments) {
		if a := st.assignments[id]; a.Active && a.PackageID == packageID {
			return st.decorateAssignment(a), nil
		}
	}
	return nil, notFound("select package assignment")
}

func (st *state) packageAssigned(packageID, except uint64) bool {
	for id, a := range st.assignments {
		if id != except && a.Active && a.PackageID == packageID {
			return true
		}
	}
	return false
}

func (st *state) CreateAssignment(ctx context.Context, in models.AssignmentCreate) (*models.Assignment, error) {
	if st.packageAssigned(in.PackageID, 0) {
		return nil, duplicate("insert assignment")
	}
	st.assignmentSeq++
	a := models.Assignment{
		ID:          st.assignmentSeq,
		PackageID:   in.PackageID,
		LockerID:    in.LockerID,
		WeightLB:    in.WeightLB,
		Observation: in.Observation,
		AssignedAt:  in.AssignedAt.UTC(),
		Active:      true,
	}
	st.assignments[a.ID] = a
	return st.decorateAssignment(a), nil
}

func (st *state) UpdateAssignment(ctx context.Context, id uint64, patch models.AssignmentPatch) (*models.Assignment, error) {
	a, ok := st.assignments[id]
	if !ok || !a.Active {
		return nil, notFound("update assignment")
	}
	if patch.PackageID != nil {
		if st.packageAssigned(*patch.PackageID, id) {
			return nil, duplicate("update assignment")
		}
		a.PackageID = *patch.PackageID
	}
	if patch.LockerID != nil {
		a.LockerID = *patch.LockerID
	}
	if patch.WeightLB != nil {
		a.WeightLB = patch.WeightLB
	}
	if patch.Observation != nil {
		a.Observation = patch.Observation
	}
	st.assignments[id] = a
	return st.decorateAssignment(a), nil
}

func (st *state) DeactivateAssignment(ctx context.Context, id uint64) error {
	a, ok := st.assignments[id]
	if !ok || !a.Active {
		return notFound("deactivate assignment")
	}
	a.Active = false
	st.assignments[id] = a
	return nil
}
