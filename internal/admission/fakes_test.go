package admission

// In-memory fakes backing the service tests.  The record and usage
// fakes enforce the same at-most-one-open semantics the MySQL unique
// indexes provide, so the tests exercise the service against honest
// storage behavior, concurrency included.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
	"github.com/iliyamo/lab-access-control/internal/repository"
)

var errTestHardware = errors.New("relay controller unreachable")

type memUsers struct {
	mu   sync.Mutex
	byID map[uint64]model.User
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{byID: make(map[uint64]model.User)}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByBadge(_ context.Context, badge uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.BadgeNumber != nil && *u.BadgeNumber == badge {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

type memAreas struct {
	areas       map[uint64]model.Area
	doors       map[uint64]model.Door
	staffLevels []model.PhysicalAccessLevel
}

func (m *memAreas) GetByID(_ context.Context, id uint64) (model.Area, error) {
	a, ok := m.areas[id]
	if !ok {
		return model.Area{}, repository.ErrNotFound
	}
	return a, nil
}

func (m *memAreas) GetDoor(_ context.Context, id uint64) (model.Door, error) {
	d, ok := m.doors[id]
	if !ok {
		return model.Door{}, repository.ErrNotFound
	}
	return d, nil
}

func (m *memAreas) StaffLevels(context.Context) ([]model.PhysicalAccessLevel, error) {
	return m.staffLevels, nil
}

type memTools struct {
	byID map[uint64]model.Tool
}

func (m *memTools) GetByID(_ context.Context, id uint64) (model.Tool, error) {
	t, ok := m.byID[id]
	if !ok {
		return model.Tool{}, repository.ErrNotFound
	}
	return t, nil
}

type memResources struct {
	unavailable map[uint64]model.Resource
}

func (m *memResources) Unavailable(_ context.Context, ids []uint64) ([]model.Resource, error) {
	var out []model.Resource
	for _, id := range ids {
		if r, ok := m.unavailable[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type memRecords struct {
	mu      sync.Mutex
	nextID  uint64
	records []model.AreaAccessRecord
}

func (m *memRecords) Open(_ context.Context, customerID, areaID, projectID uint64, start time.Time) (model.AreaAccessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CustomerID == customerID && r.End == nil {
			return model.AreaAccessRecord{}, repository.ErrOpenRecordExists
		}
	}
	m.nextID++
	rec := model.AreaAccessRecord{
		ID: m.nextID, CustomerID: customerID, AreaID: areaID, ProjectID: projectID, Start: start,
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memRecords) Current(_ context.Context, customerID uint64) (model.AreaAccessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CustomerID == customerID && r.End == nil {
			return r, nil
		}
	}
	return model.AreaAccessRecord{}, repository.ErrNotCurrentlyIn
}

func (m *memRecords) Close(_ context.Context, customerID uint64, end time.Time) (model.AreaAccessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.CustomerID == customerID && r.End == nil {
			e := end
			m.records[i].End = &e
			return m.records[i], nil
		}
	}
	return model.AreaAccessRecord{}, repository.ErrNotCurrentlyIn
}

func (m *memRecords) SwitchProject(_ context.Context, customerID, newProjectID uint64, at time.Time) (model.AreaAccessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.CustomerID == customerID && r.End == nil {
			e := at
			m.records[i].End = &e
			m.nextID++
			rec := model.AreaAccessRecord{
				ID: m.nextID, CustomerID: customerID, AreaID: r.AreaID, ProjectID: newProjectID, Start: at,
			}
			m.records = append(m.records, rec)
			return rec, nil
		}
	}
	return model.AreaAccessRecord{}, repository.ErrNotCurrentlyIn
}

func (m *memRecords) Occupancy(_ context.Context, areaID uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.AreaID == areaID && r.End == nil {
			n++
		}
	}
	return n, nil
}

func (m *memRecords) OpenByArea(_ context.Context, areaID uint64) ([]model.AreaAccessRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AreaAccessRecord
	for _, r := range m.records {
		if r.AreaID == areaID && r.End == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) openCount(customerID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.CustomerID == customerID && r.End == nil {
			n++
		}
	}
	return n
}

type memUsage struct {
	mu     sync.Mutex
	nextID uint64
	events []model.UsageEvent
}

func (m *memUsage) Open(_ context.Context, toolID, operatorID, userID, projectID uint64, start time.Time) (model.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ToolID == toolID && e.End == nil {
			return model.UsageEvent{}, repository.ErrToolInUse
		}
	}
	m.nextID++
	ev := model.UsageEvent{
		ID: m.nextID, ToolID: toolID, OperatorID: operatorID, UserID: userID, ProjectID: projectID, Start: start,
	}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *memUsage) CurrentForTool(_ context.Context, toolID uint64) (model.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ToolID == toolID && e.End == nil {
			return e, nil
		}
	}
	return model.UsageEvent{}, repository.ErrToolNotInUse
}

func (m *memUsage) OpenForUser(_ context.Context, userID uint64) ([]model.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UsageEvent
	for _, e := range m.events {
		if e.UserID == userID && e.End == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memUsage) DelayedLogoffInEffect(_ context.Context, toolID uint64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ToolID == toolID && e.End != nil && e.End.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsage) Close(_ context.Context, eventID uint64, end time.Time, runData string) (model.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e.ID == eventID && e.End == nil {
			t := end
			m.events[i].End = &t
			m.events[i].RunData = runData
			return m.events[i], nil
		}
	}
	return model.UsageEvent{}, repository.ErrToolNotInUse
}

type memReservations struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Reservation
}

func newMemReservations(res ...model.Reservation) *memReservations {
	m := &memReservations{byID: make(map[uint64]model.Reservation)}
	for _, r := range res {
		m.byID[r.ID] = r
		if r.ID > m.nextID {
			m.nextID = r.ID
		}
	}
	return m
}

func (m *memReservations) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (m *memReservations) CurrentForUserAndTool(_ context.Context, userID, toolID uint64, now time.Time) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.UserID == userID && r.ToolID == toolID && r.Covers(now) {
			return r, nil
		}
	}
	return model.Reservation{}, repository.ErrNotFound
}

func (m *memReservations) CurrentForTool(_ context.Context, toolID uint64, now time.Time) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.ToolID == toolID && r.Covers(now) {
			return r, nil
		}
	}
	return model.Reservation{}, repository.ErrNotFound
}

func (m *memReservations) Shorten(_ context.Context, reservationID uint64, newEnd time.Time) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[reservationID]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	if r.Shortened {
		if r.DescendantID != nil {
			return m.byID[*r.DescendantID], nil
		}
		return r, nil
	}
	m.nextID++
	clone := r
	clone.ID = m.nextID
	clone.End = newEnd
	m.byID[clone.ID] = clone
	r.Shortened = true
	id := clone.ID
	r.DescendantID = &id
	m.byID[r.ID] = r
	return clone, nil
}

func (m *memReservations) Cancel(_ context.Context, reservationID, cancelledBy uint64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[reservationID]
	if !ok || r.Cancelled {
		return repository.ErrNotFound
	}
	r.Cancelled = true
	by := cancelledBy
	r.CancelledByID = &by
	t := at
	r.CancellationTime = &t
	m.byID[r.ID] = r
	return nil
}

type memInterlocks struct {
	byID     map[uint64]model.Interlock
	byTool   map[uint64]uint64 // tool ID -> interlock ID
	attached []model.Interlock
	inUse    []bool
}

func (m *memInterlocks) GetByID(_ context.Context, id uint64) (model.Interlock, error) {
	il, ok := m.byID[id]
	if !ok {
		return model.Interlock{}, repository.ErrNotFound
	}
	return il, nil
}

func (m *memInterlocks) ForTool(_ context.Context, toolID uint64) (model.Interlock, error) {
	id, ok := m.byTool[toolID]
	if !ok {
		return model.Interlock{}, repository.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memInterlocks) ToolAttached(context.Context) ([]model.Interlock, []bool, error) {
	return m.attached, m.inUse, nil
}

// fakeLocker records every command and optionally fails.
type fakeLocker struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (l *fakeLocker) record(verb string, il model.Interlock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.commands = append(l.commands, fmt.Sprintf("%s:%d", verb, il.ID))
	return nil
}

func (l *fakeLocker) Lock(_ context.Context, il model.Interlock) error {
	return l.record("lock", il)
}

func (l *fakeLocker) Unlock(_ context.Context, il model.Interlock) error {
	return l.record("unlock", il)
}

func (l *fakeLocker) issued() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commands...)
}

// fakeNotifier counts notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	shortened []model.Reservation
	cancelled []model.Reservation
	denied    []model.Tool
}

func (n *fakeNotifier) ReservationShortened(_ context.Context, _, descendant model.Reservation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shortened = append(n.shortened, descendant)
}

func (n *fakeNotifier) ReservationCancelled(_ context.Context, res model.Reservation, _ model.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, res)
}

func (n *fakeNotifier) UnauthorizedToolAccess(_ context.Context, _ model.User, tool model.Tool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied = append(n.denied, tool)
}
