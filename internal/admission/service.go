// Package admission orchestrates the physical-access state machine:
// policy evaluation, interlock actuation and record mutation composed
// into single logical operations.  Each (user, area) pair is either
// OUT (no open access record) or IN (exactly one), and each tool is
// DISABLED or ENABLED (no open usage event / exactly one).  The
// storage layer's unique indexes backstop both invariants under
// concurrent requests.
package admission

import (
	"context"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
	"github.com/iliyamo/lab-access-control/internal/policy"
)

// UserStore resolves users with the relations policy checks need.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByBadge(ctx context.Context, badgeNumber uint64) (model.User, error)
}

// AreaStore resolves areas, doors and staff-wide access levels.
type AreaStore interface {
	GetByID(ctx context.Context, id uint64) (model.Area, error)
	GetDoor(ctx context.Context, id uint64) (model.Door, error)
	StaffLevels(ctx context.Context) ([]model.PhysicalAccessLevel, error)
}

// ToolStore resolves tools.
type ToolStore interface {
	GetByID(ctx context.Context, id uint64) (model.Tool, error)
}

// ResourceStore reads shared-infrastructure availability at decision
// time.
type ResourceStore interface {
	Unavailable(ctx context.Context, ids []uint64) ([]model.Resource, error)
}

// AccessRecordStore mutates area access records.  Open must fail
// atomically when the customer already has an open record anywhere.
type AccessRecordStore interface {
	Open(ctx context.Context, customerID, areaID, projectID uint64, start time.Time) (model.AreaAccessRecord, error)
	Current(ctx context.Context, customerID uint64) (model.AreaAccessRecord, error)
	Close(ctx context.Context, customerID uint64, end time.Time) (model.AreaAccessRecord, error)
	SwitchProject(ctx context.Context, customerID, newProjectID uint64, at time.Time) (model.AreaAccessRecord, error)
	Occupancy(ctx context.Context, areaID uint64) (int, error)
	OpenByArea(ctx context.Context, areaID uint64) ([]model.AreaAccessRecord, error)
}

// UsageEventStore mutates tool usage events.
type UsageEventStore interface {
	Open(ctx context.Context, toolID, operatorID, userID, projectID uint64, start time.Time) (model.UsageEvent, error)
	CurrentForTool(ctx context.Context, toolID uint64) (model.UsageEvent, error)
	OpenForUser(ctx context.Context, userID uint64) ([]model.UsageEvent, error)
	Close(ctx context.Context, eventID uint64, end time.Time, runData string) (model.UsageEvent, error)
	DelayedLogoffInEffect(ctx context.Context, toolID uint64, now time.Time) (bool, error)
}

// ReservationStore mutates reservations for the consistency helper.
type ReservationStore interface {
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	CurrentForUserAndTool(ctx context.Context, userID, toolID uint64, now time.Time) (model.Reservation, error)
	CurrentForTool(ctx context.Context, toolID uint64, now time.Time) (model.Reservation, error)
	Shorten(ctx context.Context, reservationID uint64, newEnd time.Time) (model.Reservation, error)
	Cancel(ctx context.Context, reservationID, cancelledBy uint64, at time.Time) error
}

// InterlockStore resolves interlocks for doors and tools.
type InterlockStore interface {
	GetByID(ctx context.Context, id uint64) (model.Interlock, error)
	ForTool(ctx context.Context, toolID uint64) (model.Interlock, error)
	ToolAttached(ctx context.Context) ([]model.Interlock, []bool, error)
}

// Locker actuates interlock hardware.  Calls are bounded by their own
// timeouts so a slow device never blocks decisions for other doors or
// tools.
type Locker interface {
	Lock(ctx context.Context, il model.Interlock) error
	Unlock(ctx context.Context, il model.Interlock) error
}

// Notifier is the fire-and-forget side channel for reservation changes
// and abuse reports.  Implementations must never fail an admission
// decision: errors are logged and dropped.
type Notifier interface {
	ReservationShortened(ctx context.Context, original, descendant model.Reservation)
	ReservationCancelled(ctx context.Context, res model.Reservation, cancelledBy model.User)
	UnauthorizedToolAccess(ctx context.Context, operator model.User, tool model.Tool)
}

// Service is the admission state machine.  All methods are safe for
// concurrent use; operations on the same user or tool serialize on the
// storage layer's row locks and unique indexes.
type Service struct {
	users        UserStore
	areas        AreaStore
	tools        ToolStore
	resources    ResourceStore
	records      AccessRecordStore
	usage        UsageEventStore
	reservations ReservationStore
	interlocks   InterlockStore
	locker       Locker
	notifier     Notifier
	eval         *policy.Evaluator
	toggles      func(ctx context.Context) policy.Toggles

	doorOpenFor time.Duration
	now         func() time.Time
	relock      func(d time.Duration, f func()) // time.AfterFunc, replaceable in tests
}

// Config wires a Service.
type Config struct {
	Users        UserStore
	Areas        AreaStore
	Tools        ToolStore
	Resources    ResourceStore
	Records      AccessRecordStore
	Usage        UsageEventStore
	Reservations ReservationStore
	Interlocks   InterlockStore
	Locker       Locker
	Notifier     Notifier
	Evaluator    *policy.Evaluator

	// Toggles, when set, is consulted fresh on every self-service
	// request so staff can flip the switches without a restart.  When
	// nil the evaluator's static toggles apply.
	Toggles func(ctx context.Context) policy.Toggles

	// DoorOpenFor is how long a door strike stays released after a
	// successful badge-in before the service commands it locked again.
	DoorOpenFor time.Duration
}

// NewService builds the admission service.
func NewService(cfg Config) *Service {
	doorOpen := cfg.DoorOpenFor
	if doorOpen <= 0 {
		doorOpen = 8 * time.Second
	}
	toggles := cfg.Toggles
	if toggles == nil {
		toggles = func(context.Context) policy.Toggles { return cfg.Evaluator.Toggles() }
	}
	return &Service{
		users:        cfg.Users,
		areas:        cfg.Areas,
		tools:        cfg.Tools,
		resources:    cfg.Resources,
		records:      cfg.Records,
		usage:        cfg.Usage,
		reservations: cfg.Reservations,
		interlocks:   cfg.Interlocks,
		locker:       cfg.Locker,
		notifier:     cfg.Notifier,
		eval:         cfg.Evaluator,
		toggles:      toggles,
		doorOpenFor:  doorOpen,
		now:          func() time.Time { return time.Now().UTC() },
		relock: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// areaSnapshot gathers the live inputs for an entry decision.
func (s *Service) areaSnapshot(ctx context.Context, area model.Area) (policy.AreaSnapshot, error) {
	occupancy, err := s.records.Occupancy(ctx, area.ID)
	if err != nil {
		return policy.AreaSnapshot{}, err
	}
	unavailable, err := s.resources.Unavailable(ctx, area.RequiredResourceIDs)
	if err != nil {
		return policy.AreaSnapshot{}, err
	}
	staffLevels, err := s.areas.StaffLevels(ctx)
	if err != nil {
		return policy.AreaSnapshot{}, err
	}
	return policy.AreaSnapshot{
		Area:        area,
		Occupancy:   occupancy,
		Unavailable: unavailable,
		StaffLevels: staffLevels,
	}, nil
}
