package admission

import (
	"context"
	"errors"
	"log"

	"github.com/iliyamo/lab-access-control/internal/model"
	"github.com/iliyamo/lab-access-control/internal/policy"
	"github.com/iliyamo/lab-access-control/internal/repository"
)

// EnterResult reports the outcome of an area entry.
type EnterResult struct {
	Record          model.AreaAccessRecord
	AlreadyLoggedIn bool    // user was already IN this area; no new record
	PreviousAreaID  *uint64 // area the user was auto-logged-out of, if any
}

// ExitResult reports the outcome of an area exit.
type ExitResult struct {
	Record           model.AreaAccessRecord
	AlreadyLoggedOut bool              // user held no open record; nothing closed
	BusyTools        []model.UsageEvent // tools the user left running
}

// EnterArea logs the user into the area, billed to projectID.  Entering
// an area the user is already in is benign and reported through
// AlreadyLoggedIn.  Entering a different area first closes the open
// record there, so the at-most-one-open-record invariant holds across
// areas without requiring an explicit logout in between.
func (s *Service) EnterArea(ctx context.Context, userID, areaID, projectID uint64) (EnterResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return EnterResult{}, err
	}
	return s.enter(ctx, user, areaID, projectID)
}

// EnterThroughDoor is the badge-reader flow: the badge resolves the
// user, the door resolves the area, and on success the door strike is
// released for a short window before being commanded locked again.
// The strike is released only after every policy check passes, and the
// access record is opened only after the release succeeds, so a record
// never exists for a door that stayed shut.
func (s *Service) EnterThroughDoor(ctx context.Context, badgeNumber, doorID, projectID uint64) (EnterResult, error) {
	user, err := s.users.GetByBadge(ctx, badgeNumber)
	if err != nil {
		return EnterResult{}, err
	}
	door, err := s.areas.GetDoor(ctx, doorID)
	if err != nil {
		return EnterResult{}, err
	}
	area, err := s.areas.GetByID(ctx, door.AreaID)
	if err != nil {
		return EnterResult{}, err
	}
	if err := s.checkEntry(ctx, user, area, projectID); err != nil {
		return EnterResult{}, err
	}

	il, err := s.interlocks.GetByID(ctx, door.InterlockID)
	if err != nil {
		return EnterResult{}, err
	}
	if err := s.locker.Unlock(ctx, il); err != nil {
		return EnterResult{}, err
	}
	s.relock(s.doorOpenFor, func() {
		// Detached from the request: the strike must re-engage even if
		// the badge-in response has long been sent.
		if err := s.locker.Lock(context.Background(), il); err != nil {
			log.Printf("admission: relocking door interlock %d: %v", il.ID, err)
		}
	})

	return s.enter(ctx, user, area.ID, projectID)
}

// SelfLogIn is the kiosk self-service entry flow.  It is gated by the
// self-log-in toggle; badge readers and staff remain unaffected by the
// toggle.
func (s *Service) SelfLogIn(ctx context.Context, userID, areaID, projectID uint64) (EnterResult, error) {
	if !s.toggles(ctx).SelfLogIn {
		return EnterResult{}, repository.ErrForbidden
	}
	return s.EnterArea(ctx, userID, areaID, projectID)
}

// enter runs the policy checks and opens the record, handling the
// already-in and in-another-area cases first.
func (s *Service) enter(ctx context.Context, user model.User, areaID, projectID uint64) (EnterResult, error) {
	var result EnterResult

	current, err := s.records.Current(ctx, user.ID)
	switch {
	case err == nil && current.AreaID == areaID:
		result.Record = current
		result.AlreadyLoggedIn = true
		return result, nil
	case err == nil:
		// Badging into a new area implies leaving the old one.
		if _, err := s.records.Close(ctx, user.ID, s.now()); err != nil && !errors.Is(err, repository.ErrNotCurrentlyIn) {
			return EnterResult{}, err
		}
		prev := current.AreaID
		result.PreviousAreaID = &prev
	case !errors.Is(err, repository.ErrNotCurrentlyIn):
		return EnterResult{}, err
	}

	area, err := s.areas.GetByID(ctx, areaID)
	if err != nil {
		return EnterResult{}, err
	}
	if err := s.checkEntry(ctx, user, area, projectID); err != nil {
		return EnterResult{}, err
	}

	record, err := s.records.Open(ctx, user.ID, areaID, projectID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrOpenRecordExists) {
			// Lost a race with a concurrent entry; report whatever won.
			if cur, curErr := s.records.Current(ctx, user.ID); curErr == nil && cur.AreaID == areaID {
				result.Record = cur
				result.AlreadyLoggedIn = true
				return result, nil
			}
		}
		return EnterResult{}, err
	}
	result.Record = record
	return result, nil
}

// checkEntry runs the full entry policy in priority order: user-level
// preconditions, then project authorization, then the per-area check
// against a fresh snapshot.
func (s *Service) checkEntry(ctx context.Context, user model.User, area model.Area, projectID uint64) error {
	snap, err := s.areaSnapshot(ctx, area)
	if err != nil {
		return err
	}
	now := s.now()
	if d := s.eval.CheckEnterAnyArea(user, snap.StaffLevels, now); d != nil {
		return d
	}
	if !user.HasActiveProject(projectID) {
		return &policy.Denial{Reason: policy.ReasonProjectNotAuthorized, UserID: user.ID}
	}
	if d := s.eval.CheckEnterArea(user, snap, now); d != nil {
		return d
	}
	return nil
}

// ExitArea logs the user out of whatever area they are in.  Exit is
// never policy-denied: anyone inside may always leave.  Leaving with
// tools still enabled is permitted but reported so the caller can warn
// the user.
func (s *Service) ExitArea(ctx context.Context, userID uint64) (ExitResult, error) {
	record, err := s.records.Close(ctx, userID, s.now())
	if errors.Is(err, repository.ErrNotCurrentlyIn) {
		return ExitResult{AlreadyLoggedOut: true}, nil
	}
	if err != nil {
		return ExitResult{}, err
	}
	busy, err := s.usage.OpenForUser(ctx, userID)
	if err != nil {
		// The logout itself succeeded; the warning is best effort.
		log.Printf("admission: listing open usage events for user %d: %v", userID, err)
		busy = nil
	}
	return ExitResult{Record: record, BusyTools: busy}, nil
}

// SelfLogOut is the kiosk self-service exit flow, gated by the
// self-log-out toggle.
func (s *Service) SelfLogOut(ctx context.Context, userID uint64) (ExitResult, error) {
	if !s.toggles(ctx).SelfLogOut {
		return ExitResult{}, repository.ErrForbidden
	}
	return s.ExitArea(ctx, userID)
}

// ForceExit lets a staff member log another user out, e.g. when a
// badge-out was missed.  Non-staff callers get ErrForbidden.
func (s *Service) ForceExit(ctx context.Context, staffID, userID uint64) (ExitResult, error) {
	staff, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		return ExitResult{}, err
	}
	if !staff.IsStaff {
		return ExitResult{}, repository.ErrForbidden
	}
	return s.ExitArea(ctx, userID)
}

// ChangeProject switches the billing project of the user's open access
// record without breaking their presence: the current record is closed
// and a new one opened at the same instant, atomically.
func (s *Service) ChangeProject(ctx context.Context, userID, newProjectID uint64) (model.AreaAccessRecord, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	if !user.HasActiveProject(newProjectID) {
		return model.AreaAccessRecord{}, &policy.Denial{Reason: policy.ReasonProjectNotAuthorized, UserID: user.ID}
	}
	current, err := s.records.Current(ctx, userID)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	if current.ProjectID == newProjectID {
		return current, nil
	}
	return s.records.SwitchProject(ctx, userID, newProjectID, s.now())
}

// AreaStatus reports an area's occupants and capacity.
type AreaStatus struct {
	Area      model.Area
	Occupants []model.AreaAccessRecord
}

// Occupancy returns who is currently inside the area.
func (s *Service) Occupancy(ctx context.Context, areaID uint64) (AreaStatus, error) {
	area, err := s.areas.GetByID(ctx, areaID)
	if err != nil {
		return AreaStatus{}, err
	}
	occupants, err := s.records.OpenByArea(ctx, areaID)
	if err != nil {
		return AreaStatus{}, err
	}
	return AreaStatus{Area: area, Occupants: occupants}, nil
}
