package admission

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
	"github.com/iliyamo/lab-access-control/internal/policy"
	"github.com/iliyamo/lab-access-control/internal/repository"
)

// EnableResult reports the outcome of a tool enable.
type EnableResult struct {
	Event model.UsageEvent
}

// DisableResult reports the outcome of a tool disable.
type DisableResult struct {
	Event       model.UsageEvent
	AlreadyIdle bool               // tool had no open usage event
	Shortened   *model.Reservation // descendant reservation, when one was shortened
}

// EnableTool starts a usage session on the tool.  operatorID is who is
// physically at the tool; userID/projectID is who and what the session
// is billed to (staff may operate on behalf of another user).  When the
// tool is interlocked the hardware is energized before the event is
// opened, so an open event always corresponds to a powered tool.
func (s *Service) EnableTool(ctx context.Context, toolID, operatorID, userID, projectID uint64) (EnableResult, error) {
	operator, err := s.users.GetByID(ctx, operatorID)
	if err != nil {
		return EnableResult{}, err
	}
	user := operator
	if userID != operatorID {
		if user, err = s.users.GetByID(ctx, userID); err != nil {
			return EnableResult{}, err
		}
	}
	tool, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		return EnableResult{}, err
	}

	snap, err := s.toolSnapshot(ctx, tool, operator)
	if err != nil {
		return EnableResult{}, err
	}
	if d := s.eval.CheckEnableTool(snap, operator, user, projectID); d != nil {
		// Trying to run an interlocked tool from outside its required
		// area is reported so staff can follow up on circumvention
		// attempts; other denials are routine.
		if d.Reason == policy.ReasonAreaAccessRequired && tool.InterlockID != nil && s.notifier != nil {
			s.notifier.UnauthorizedToolAccess(ctx, operator, tool)
		}
		return EnableResult{}, d
	}

	if tool.InterlockID != nil {
		il, err := s.interlocks.ForTool(ctx, toolID)
		if err != nil {
			return EnableResult{}, err
		}
		if err := s.locker.Unlock(ctx, il); err != nil {
			return EnableResult{}, err
		}
	}

	event, err := s.usage.Open(ctx, toolID, operatorID, userID, projectID, s.now())
	if err != nil {
		return EnableResult{}, err
	}

	s.cancelBypassedReservation(ctx, tool, user)
	return EnableResult{Event: event}, nil
}

// DisableTool ends the tool's open usage session.  downtime extends the
// logical end of the session past the physical shutoff, for tools whose
// runs finish unattended.  A disable on an idle tool is benign.  The
// interlock is de-energized before the event is closed, so a closed
// event always corresponds to a powered-down tool.
func (s *Service) DisableTool(ctx context.Context, toolID, operatorID uint64, downtime time.Duration, runData string) (DisableResult, error) {
	tool, err := s.tools.GetByID(ctx, toolID)
	if err != nil {
		return DisableResult{}, err
	}
	event, err := s.usage.CurrentForTool(ctx, toolID)
	if errors.Is(err, repository.ErrToolNotInUse) {
		return DisableResult{AlreadyIdle: true}, nil
	}
	if err != nil {
		return DisableResult{}, err
	}
	operator, err := s.users.GetByID(ctx, operatorID)
	if err != nil {
		return DisableResult{}, err
	}
	delayed, err := s.usage.DelayedLogoffInEffect(ctx, toolID, s.now())
	if err != nil {
		return DisableResult{}, err
	}
	if d := s.eval.CheckDisableTool(tool, event, operator, downtime, delayed); d != nil {
		return DisableResult{}, d
	}

	if tool.InterlockID != nil {
		il, err := s.interlocks.ForTool(ctx, toolID)
		if err != nil {
			return DisableResult{}, err
		}
		if err := s.locker.Lock(ctx, il); err != nil {
			return DisableResult{}, err
		}
	}

	// Reservation bookkeeping happens only once the hardware is down: a
	// fault above aborts the disable with the reservation untouched.
	var result DisableResult
	if !operator.IsStaff {
		result.Shortened = s.shortenCoveringReservation(ctx, operator, toolID, downtime)
	}

	end := s.now().Add(downtime)
	closed, err := s.usage.Close(ctx, event.ID, end, runData)
	if err != nil {
		return DisableResult{}, err
	}
	result.Event = closed
	return result, nil
}

// toolSnapshot gathers the live inputs for an enable decision.
func (s *Service) toolSnapshot(ctx context.Context, tool model.Tool, operator model.User) (snap policy.ToolSnapshot, err error) {
	snap.Tool = tool
	if event, evErr := s.usage.CurrentForTool(ctx, tool.ID); evErr == nil {
		snap.CurrentEvent = &event
	} else if !errors.Is(evErr, repository.ErrToolNotInUse) {
		return snap, evErr
	}
	if snap.DelayedLogoff, err = s.usage.DelayedLogoffInEffect(ctx, tool.ID, s.now()); err != nil {
		return snap, err
	}
	if snap.Unavailable, err = s.resources.Unavailable(ctx, tool.RequiredResourceIDs); err != nil {
		return snap, err
	}
	if tool.RequiresAreaAccess != nil {
		area, areaErr := s.areas.GetByID(ctx, *tool.RequiresAreaAccess)
		if areaErr != nil {
			return snap, areaErr
		}
		snap.AreaName = area.Name
		record, recErr := s.records.Current(ctx, operator.ID)
		if recErr == nil {
			snap.OperatorIn = record.AreaID == area.ID
		} else if !errors.Is(recErr, repository.ErrNotCurrentlyIn) {
			return snap, recErr
		}
	}
	return snap, nil
}

// cancelBypassedReservation handles an enable that walks over someone
// else's live reservation: the stale reservation is cancelled and the
// holder notified, keeping the calendar honest about who actually has
// the tool.
func (s *Service) cancelBypassedReservation(ctx context.Context, tool model.Tool, user model.User) {
	res, err := s.reservations.CurrentForTool(ctx, tool.ID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("admission: checking reservations for tool %d: %v", tool.ID, err)
		}
		return
	}
	if res.UserID == user.ID {
		return
	}
	if err := s.reservations.Cancel(ctx, res.ID, user.ID, s.now()); err != nil {
		log.Printf("admission: cancelling bypassed reservation %d: %v", res.ID, err)
		return
	}
	if s.notifier != nil {
		s.notifier.ReservationCancelled(ctx, res, user)
	}
}

// shortenCoveringReservation releases the unused tail of the operator's
// live reservation when they finish early, so others can book the
// freed time.  The reservation keeps the requested downtime.  Failures
// here never fail the disable: the usage event is the source of truth.
func (s *Service) shortenCoveringReservation(ctx context.Context, operator model.User, toolID uint64, downtime time.Duration) *model.Reservation {
	res, err := s.reservations.CurrentForUserAndTool(ctx, operator.ID, toolID, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("admission: checking reservation for user %d tool %d: %v", operator.ID, toolID, err)
		}
		return nil
	}
	newEnd := s.now().Add(downtime)
	if !newEnd.Before(res.End) {
		return nil
	}
	clone, err := s.reservations.Shorten(ctx, res.ID, newEnd)
	if err != nil {
		log.Printf("admission: shortening reservation %d: %v", res.ID, err)
		return nil
	}
	if s.notifier != nil {
		s.notifier.ReservationShortened(ctx, res, clone)
	}
	return &clone
}

// CancelReservation cancels a reservation on request.  Only the holder
// or staff may cancel, and only while the reservation is still live.
func (s *Service) CancelReservation(ctx context.Context, reservationID, byUserID uint64) (model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	by, err := s.users.GetByID(ctx, byUserID)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.UserID != by.ID && !by.IsStaff {
		return model.Reservation{}, repository.ErrForbidden
	}
	if res.Cancelled || res.Missed {
		return model.Reservation{}, repository.ErrNotFound
	}
	if !by.IsStaff && res.End.Before(s.now()) {
		return model.Reservation{}, repository.ErrForbidden
	}
	if err := s.reservations.Cancel(ctx, reservationID, byUserID, s.now()); err != nil {
		return model.Reservation{}, err
	}
	if s.notifier != nil {
		s.notifier.ReservationCancelled(ctx, res, by)
	}
	return s.reservations.GetByID(ctx, reservationID)
}
