package policy

import (
	"sort"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// MaxDowntime caps the post-usage downtime a user may request when
// disabling a tool.
const MaxDowntime = 120 * time.Minute

// Toggles enumerates the recognized feature switches read at decision
// time.  They gate the self-service login flows only; badge kiosks and
// staff actions are always available.
type Toggles struct {
	SelfLogIn  bool
	SelfLogOut bool
}

// Evaluator holds the feature-toggle configuration and exposes the
// admission checks.  All methods are pure: they operate on snapshots
// supplied by the caller and an explicit clock, and never touch
// storage.  Checks run in a fixed priority order (user state, project
// state, physical access, resources, capacity) so that the first
// applicable failure is always the one reported, no matter how many
// conditions fail at once.
type Evaluator struct {
	toggles Toggles
}

// NewEvaluator returns an Evaluator with the given toggle settings.
func NewEvaluator(t Toggles) *Evaluator {
	return &Evaluator{toggles: t}
}

// Toggles returns the evaluator's feature-toggle configuration.
func (e *Evaluator) Toggles() Toggles { return e.toggles }

// AreaSnapshot carries the live inputs for a single-area entry check.
// Occupancy counts open access records for the area, and Unavailable
// lists required resources whose available flag is currently false.
// Both are read fresh at decision time, never cached across decisions.
type AreaSnapshot struct {
	Area        model.Area
	Occupancy   int
	Unavailable []model.Resource
	StaffLevels []model.PhysicalAccessLevel // all levels with allow_staff_access, any area
}

// CheckEnterAnyArea verifies the user-level preconditions for entering
// any access-controlled area.  staffLevels is the set of levels that
// grant staff-wide access; it only matters for users without levels of
// their own.
func (e *Evaluator) CheckEnterAnyArea(user model.User, staffLevels []model.PhysicalAccessLevel, now time.Time) *Denial {
	if !user.IsActive {
		return deny(ReasonInactiveUser, user.ID)
	}
	if len(user.ActiveProjectIDs) == 0 {
		return deny(ReasonNoActiveProjects, user.ID)
	}
	if user.AccessExpiration != nil && beforeToday(*user.AccessExpiration, now) {
		return deny(ReasonAccessExpired, user.ID)
	}
	if len(user.AccessLevels) == 0 && !(user.IsStaff && len(staffLevels) > 0) {
		return deny(ReasonNoPhysicalAccess, user.ID)
	}
	return nil
}

// CheckEnterArea verifies that the user may enter the specific area
// right now.  Staff covered by an accessible allow-staff-access level
// for the area skip the own-level requirement; non-staff must hold an
// accessible level themselves.  Resource availability and capacity
// only bind non-staff.
func (e *Evaluator) CheckEnterArea(user model.User, snap AreaSnapshot, now time.Time) *Denial {
	staffCovered := false
	if user.IsStaff {
		for _, l := range snap.StaffLevels {
			if l.AreaID == snap.Area.ID && l.Accessible(now) {
				staffCovered = true
				break
			}
		}
	}
	if !staffCovered {
		granted := false
		for _, l := range user.AccessLevels {
			if l.AreaID == snap.Area.ID && l.Accessible(now) {
				granted = true
				break
			}
		}
		if !granted {
			return &Denial{Reason: ReasonNoAccessibleLevel, UserID: user.ID, AreaName: snap.Area.Name}
		}
	}

	if !user.IsStaff {
		if len(snap.Unavailable) > 0 {
			return &Denial{Reason: ReasonResourceUnavailable, UserID: user.ID, AreaName: snap.Area.Name, Resources: snap.Unavailable}
		}
		if cap := snap.Area.MaximumCapacity; cap > 0 && snap.Occupancy >= cap {
			return &Denial{Reason: ReasonCapacityReached, UserID: user.ID, AreaName: snap.Area.Name}
		}
	}
	return nil
}

// ToolSnapshot carries the live inputs for a tool-enable check.
type ToolSnapshot struct {
	Tool          model.Tool
	CurrentEvent  *model.UsageEvent // open usage event on the tool, if any
	DelayedLogoff bool              // a closed usage event's end still lies in the future
	Unavailable   []model.Resource  // required resources currently unavailable
	OperatorIn    bool              // operator holds an open record in the tool's required area
	AreaName      string            // name of the required area, for messages
}

// CheckEnableTool verifies that operator may start a session on the
// tool, billed to user/project.  Order: user state, visibility,
// operational state, occupancy, delayed-logoff cooldown, qualification,
// on-behalf authority, resources, area presence, project membership,
// training.
func (e *Evaluator) CheckEnableTool(snap ToolSnapshot, operator, user model.User, projectID uint64) *Denial {
	tool := snap.Tool
	if !operator.IsActive {
		return deny(ReasonInactiveUser, operator.ID)
	}
	if user.ID != operator.ID && !user.IsActive {
		return deny(ReasonInactiveUser, user.ID)
	}
	if !tool.Visible {
		return &Denial{Reason: ReasonToolHidden, UserID: operator.ID, ToolName: tool.Name}
	}
	if !tool.Operational && !operator.IsStaff {
		return &Denial{Reason: ReasonToolNonOperational, UserID: operator.ID, ToolName: tool.Name}
	}
	if snap.CurrentEvent != nil {
		return &Denial{Reason: ReasonToolInUse, UserID: operator.ID, ToolName: tool.Name}
	}
	if snap.DelayedLogoff && !operator.IsStaff {
		return &Denial{Reason: ReasonDelayedLogoffInEffect, UserID: operator.ID, ToolName: tool.Name}
	}
	if !operator.QualifiedFor(tool.ID) && !operator.IsStaff {
		return &Denial{Reason: ReasonNotQualified, UserID: operator.ID, ToolName: tool.Name}
	}
	if user.ID != operator.ID && !operator.IsStaff {
		return deny(ReasonNotOperatorOnBehalf, operator.ID)
	}
	if len(snap.Unavailable) > 0 && !operator.IsStaff {
		return &Denial{Reason: ReasonResourceUnavailable, UserID: operator.ID, ToolName: tool.Name, Resources: snap.Unavailable}
	}
	if tool.RequiresAreaAccess != nil && !snap.OperatorIn && !operator.IsStaff {
		return &Denial{Reason: ReasonAreaAccessRequired, UserID: operator.ID, ToolName: tool.Name, AreaName: snap.AreaName}
	}
	if !user.HasActiveProject(projectID) {
		return deny(ReasonProjectNotAuthorized, operator.ID)
	}
	if operator.TrainingRequired {
		return deny(ReasonTrainingRequired, operator.ID)
	}
	return nil
}

// CheckDisableTool verifies that operator may end the open usage event
// with the requested post-usage downtime.  delayedLogoff reports
// whether a previous session's downtime window is still running; a
// second delayed logoff cannot be stacked on top of it.
func (e *Evaluator) CheckDisableTool(tool model.Tool, event model.UsageEvent, operator model.User, downtime time.Duration, delayedLogoff bool) *Denial {
	if event.OperatorID != operator.ID && event.UserID != operator.ID && !operator.IsStaff {
		return deny(ReasonNotCurrentUser, operator.ID)
	}
	if downtime < 0 {
		return &Denial{Reason: ReasonDowntimeInvalid, UserID: operator.ID, Message: "downtime cannot be negative"}
	}
	if downtime > MaxDowntime {
		return &Denial{Reason: ReasonDowntimeInvalid, UserID: operator.ID, Message: "post-usage tool downtime may not exceed 120 minutes"}
	}
	if downtime > 0 && !tool.AllowDelayedLogoff {
		return &Denial{Reason: ReasonDowntimeInvalid, UserID: operator.ID, Message: "delayed logoff is not allowed for this tool"}
	}
	if downtime > 0 && delayedLogoff {
		return &Denial{Reason: ReasonDelayedLogoffInEffect, UserID: operator.ID, ToolName: tool.Name}
	}
	return nil
}

// AccessibleLevels computes the union of the user's directly granted
// levels and, for staff, all staff-wide levels.  Levels are
// deduplicated by identity (only accessibility matters, not how many
// grants cover an area) and returned under an explicit sort key so no
// caller depends on incidental ordering.
func AccessibleLevels(user model.User, allLevels []model.PhysicalAccessLevel) []model.PhysicalAccessLevel {
	byID := make(map[uint64]model.PhysicalAccessLevel, len(user.AccessLevels))
	for _, l := range user.AccessLevels {
		byID[l.ID] = l
	}
	if user.IsStaff {
		for _, l := range allLevels {
			if l.AllowStaffAccess {
				byID[l.ID] = l
			}
		}
	}
	out := make([]model.PhysicalAccessLevel, 0, len(byID))
	for _, l := range byID {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// beforeToday reports whether the expiration date falls strictly
// before today's date.  Comparison is at date granularity: access
// expiring today is still valid for the day.
func beforeToday(expiration, now time.Time) bool {
	ey, em, ed := expiration.Date()
	ny, nm, nd := now.Date()
	exp := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return exp.Before(today)
}
