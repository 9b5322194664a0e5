// Package policy implements the admission rules as pure, side-effect-free
// checks.  Every refusal is reported as a Denial carrying a closed reason
// code plus the structured context needed to render a message, so callers
// can branch on the reason without parsing strings.
package policy

import (
	"fmt"
	"strings"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// Reason identifies which rule refused the action.  The set is closed:
// handlers translate reasons into HTTP responses and kiosk screens, and
// tests assert on them directly.
type Reason string

const (
	ReasonInactiveUser          Reason = "inactive_user"
	ReasonNoActiveProjects      Reason = "no_active_projects"
	ReasonAccessExpired         Reason = "access_expired"
	ReasonNoPhysicalAccess      Reason = "no_physical_access"
	ReasonNoAccessibleLevel     Reason = "no_accessible_level"
	ReasonResourceUnavailable   Reason = "resource_unavailable"
	ReasonCapacityReached       Reason = "capacity_reached"
	ReasonProjectNotAuthorized  Reason = "project_not_authorized"
	ReasonToolHidden            Reason = "tool_hidden"
	ReasonToolNonOperational    Reason = "tool_non_operational"
	ReasonToolInUse             Reason = "tool_in_use"
	ReasonNotQualified          Reason = "not_qualified"
	ReasonNotOperatorOnBehalf   Reason = "not_operator_on_behalf"
	ReasonAreaAccessRequired    Reason = "area_access_required"
	ReasonTrainingRequired      Reason = "training_required"
	ReasonDowntimeInvalid       Reason = "downtime_invalid"
	ReasonNotCurrentUser        Reason = "not_current_user"
	ReasonDelayedLogoffInEffect Reason = "delayed_logoff_in_effect"
)

// Denial is a typed policy refusal.  It satisfies the error interface
// so it can travel through ordinary error returns; callers use
// errors.As to recover the reason and context.
type Denial struct {
	Reason Reason

	// Context for message rendering.  Only the fields relevant to the
	// reason are populated.
	UserID    uint64
	AreaName  string
	ToolName  string
	Resources []model.Resource // unavailable resources, for ReasonResourceUnavailable
	Message   string
}

// Error renders a human-readable reason.  The structured fields remain
// authoritative; this string is for logs and API payloads.
func (d *Denial) Error() string {
	if d.Message != "" {
		return d.Message
	}
	switch d.Reason {
	case ReasonInactiveUser:
		return "this user is not active"
	case ReasonNoActiveProjects:
		return "this user does not have any active projects"
	case ReasonAccessExpired:
		return "this user's physical access has expired"
	case ReasonNoPhysicalAccess:
		return "this user has not been granted physical access to any area"
	case ReasonNoAccessibleLevel:
		return fmt.Sprintf("this user has no access level that allows entry to the %s at this time", strings.ToLower(d.AreaName))
	case ReasonResourceUnavailable:
		names := make([]string, 0, len(d.Resources))
		for _, r := range d.Resources {
			names = append(names, r.Name)
		}
		return fmt.Sprintf("a required resource is unavailable: %s", strings.Join(names, ", "))
	case ReasonCapacityReached:
		return fmt.Sprintf("the %s has reached its maximum capacity", strings.ToLower(d.AreaName))
	case ReasonProjectNotAuthorized:
		return "the designated user is not assigned to the selected project"
	case ReasonToolHidden:
		return "this tool is currently hidden from users"
	case ReasonToolNonOperational:
		return "this tool is currently non-operational"
	case ReasonToolInUse:
		return "the tool is currently in use"
	case ReasonNotQualified:
		return "you are not qualified to use this tool"
	case ReasonNotOperatorOnBehalf:
		return "you must be a staff member to use a tool on another user's behalf"
	case ReasonAreaAccessRequired:
		return fmt.Sprintf("you must be logged in to the %s to operate this tool", strings.ToLower(d.AreaName))
	case ReasonTrainingRequired:
		return "you are blocked from using tools until you complete the safety training"
	case ReasonDowntimeInvalid:
		return "the requested downtime is not allowed"
	case ReasonNotCurrentUser:
		return "you may not disable a tool that somebody else is using"
	case ReasonDelayedLogoffInEffect:
		return "delayed tool logoff is in effect"
	}
	return "admission denied"
}

func deny(reason Reason, userID uint64) *Denial {
	return &Denial{Reason: reason, UserID: userID}
}
