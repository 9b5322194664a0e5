package model

import "time"

// Reservation is a planned usage interval for a user/tool/project.
// A reservation leaves the calendar in one of three ways: it is
// cancelled, missed, or shortened when the user finishes with the
// tool early.  Shortening clones the reservation with an earlier end
// and links the original to the clone through DescendantID so the
// history of changes stays traceable.
type Reservation struct {
	ID               uint64     // reservations.id
	ToolID           uint64     // reservations.tool_id
	UserID           uint64     // reservations.user_id
	ProjectID        uint64     // reservations.project_id
	Start            time.Time  // reservations.start_time
	End              time.Time  // reservations.end_time
	Cancelled        bool       // reservations.cancelled
	CancelledByID    *uint64    // reservations.cancelled_by (nullable)
	CancellationTime *time.Time // reservations.cancellation_time (nullable)
	Missed           bool       // reservations.missed
	Shortened        bool       // reservations.shortened
	DescendantID     *uint64    // reservations.descendant_id (nullable)
}

// Covers reports whether the reservation spans the given instant and
// is still live (not cancelled, missed or shortened).
func (r Reservation) Covers(now time.Time) bool {
	return !r.Cancelled && !r.Missed && !r.Shortened &&
		r.Start.Before(now) && r.End.After(now)
}
