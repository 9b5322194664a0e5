package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Schedule enumerates the time windows under which a physical access
// level grants entry.  Stored as a string in the database.
type Schedule int

const (
	ScheduleAlways Schedule = iota
	ScheduleWeekdays7AMToMidnight
	ScheduleWeekends
)

func (s Schedule) String() string {
	switch s {
	case ScheduleAlways:
		return "ALWAYS"
	case ScheduleWeekdays7AMToMidnight:
		return "WEEKDAYS_7AM_TO_MIDNIGHT"
	case ScheduleWeekends:
		return "WEEKENDS"
	}
	return fmt.Sprintf("Schedule(%d)", int(s))
}

// Scan implements sql.Scanner.
func (s *Schedule) Scan(src interface{}) error {
	var v string
	switch t := src.(type) {
	case []byte:
		v = string(t)
	case string:
		v = t
	default:
		return fmt.Errorf("cannot scan %T into Schedule", src)
	}
	switch v {
	case "ALWAYS":
		*s = ScheduleAlways
	case "WEEKDAYS_7AM_TO_MIDNIGHT":
		*s = ScheduleWeekdays7AMToMidnight
	case "WEEKENDS":
		*s = ScheduleWeekends
	default:
		return fmt.Errorf("unknown schedule %q", v)
	}
	return nil
}

// Value implements driver.Valuer.
func (s Schedule) Value() (driver.Value, error) { return s.String(), nil }

// PhysicalAccessLevel grants a user (or all staff, when
// AllowStaffAccess is set) entry to one area under a schedule.
type PhysicalAccessLevel struct {
	ID               uint64   // physical_access_levels.id
	Name             string   // physical_access_levels.name
	AreaID           uint64   // physical_access_levels.area_id
	Schedule         Schedule // physical_access_levels.schedule
	AllowStaffAccess bool     // physical_access_levels.allow_staff_access
}

// Accessible reports whether the level grants entry at the given
// instant.  The caller supplies the clock so the evaluation stays
// deterministic and testable.
func (l PhysicalAccessLevel) Accessible(now time.Time) bool {
	switch l.Schedule {
	case ScheduleAlways:
		return true
	case ScheduleWeekdays7AMToMidnight:
		wd := now.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return false
		}
		return now.Hour() >= 7
	case ScheduleWeekends:
		wd := now.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	}
	return false
}
