package model

import "time"

// AreaAccessRecord is an open-interval occupancy event.  A record with
// a nil End denotes a user currently inside the area, billing the
// project.  The storage layer enforces at most one open record per
// customer, so a user occupies (and bills) at most one area at a time.
type AreaAccessRecord struct {
	ID         uint64     // area_access_records.id
	CustomerID uint64     // area_access_records.customer_id
	AreaID     uint64     // area_access_records.area_id
	ProjectID  uint64     // area_access_records.project_id
	Start      time.Time  // area_access_records.start_time
	End        *time.Time // area_access_records.end_time (nullable)
}

// UsageEvent is an open-interval record of a user operating a tool.
// Operator and user differ when staff run a tool on a member's behalf.
// RunData holds free-form post-usage answers collected on disable.
type UsageEvent struct {
	ID         uint64     // usage_events.id
	ToolID     uint64     // usage_events.tool_id
	OperatorID uint64     // usage_events.operator_id
	UserID     uint64     // usage_events.user_id
	ProjectID  uint64     // usage_events.project_id
	Start      time.Time  // usage_events.start_time
	End        *time.Time // usage_events.end_time (nullable)
	RunData    string     // usage_events.run_data
}
