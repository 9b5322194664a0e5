package model

// Tool is a piece of equipment whose power is gated by an interlock.
// Enabling a tool opens a usage event that attributes the session to
// a user and project.
//
// Fields:
//  ID                 – primary key identifier.
//  Name               – display name.
//  Visible            – hidden tools cannot be enabled by anyone.
//  Operational        – non-operational tools may only be enabled by staff.
//  InterlockID        – optional interlock controlling tool power.
//  RequiresAreaAccess – optional area the operator must be logged in to.
//  AllowDelayedLogoff – whether a positive post-usage downtime may be
//                       requested on disable.
type Tool struct {
	ID                 uint64  // tools.id
	Name               string  // tools.name
	Visible            bool    // tools.visible
	Operational        bool    // tools.operational
	InterlockID        *uint64 // tools.interlock_id (nullable)
	RequiresAreaAccess *uint64 // tools.requires_area_access (nullable area id)
	AllowDelayedLogoff bool    // tools.allow_delayed_logoff

	// RequiredResourceIDs lists infrastructure that must be available
	// before non-staff may operate the tool.
	RequiredResourceIDs []uint64
}
