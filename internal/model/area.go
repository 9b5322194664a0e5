package model

// Area is a physical space gated by one or more interlocked doors.
// MaximumCapacity of zero means unlimited occupancy.
type Area struct {
	ID              uint64 // areas.id
	Name            string // areas.name
	WelcomeMessage  string // areas.welcome_message, shown on kiosk screens
	MaximumCapacity int    // areas.maximum_capacity (0 = unlimited)

	// RequiredResourceIDs lists shared infrastructure (gas lines,
	// exhaust, ...) that must be available before non-staff may enter.
	RequiredResourceIDs []uint64
}

// Door is a physical entry point for an area.  Each door owns exactly
// one interlock that controls its strike.
type Door struct {
	ID          uint64 // doors.id
	Name        string // doors.name
	AreaID      uint64 // doors.area_id
	InterlockID uint64 // doors.interlock_id
}

// Resource represents shared infrastructure whose availability gates
// admission.  The available flag is mutated by external maintenance
// workflows and is read fresh at every decision.
type Resource struct {
	ID        uint64 // resources.id
	Name      string // resources.name
	Available bool   // resources.available
}
