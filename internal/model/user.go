package model

import "time"

// Role values stored in the users.role column and carried in the JWT
// "role" claim.  STAFF members are exempt from several admission rules
// and may act on behalf of other users.
const (
	RoleMember = "MEMBER"
	RoleStaff  = "STAFF"
)

// User represents a facility member as stored in the `users` table.
// Users are created by the registration flow and soft-inactivated,
// never deleted, so historical access and usage records keep their
// references.
//
// Fields:
//  ID               – primary key identifier.
//  Username         – unique login name.
//  FirstName        – given name shown on kiosk screens.
//  PasswordHash     – bcrypt hashed password.
//  BadgeNumber      – physical badge identifier, unique, nullable.
//  IsActive         – inactive users are denied all admission.
//  IsStaff          – staff flag; grants policy exemptions.
//  TrainingRequired – true until safety training is completed; blocks
//                     tool activation.
//  AccessExpiration – optional date after which physical access is
//                     denied until renewed.
type User struct {
	ID               uint64     // users.id
	Username         string     // users.username
	FirstName        string     // users.first_name
	PasswordHash     string     // users.password_hash
	BadgeNumber      *uint64    // users.badge_number (nullable)
	IsActive         bool       // users.is_active
	IsStaff          bool       // users.is_staff
	TrainingRequired bool       // users.training_required
	AccessExpiration *time.Time // users.access_expiration (nullable, date precision)
	CreatedAt        time.Time  // users.created_at

	// Loaded relations.  Repositories populate these when fetching a
	// user for an admission decision so the policy evaluator never
	// touches the database itself.
	ActiveProjectIDs []uint64              // projects the user may bill to
	AccessLevels     []PhysicalAccessLevel // directly granted access levels
	QualifiedToolIDs []uint64              // tools the user is trained on
}

// Role returns the role string for token issuance.
func (u User) Role() string {
	if u.IsStaff {
		return RoleStaff
	}
	return RoleMember
}

// HasActiveProject reports whether the given project is in the user's
// active-project set.
func (u User) HasActiveProject(projectID uint64) bool {
	for _, id := range u.ActiveProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// QualifiedFor reports whether the user is qualified to operate the
// given tool.
func (u User) QualifiedFor(toolID uint64) bool {
	for _, id := range u.QualifiedToolIDs {
		if id == toolID {
			return true
		}
	}
	return false
}
