// Package repository provides raw-SQL data access for the admission
// core.  Sentinel errors defined here let the service layer
// distinguish benign state conflicts (already logged in, nothing to
// log out of) from real failures without string matching.
package repository

import "errors"

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotCurrentlyIn is returned when an exit or project change is
// requested for a user with no open area access record.
var ErrNotCurrentlyIn = errors.New("not currently logged in to any area")

// ErrOpenRecordExists is returned when an insert would create a second
// open access record for the same customer.  The storage layer
// enforces the invariant with a unique index, so concurrent entries
// cannot both succeed.
var ErrOpenRecordExists = errors.New("an open access record already exists for this customer")

// ErrToolInUse is returned when a usage event insert collides with an
// existing open event for the tool.
var ErrToolInUse = errors.New("the tool already has an open usage event")

// ErrToolNotInUse is returned when a disable is requested for a tool
// with no open usage event.
var ErrToolNotInUse = errors.New("the tool has no open usage event")

// ErrForbidden is returned when the caller attempts an operation on a
// record they do not own and lack the authority to modify.
var ErrForbidden = errors.New("forbidden")

// ErrUsernameExists is returned on registration with a taken username.
var ErrUsernameExists = errors.New("username already exists")
