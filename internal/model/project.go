package model

// Account groups projects for billing purposes.  Deactivating an
// account deactivates billing for all of its projects.
type Account struct {
	ID     uint64 // accounts.id
	Name   string // accounts.name
	Active bool   // accounts.active
}

// Project is a billing target.  Area access and tool usage are always
// attributed to exactly one project, and users may only bill projects
// in their active-project set.
type Project struct {
	ID        uint64 // projects.id
	Name      string // projects.name
	AccountID uint64 // projects.account_id
	Active    bool   // projects.active
}
