package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// AreaRepo provides access to areas, their doors and the staff-wide
// physical access levels consulted by policy checks.
type AreaRepo struct {
	db *sql.DB
}

// NewAreaRepo returns a new AreaRepo bound to the given database.
func NewAreaRepo(db *sql.DB) *AreaRepo { return &AreaRepo{db: db} }

// GetByID loads an area together with its required resource IDs.
func (r *AreaRepo) GetByID(ctx context.Context, id uint64) (model.Area, error) {
	const q = `SELECT id, name, welcome_message, maximum_capacity FROM areas WHERE id = ?`
	var a model.Area
	err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Name, &a.WelcomeMessage, &a.MaximumCapacity)
	if err == sql.ErrNoRows {
		return model.Area{}, ErrNotFound
	}
	if err != nil {
		return model.Area{}, err
	}
	const resQ = `SELECT resource_id FROM area_required_resources WHERE area_id = ?`
	rows, err := r.db.QueryContext(ctx, resQ, id)
	if err != nil {
		return model.Area{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rid uint64
		if err := rows.Scan(&rid); err != nil {
			return model.Area{}, err
		}
		a.RequiredResourceIDs = append(a.RequiredResourceIDs, rid)
	}
	return a, rows.Err()
}

// GetDoor loads a door.  Kiosks are configured with a door ID, and the
// door resolves both the area being entered and the interlock to
// actuate.
func (r *AreaRepo) GetDoor(ctx context.Context, id uint64) (model.Door, error) {
	const q = `SELECT id, name, area_id, interlock_id FROM doors WHERE id = ?`
	var d model.Door
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.Name, &d.AreaID, &d.InterlockID)
	if err == sql.ErrNoRows {
		return model.Door{}, ErrNotFound
	}
	if err != nil {
		return model.Door{}, err
	}
	return d, nil
}

// StaffLevels returns every access level that grants staff-wide
// access, across all areas.
func (r *AreaRepo) StaffLevels(ctx context.Context) ([]model.PhysicalAccessLevel, error) {
	const q = `SELECT id, name, area_id, schedule, allow_staff_access
	           FROM physical_access_levels WHERE allow_staff_access = 1`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []model.PhysicalAccessLevel
	for rows.Next() {
		var l model.PhysicalAccessLevel
		if err := rows.Scan(&l.ID, &l.Name, &l.AreaID, &l.Schedule, &l.AllowStaffAccess); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}
