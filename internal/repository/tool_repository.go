package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// ToolRepo provides access to tools and their required resources.
type ToolRepo struct {
	db *sql.DB
}

// NewToolRepo returns a new ToolRepo bound to the given database.
func NewToolRepo(db *sql.DB) *ToolRepo { return &ToolRepo{db: db} }

// GetByID loads a tool together with its required resource IDs.
func (r *ToolRepo) GetByID(ctx context.Context, id uint64) (model.Tool, error) {
	const q = `SELECT id, name, visible, operational, interlock_id, requires_area_access, allow_delayed_logoff
	           FROM tools WHERE id = ?`
	var t model.Tool
	var interlockID, areaID sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Name, &t.Visible, &t.Operational, &interlockID, &areaID, &t.AllowDelayedLogoff,
	)
	if err == sql.ErrNoRows {
		return model.Tool{}, ErrNotFound
	}
	if err != nil {
		return model.Tool{}, err
	}
	if interlockID.Valid {
		v := uint64(interlockID.Int64)
		t.InterlockID = &v
	}
	if areaID.Valid {
		v := uint64(areaID.Int64)
		t.RequiresAreaAccess = &v
	}
	const resQ = `SELECT resource_id FROM tool_required_resources WHERE tool_id = ?`
	rows, err := r.db.QueryContext(ctx, resQ, id)
	if err != nil {
		return model.Tool{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rid uint64
		if err := rows.Scan(&rid); err != nil {
			return model.Tool{}, err
		}
		t.RequiredResourceIDs = append(t.RequiredResourceIDs, rid)
	}
	return t, rows.Err()
}
