package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// ResourceRepo reads shared-infrastructure availability.  The
// available flag is mutated by maintenance workflows outside this
// service, so it is always read fresh at decision time and never
// cached across a decision.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a new ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// Unavailable returns the subset of the given resources that are
// currently marked unavailable.  Passing an empty slice returns nil.
func (r *ResourceRepo) Unavailable(ctx context.Context, ids []uint64) ([]model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := `SELECT id, name, available FROM resources
	      WHERE available = 0 AND id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		var res model.Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.Available); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
