package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// UsageEventRepo manages tool usage events.  Like area access records,
// usage events carry a generated open_flag column with a UNIQUE key
// over (tool_id, open_flag), so two concurrent enables of the same
// tool cannot both open an event.
type UsageEventRepo struct {
	db *sql.DB
}

// NewUsageEventRepo returns a new UsageEventRepo bound to the given
// database.
func NewUsageEventRepo(db *sql.DB) *UsageEventRepo { return &UsageEventRepo{db: db} }

// Open creates an open usage event for the tool.  ErrToolInUse when
// the tool already has one.
func (r *UsageEventRepo) Open(ctx context.Context, toolID, operatorID, userID, projectID uint64, start time.Time) (model.UsageEvent, error) {
	const q = `INSERT INTO usage_events (tool_id, operator_id, user_id, project_id, start_time, run_data)
	           VALUES (?, ?, ?, ?, ?, '')`
	res, err := r.db.ExecContext(ctx, q, toolID, operatorID, userID, projectID, start.UTC())
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return model.UsageEvent{}, ErrToolInUse
		}
		return model.UsageEvent{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.UsageEvent{}, err
	}
	return model.UsageEvent{
		ID:         uint64(id),
		ToolID:     toolID,
		OperatorID: operatorID,
		UserID:     userID,
		ProjectID:  projectID,
		Start:      start.UTC(),
	}, nil
}

// CurrentForTool returns the tool's open usage event, or
// ErrToolNotInUse when the tool is idle.
func (r *UsageEventRepo) CurrentForTool(ctx context.Context, toolID uint64) (model.UsageEvent, error) {
	const q = `SELECT id, tool_id, operator_id, user_id, project_id, start_time, end_time, run_data
	           FROM usage_events WHERE tool_id = ? AND end_time IS NULL`
	ev, err := r.scanEvent(r.db.QueryRowContext(ctx, q, toolID))
	if err == errNoEvent {
		return model.UsageEvent{}, ErrToolNotInUse
	}
	return ev, err
}

// OpenForUser lists the tools the user currently has enabled, used for
// the logout warning when leaving an area with tools still running.
func (r *UsageEventRepo) OpenForUser(ctx context.Context, userID uint64) ([]model.UsageEvent, error) {
	const q = `SELECT id, tool_id, operator_id, user_id, project_id, start_time, end_time, run_data
	           FROM usage_events WHERE user_id = ? AND end_time IS NULL
	           ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.UsageEvent
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close ends the event at the given time, attaching the post-usage run
// data.  The end may lie in the future when a delayed logoff was
// requested.
func (r *UsageEventRepo) Close(ctx context.Context, eventID uint64, end time.Time, runData string) (model.UsageEvent, error) {
	const q = `UPDATE usage_events SET end_time = ?, run_data = ? WHERE id = ? AND end_time IS NULL`
	res, err := r.db.ExecContext(ctx, q, end.UTC(), runData, eventID)
	if err != nil {
		return model.UsageEvent{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.UsageEvent{}, ErrToolNotInUse
	}
	const sel = `SELECT id, tool_id, operator_id, user_id, project_id, start_time, end_time, run_data
	             FROM usage_events WHERE id = ?`
	return r.scanEvent(r.db.QueryRowContext(ctx, sel, eventID))
}

// DelayedLogoffInEffect reports whether a closed usage event's end
// still lies in the future, i.e. a delayed logoff is running on the
// tool.  Such a tool is idle to CurrentForTool but may not be
// re-enabled by non-staff until the window passes.
func (r *UsageEventRepo) DelayedLogoffInEffect(ctx context.Context, toolID uint64, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM usage_events WHERE tool_id = ? AND end_time > ?)`
	var in bool
	if err := r.db.QueryRowContext(ctx, q, toolID, now.UTC()).Scan(&in); err != nil {
		return false, err
	}
	return in, nil
}

var errNoEvent = errors.New("no usage event")

func (r *UsageEventRepo) scanEvent(row scanner) (model.UsageEvent, error) {
	var ev model.UsageEvent
	var end sql.NullTime
	err := row.Scan(&ev.ID, &ev.ToolID, &ev.OperatorID, &ev.UserID, &ev.ProjectID, &ev.Start, &end, &ev.RunData)
	if err == sql.ErrNoRows {
		return model.UsageEvent{}, errNoEvent
	}
	if err != nil {
		return model.UsageEvent{}, err
	}
	ev.Start = ev.Start.UTC()
	if end.Valid {
		t := end.Time.UTC()
		ev.End = &t
	}
	return ev, nil
}
