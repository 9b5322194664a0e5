package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// AccessRecordRepo manages area access records.  The schema carries a
// generated open_flag column (1 while end_time IS NULL, NULL after
// close) with a UNIQUE key over (customer_id, open_flag), so the
// at-most-one-open-record-per-customer invariant holds even under
// concurrent inserts: the second insert fails atomically instead of
// being checked-then-inserted.
type AccessRecordRepo struct {
	db *sql.DB
}

// NewAccessRecordRepo returns a new AccessRecordRepo bound to the
// given database.
func NewAccessRecordRepo(db *sql.DB) *AccessRecordRepo { return &AccessRecordRepo{db: db} }

const mysqlDuplicateEntry = 1062

// Open creates an open access record for the customer.  When the
// customer already has an open record anywhere, ErrOpenRecordExists is
// returned and nothing changes.
func (r *AccessRecordRepo) Open(ctx context.Context, customerID, areaID, projectID uint64, start time.Time) (model.AreaAccessRecord, error) {
	const q = `INSERT INTO area_access_records (customer_id, area_id, project_id, start_time)
	           VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, customerID, areaID, projectID, start.UTC())
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return model.AreaAccessRecord{}, ErrOpenRecordExists
		}
		return model.AreaAccessRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	return model.AreaAccessRecord{
		ID:         uint64(id),
		CustomerID: customerID,
		AreaID:     areaID,
		ProjectID:  projectID,
		Start:      start.UTC(),
	}, nil
}

// Current returns the customer's open access record, or
// ErrNotCurrentlyIn when there is none.
func (r *AccessRecordRepo) Current(ctx context.Context, customerID uint64) (model.AreaAccessRecord, error) {
	const q = `SELECT id, customer_id, area_id, project_id, start_time, end_time
	           FROM area_access_records
	           WHERE customer_id = ? AND end_time IS NULL`
	return r.scanRecord(r.db.QueryRowContext(ctx, q, customerID))
}

// Close sets the end timestamp on the customer's open record and
// returns the closed record.  ErrNotCurrentlyIn when no record is
// open.
func (r *AccessRecordRepo) Close(ctx context.Context, customerID uint64, end time.Time) (model.AreaAccessRecord, error) {
	rec, err := r.Current(ctx, customerID)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	const q = `UPDATE area_access_records SET end_time = ? WHERE id = ? AND end_time IS NULL`
	res, err := r.db.ExecContext(ctx, q, end.UTC(), rec.ID)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	// A concurrent close may have beaten us to the update.
	if n, _ := res.RowsAffected(); n == 0 {
		return model.AreaAccessRecord{}, ErrNotCurrentlyIn
	}
	e := end.UTC()
	rec.End = &e
	return rec, nil
}

// SwitchProject atomically closes the customer's open record and opens
// a new one for the same area under a different project.  The close
// and open commit together, so no observer ever sees the customer
// outside the area.  The customer's row is locked for the duration to
// serialize concurrent transitions for the same user.
func (r *AccessRecordRepo) SwitchProject(ctx context.Context, customerID, newProjectID uint64, at time.Time) (model.AreaAccessRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const lockQ = `SELECT id FROM users WHERE id = ? FOR UPDATE`
	var lockedID uint64
	if err := tx.QueryRowContext(ctx, lockQ, customerID).Scan(&lockedID); err != nil {
		if err == sql.ErrNoRows {
			return model.AreaAccessRecord{}, ErrNotFound
		}
		return model.AreaAccessRecord{}, err
	}

	const curQ = `SELECT id, customer_id, area_id, project_id, start_time, end_time
	              FROM area_access_records
	              WHERE customer_id = ? AND end_time IS NULL`
	cur, err := r.scanRecord(tx.QueryRowContext(ctx, curQ, customerID))
	if err != nil {
		return model.AreaAccessRecord{}, err
	}

	ts := at.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE area_access_records SET end_time = ? WHERE id = ?`, ts, cur.ID); err != nil {
		return model.AreaAccessRecord{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO area_access_records (customer_id, area_id, project_id, start_time) VALUES (?, ?, ?, ?)`,
		customerID, cur.AreaID, newProjectID, ts)
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.AreaAccessRecord{}, err
	}
	committed = true
	return model.AreaAccessRecord{
		ID:         uint64(id),
		CustomerID: customerID,
		AreaID:     cur.AreaID,
		ProjectID:  newProjectID,
		Start:      ts,
	}, nil
}

// Occupancy counts open records for the area.
func (r *AccessRecordRepo) Occupancy(ctx context.Context, areaID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM area_access_records WHERE area_id = ? AND end_time IS NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, q, areaID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// OpenByArea lists the open records for an area, newest first, for the
// occupancy view.
func (r *AccessRecordRepo) OpenByArea(ctx context.Context, areaID uint64) ([]model.AreaAccessRecord, error) {
	const q = `SELECT id, customer_id, area_id, project_id, start_time, end_time
	           FROM area_access_records
	           WHERE area_id = ? AND end_time IS NULL
	           ORDER BY start_time DESC`
	rows, err := r.db.QueryContext(ctx, q, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AreaAccessRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *AccessRecordRepo) scanRecord(row scanner) (model.AreaAccessRecord, error) {
	var rec model.AreaAccessRecord
	var end sql.NullTime
	err := row.Scan(&rec.ID, &rec.CustomerID, &rec.AreaID, &rec.ProjectID, &rec.Start, &end)
	if err == sql.ErrNoRows {
		return model.AreaAccessRecord{}, ErrNotCurrentlyIn
	}
	if err != nil {
		return model.AreaAccessRecord{}, err
	}
	rec.Start = rec.Start.UTC()
	if end.Valid {
		t := end.Time.UTC()
		rec.End = &t
	}
	return rec, nil
}
