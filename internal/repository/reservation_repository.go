package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// ReservationRepo manages reservations and the shortening/cancellation
// bookkeeping that keeps them consistent with actual tool usage.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// GetByID loads a single reservation.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT id, tool_id, user_id, project_id, start_time, end_time,
	                  cancelled, cancelled_by, cancellation_time, missed, shortened, descendant_id
	           FROM reservations WHERE id = ?`
	res, err := r.scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// CurrentForUserAndTool returns the user's live reservation covering
// now for the given tool, or ErrNotFound when there is none.  Live
// means not cancelled, missed or shortened.
func (r *ReservationRepo) CurrentForUserAndTool(ctx context.Context, userID, toolID uint64, now time.Time) (model.Reservation, error) {
	const q = `SELECT id, tool_id, user_id, project_id, start_time, end_time,
	                  cancelled, cancelled_by, cancellation_time, missed, shortened, descendant_id
	           FROM reservations
	           WHERE user_id = ? AND tool_id = ?
	             AND start_time < ? AND end_time > ?
	             AND cancelled = 0 AND missed = 0 AND shortened = 0`
	ts := now.UTC()
	res, err := r.scanReservation(r.db.QueryRowContext(ctx, q, userID, toolID, ts, ts))
	if err == sql.ErrNoRows {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// CurrentForTool returns the live reservation covering now for the
// given tool regardless of who holds it, or ErrNotFound.
func (r *ReservationRepo) CurrentForTool(ctx context.Context, toolID uint64, now time.Time) (model.Reservation, error) {
	const q = `SELECT id, tool_id, user_id, project_id, start_time, end_time,
	                  cancelled, cancelled_by, cancellation_time, missed, shortened, descendant_id
	           FROM reservations
	           WHERE tool_id = ?
	             AND start_time < ? AND end_time > ?
	             AND cancelled = 0 AND missed = 0 AND shortened = 0`
	ts := now.UTC()
	res, err := r.scanReservation(r.db.QueryRowContext(ctx, q, toolID, ts, ts))
	if err == sql.ErrNoRows {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// Shorten clones the reservation with the new end time, marks the
// original shortened and links it to the clone.  Both writes commit in
// one transaction so the calendar never shows the original and the
// clone as live simultaneously.  The clone is returned.
func (r *ReservationRepo) Shorten(ctx context.Context, reservationID uint64, newEnd time.Time) (model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT id, tool_id, user_id, project_id, start_time, end_time,
	                    cancelled, cancelled_by, cancellation_time, missed, shortened, descendant_id
	             FROM reservations WHERE id = ? FOR UPDATE`
	original, err := r.scanReservation(tx.QueryRowContext(ctx, sel, reservationID))
	if err == sql.ErrNoRows {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	if original.Shortened {
		// A concurrent disable already shortened it; nothing to do.
		if original.DescendantID != nil {
			return r.GetByID(ctx, *original.DescendantID)
		}
		return original, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (tool_id, user_id, project_id, start_time, end_time, cancelled, missed, shortened)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0)`,
		original.ToolID, original.UserID, original.ProjectID, original.Start, newEnd.UTC())
	if err != nil {
		return model.Reservation{}, err
	}
	cloneID, err := res.LastInsertId()
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET shortened = 1, descendant_id = ? WHERE id = ?`,
		cloneID, original.ID); err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reservation{}, err
	}
	committed = true

	clone := original
	clone.ID = uint64(cloneID)
	clone.End = newEnd.UTC()
	clone.DescendantID = nil
	return clone, nil
}

// Cancel marks the reservation cancelled, recording who cancelled it
// and when.
func (r *ReservationRepo) Cancel(ctx context.Context, reservationID, cancelledBy uint64, at time.Time) error {
	const q = `UPDATE reservations SET cancelled = 1, cancelled_by = ?, cancellation_time = ?
	           WHERE id = ? AND cancelled = 0`
	res, err := r.db.ExecContext(ctx, q, cancelledBy, at.UTC(), reservationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReservationRepo) scanReservation(row scanner) (model.Reservation, error) {
	var res model.Reservation
	var cancelledBy, descendant sql.NullInt64
	var cancellationTime sql.NullTime
	err := row.Scan(&res.ID, &res.ToolID, &res.UserID, &res.ProjectID, &res.Start, &res.End,
		&res.Cancelled, &cancelledBy, &cancellationTime, &res.Missed, &res.Shortened, &descendant)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Start = res.Start.UTC()
	res.End = res.End.UTC()
	if cancelledBy.Valid {
		id := uint64(cancelledBy.Int64)
		res.CancelledByID = &id
	}
	if cancellationTime.Valid {
		t := cancellationTime.Time.UTC()
		res.CancellationTime = &t
	}
	if descendant.Valid {
		id := uint64(descendant.Int64)
		res.DescendantID = &id
	}
	return res, nil
}
