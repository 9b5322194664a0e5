package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// UserRepo provides access to users and the relations an admission
// decision needs: active project memberships, physical access levels
// and tool qualifications.  All timestamps are stored in UTC.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// DB exposes the underlying pool so callers can open transactions
// spanning multiple repositories.
func (r *UserRepo) DB() *sql.DB { return r.db }

// GetByID loads a user together with the relations used by policy
// checks.  Returns ErrNotFound when no such user exists.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT id, username, first_name, password_hash, badge_number,
	                  is_active, is_staff, training_required, access_expiration, created_at
	           FROM users WHERE id = ?`
	return r.scanUser(ctx, q, id)
}

// GetByUsername loads a user by login name, for authentication.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	const q = `SELECT id, username, first_name, password_hash, badge_number,
	                  is_active, is_staff, training_required, access_expiration, created_at
	           FROM users WHERE username = ?`
	return r.scanUser(ctx, q, username)
}

// GetByBadge resolves a badge swipe to a user.  Kiosks call this on
// every badge-in, so it is a single indexed lookup plus the relation
// loads.
func (r *UserRepo) GetByBadge(ctx context.Context, badgeNumber uint64) (model.User, error) {
	const q = `SELECT id, username, first_name, password_hash, badge_number,
	                  is_active, is_staff, training_required, access_expiration, created_at
	           FROM users WHERE badge_number = ?`
	return r.scanUser(ctx, q, badgeNumber)
}

func (r *UserRepo) scanUser(ctx context.Context, q string, arg interface{}) (model.User, error) {
	var u model.User
	var badge sql.NullInt64
	var expiration sql.NullTime
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.PasswordHash, &badge,
		&u.IsActive, &u.IsStaff, &u.TrainingRequired, &expiration, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	if badge.Valid {
		b := uint64(badge.Int64)
		u.BadgeNumber = &b
	}
	if expiration.Valid {
		t := expiration.Time.UTC()
		u.AccessExpiration = &t
	}
	if err := r.loadRelations(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// loadRelations fills in active projects, access levels and
// qualifications.  A project only counts as active when its account is
// active too.
func (r *UserRepo) loadRelations(ctx context.Context, u *model.User) error {
	const projQ = `SELECT p.id
	               FROM project_memberships m
	               JOIN projects p ON p.id = m.project_id
	               JOIN accounts a ON a.id = p.account_id
	               WHERE m.user_id = ? AND p.active = 1 AND a.active = 1`
	rows, err := r.db.QueryContext(ctx, projQ, u.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		u.ActiveProjectIDs = append(u.ActiveProjectIDs, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	const levelQ = `SELECT l.id, l.name, l.area_id, l.schedule, l.allow_staff_access
	                FROM user_access_levels ul
	                JOIN physical_access_levels l ON l.id = ul.access_level_id
	                WHERE ul.user_id = ?`
	rows, err = r.db.QueryContext(ctx, levelQ, u.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var l model.PhysicalAccessLevel
		if err := rows.Scan(&l.ID, &l.Name, &l.AreaID, &l.Schedule, &l.AllowStaffAccess); err != nil {
			rows.Close()
			return err
		}
		u.AccessLevels = append(u.AccessLevels, l)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	const qualQ = `SELECT tool_id FROM tool_qualifications WHERE user_id = ?`
	rows, err = r.db.QueryContext(ctx, qualQ, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		u.QualifiedToolIDs = append(u.QualifiedToolIDs, id)
	}
	return rows.Err()
}

// Create inserts a new user with a hashed password.  Badge numbers and
// access expiration are assigned later through the admin surface.
func (r *UserRepo) Create(ctx context.Context, username, firstName, passwordHash string, isStaff bool) (uint64, error) {
	const q = `INSERT INTO users (username, first_name, password_hash, is_active, is_staff, training_required, created_at)
	           VALUES (?, ?, ?, 1, ?, 1, ?)`
	res, err := r.db.ExecContext(ctx, q, username, firstName, passwordHash, isStaff, time.Now().UTC())
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
