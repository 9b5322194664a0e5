package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// InterlockRepo provides access to interlocks and their controller
// cards, and persists command outcomes.  It satisfies
// interlock.StateStore.
type InterlockRepo struct {
	db *sql.DB
}

// NewInterlockRepo returns a new InterlockRepo bound to the given
// database.
func NewInterlockRepo(db *sql.DB) *InterlockRepo { return &InterlockRepo{db: db} }

const interlockColumns = `i.id, i.card_id, i.channel, i.state, i.most_recent_reply,
	       c.id, c.server, c.port, c.number, c.even_port, c.odd_port,
	       c.username, c.password, c.category, c.enabled`

// GetByID loads an interlock with its card.
func (r *InterlockRepo) GetByID(ctx context.Context, id uint64) (model.Interlock, error) {
	q := `SELECT ` + interlockColumns + `
	      FROM interlocks i JOIN interlock_cards c ON c.id = i.card_id
	      WHERE i.id = ?`
	return r.scanInterlock(r.db.QueryRowContext(ctx, q, id))
}

// ForTool returns the interlock wired to the tool, or ErrNotFound when
// the tool has none.
func (r *InterlockRepo) ForTool(ctx context.Context, toolID uint64) (model.Interlock, error) {
	q := `SELECT ` + interlockColumns + `
	      FROM tools t
	      JOIN interlocks i ON i.id = t.interlock_id
	      JOIN interlock_cards c ON c.id = i.card_id
	      WHERE t.id = ?`
	return r.scanInterlock(r.db.QueryRowContext(ctx, q, toolID))
}

// UpdateState records the outcome of a hardware command: the resulting
// state and the raw diagnostic reply for troubleshooting.
func (r *InterlockRepo) UpdateState(ctx context.Context, interlockID uint64, state model.InterlockState, reply string) error {
	const q = `UPDATE interlocks SET state = ?, most_recent_reply = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, int(state), reply, interlockID)
	return err
}

// ToolAttached lists every interlock wired to a tool, along with
// whether that tool currently has an open usage event.  Used by the
// synchronize-with-tool-usage maintenance action.  Interlocks wired to
// doors are excluded: door locks follow badge activity, not usage
// events.
func (r *InterlockRepo) ToolAttached(ctx context.Context) ([]model.Interlock, []bool, error) {
	q := `SELECT ` + interlockColumns + `,
	             EXISTS(SELECT 1 FROM usage_events e WHERE e.tool_id = t.id AND e.end_time IS NULL)
	      FROM tools t
	      JOIN interlocks i ON i.id = t.interlock_id
	      JOIN interlock_cards c ON c.id = i.card_id
	      ORDER BY i.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var interlocks []model.Interlock
	var inUse []bool
	for rows.Next() {
		var il model.Interlock
		var busy bool
		if err := rows.Scan(
			&il.ID, &il.CardID, &il.Channel, &il.State, &il.MostRecentReply,
			&il.Card.ID, &il.Card.Server, &il.Card.Port, &il.Card.Number, &il.Card.EvenPort, &il.Card.OddPort,
			&il.Card.Username, &il.Card.Password, &il.Card.Category, &il.Card.Enabled,
			&busy,
		); err != nil {
			return nil, nil, err
		}
		interlocks = append(interlocks, il)
		inUse = append(inUse, busy)
	}
	return interlocks, inUse, rows.Err()
}

func (r *InterlockRepo) scanInterlock(row scanner) (model.Interlock, error) {
	var il model.Interlock
	err := row.Scan(
		&il.ID, &il.CardID, &il.Channel, &il.State, &il.MostRecentReply,
		&il.Card.ID, &il.Card.Server, &il.Card.Port, &il.Card.Number, &il.Card.EvenPort, &il.Card.OddPort,
		&il.Card.Username, &il.Card.Password, &il.Card.Category, &il.Card.Enabled,
	)
	if err == sql.ErrNoRows {
		return model.Interlock{}, ErrNotFound
	}
	if err != nil {
		return model.Interlock{}, err
	}
	return il, nil
}
