// Package sqlite persists fragments, layout positions, and session state
// in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nathoo/worldweaver/engine/effects"
	"github.com/nathoo/worldweaver/engine/rules"
	"github.com/nathoo/worldweaver/types"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		text_template TEXT NOT NULL DEFAULT '',
		requires_json TEXT NOT NULL DEFAULT '{}',
		choices_json TEXT NOT NULL DEFAULT '[]',
		weight REAL NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS positions (
		fragment_id TEXT PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		vars_json TEXT NOT NULL DEFAULT '{}',
		snapshot_json TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fragments_seq ON fragments(seq);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Fragments ---

type fragmentRow struct {
	ID           string        `db:"id"`
	Title        string        `db:"title"`
	TextTemplate string        `db:"text_template"`
	RequiresJSON string        `db:"requires_json"`
	ChoicesJSON  string        `db:"choices_json"`
	Weight       float64       `db:"weight"`
	X            sql.NullInt64 `db:"x"`
	Y            sql.NullInt64 `db:"y"`
}

// SaveFragments writes all fragments (full replace). Stored positions are
// kept for ids that survive.
func (db *DB) SaveFragments(ctx context.Context, frags []types.Fragment) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fragments"); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO fragments
		(id, seq, title, text_template, requires_json, choices_json, weight)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range frags {
		requires := f.Requires.Raw
		if requires == nil {
			requires = map[string]any{}
		}
		choices := make([]map[string]any, 0, len(f.Choices))
		for _, c := range f.Choices {
			choices = append(choices, choiceRaw(c))
		}
		reqJSON, err := json.Marshal(requires)
		if err != nil {
			return fmt.Errorf("encode requires of %q: %w", f.ID, err)
		}
		choicesJSON, err := json.Marshal(choices)
		if err != nil {
			return fmt.Errorf("encode choices of %q: %w", f.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, f.ID, i, f.Title, f.TextTemplate, string(reqJSON), string(choicesJSON), f.Weight); err != nil {
			return fmt.Errorf("insert fragment %q: %w", f.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM positions WHERE fragment_id NOT IN (SELECT id FROM fragments)"); err != nil {
		return err
	}
	return tx.Commit()
}

// Fragments reads every fragment in authoring order, with its stored
// position attached.
func (db *DB) Fragments(ctx context.Context) ([]types.Fragment, error) {
	var rows []fragmentRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT f.id, f.title, f.text_template,
		f.requires_json, f.choices_json, f.weight, p.x, p.y
		FROM fragments f LEFT JOIN positions p ON p.fragment_id = f.id
		ORDER BY f.seq`)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}

	out := make([]types.Fragment, 0, len(rows))
	for _, r := range rows {
		f, err := r.fragment()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r fragmentRow) fragment() (types.Fragment, error) {
	var requires map[string]any
	if err := json.Unmarshal([]byte(r.RequiresJSON), &requires); err != nil {
		return types.Fragment{}, fmt.Errorf("decode requires of %q: %w", r.ID, err)
	}
	var choices []map[string]any
	if err := json.Unmarshal([]byte(r.ChoicesJSON), &choices); err != nil {
		return types.Fragment{}, fmt.Errorf("decode choices of %q: %w", r.ID, err)
	}

	f := types.Fragment{
		ID:           r.ID,
		Title:        r.Title,
		TextTemplate: r.TextTemplate,
		Requires:     rules.Compile(requires),
		Weight:       r.Weight,
	}
	for _, c := range choices {
		f.Choices = append(f.Choices, effects.CompileChoice(c))
	}
	if r.X.Valid && r.Y.Valid {
		f.Position = &types.Position{X: int(r.X.Int64), Y: int(r.Y.Int64)}
	}
	return f, nil
}

func choiceRaw(c types.Choice) map[string]any {
	if c.Raw != nil {
		return c.Raw
	}
	set := make(map[string]any, len(c.Set))
	for _, op := range c.Set {
		if op.Delta {
			set[op.Key] = map[string]any{"inc": op.Amount}
		} else {
			set[op.Key] = op.Literal
		}
	}
	return map[string]any{"label": c.Label, "set": set}
}

// --- Positions ---

// UpsertPosition stores the grid cell of a fragment.
func (db *DB) UpsertPosition(ctx context.Context, fragmentID string, pos types.Position) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO positions (fragment_id, x, y) VALUES (?, ?, ?)
		ON CONFLICT(fragment_id) DO UPDATE SET x = excluded.x, y = excluded.y`,
		fragmentID, pos.X, pos.Y)
	if err != nil {
		return fmt.Errorf("upsert position %q: %w", fragmentID, err)
	}
	return nil
}

// Positions returns every stored position.
func (db *DB) Positions(ctx context.Context) (map[string]types.Position, error) {
	var rows []struct {
		ID string `db:"fragment_id"`
		X  int    `db:"x"`
		Y  int    `db:"y"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT fragment_id, x, y FROM positions"); err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	out := make(map[string]types.Position, len(rows))
	for _, r := range rows {
		out[r.ID] = types.Position{X: r.X, Y: r.Y}
	}
	return out, nil
}

// --- Sessions ---

// SaveVariables stores the plain variables of a session.
func (db *DB) SaveVariables(ctx context.Context, sessionID string, vars map[string]any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode variables of %q: %w", sessionID, err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO sessions (session_id, vars_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET vars_json = excluded.vars_json, updated_at = excluded.updated_at`,
		sessionID, string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save variables of %q: %w", sessionID, err)
	}
	return nil
}

// LoadVariables reads the plain variables of a session.
func (db *DB) LoadVariables(ctx context.Context, sessionID string) (map[string]any, bool, error) {
	var data string
	err := db.conn.GetContext(ctx, &data, "SELECT vars_json FROM sessions WHERE session_id = ?", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load variables of %q: %w", sessionID, err)
	}
	vars := map[string]any{}
	if err := json.Unmarshal([]byte(data), &vars); err != nil {
		return nil, false, fmt.Errorf("decode variables of %q: %w", sessionID, err)
	}
	return vars, true, nil
}

// SaveSnapshot stores the full world state of a session, refreshing its
// variables too.
func (db *DB) SaveSnapshot(ctx context.Context, snap types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot of %q: %w", snap.SessionID, err)
	}
	vars := snap.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode variables of %q: %w", snap.SessionID, err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO sessions (session_id, vars_json, snapshot_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET vars_json = excluded.vars_json,
			snapshot_json = excluded.snapshot_json, updated_at = excluded.updated_at`,
		snap.SessionID, string(varsJSON), string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save snapshot of %q: %w", snap.SessionID, err)
	}
	return nil
}

// LoadSnapshot reads the full world state of a session. A session saved
// only through SaveVariables has no snapshot.
func (db *DB) LoadSnapshot(ctx context.Context, sessionID string) (types.Snapshot, bool, error) {
	var data sql.NullString
	err := db.conn.GetContext(ctx, &data, "SELECT snapshot_json FROM sessions WHERE session_id = ?", sessionID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return types.Snapshot{}, false, nil
	}
	if err != nil {
		return types.Snapshot{}, false, fmt.Errorf("load snapshot of %q: %w", sessionID, err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(data.String), &snap); err != nil {
		return types.Snapshot{}, false, fmt.Errorf("decode snapshot of %q: %w", sessionID, err)
	}
	return snap, true, nil
}

// DeleteSessionsBefore removes sessions last saved before cutoff and
// returns their ids.
func (db *DB) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ids []string
	if err := tx.SelectContext(ctx, &ids, "SELECT session_id FROM sessions WHERE updated_at < ? ORDER BY session_id", cutoff.UnixNano()); err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff.UnixNano()); err != nil {
		return nil, fmt.Errorf("delete stale sessions: %w", err)
	}
	return ids, tx.Commit()
}
