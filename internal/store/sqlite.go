// Package store persists the output tables and diagnostics of each run in
// a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/pares/internal/diag"
	"github.com/papapumpkin/pares/internal/table"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// ErrTableNotFound is returned when a run holds no table of that name.
var ErrTableNotFound = errors.New("table not found")

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    input_dir   TEXT NOT NULL DEFAULT '',
    catalog     TEXT NOT NULL DEFAULT '',
    strict      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS result_columns (
    run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    table_name TEXT NOT NULL,
    position   INTEGER NOT NULL,
    col_name   TEXT NOT NULL,
    PRIMARY KEY (run_id, table_name, position)
);

CREATE TABLE IF NOT EXISTS result_cells (
    run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    table_name TEXT NOT NULL,
    row_idx    INTEGER NOT NULL,
    col_name   TEXT NOT NULL,
    kind       TEXT NOT NULL,
    num_val    REAL,
    text_val   TEXT,
    PRIMARY KEY (run_id, table_name, row_idx, col_name)
);

CREATE TABLE IF NOT EXISTS result_tables (
    run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    table_name TEXT NOT NULL,
    row_count  INTEGER NOT NULL,
    PRIMARY KEY (run_id, table_name)
);

CREATE TABLE IF NOT EXISTS diagnostics (
    run_id     TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    stage      TEXT NOT NULL,
    table_name TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL,
    message    TEXT NOT NULL,
    PRIMARY KEY (run_id, seq)
);
`

// Cell kinds stored in result_cells.kind.
const (
	kindNull   = "null"
	kindNumber = "num"
	kindInt    = "int"
	kindText   = "text"
	kindBool   = "bool"
	kindTime   = "time"
)

// Run describes one pipeline execution.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	InputDir   string
	Catalog    string
	Strict     bool
}

// Store is a SQLite result sink.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath, enables WAL mode and
// busy timeout, and creates the schema tables if they do not exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite supports a single writer; one connection keeps the PRAGMAs
	// below in effect for every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes a run, its output tables and its diagnostics in one
// transaction. Saving the same run id again replaces the earlier copy.
func (s *Store) SaveRun(ctx context.Context, run Run, tables []*table.Table, ds diag.List) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx for run %s: %w", run.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("store: clear run %s: %w", run.ID, err)
	}
	const insertRun = `INSERT INTO runs (run_id, started_at, finished_at, input_dir, catalog, strict)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertRun, run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.InputDir, run.Catalog, run.Strict); err != nil {
		return fmt.Errorf("store: insert run %s: %w", run.ID, err)
	}

	colStmt, err := tx.PrepareContext(ctx, "INSERT INTO result_columns (run_id, table_name, position, col_name) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare column insert: %w", err)
	}
	defer colStmt.Close()
	cellStmt, err := tx.PrepareContext(ctx, "INSERT INTO result_cells (run_id, table_name, row_idx, col_name, kind, num_val, text_val) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare cell insert: %w", err)
	}
	defer cellStmt.Close()

	for _, t := range tables {
		name := t.Name()
		if _, err := tx.ExecContext(ctx, "INSERT INTO result_tables (run_id, table_name, row_count) VALUES (?, ?, ?)", run.ID, name, t.Len()); err != nil {
			return fmt.Errorf("store: insert table %s: %w", name, err)
		}
		cols := t.Columns()
		for i, c := range cols {
			if _, err := colStmt.ExecContext(ctx, run.ID, name, i, c); err != nil {
				return fmt.Errorf("store: insert column %s.%s: %w", name, c, err)
			}
		}
		var cellErr error
		t.Each(func(i int, r table.Row) {
			if cellErr != nil {
				return
			}
			for _, c := range cols {
				kind, num, text := encode(r[c])
				if _, err := cellStmt.ExecContext(ctx, run.ID, name, i, c, kind, num, text); err != nil {
					cellErr = fmt.Errorf("store: insert cell %s[%d].%s: %w", name, i, c, err)
					return
				}
			}
		})
		if cellErr != nil {
			return cellErr
		}
	}

	diagStmt, err := tx.PrepareContext(ctx, "INSERT INTO diagnostics (run_id, seq, stage, table_name, kind, message) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare diagnostic insert: %w", err)
	}
	defer diagStmt.Close()
	for i, d := range ds {
		if _, err := diagStmt.ExecContext(ctx, run.ID, i, d.Stage, d.Table, string(d.Kind), d.Message); err != nil {
			return fmt.Errorf("store: insert diagnostic %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns every stored run, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, started_at, finished_at, input_dir, catalog, strict
		FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.InputDir, &r.Catalog, &r.Strict); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("store: parse run start: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("store: parse run finish: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return result, nil
}

// TableNames returns the output tables stored for a run, sorted.
func (s *Store) TableNames(ctx context.Context, runID string) ([]string, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT table_name FROM result_tables WHERE run_id = ? ORDER BY table_name", runID)
	if err != nil {
		return nil, fmt.Errorf("store: query tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("store: scan table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// LoadTable rebuilds one stored output table.
func (s *Store) LoadTable(ctx context.Context, runID, name string) (*table.Table, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT row_count FROM result_tables WHERE run_id = ? AND table_name = ?", runID, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in run %s", ErrTableNotFound, name, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get table %s: %w", name, err)
	}

	cols, err := s.columns(ctx, runID, name)
	if err != nil {
		return nil, err
	}
	out := make([]table.Row, n)
	for i := range out {
		out[i] = make(table.Row, len(cols))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT row_idx, col_name, kind, num_val, text_val FROM result_cells
		WHERE run_id = ? AND table_name = ?`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("store: query cells of %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx       int
			col, kind string
			num       sql.NullFloat64
			text      sql.NullString
		)
		if err := rows.Scan(&idx, &col, &kind, &num, &text); err != nil {
			return nil, fmt.Errorf("store: scan cell: %w", err)
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("store: cell row %d outside table %s of %d rows", idx, name, n)
		}
		v, err := decode(kind, num, text)
		if err != nil {
			return nil, fmt.Errorf("store: decode %s[%d].%s: %w", name, idx, col, err)
		}
		out[idx][col] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate cells: %w", err)
	}
	return table.New(name, cols, out...), nil
}

// Diagnostics returns the diagnostics stored for a run in emission order.
func (s *Store) Diagnostics(ctx context.Context, runID string) (diag.List, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT stage, table_name, kind, message FROM diagnostics WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("store: query diagnostics: %w", err)
	}
	defer rows.Close()
	var ds diag.List
	for rows.Next() {
		var d diag.Diagnostic
		var kind string
		if err := rows.Scan(&d.Stage, &d.Table, &kind, &d.Message); err != nil {
			return nil, fmt.Errorf("store: scan diagnostic: %w", err)
		}
		d.Kind = diag.Kind(kind)
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate diagnostics: %w", err)
	}
	return ds, nil
}

func (s *Store) requireRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE run_id = ?", runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("store: look up run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) columns(ctx context.Context, runID, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT col_name FROM result_columns WHERE run_id = ? AND table_name = ? ORDER BY position", runID, name)
	if err != nil {
		return nil, fmt.Errorf("store: query columns of %s: %w", name, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("store: scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
