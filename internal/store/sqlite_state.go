package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jotline/internal/model"
)

// SQLite is the local durable state: nodes, folders and a small key-value table
// used by the sync queue.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the data directory's database.
func (s Store) OpenSQLite(ctx context.Context) (*SQLite, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return OpenSQLitePath(ctx, s.SQLitePath())
}

func OpenSQLitePath(ctx context.Context, path string) (*SQLite, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps pragmas and the in-process writer consistent.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLiteState(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrateSQLiteState(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			container TEXT NOT NULL,
			explicit_parent_id TEXT NOT NULL DEFAULT '',
			folder_id TEXT NOT NULL DEFAULT '',
			indent_level INTEGER NOT NULL DEFAULT 0,
			ord INTEGER NOT NULL,
			due_date TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_container ON nodes(container, ord);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(explicit_parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_due ON nodes(due_date);`,
		`CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL DEFAULT '',
			ord INTEGER NOT NULL DEFAULT 0,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS kv (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadNodes reads every node into a fresh collection.
func (s *SQLite) LoadNodes(ctx context.Context, logger *slog.Logger, maxIndent int) (*Nodes, error) {
	xs, err := readJSONRows[model.Node](ctx, s.db, `SELECT json FROM nodes`)
	if err != nil {
		return nil, err
	}
	nodes := make([]*model.Node, 0, len(xs))
	for i := range xs {
		nodes = append(nodes, &xs[i])
	}
	return NewNodes(logger, maxIndent, nodes...), nil
}

// UpsertNodes writes the given nodes in one transaction.
func (s *SQLite) UpsertNodes(ctx context.Context, nodes ...*model.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	nowMs := time.Now().UTC().UnixMilli()
	for _, n := range nodes {
		if n == nil {
			continue
		}
		raw, err := json.Marshal(n)
		if err != nil {
			return err
		}
		due := ""
		completed := false
		if n.Task != nil {
			due = string(n.Task.DueDate)
			completed = n.Task.Completed
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO nodes(
			id, container, explicit_parent_id, folder_id, indent_level, ord,
			due_date, completed, json, updated_at_unixms
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Container.String(), n.ExplicitParentID, n.FolderID, n.IndentLevel, n.Order,
			due, boolToInt(completed), string(raw), nowMs,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) DeleteNodes(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DueBetween is the storage-side due-date range query. It reads the same rows as
// LoadNodes; nothing is duplicated for projection.
func (s *SQLite) DueBetween(ctx context.Context, from, to model.Date) ([]*model.Node, error) {
	return s.queryNodes(ctx, `SELECT json FROM nodes WHERE due_date != '' AND due_date >= ? AND due_date <= ? ORDER BY due_date, ord`, string(from), string(to))
}

func (s *SQLite) Overdue(ctx context.Context, today model.Date) ([]*model.Node, error) {
	return s.queryNodes(ctx, `SELECT json FROM nodes WHERE due_date != '' AND due_date < ? AND completed = 0 ORDER BY due_date, ord`, string(today))
}

func (s *SQLite) queryNodes(ctx context.Context, query string, args ...any) ([]*model.Node, error) {
	xs, err := readJSONRows[model.Node](ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Node, 0, len(xs))
	for i := range xs {
		out = append(out, &xs[i])
	}
	return out, nil
}

func (s *SQLite) CountNodes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM nodes`).Scan(&n)
	return n, err
}

func (s *SQLite) PutFolder(ctx context.Context, f model.Folder) error {
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		return errors.New("folder: missing id")
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO folders(id, parent_id, ord, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		f.ID, f.ParentFolderID, f.Order, string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLite) DeleteFolder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Folders(ctx context.Context) ([]model.Folder, error) {
	xs, err := readJSONRows[model.Folder](ctx, s.db, `SELECT json FROM folders ORDER BY parent_id, ord, id`)
	if err != nil {
		return nil, err
	}
	if xs == nil {
		xs = []model.Folder{}
	}
	return xs, nil
}

func (s *SQLite) GetFolder(ctx context.Context, id string) (model.Folder, error) {
	var js string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM folders WHERE id = ?`, strings.TrimSpace(id)).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Folder{}, ErrNotFound
	}
	if err != nil {
		return model.Folder{}, err
	}
	var f model.Folder
	if err := json.Unmarshal([]byte(js), &f); err != nil {
		return model.Folder{}, err
	}
	return f, nil
}

// Folder implements the folder lookup consulted during promotion.
func (s *SQLite) Folder(id string) (model.Folder, bool) {
	f, err := s.GetFolder(context.Background(), id)
	if err != nil {
		return model.Folder{}, false
	}
	return f, true
}

// Load returns the value stored under key, or nil when absent.
func (s *SQLite) Load(key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (s *SQLite) Save(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kv(k, v, updated_at_unixms) VALUES(?, ?, ?)`,
		key, value, time.Now().UTC().UnixMilli())
	return err
}

func readJSONRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var js string
		if err := rows.Scan(&js); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(js), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
