package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	fingerprint      TEXT NOT NULL,
	catalogue_hash   TEXT NOT NULL,
	policy           TEXT NOT NULL,
	budget           TEXT NOT NULL,
	total_cost       TEXT NOT NULL,
	total_preference REAL NOT NULL,
	approximate      INTEGER NOT NULL,
	assignment       TEXT NOT NULL,
	duration_ns      INTEGER NOT NULL,
	created_at       INTEGER NOT NULL,
	raw_result       BLOB
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC);
CREATE INDEX IF NOT EXISTS runs_fingerprint ON runs (fingerprint);
`

const runColumns = `id, fingerprint, catalogue_hash, policy, budget, total_cost,
	total_preference, approximate, assignment, duration_ns, created_at, raw_result`

// SQLiteStore is a SQLite storage backend
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) a SQLite history database
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, run *StoredRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	assignment, err := json.Marshal(run.Assignment)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Fingerprint, run.CatalogueHash, run.Policy,
		run.Budget.String(), run.TotalCost.String(), run.TotalPreference,
		run.Approximate, string(assignment), int64(run.Duration),
		run.CreatedAt.UnixNano(), []byte(run.RawResult),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*StoredRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter *ListFilter) ([]*StoredRun, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Fingerprint != "" {
			where = append(where, "fingerprint = ?")
			args = append(args, filter.Fingerprint)
		}
		if filter.CatalogueHash != "" {
			where = append(where, "catalogue_hash = ?")
			args = append(args, filter.CatalogueHash)
		}
		if !filter.Since.IsZero() {
			where = append(where, "created_at >= ?")
			args = append(args, filter.Since.UnixNano())
		}
		if !filter.Until.IsZero() {
			where = append(where, "created_at <= ?")
			args = append(args, filter.Until.UnixNano())
		}
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter != nil && (filter.Limit > 0 || filter.Offset > 0) {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*StoredRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*StoredRun, error) {
	var (
		run        StoredRun
		assignment string
		durationNs int64
		createdAt  int64
		raw        []byte
	)
	err := row.Scan(
		&run.ID, &run.Fingerprint, &run.CatalogueHash, &run.Policy,
		&run.Budget, &run.TotalCost, &run.TotalPreference, &run.Approximate,
		&assignment, &durationNs, &createdAt, &raw,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(assignment), &run.Assignment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment: %w", err)
	}
	run.Duration = time.Duration(durationNs)
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	if len(raw) > 0 {
		run.RawResult = json.RawMessage(raw)
	}
	return &run, nil
}
