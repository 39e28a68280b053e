package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
)

// SQLiteRepository persists the history log as one JSON blob per
// namespace in a local SQLite database. A single row keeps the storage
// model identical to the whole-log Repository contract.
type SQLiteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite creates (or opens) the history database at path, creating
// parent directories as needed.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, core.NewStorageError(fmt.Sprintf("create history dir: %v", err))
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.NewStorageError(fmt.Sprintf("open history db: %v", err))
	}
	repo := &SQLiteRepository{db: db}
	if err := repo.init(); err != nil {
		_ = db.Close()
		return nil, core.NewStorageError(fmt.Sprintf("init history db: %v", err))
	}
	return repo, nil
}

func (r *SQLiteRepository) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS history (
		namespace TEXT PRIMARY KEY,
		payload   TEXT NOT NULL
	);`)
	return err
}

// Load reads the log for the fixed namespace. A missing row is an empty
// history; an unparseable payload is also treated as empty rather than
// surfaced, so one corrupt write cannot brick the dashboard.
func (r *SQLiteRepository) Load(ctx context.Context) ([]types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM history WHERE namespace = ?`, Namespace).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStorageError(fmt.Sprintf("read history: %v", err))
	}

	var log []types.Analysis
	if err := json.Unmarshal([]byte(payload), &log); err != nil {
		return nil, nil
	}
	return log, nil
}

// Save replaces the namespace's log wholesale.
func (r *SQLiteRepository) Save(ctx context.Context, log []types.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.Marshal(log)
	if err != nil {
		return core.NewStorageError(fmt.Sprintf("encode history: %v", err))
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO history (namespace, payload) VALUES (?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET payload = excluded.payload`,
		Namespace, string(payload))
	if err != nil {
		return core.NewStorageError(fmt.Sprintf("write history: %v", err))
	}
	return nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error { return r.db.Close() }
