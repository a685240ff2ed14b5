// Package persist snapshots task stores into a SQL database. SQLite is
// available through two drivers ("sqlite" is pure Go, "sqlite3" needs cgo)
// and Postgres through pgx.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gtgtree/gtgtree/pkg/loader"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
)

const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "pgx"
)

var sqlOpen = sql.Open

// DB handles task snapshot persistence
type DB struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open opens or creates the snapshot database. For SQLite drivers dsn is a
// file path whose directory is created if missing.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch driver {
	case DriverSQLite, DriverSQLite3:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{db: db, driver: driver, logger: logger.With("driver", driver)}
	if err := d.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	payload := "TEXT"
	if d.driver == DriverPostgres {
		payload = "JSONB"
	}
	schema := `CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload ` + payload + ` NOT NULL
	)`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites '?' placeholders for drivers that number them.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Save replaces the stored snapshot with the store's current contents.
func (d *DB) Save(ctx context.Context, store *tasks.Store) (int, error) {
	records := loader.Records(store)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return 0, fmt.Errorf("clear snapshot: %w", err)
	}
	insert := d.rebind(`INSERT INTO tasks (id, position, payload) VALUES (?, ?, ?)`)
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("encode task %s: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, insert, rec.ID, i, string(payload)); err != nil {
			return 0, fmt.Errorf("insert task %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	d.logger.Debug("snapshot saved", "tasks", len(records))
	return len(records), nil
}

// Records returns the stored snapshot in saved order. Rows that fail to
// decode are skipped with a warning.
func (d *DB) Records(ctx context.Context) ([]model.Record, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, payload FROM tasks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		var rec model.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			d.logger.Warn("skipping undecodable task row", "id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Load populates store from the stored snapshot.
func (d *DB) Load(ctx context.Context, store *tasks.Store) error {
	records, err := d.Records(ctx)
	if err != nil {
		return err
	}
	return loader.Populate(store, records)
}
