package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite is the SQLite storage backend.
type SQLite struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at cfg.Path and applies
// the schema.
func OpenSQLite(cfg *Config) (*SQLite, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMattn
	}

	logger := slog.Default().With("component", "storage.sqlite")

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, NewStorageError("sqlite", "mkdir", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn(driver, cfg))
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultConfig().MaxOpenConns
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	s := &SQLite{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"driver", driver,
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", maxOpen,
	)
	return s, nil
}

// dsn builds a data source name carrying the busy timeout, which must apply
// to every pooled connection rather than only the first.
func dsn(driver string, cfg *Config) string {
	busy := cfg.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = DefaultConfig().BusyTimeout.Milliseconds()
	}
	q := url.Values{}
	switch driver {
	case DriverModernc:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
		q.Add("_pragma", "foreign_keys(1)")
	default:
		q.Set("_busy_timeout", fmt.Sprint(busy))
		q.Set("_foreign_keys", "1")
	}
	if cfg.Path == ":memory:" {
		return "file::memory:?" + q.Encode()
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

func (s *SQLite) initialize() error {
	if s.config.WALMode && s.config.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixMilli()); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if !version.Valid || version.Int64 != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	s.logger.Debug("schema version verified", "version", version.Int64)
	return nil
}

// DB exposes the underlying handle, for health checks.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
