package storage

import (
	"context"
	"fmt"
	"time"

	"kiro-hq/gateway/pkg/audit"
	"kiro-hq/gateway/pkg/models"
	"kiro-hq/gateway/pkg/pool"
)

// Driver names accepted by Open.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
	DriverMemory  = "memory"
)

// APIKey is a gateway API key stored in the database, in addition to the
// keys listed in configuration.
type APIKey struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyStore manages gateway API keys.
type KeyStore interface {
	InsertAPIKey(ctx context.Context, key APIKey) error
	DeleteAPIKey(ctx context.Context, key string) error
	ListAPIKeys(ctx context.Context) ([]APIKey, error)

	// LookupAPIKey reports whether key exists and is enabled.
	LookupAPIKey(ctx context.Context, key string) (bool, error)
}

// Store is everything the gateway persists.
type Store interface {
	pool.Store
	models.Store
	audit.Store
	KeyStore

	// SeedCatalog inserts models and rules when the catalogue is empty and
	// reports whether it did.
	SeedCatalog(ctx context.Context, all []models.ModelInfo, rules []models.MappingRule) (bool, error)

	Close() error
}

// Config configures Open.
type Config struct {
	// Driver is "sqlite3", "sqlite" or "memory".
	// Default: sqlite3
	Driver string

	// Path is the database file path.
	// Default: data/kiro.db
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:       DriverMattn,
		Path:         "data/kiro.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Open returns the store selected by cfg.Driver.
func Open(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverMattn, DriverModernc, "":
		return OpenSQLite(cfg)
	default:
		return nil, NewStorageError(cfg.Driver, "open", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
