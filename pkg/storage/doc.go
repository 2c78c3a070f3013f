// Package storage persists gateway state: accounts, the model catalogue and
// mapping rules, gateway API keys and the audit request log.
//
// # Backends
//
//   - SQLite: the production backend. Two drivers are supported: "sqlite3"
//     (github.com/mattn/go-sqlite3, requires cgo) and "sqlite"
//     (modernc.org/sqlite, pure Go).
//   - Memory: an in-process store for tests and throwaway runs.
//
// Both satisfy pool.Store, models.Store, audit.Store and KeyStore.
//
// # Basic Usage
//
//	store, err := storage.Open(&storage.Config{
//	    Driver:      "sqlite",
//	    Path:        "data/kiro.db",
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if _, err := store.SeedCatalog(ctx, models.DefaultModels(), models.DefaultMappings()); err != nil {
//	    log.Fatal(err)
//	}
//
// Timestamps are stored as Unix milliseconds; zero means unset.
package storage
