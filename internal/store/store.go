package store

import (
	"database/sql"
	"time"
)

// Store holds all sub-stores used by the application.
type Store struct {
	DB       *sql.DB
	Mappings MappingStore
	SyncLog  SyncLogStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	return &Store{
		DB:       db,
		Mappings: NewSQLiteMappingStore(db),
		SyncLog:  NewSQLiteSyncLogStore(db),
	}
}

// now returns the current UTC time in the store's timestamp format.
func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
