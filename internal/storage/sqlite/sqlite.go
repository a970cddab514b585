// Package sqlitestorage implements the storage.Backend interface on a
// private in-memory SQLite database. Nothing is written to disk.
package sqlitestorage

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackmapper/editor/internal/database"
	gormstorage "github.com/trackmapper/editor/internal/storage/gorm"
)

// Backend wraps the GORM backend with an owned in-memory connection.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a new SQLite storage backend.
func New(log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:      db,
		log:     log,
	}, nil
}

// Close clears the session and releases the database, which discards it.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
