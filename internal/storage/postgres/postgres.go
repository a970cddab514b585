// Package postgres implements the storage.Backend interface on a shared
// Postgres layers table, read by external tile renderers. Rows are scoped to
// the editing session and removed when the session closes.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackmapper/editor/internal/config"
	"github.com/trackmapper/editor/internal/database"
	gormstorage "github.com/trackmapper/editor/internal/storage/gorm"
)

// Backend wraps the GORM backend with an owned Postgres connection pool.
type Backend struct {
	*gormstorage.Backend
	db *gorm.DB
}

// New connects to Postgres. The connection is validated before returning.
func New(cfg config.DBConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenPostgres(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewWithDB(db, log), nil
}

// NewWithDB uses an existing connection.
func NewWithDB(db *gorm.DB, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:      db,
	}
}

// Close clears the session rows and closes the pool.
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
