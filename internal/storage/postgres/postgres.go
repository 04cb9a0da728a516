// Package postgres implements the storage.Backend interface on PostgreSQL.
// Writes are queued and flushed by the embedded GORM backend.
package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/database"
	"github.com/pursuitlab/roadchase/internal/logging"
	gormstorage "github.com/pursuitlab/roadchase/internal/storage/gorm"
)

// Connector opens the database connection; replaced in tests.
type Connector func(config.DBConfig) (*gorm.DB, error)

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg     config.DBConfig
	log     *logging.SlogManager
	connect Connector
}

// New creates a new Postgres storage backend. The connection is made in Init.
func New(cfg config.DBConfig, logManager *logging.SlogManager) *Backend {
	return &Backend{
		cfg:     cfg,
		log:     logManager,
		connect: database.GetPostgresDB,
	}
}

// WithConnector overrides how the connection is made.
func (b *Backend) WithConnector(c Connector) *Backend {
	b.connect = c
	return b
}

// Init connects, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	db, err := b.connect(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres at %s:%s: %w", b.cfg.Host, b.cfg.Port, err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: b.log,
	})
	return b.Backend.Init()
}

// Close stops the embedded backend if Init succeeded.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
