package audit

import (
	"fmt"

	"gatekeeper/internal/models"
)

// Factory provides a centralized way to create audit stores based on
// configuration, so backends can be swapped without code changes.
type Factory struct{}

// NewFactory creates a new audit store factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates an audit store based on the provided configuration.
// Supported backends:
//   - memory: in-memory ring (default; bounded by max_events)
//   - sqlite: SQLite database (single-node persistence)
//   - postgres: PostgreSQL database (shared across replicas)
func (f *Factory) Create(cfg models.AuditConfig) (Store, error) {
	config := Config{
		Type:      cfg.Store,
		MaxEvents: cfg.MaxEvents,
		DSN:       cfg.Database.DSN,
	}

	switch cfg.Store {
	case models.AuditStoreMemory:
		return NewMemoryStore(config.MaxEvents), nil
	case models.AuditStoreSQLite:
		return NewSQLiteStore(config)
	case models.AuditStorePostgres:
		return NewPostgresStore(config)
	default:
		return nil, fmt.Errorf("unsupported audit store: %s", cfg.Store)
	}
}

// SupportedStores returns the list of supported backend types.
func (f *Factory) SupportedStores() []string {
	return []string{models.AuditStoreMemory, models.AuditStoreSQLite, models.AuditStorePostgres}
}
