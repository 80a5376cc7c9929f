// Package repository implements the repository ports on SQLite.
package repository

import (
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NewStore wires every SQLite repository over db
func NewStore(db *sqlite.DB, logger *zap.Logger) port.Store {
	return port.Store{
		Templates: NewTemplateRepository(db, logger),
		Requests:  NewRequestRepository(db, logger),
		Instances: NewInstanceRepository(db, logger),
		Steps:     NewStepRepository(db, logger),
		Actions:   NewActionRepository(db, logger),
		Users:     NewUserRepository(db, logger),
		Tx:        db,
	}
}
