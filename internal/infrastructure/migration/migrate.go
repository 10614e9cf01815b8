// Package migration keeps the database schema in step with the persistence
// models.
package migration

import (
	"fmt"

	"gorm.io/gorm"

	"glint/internal/infrastructure/persistence/models"
)

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&models.AuthorizationModel{},
		&models.TrialModel{},
	}
}

// Run applies the schema for all models.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
