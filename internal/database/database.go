package database

import (
	"fmt"

	"github.com/ksred/dca-vault-api/internal/config"
	"github.com/ksred/dca-vault-api/internal/database/migrations"
	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/events"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/internal/scheduler"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/ksred/dca-vault-api/internal/vault"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	return Open("vault.db")
}

// Open connects to the given sqlite file and migrates the full schema
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate auto-migrates every schema and runs the data migrations
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.Vault{},
		&types.Destination{},
		&types.DCAPlusConfig{},
		&scheduler.Trigger{},
		&events.Event{},
		&fees.CustomSwapFee{},
		&config.Settings{},
		&config.FeeCollector{},
		&escrow.SwapAdjustment{},
		&escrow.DisburseEscrowTask{},
		&vault.IdempotencyRecord{},
	)
	if err != nil {
		return err
	}

	if err := migrations.SeedSwapAdjustments(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
