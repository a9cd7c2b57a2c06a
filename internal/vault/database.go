package vault

import (
	"errors"
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// NextVaultID allocates the next integer vault id
func NextVaultID(tx *gorm.DB) (uint64, error) {
	var maxID uint64
	err := tx.Model(&types.Vault{}).Select("COALESCE(MAX(vault_id), 0)").Scan(&maxID).Error
	if err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

func (d *Database) GetVault(vaultID uint64) (*types.Vault, error) {
	var vault types.Vault
	err := d.db.Preload("Destinations").Preload("DCAPlus").
		Where("vault_id = ?", vaultID).First(&vault).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vault, nil
}

func (d *Database) GetVaults(filters VaultFilters) ([]types.Vault, error) {
	query := d.db.Preload("Destinations").Preload("DCAPlus").Order("vault_id asc")

	if filters.Owner != "" {
		query = query.Where("owner = ?", filters.Owner)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var vaults []types.Vault
	if err := query.Find(&vaults).Error; err != nil {
		return nil, err
	}
	return vaults, nil
}

// SaveVaultTx persists the vault's own columns inside the caller's transaction.
// Associations are saved explicitly by the caller so a cycle only writes what
// it changed.
func SaveVaultTx(tx *gorm.DB, vault *types.Vault) error {
	if err := tx.Omit("Destinations", "DCAPlus").Save(vault).Error; err != nil {
		return err
	}
	if vault.DCAPlus != nil {
		if err := tx.Save(vault.DCAPlus).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetIdempotencyRecord retrieves an idempotency record by key, nil when absent
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) SaveIdempotencyRecord(key string, resourceID uint64, resourceType string, expiresAt time.Time) error {
	record := IdempotencyRecord{
		IdempotencyKey: key,
		ResourceID:     resourceID,
		ResourceType:   resourceType,
		ExpiresAt:      expiresAt,
	}
	return d.db.Create(&record).Error
}

// Begin starts a transaction on the underlying connection
func (d *Database) Begin() *gorm.DB {
	return d.db.Begin()
}
