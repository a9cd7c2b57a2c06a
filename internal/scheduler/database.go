package scheduler

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetTrigger(vaultID uint64) (*Trigger, error) {
	var trigger Trigger
	if err := d.db.Where("vault_id = ?", vaultID).First(&trigger).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trigger, nil
}

// GetDueTriggerIDs lists vaults whose time trigger has elapsed, oldest first
func (d *Database) GetDueTriggerIDs(now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := d.db.Model(&Trigger{}).
		Where("trigger_type = ? AND target_time <= ?", TriggerTypeTime, now).
		Order("target_time asc").
		Limit(limit).
		Pluck("vault_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
