package escrow

import (
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

// ReplaceAdjustments swaps the whole curve for a position type in one transaction
func (d *Database) ReplaceAdjustments(positionType types.PositionType, pairs []AdjustmentPair) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("position_type = ?", positionType).Delete(&SwapAdjustment{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, pair := range pairs {
		adjustment := SwapAdjustment{
			PositionType: positionType,
			Bucket:       pair.Bucket,
			Factor:       pair.Factor,
		}
		if err := tx.Create(&adjustment).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func (d *Database) GetAdjustments(positionType types.PositionType) ([]SwapAdjustment, error) {
	var records []SwapAdjustment
	err := d.db.Where("position_type = ?", positionType).Order("bucket asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (d *Database) SaveDisburseTask(task *DisburseEscrowTask) error {
	return d.db.Create(task).Error
}

func (d *Database) GetDueDisburseTasks(now time.Time, limit int) ([]DisburseEscrowTask, error) {
	var tasks []DisburseEscrowTask
	err := d.db.Where("disburse_at <= ?", now).Order("disburse_at asc").Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (d *Database) DeleteDisburseTask(vaultID uint64) error {
	return d.db.Unscoped().Where("vault_id = ?", vaultID).Delete(&DisburseEscrowTask{}).Error
}
