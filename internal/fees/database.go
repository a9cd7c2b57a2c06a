package fees

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) UpsertCustomSwapFee(fee *CustomSwapFee) error {
	var existing CustomSwapFee
	err := d.db.Where("denom = ?", fee.Denom).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(fee).Error
	}
	if err != nil {
		return err
	}

	existing.SwapFeePercent = fee.SwapFeePercent
	return d.db.Save(&existing).Error
}

func (d *Database) GetCustomSwapFee(denom string) (*CustomSwapFee, error) {
	var fee CustomSwapFee
	if err := d.db.Where("denom = ?", denom).First(&fee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

func (d *Database) GetCustomSwapFees() ([]CustomSwapFee, error) {
	var records []CustomSwapFee
	if err := d.db.Order("denom asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (d *Database) DeleteCustomSwapFee(denom string) error {
	return d.db.Unscoped().Where("denom = ?", denom).Delete(&CustomSwapFee{}).Error
}
