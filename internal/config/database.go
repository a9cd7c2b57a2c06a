package config

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

func (d *Database) GetSettings() (*Settings, error) {
	var settings Settings
	if err := d.db.First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (d *Database) SaveSettings(settings *Settings) error {
	return d.db.Save(settings).Error
}

func (d *Database) GetFeeCollectors() ([]FeeCollector, error) {
	var collectors []FeeCollector
	if err := d.db.Order("id asc").Find(&collectors).Error; err != nil {
		return nil, err
	}
	return collectors, nil
}

// ReplaceFeeCollectors swaps the whole collector set in one transaction
func (d *Database) ReplaceFeeCollectors(collectors []FeeCollector) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("1 = 1").Delete(&FeeCollector{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	for i := range collectors {
		if err := tx.Create(&collectors[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

// EnsureSettings seeds the singleton settings row when missing
func (d *Database) EnsureSettings(defaults Settings) error {
	var settings Settings
	err := d.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(&defaults).Error
	}
	return err
}
