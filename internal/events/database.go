package events

import (
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateEvent(event *Event) error {
	return d.db.Create(event).Error
}

// GetEventsByResourceID returns the ledger for a single vault in order of occurrence
func (d *Database) GetEventsByResourceID(resourceID uint64) ([]Event, error) {
	var records []Event
	if err := d.db.Where("resource_id = ?", resourceID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (d *Database) CountEventsByResourceID(resourceID uint64) (int64, error) {
	var count int64
	err := d.db.Model(&Event{}).Where("resource_id = ?", resourceID).Count(&count).Error
	return count, err
}
