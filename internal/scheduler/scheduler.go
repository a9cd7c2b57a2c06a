package scheduler

import (
	"errors"
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"gorm.io/gorm"
)

// ErrTriggerNotDue is returned when a trigger is evaluated before its target
// time has elapsed. The operation is recoverable: the caller resubmits once the
// target time passes. The message is part of the external contract.
var ErrTriggerNotDue = errors.New("trigger execution time has not yet elapsed")

// Service owns the trigger table and all due-time evaluation
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// GetTrigger returns the vault's trigger, or nil once the vault is fully executed
func (s *Service) GetTrigger(vaultID uint64) (*Trigger, error) {
	return s.db.GetTrigger(vaultID)
}

// GetDueTriggerIDs lists vaults eligible for execution at the given time
func (s *Service) GetDueTriggerIDs(now time.Time, limit int) ([]uint64, error) {
	return s.db.GetDueTriggerIDs(now, limit)
}

// IsDue reports whether the trigger's target time has elapsed
func IsDue(trigger *Trigger, now time.Time) bool {
	return !now.Before(trigger.TargetTime)
}

// EnsureDue fails with ErrTriggerNotDue when the target time has not elapsed
func EnsureDue(trigger *Trigger, now time.Time) error {
	if !IsDue(trigger, now) {
		return ErrTriggerNotDue
	}
	return nil
}

// CreateTx inserts a vault's trigger inside the caller's transaction
func CreateTx(tx *gorm.DB, vaultID uint64, targetTime time.Time) error {
	return tx.Create(&Trigger{
		VaultID:     vaultID,
		TriggerType: TriggerTypeTime,
		TargetTime:  targetTime,
	}).Error
}

// AdvanceTx moves the trigger exactly one interval forward from its previous
// target time. Advancing from "now" would let an overdue vault drift; each
// evaluation consumes one scheduling cycle regardless of when it ran.
func AdvanceTx(tx *gorm.DB, trigger *Trigger, interval types.TimeInterval) error {
	trigger.TargetTime = interval.Next(trigger.TargetTime)
	return tx.Save(trigger).Error
}

// ClearTx removes the vault's trigger, marking it fully executed
func ClearTx(tx *gorm.DB, vaultID uint64) error {
	return tx.Unscoped().Where("vault_id = ?", vaultID).Delete(&Trigger{}).Error
}
