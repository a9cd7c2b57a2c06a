package scheduler

import (
	"time"

	"gorm.io/gorm"
)

// Trigger variants. Only the time variant is currently evaluated; the price
// variant is reserved for limit-order style triggers.
const (
	TriggerTypeTime  = "time"
	TriggerTypePrice = "price"
)

// Trigger is the scheduling record for a vault's next execution. A vault has at
// most one trigger; absence of a trigger marks the vault as fully executed.
type Trigger struct {
	gorm.Model  `json:"-"`
	VaultID     uint64    `gorm:"uniqueIndex" json:"vault_id"`
	TriggerType string    `json:"type"`
	TargetTime  time.Time `json:"target_time"`
}
