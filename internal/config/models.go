package config

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settings is the engine-wide configuration. Exactly one row exists; it is
// seeded on first start and mutated only through UpdateConfig.
type Settings struct {
	gorm.Model           `json:"-"`
	SwapFeePercent       decimal.Decimal `json:"swap_fee_percent"`
	DelegationFeePercent decimal.Decimal `json:"delegation_fee_percent"`
	EscrowLevel          decimal.Decimal `json:"escrow_level"`
	PerformanceFeeRate   decimal.Decimal `json:"performance_fee_rate"`
	PageLimit            int             `json:"page_limit"`
	Paused               bool            `json:"paused"`
}

// FeeCollector receives a share of every swap fee. Allocations across all
// collectors sum to exactly 1.
type FeeCollector struct {
	gorm.Model `json:"-"`
	Address    string          `gorm:"uniqueIndex" json:"address"`
	Allocation decimal.Decimal `json:"allocation"`
}
