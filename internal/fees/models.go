package fees

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomSwapFee overrides the global swap fee percent for a single receive denom
type CustomSwapFee struct {
	gorm.Model     `json:"-"`
	Denom          string          `gorm:"uniqueIndex" json:"denom"`
	SwapFeePercent decimal.Decimal `json:"swap_fee_percent"`
}
