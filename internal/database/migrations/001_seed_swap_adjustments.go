package migrations

import (
	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedSwapAdjustments installs an identity multiplier curve for both position
// types so extended-mode vaults execute at the nominal swap amount until an
// operator uploads a real curve
func SeedSwapAdjustments(db *gorm.DB) error {
	var count int64
	if err := db.Model(&escrow.SwapAdjustment{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, positionType := range []types.PositionType{types.PositionTypeEnter, types.PositionTypeExit} {
		adjustment := escrow.SwapAdjustment{
			PositionType: positionType,
			Bucket:       0,
			Factor:       decimal.NewFromInt(1),
		}
		if err := db.Create(&adjustment).Error; err != nil {
			return err
		}
	}

	return nil
}
