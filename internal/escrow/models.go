package escrow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SwapAdjustment is one step of the multiplier curve applied to extended-mode
// swap amounts. Bucket is a percentage-of-completion threshold; the factor of
// the highest bucket at or below the vault's completion applies.
type SwapAdjustment struct {
	gorm.Model   `json:"-"`
	PositionType types.PositionType `gorm:"index:idx_position_bucket,unique" json:"position_type"`
	Bucket       int                `gorm:"index:idx_position_bucket,unique" json:"bucket"`
	Factor       decimal.Decimal    `json:"factor"`
}

// DisburseEscrowTask queues a cancelled extended-mode vault for escrow
// disbursement once its standard schedule would have completed
type DisburseEscrowTask struct {
	gorm.Model `json:"-"`
	VaultID    uint64    `gorm:"uniqueIndex" json:"vault_id"`
	DisburseAt time.Time `json:"disburse_at"`
}

// AdjustmentPair is the wire shape of one curve step: a [bucket, factor] tuple
type AdjustmentPair struct {
	Bucket int
	Factor decimal.Decimal
}

func (p *AdjustmentPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("swap adjustment must be a [bucket, factor] pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &p.Bucket); err != nil {
		return fmt.Errorf("swap adjustment bucket must be an integer: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Factor); err != nil {
		return fmt.Errorf("swap adjustment factor must be a decimal: %w", err)
	}
	return nil
}

func (p AdjustmentPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Bucket, p.Factor})
}
