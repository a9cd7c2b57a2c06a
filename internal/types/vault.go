package types

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vault is a recurring-swap position. Principal sits in Balance and is consumed
// SwapAmount at a time; net proceeds accumulate in ReceivedAmount.
type Vault struct {
	gorm.Model `json:"-"`
	VaultID    uint64      `gorm:"uniqueIndex" json:"id"`
	Owner      string      `gorm:"index" json:"owner"`
	Label      string      `json:"label,omitempty"`
	Status     VaultStatus `gorm:"index" json:"status"`

	Balance        Coin  `gorm:"embedded;embeddedPrefix:balance_" json:"balance"`
	SwapAmount     int64 `json:"swap_amount"`
	SwappedAmount  Coin  `gorm:"embedded;embeddedPrefix:swapped_" json:"swapped_amount"`
	ReceivedAmount Coin  `gorm:"embedded;embeddedPrefix:received_" json:"received_amount"`

	PositionType PositionType `json:"position_type"`
	TimeInterval TimeInterval `json:"time_interval"`

	MinimumReceiveAmount *int64              `json:"minimum_receive_amount,omitempty"`
	SlippageTolerance    decimal.NullDecimal `json:"slippage_tolerance,omitempty"`

	Destinations []Destination  `gorm:"foreignKey:VaultID;references:VaultID" json:"destinations"`
	DCAPlus      *DCAPlusConfig `gorm:"foreignKey:VaultID;references:VaultID" json:"dca_plus_config,omitempty"`
}

// SwapDenom is the denom the vault spends on each execution
func (v *Vault) SwapDenom() string {
	return v.Balance.Denom
}

// ReceiveDenom is the denom the vault accumulates
func (v *Vault) ReceiveDenom() string {
	return v.ReceivedAmount.Denom
}

func (v *Vault) IsScheduled() bool {
	return v.Status == VaultStatusScheduled
}

func (v *Vault) IsCancelled() bool {
	return v.Status == VaultStatusCancelled
}

// IsDrained reports whether the principal has been fully consumed
func (v *Vault) IsDrained() bool {
	return v.Balance.Amount == 0
}

// HasLowFunds reports whether the remaining balance cannot cover another full swap
func (v *Vault) HasLowFunds() bool {
	return v.Balance.Amount < v.SwapAmount
}

// TotalDeposited is everything ever paid into the vault. Invariant:
// swapped + balance == total deposited.
func (v *Vault) TotalDeposited() int64 {
	return v.SwappedAmount.Amount + v.Balance.Amount
}

// Destination receives a share of each execution's disbursable proceeds
type Destination struct {
	gorm.Model `json:"-"`
	VaultID    uint64              `gorm:"index" json:"-"`
	Address    string              `json:"address"`
	Allocation decimal.Decimal     `json:"allocation"`
	Action     PostExecutionAction `json:"action"`
}

// DCAPlusConfig holds the extended-mode state: the escrow withheld from
// disbursement and the shadow accumulators of the simulated standard schedule.
type DCAPlusConfig struct {
	gorm.Model `json:"-"`
	VaultID    uint64 `gorm:"uniqueIndex" json:"-"`

	EscrowLevel     decimal.Decimal `json:"escrow_level"`
	EscrowedBalance Coin            `gorm:"embedded;embeddedPrefix:escrowed_" json:"escrowed_balance"`

	TotalDeposit           Coin `gorm:"embedded;embeddedPrefix:total_deposit_" json:"total_deposit"`
	StandardSwappedAmount  Coin `gorm:"embedded;embeddedPrefix:standard_swapped_" json:"standard_dca_swapped_amount"`
	StandardReceivedAmount Coin `gorm:"embedded;embeddedPrefix:standard_received_" json:"standard_dca_received_amount"`
}

// StandardScheduleFinished reports whether the simulated non-adjusted schedule
// has consumed the full deposit
func (c *DCAPlusConfig) StandardScheduleFinished() bool {
	return c.StandardSwappedAmount.Amount >= c.TotalDeposit.Amount
}

// HasUnclaimedEscrow reports whether escrowed proceeds are still held back
func (c *DCAPlusConfig) HasUnclaimedEscrow() bool {
	return c.EscrowedBalance.Amount > 0
}
