package vault

import (
	"errors"
	"time"

	"github.com/ksred/dca-vault-api/internal/scheduler"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrVaultNotFound       = errors.New("vault not found")
	ErrTriggerNotFound     = errors.New("no trigger exists for vault")
	ErrVaultCancelled      = errors.New("vault is already cancelled")
	ErrWrongOwner          = errors.New("provided an incorrect owner address for vault")
	ErrDenomMismatch       = errors.New("deposited denom does not match vault swap denom")
	ErrInvalidDeposit      = errors.New("deposit amount must be positive")
	ErrEnginePaused        = errors.New("engine is paused")
	ErrEscrowNotDisbursable = errors.New("escrow is not ready for disbursement")
	ErrBadDestinations     = errors.New("destination allocations must sum to exactly 1")
)

// IdempotencyRecord pins a client-supplied key to the vault a mutating
// request produced, so retries return the original result
type IdempotencyRecord struct {
	gorm.Model     `json:"-"`
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     uint64    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// CreateVaultRequest is the message shape for vault creation
type CreateVaultRequest struct {
	Owner                string               `json:"owner" binding:"required"`
	Label                string               `json:"label,omitempty"`
	SwapDenom            string               `json:"swap_denom" binding:"required"`
	ReceiveDenom         string               `json:"receive_denom" binding:"required"`
	SwapAmount           int64                `json:"swap_amount" binding:"required"`
	InitialDeposit       int64                `json:"initial_deposit"`
	TimeInterval         types.TimeInterval   `json:"time_interval" binding:"required"`
	StartTime            *time.Time           `json:"start_time,omitempty"`
	MinimumReceiveAmount *int64               `json:"minimum_receive_amount,omitempty"`
	SlippageTolerance    *decimal.Decimal     `json:"slippage_tolerance,omitempty"`
	PositionType         types.PositionType   `json:"position_type,omitempty"`
	Destinations         []DestinationRequest `json:"destinations,omitempty"`
	UseExtendedMode      bool                 `json:"use_extended_mode"`
}

type DestinationRequest struct {
	Address    string                    `json:"address" binding:"required"`
	Allocation decimal.Decimal           `json:"allocation"`
	Action     types.PostExecutionAction `json:"action"`
}

// DepositRequest is the message shape for topping up a vault
type DepositRequest struct {
	Address string     `json:"address" binding:"required"`
	Amount  types.Coin `json:"amount" binding:"required"`
}

// VaultResponse is a vault together with its scheduling record. Trigger is
// null once the vault is fully executed.
type VaultResponse struct {
	*types.Vault
	Trigger *scheduler.Trigger `json:"trigger"`
}

// VaultFilters narrows GetVaults queries
type VaultFilters struct {
	Owner  string
	Status types.VaultStatus
	Limit  int
}
