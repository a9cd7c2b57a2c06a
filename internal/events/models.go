package events

import (
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"gorm.io/gorm"
)

// Event types stored in the ledger
const (
	TypeFundsDeposited     = "vault_funds_deposited"
	TypeExecutionTriggered = "vault_execution_triggered"
	TypeExecutionCompleted = "vault_execution_completed"
	TypeExecutionSkipped   = "vault_execution_skipped"
	TypeVaultCancelled     = "vault_cancelled"
	TypeEscrowDisbursed    = "vault_escrow_disbursed"
)

// Event is an append-only ledger entry keyed by the vault it belongs to.
// Payload holds the JSON-encoded EventData; rows are never mutated or deleted.
type Event struct {
	gorm.Model `json:"-"`
	EventID    string    `gorm:"uniqueIndex" json:"event_id"`
	ResourceID uint64    `gorm:"index" json:"resource_id"`
	Type       string    `json:"type"`
	Payload    string    `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventData is a closed tagged union: exactly one member is non-nil
type EventData struct {
	FundsDeposited     *FundsDeposited     `json:"vault_funds_deposited,omitempty"`
	ExecutionTriggered *ExecutionTriggered `json:"vault_execution_triggered,omitempty"`
	ExecutionCompleted *ExecutionCompleted `json:"vault_execution_completed,omitempty"`
	ExecutionSkipped   *ExecutionSkipped   `json:"vault_execution_skipped,omitempty"`
	VaultCancelled     *VaultCancelled     `json:"vault_cancelled,omitempty"`
	EscrowDisbursed    *EscrowDisbursed    `json:"vault_escrow_disbursed,omitempty"`
}

// Type returns the ledger type tag for the populated variant
func (d EventData) Type() string {
	switch {
	case d.FundsDeposited != nil:
		return TypeFundsDeposited
	case d.ExecutionTriggered != nil:
		return TypeExecutionTriggered
	case d.ExecutionCompleted != nil:
		return TypeExecutionCompleted
	case d.ExecutionSkipped != nil:
		return TypeExecutionSkipped
	case d.VaultCancelled != nil:
		return TypeVaultCancelled
	case d.EscrowDisbursed != nil:
		return TypeEscrowDisbursed
	}
	return ""
}

type FundsDeposited struct {
	Amount types.Coin `json:"amount"`
}

type ExecutionTriggered struct {
	AssetPrice string `json:"asset_price"`
	BaseDenom  string `json:"base_denom"`
	QuoteDenom string `json:"quote_denom"`
}

type ExecutionCompleted struct {
	Sent     types.Coin `json:"sent"`
	Received types.Coin `json:"received"`
	Fee      types.Coin `json:"fee"`
}

type ExecutionSkipped struct {
	Reason SkipReason `json:"reason"`
}

// SkipReason carries exactly one skip cause
type SkipReason struct {
	PriceThresholdExceeded    *PriceThresholdExceeded `json:"price_threshold_exceeded,omitempty"`
	SlippageToleranceExceeded bool                    `json:"slippage_tolerance_exceeded,omitempty"`
}

type PriceThresholdExceeded struct {
	Price string `json:"price"`
}

type VaultCancelled struct{}

type EscrowDisbursed struct {
	Released       types.Coin `json:"released"`
	PerformanceFee types.Coin `json:"performance_fee"`
}

// EventResponse is the query-surface shape: the stored row with its decoded payload
type EventResponse struct {
	EventID    string    `json:"event_id"`
	ResourceID uint64    `json:"resource_id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Data       EventData `json:"data"`
}
