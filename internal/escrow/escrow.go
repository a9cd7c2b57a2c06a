package escrow

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/ksred/dca-vault-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidAdjustment = errors.New("swap adjustment factors must be greater than 0 and at most 10")

// Service owns the swap-adjustment curves and the escrow bookkeeping for
// extended-mode vaults
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// NewConfig initialises the extended-mode state for a freshly created vault
func NewConfig(escrowLevel decimal.Decimal, deposit types.Coin, receiveDenom string) *types.DCAPlusConfig {
	return &types.DCAPlusConfig{
		EscrowLevel:            escrowLevel,
		EscrowedBalance:        types.NewCoin(0, receiveDenom),
		TotalDeposit:           deposit,
		StandardSwappedAmount:  types.NewCoin(0, deposit.Denom),
		StandardReceivedAmount: types.NewCoin(0, receiveDenom),
	}
}

// UpdateSwapAdjustments replaces the multiplier curve for one position type
func (s *Service) UpdateSwapAdjustments(positionType types.PositionType, pairs []AdjustmentPair) error {
	for _, pair := range pairs {
		if !pair.Factor.IsPositive() || pair.Factor.GreaterThan(decimal.NewFromInt(10)) {
			return ErrInvalidAdjustment
		}
	}

	if err := s.db.ReplaceAdjustments(positionType, pairs); err != nil {
		return err
	}

	log.Info().
		Str("service", "escrow").
		Str("position_type", string(positionType)).
		Int("steps", len(pairs)).
		Msg("swap adjustment curve updated")

	return nil
}

// Factor returns the multiplier for a vault at the given percentage of
// completion: the factor of the highest bucket at or below the completion,
// or 1 when no step applies.
func (s *Service) Factor(positionType types.PositionType, percentComplete decimal.Decimal) (decimal.Decimal, error) {
	adjustments, err := s.db.GetAdjustments(positionType)
	if err != nil {
		return decimal.Zero, err
	}

	factor := decimal.NewFromInt(1)
	for _, adjustment := range adjustments {
		if percentComplete.GreaterThanOrEqual(decimal.NewFromInt(int64(adjustment.Bucket))) {
			factor = adjustment.Factor
		}
	}
	return factor, nil
}

// AdjustedSwapAmount applies the current multiplier to the vault's nominal
// swap amount for this cycle only, capped at the remaining balance. The
// nominal swap amount is never persisted as adjusted.
func (s *Service) AdjustedSwapAmount(vault *types.Vault) (int64, error) {
	if vault.DCAPlus == nil {
		return min64(vault.SwapAmount, vault.Balance.Amount), nil
	}

	total := vault.DCAPlus.TotalDeposit.Amount
	percentComplete := decimal.Zero
	if total > 0 {
		percentComplete = decimal.NewFromInt(vault.SwappedAmount.Amount).
			Div(decimal.NewFromInt(total)).
			Mul(decimal.NewFromInt(100))
	}

	factor, err := s.Factor(vault.PositionType, percentComplete)
	if err != nil {
		return 0, err
	}

	adjusted := decimal.NewFromInt(vault.SwapAmount).Mul(factor).Floor().IntPart()
	return min64(adjusted, vault.Balance.Amount), nil
}

// Withhold moves the escrow fraction of an execution's net proceeds into the
// escrowed balance and returns the withheld amount
func Withhold(cfg *types.DCAPlusConfig, net int64) int64 {
	withheld := decimal.NewFromInt(net).Mul(cfg.EscrowLevel).Floor().IntPart()
	cfg.EscrowedBalance.Amount += withheld
	return withheld
}

// AdvanceStandardSchedule simulates one cycle of the shadow standard schedule
// at the quoted price: the nominal swap amount without any adjustment, with
// the engine's swap fee deducted. The pool's internal fee is not modelled
// here; the quoted price is the engine's only observable execution rate.
func AdvanceStandardSchedule(cfg *types.DCAPlusConfig, swapAmount int64, price, feePercent decimal.Decimal) (int64, int64) {
	remaining := cfg.TotalDeposit.Amount - cfg.StandardSwappedAmount.Amount
	if remaining <= 0 {
		return 0, 0
	}

	sent := min64(swapAmount, remaining)
	gross := decimal.NewFromInt(sent).Div(price).Floor().IntPart()
	fee := decimal.NewFromInt(gross).Mul(feePercent).Floor().IntPart()
	received := gross - fee

	cfg.StandardSwappedAmount.Amount += sent
	cfg.StandardReceivedAmount.Amount += received

	return sent, received
}

// Reconciliation is the result of comparing the adjusted schedule against the
// shadow standard schedule once both have completed
type Reconciliation struct {
	PerformanceFee int64
	Released       int64
	ByCollector    map[string]int64
}

// Reconcile computes the performance fee owed on the adjusted schedule's
// outperformance and releases the rest of the escrow. The fee is capped at
// the escrowed balance; the escrow is zeroed.
func Reconcile(cfg *types.DCAPlusConfig, adjustedReceived int64, rate decimal.Decimal, collectors []fees.Collector) Reconciliation {
	outperformance := adjustedReceived - cfg.StandardReceivedAmount.Amount
	if outperformance < 0 {
		outperformance = 0
	}

	performanceFee := decimal.NewFromInt(outperformance).Mul(rate).Floor().IntPart()
	if performanceFee > cfg.EscrowedBalance.Amount {
		performanceFee = cfg.EscrowedBalance.Amount
	}

	released := cfg.EscrowedBalance.Amount - performanceFee
	cfg.EscrowedBalance.Amount = 0

	byCollector := make(map[string]int64, len(collectors))
	for _, collector := range collectors {
		share := decimal.NewFromInt(performanceFee).Mul(collector.Allocation).Floor().IntPart()
		if share == 0 {
			continue
		}
		byCollector[collector.Address] += share
	}

	return Reconciliation{
		PerformanceFee: performanceFee,
		Released:       released,
		ByCollector:    byCollector,
	}
}

// QueueDisbursement schedules a cancelled vault's escrow for release once its
// standard schedule would have completed
func (s *Service) QueueDisbursement(vaultID uint64, at time.Time) error {
	return s.db.SaveDisburseTask(&DisburseEscrowTask{VaultID: vaultID, DisburseAt: at})
}

func (s *Service) GetDueDisbursements(now time.Time, limit int) ([]DisburseEscrowTask, error) {
	return s.db.GetDueDisburseTasks(now, limit)
}

func (s *Service) DequeueDisbursement(vaultID uint64) error {
	return s.db.DeleteDisburseTask(vaultID)
}

// QueueTx and DequeueTx are the transactional forms for callers that settle
// escrow as part of a larger vault state change

func QueueTx(tx *gorm.DB, vaultID uint64, at time.Time) error {
	return tx.Create(&DisburseEscrowTask{VaultID: vaultID, DisburseAt: at}).Error
}

func DequeueTx(tx *gorm.DB, vaultID uint64) error {
	return tx.Unscoped().Where("vault_id = ?", vaultID).Delete(&DisburseEscrowTask{}).Error
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// GinHandlers contains HTTP handlers for swap adjustment administration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type updateSwapAdjustmentsRequest struct {
	PositionType types.PositionType `json:"position_type" binding:"required"`
	Adjustments  []AdjustmentPair   `json:"adjustments" binding:"required"`
}

// UpdateSwapAdjustmentsHandler handles POST requests to replace a multiplier curve
// Requires internal authentication
func (h *GinHandlers) UpdateSwapAdjustmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateSwapAdjustmentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.PositionType != types.PositionTypeEnter && req.PositionType != types.PositionTypeExit {
			response.BadRequest(c, "Position type must be enter or exit")
			return
		}

		err := h.service.UpdateSwapAdjustments(req.PositionType, req.Adjustments)
		if errors.Is(err, ErrInvalidAdjustment) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Handle(c, gin.H{"position_type": req.PositionType, "steps": len(req.Adjustments)}, err)
	}
}
