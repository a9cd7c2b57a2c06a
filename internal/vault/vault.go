package vault

import (
	"fmt"
	"time"

	"github.com/ksred/dca-vault-api/internal/bank"
	"github.com/ksred/dca-vault-api/internal/config"
	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/events"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/internal/gate"
	"github.com/ksred/dca-vault-api/internal/oracle"
	"github.com/ksred/dca-vault-api/internal/scheduler"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is the vault state machine. Every deposit or trigger execution runs
// to completion against a consistent snapshot before another call is admitted;
// external calls (price quote, swap, transfer) are all-or-nothing and a
// failure aborts the operation with no partial state committed.
type Service struct {
	db        *Database
	scheduler *scheduler.Service
	config    *config.Service
	fees      *fees.Service
	escrow    *escrow.Service
	oracle    oracle.PriceOracle
	bank      bank.Transfer
}

func NewService(
	gormDB *gorm.DB,
	configService *config.Service,
	feeService *fees.Service,
	escrowService *escrow.Service,
	priceOracle oracle.PriceOracle,
	transfer bank.Transfer,
) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		scheduler: scheduler.NewService(gormDB),
		config:    configService,
		fees:      feeService,
		escrow:    escrowService,
		oracle:    priceOracle,
		bank:      transfer,
	}
}

// Scheduler exposes the trigger store for the keeper loop and query surface
func (s *Service) Scheduler() *scheduler.Service {
	return s.scheduler
}

// CreateVault registers a new vault in scheduled status with a trigger set to
// the requested start time, or to now when none is given
func (s *Service) CreateVault(req CreateVaultRequest) (*VaultResponse, error) {
	return s.CreateVaultAt(req, time.Now())
}

func (s *Service) CreateVaultAt(req CreateVaultRequest, now time.Time) (*VaultResponse, error) {
	logger := log.With().Str("service", "vault").Str("owner", req.Owner).Logger()

	if !req.TimeInterval.IsValid() {
		return nil, fmt.Errorf("invalid time interval %q", req.TimeInterval)
	}
	if req.SwapAmount <= 0 {
		return nil, fmt.Errorf("swap amount must be positive")
	}
	if req.InitialDeposit < 0 {
		return nil, fmt.Errorf("initial deposit cannot be negative")
	}

	destinations, err := buildDestinations(req)
	if err != nil {
		return nil, err
	}

	positionType := req.PositionType
	if positionType == "" {
		positionType = types.PositionTypeEnter
	}

	settings, err := s.config.GetSettings()
	if err != nil {
		return nil, err
	}

	newVault := &types.Vault{
		Owner:          req.Owner,
		Label:          req.Label,
		Status:         types.VaultStatusScheduled,
		Balance:        types.NewCoin(req.InitialDeposit, req.SwapDenom),
		SwapAmount:     req.SwapAmount,
		SwappedAmount:  types.NewCoin(0, req.SwapDenom),
		ReceivedAmount: types.NewCoin(0, req.ReceiveDenom),
		PositionType:   positionType,
		TimeInterval:   req.TimeInterval,
		Destinations:   destinations,
	}
	if req.MinimumReceiveAmount != nil {
		minimum := *req.MinimumReceiveAmount
		newVault.MinimumReceiveAmount = &minimum
	}
	if req.SlippageTolerance != nil {
		newVault.SlippageTolerance = decimal.NewNullDecimal(*req.SlippageTolerance)
	}
	if req.UseExtendedMode {
		newVault.DCAPlus = escrow.NewConfig(
			settings.EscrowLevel,
			types.NewCoin(req.InitialDeposit, req.SwapDenom),
			req.ReceiveDenom,
		)
	}

	targetTime := now
	if req.StartTime != nil {
		targetTime = *req.StartTime
	}

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	vaultID, err := NextVaultID(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	newVault.VaultID = vaultID
	for i := range newVault.Destinations {
		newVault.Destinations[i].VaultID = vaultID
	}
	if newVault.DCAPlus != nil {
		newVault.DCAPlus.VaultID = vaultID
	}

	if err := tx.Create(newVault).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := scheduler.CreateTx(tx, vaultID, targetTime); err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.InitialDeposit > 0 {
		deposited := events.EventData{
			FundsDeposited: &events.FundsDeposited{Amount: newVault.Balance},
		}
		if err := events.AppendTx(tx, vaultID, now, deposited); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info().
		Uint64("vault_id", vaultID).
		Str("balance", newVault.Balance.String()).
		Int64("swap_amount", req.SwapAmount).
		Str("time_interval", string(req.TimeInterval)).
		Bool("extended_mode", req.UseExtendedMode).
		Msg("vault created")

	return s.GetVault(vaultID)
}

func buildDestinations(req CreateVaultRequest) ([]types.Destination, error) {
	if len(req.Destinations) == 0 {
		// Absent destinations imply 100% to the owner
		return []types.Destination{{
			Address:    req.Owner,
			Allocation: decimal.NewFromInt(1),
			Action:     types.ActionSend,
		}}, nil
	}

	total := decimal.Zero
	destinations := make([]types.Destination, 0, len(req.Destinations))
	for _, dest := range req.Destinations {
		if dest.Allocation.IsNegative() {
			return nil, ErrBadDestinations
		}
		action := dest.Action
		if action == "" {
			action = types.ActionSend
		}
		total = total.Add(dest.Allocation)
		destinations = append(destinations, types.Destination{
			Address:    dest.Address,
			Allocation: dest.Allocation,
			Action:     action,
		})
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return nil, ErrBadDestinations
	}
	return destinations, nil
}

// CreateVaultIdempotent returns the previously created vault when the key has
// been seen before and is still live, and creates a new one otherwise
func (s *Service) CreateVaultIdempotent(req CreateVaultRequest, idempotencyKey string) (*VaultResponse, error) {
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if record != nil && record.ExpiresAt.After(time.Now()) {
		return s.GetVault(record.ResourceID)
	}

	result, err := s.CreateVault(req)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if err := s.db.SaveIdempotencyRecord(idempotencyKey, result.VaultID, "vault", expiresAt); err != nil {
		return nil, err
	}
	return result, nil
}

// DepositIdempotent applies a deposit at most once per key
func (s *Service) DepositIdempotent(vaultID uint64, req DepositRequest, idempotencyKey string) (*VaultResponse, error) {
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err != nil {
		return nil, err
	}
	if record != nil && record.ExpiresAt.After(time.Now()) {
		return s.GetVault(record.ResourceID)
	}

	result, err := s.Deposit(vaultID, req)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if err := s.db.SaveIdempotencyRecord(idempotencyKey, vaultID, "deposit", expiresAt); err != nil {
		return nil, err
	}
	return result, nil
}

// Deposit tops up a vault's principal. Depositing into an inactive vault
// reactivates it and immediately attempts one catch-up execution cycle.
func (s *Service) Deposit(vaultID uint64, req DepositRequest) (*VaultResponse, error) {
	return s.DepositAt(vaultID, req, time.Now())
}

func (s *Service) DepositAt(vaultID uint64, req DepositRequest, now time.Time) (*VaultResponse, error) {
	logger := log.With().
		Str("service", "vault").
		Uint64("vault_id", vaultID).
		Str("amount", req.Amount.String()).
		Logger()

	current, err := s.db.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrVaultNotFound
	}
	if req.Address != current.Owner {
		return nil, fmt.Errorf("%w id=%d", ErrWrongOwner, vaultID)
	}
	if current.IsCancelled() {
		return nil, ErrVaultCancelled
	}
	if req.Amount.Amount <= 0 {
		return nil, ErrInvalidDeposit
	}
	if req.Amount.Denom != current.SwapDenom() {
		return nil, ErrDenomMismatch
	}

	wasInactive := current.Status == types.VaultStatusInactive

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	current.Balance.Amount += req.Amount.Amount
	if !current.IsScheduled() {
		current.Status = types.VaultStatusActive
	}
	if current.DCAPlus != nil {
		current.DCAPlus.TotalDeposit.Amount += req.Amount.Amount
	}

	if err := SaveVaultTx(tx, current); err != nil {
		tx.Rollback()
		return nil, err
	}

	deposited := events.EventData{
		FundsDeposited: &events.FundsDeposited{Amount: req.Amount},
	}
	if err := events.AppendTx(tx, vaultID, now, deposited); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	logger.Info().Bool("reactivated", wasInactive).Msg("funds deposited")

	// A reactivated vault missed executions while drained; give it one
	// catch-up cycle immediately, bypassing the due-time check.
	if wasInactive {
		if err := s.runCatchUpCycle(vaultID, now); err != nil {
			logger.Error().Err(err).Msg("catch-up execution failed")
			return nil, err
		}
	}

	return s.GetVault(vaultID)
}

func (s *Service) runCatchUpCycle(vaultID uint64, now time.Time) error {
	trigger, err := s.scheduler.GetTrigger(vaultID)
	if err != nil {
		return err
	}
	if trigger == nil {
		// The final drain already cleared the trigger; reinstate it so the
		// vault re-enters the schedule from now.
		tx := s.db.Begin()
		if err := tx.Error; err != nil {
			return err
		}
		if err := scheduler.CreateTx(tx, vaultID, now); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return err
		}
		trigger, err = s.scheduler.GetTrigger(vaultID)
		if err != nil {
			return err
		}
	}

	current, err := s.db.GetVault(vaultID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrVaultNotFound
	}

	return s.executeCycle(current, trigger, now)
}

// ExecuteTrigger runs one execution cycle for the vault owning the trigger.
// Fails with scheduler.ErrTriggerNotDue before the target time.
func (s *Service) ExecuteTrigger(triggerID uint64) error {
	return s.ExecuteTriggerAt(triggerID, time.Now())
}

func (s *Service) ExecuteTriggerAt(triggerID uint64, now time.Time) error {
	trigger, err := s.scheduler.GetTrigger(triggerID)
	if err != nil {
		return err
	}
	if trigger == nil {
		return ErrTriggerNotFound
	}
	if err := scheduler.EnsureDue(trigger, now); err != nil {
		return err
	}

	settings, err := s.config.GetSettings()
	if err != nil {
		return err
	}
	if settings.Paused {
		return ErrEnginePaused
	}

	current, err := s.db.GetVault(trigger.VaultID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrVaultNotFound
	}
	if current.IsCancelled() {
		return ErrVaultCancelled
	}

	return s.executeCycle(current, trigger, now)
}

// executeCycle performs one scheduling cycle: the final-drain bookkeeping for
// exhausted vaults, or a gated swap attempt for funded ones
func (s *Service) executeCycle(v *types.Vault, trigger *scheduler.Trigger, now time.Time) error {
	logger := log.With().
		Str("service", "vault").
		Uint64("vault_id", v.VaultID).
		Str("status", string(v.Status)).
		Logger()

	settings, err := s.config.GetSettings()
	if err != nil {
		return err
	}
	collectors, err := s.config.GetFeeCollectors()
	if err != nil {
		return err
	}

	if v.IsDrained() {
		return s.finalizeDrainedVault(v, trigger, settings, collectors, now, logger)
	}

	quote, err := s.oracle.Quote(v.SwapDenom(), v.ReceiveDenom())
	if err != nil {
		return fmt.Errorf("failed to quote execution price: %w", err)
	}

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// The first attempt, successful or skipped, activates a scheduled vault
	v.Status = types.VaultStatusActive

	triggered := events.EventData{
		ExecutionTriggered: &events.ExecutionTriggered{
			AssetPrice: quote.Price.String(),
			BaseDenom:  v.SwapDenom(),
			QuoteDenom: v.ReceiveDenom(),
		},
	}

	if skip := gate.Check(v, quote.Price, quote.ReferencePrice); skip != nil {
		if err := s.recordSkip(tx, v, trigger, triggered, skip, now); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return err
		}

		logger.Info().
			Str("asset_price", quote.Price.String()).
			Bool("price_threshold_exceeded", skip.PriceThresholdExceeded != nil).
			Bool("slippage_exceeded", skip.SlippageToleranceExceeded).
			Msg("execution skipped")
		return nil
	}

	swapAmount, err := s.escrow.AdjustedSwapAmount(v)
	if err != nil {
		tx.Rollback()
		return err
	}

	sent := types.NewCoin(swapAmount, v.SwapDenom())
	received, err := s.oracle.Swap(sent, v.ReceiveDenom())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("swap failed: %w", err)
	}

	feePercent, err := s.fees.SwapFeePercentFor(v.ReceiveDenom(), settings.SwapFeePercent)
	if err != nil {
		tx.Rollback()
		return err
	}
	net, breakdown := fees.ApplyFees(received.Amount, feePercent, collectors)

	v.Balance.Amount -= swapAmount
	v.SwappedAmount.Amount += swapAmount
	v.ReceivedAmount.Amount += net

	disbursable := net
	if v.DCAPlus != nil {
		withheld := escrow.Withhold(v.DCAPlus, net)
		disbursable = net - withheld
		escrow.AdvanceStandardSchedule(v.DCAPlus, v.SwapAmount, quote.Price, feePercent)
	}

	if err := s.disburse(v, disbursable, settings, collectors); err != nil {
		tx.Rollback()
		return fmt.Errorf("disbursement failed: %w", err)
	}
	for address, amount := range breakdown.ByCollector {
		if err := s.bank.Send(address, types.NewCoin(amount, v.ReceiveDenom())); err != nil {
			tx.Rollback()
			return fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	if err := events.AppendTx(tx, v.VaultID, now, triggered); err != nil {
		tx.Rollback()
		return err
	}
	completed := events.EventData{
		ExecutionCompleted: &events.ExecutionCompleted{
			Sent:     sent,
			Received: received,
			Fee:      types.NewCoin(breakdown.Total, v.ReceiveDenom()),
		},
	}
	if err := events.AppendTx(tx, v.VaultID, now, completed); err != nil {
		tx.Rollback()
		return err
	}

	if err := s.applyDrainRule(tx, v, trigger); err != nil {
		tx.Rollback()
		return err
	}

	if err := SaveVaultTx(tx, v); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info().
		Str("asset_price", quote.Price.String()).
		Str("sent", sent.String()).
		Str("received", received.String()).
		Int64("net", net).
		Int64("fee", breakdown.Total).
		Int64("remaining_balance", v.Balance.Amount).
		Str("new_status", string(v.Status)).
		Msg("execution completed")

	return nil
}

func (s *Service) recordSkip(
	tx *gorm.DB,
	v *types.Vault,
	trigger *scheduler.Trigger,
	triggered events.EventData,
	skip *gate.Skip,
	now time.Time,
) error {
	if err := events.AppendTx(tx, v.VaultID, now, triggered); err != nil {
		return err
	}

	reason := events.SkipReason{}
	if skip.PriceThresholdExceeded != nil {
		reason.PriceThresholdExceeded = &events.PriceThresholdExceeded{
			Price: skip.PriceThresholdExceeded.String(),
		}
	} else {
		reason.SlippageToleranceExceeded = true
	}
	skipped := events.EventData{
		ExecutionSkipped: &events.ExecutionSkipped{Reason: reason},
	}
	if err := events.AppendTx(tx, v.VaultID, now, skipped); err != nil {
		return err
	}

	// A skip consumes the scheduling cycle: attempted and declined, not deferred
	if err := scheduler.AdvanceTx(tx, trigger, v.TimeInterval); err != nil {
		return err
	}
	return SaveVaultTx(tx, v)
}

// applyDrainRule sets the post-execution status and scheduling:
//   - exact zero balance: inactive, trigger retained for one finalizing call
//   - remainder below swap amount: inactive, trigger cleared (extended-mode
//     vaults keep it while the shadow schedule is unfinished)
//   - otherwise: active, trigger advanced one interval
func (s *Service) applyDrainRule(tx *gorm.DB, v *types.Vault, trigger *scheduler.Trigger) error {
	standardUnfinished := v.DCAPlus != nil && !v.DCAPlus.StandardScheduleFinished()

	switch {
	case v.IsDrained():
		v.Status = types.VaultStatusInactive
		return scheduler.AdvanceTx(tx, trigger, v.TimeInterval)
	case v.HasLowFunds():
		v.Status = types.VaultStatusInactive
		if standardUnfinished {
			return scheduler.AdvanceTx(tx, trigger, v.TimeInterval)
		}
		return scheduler.ClearTx(tx, v.VaultID)
	default:
		v.Status = types.VaultStatusActive
		return scheduler.AdvanceTx(tx, trigger, v.TimeInterval)
	}
}

// finalizeDrainedVault handles execution calls against a vault with zero
// balance: the plain vault's finalizing trigger clear, or the extended-mode
// shadow schedule catch-up and eventual escrow disbursement
func (s *Service) finalizeDrainedVault(
	v *types.Vault,
	trigger *scheduler.Trigger,
	settings *config.Settings,
	collectors []fees.Collector,
	now time.Time,
	logger zerolog.Logger,
) error {
	standardFinished := v.DCAPlus == nil || v.DCAPlus.StandardScheduleFinished()

	if standardFinished {
		tx := s.db.Begin()
		if err := tx.Error; err != nil {
			return err
		}

		if v.DCAPlus != nil && v.DCAPlus.HasUnclaimedEscrow() {
			if err := s.disburseEscrowTx(tx, v, settings, collectors, now); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := scheduler.ClearTx(tx, v.VaultID); err != nil {
			tx.Rollback()
			return err
		}
		if err := SaveVaultTx(tx, v); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return err
		}

		logger.Info().Msg("final trigger cleared for fully executed vault")
		return nil
	}

	// The adjusted schedule finished early; keep simulating the standard
	// schedule each cycle until it completes, then settle the escrow.
	quote, err := s.oracle.Quote(v.SwapDenom(), v.ReceiveDenom())
	if err != nil {
		return fmt.Errorf("failed to quote execution price: %w", err)
	}
	feePercent, err := s.fees.SwapFeePercentFor(v.ReceiveDenom(), settings.SwapFeePercent)
	if err != nil {
		return err
	}

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}

	escrow.AdvanceStandardSchedule(v.DCAPlus, v.SwapAmount, quote.Price, feePercent)

	if v.DCAPlus.StandardScheduleFinished() {
		if err := s.disburseEscrowTx(tx, v, settings, collectors, now); err != nil {
			tx.Rollback()
			return err
		}
		if err := scheduler.ClearTx(tx, v.VaultID); err != nil {
			tx.Rollback()
			return err
		}
	} else {
		if err := scheduler.AdvanceTx(tx, trigger, v.TimeInterval); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := SaveVaultTx(tx, v); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	logger.Info().
		Int64("standard_swapped", v.DCAPlus.StandardSwappedAmount.Amount).
		Int64("standard_received", v.DCAPlus.StandardReceivedAmount.Amount).
		Msg("standard schedule advanced")
	return nil
}

// disburse pays out an execution's disbursable proceeds to the vault's
// destinations pro rata. Shares are floored; any truncation remainder goes to
// the owner so nothing is stranded.
func (s *Service) disburse(v *types.Vault, disbursable int64, settings *config.Settings, collectors []fees.Collector) error {
	if disbursable <= 0 {
		return nil
	}

	denom := v.ReceiveDenom()
	distributed := int64(0)

	for _, dest := range v.Destinations {
		share := decimal.NewFromInt(disbursable).Mul(dest.Allocation).Floor().IntPart()
		if share == 0 {
			continue
		}
		distributed += share

		switch dest.Action {
		case types.ActionDelegate:
			// Automated staking carries its own fee, split like the swap fee
			netShare, delegationFee := fees.ApplyFees(share, settings.DelegationFeePercent, collectors)
			for address, amount := range delegationFee.ByCollector {
				if err := s.bank.Send(address, types.NewCoin(amount, denom)); err != nil {
					return err
				}
			}
			if err := s.bank.Delegate(dest.Address, types.NewCoin(netShare, denom)); err != nil {
				return err
			}
		default:
			if err := s.bank.Send(dest.Address, types.NewCoin(share, denom)); err != nil {
				return err
			}
		}
	}

	if remainder := disbursable - distributed; remainder > 0 {
		return s.bank.Send(v.Owner, types.NewCoin(remainder, denom))
	}
	return nil
}

func (s *Service) disburseEscrowTx(
	tx *gorm.DB,
	v *types.Vault,
	settings *config.Settings,
	collectors []fees.Collector,
	now time.Time,
) error {
	reconciliation := escrow.Reconcile(v.DCAPlus, v.ReceivedAmount.Amount, settings.PerformanceFeeRate, collectors)

	if err := s.bank.Send(v.Owner, types.NewCoin(reconciliation.Released, v.ReceiveDenom())); err != nil {
		return err
	}
	for address, amount := range reconciliation.ByCollector {
		if err := s.bank.Send(address, types.NewCoin(amount, v.ReceiveDenom())); err != nil {
			return err
		}
	}

	disbursed := events.EventData{
		EscrowDisbursed: &events.EscrowDisbursed{
			Released:       types.NewCoin(reconciliation.Released, v.ReceiveDenom()),
			PerformanceFee: types.NewCoin(reconciliation.PerformanceFee, v.ReceiveDenom()),
		},
	}
	if err := events.AppendTx(tx, v.VaultID, now, disbursed); err != nil {
		return err
	}

	if err := escrow.DequeueTx(tx, v.VaultID); err != nil {
		return err
	}

	log.Info().
		Str("service", "vault").
		Uint64("vault_id", v.VaultID).
		Int64("released", reconciliation.Released).
		Int64("performance_fee", reconciliation.PerformanceFee).
		Msg("escrow disbursed")

	return nil
}

// CancelVault refunds the remaining balance to the owner, cancels the vault
// and removes its trigger. Extended-mode vaults with escrow held queue a
// disbursement for when their standard schedule would have completed.
func (s *Service) CancelVault(vaultID uint64, requester string, isAdmin bool) (*VaultResponse, error) {
	return s.CancelVaultAt(vaultID, requester, isAdmin, time.Now())
}

func (s *Service) CancelVaultAt(vaultID uint64, requester string, isAdmin bool, now time.Time) (*VaultResponse, error) {
	current, err := s.db.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrVaultNotFound
	}
	if !isAdmin && requester != current.Owner {
		return nil, fmt.Errorf("%w id=%d", ErrWrongOwner, vaultID)
	}
	if current.IsCancelled() {
		return nil, ErrVaultCancelled
	}

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	cancelled := events.EventData{VaultCancelled: &events.VaultCancelled{}}
	if err := events.AppendTx(tx, vaultID, now, cancelled); err != nil {
		tx.Rollback()
		return nil, err
	}

	if current.Balance.Amount > 0 {
		if err := s.bank.Send(current.Owner, current.Balance); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("refund failed: %w", err)
		}
	}

	if current.DCAPlus != nil && current.DCAPlus.HasUnclaimedEscrow() {
		disburseAt := expectedStandardCompletion(current, now)
		if err := escrow.QueueTx(tx, vaultID, disburseAt); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	current.Balance.Amount = 0
	current.Status = types.VaultStatusCancelled

	if err := SaveVaultTx(tx, current); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := scheduler.ClearTx(tx, vaultID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "vault").
		Uint64("vault_id", vaultID).
		Str("owner", current.Owner).
		Msg("vault cancelled")

	return s.GetVault(vaultID)
}

// expectedStandardCompletion estimates when the shadow standard schedule
// would consume the remaining deposit at one nominal swap per interval
func expectedStandardCompletion(v *types.Vault, now time.Time) time.Time {
	remaining := v.DCAPlus.TotalDeposit.Amount - v.DCAPlus.StandardSwappedAmount.Amount
	if remaining <= 0 || v.SwapAmount <= 0 {
		return now
	}
	cycles := (remaining + v.SwapAmount - 1) / v.SwapAmount

	if v.TimeInterval == types.IntervalMonthly {
		return now.AddDate(0, int(cycles), 0)
	}
	step := v.TimeInterval.Next(now).Sub(now)
	return now.Add(time.Duration(cycles) * step)
}

// DisburseEscrow settles the escrow for a vault whose comparison is complete:
// the standard schedule finished, or the vault was cancelled
func (s *Service) DisburseEscrow(vaultID uint64) (*VaultResponse, error) {
	return s.DisburseEscrowAt(vaultID, time.Now())
}

func (s *Service) DisburseEscrowAt(vaultID uint64, now time.Time) (*VaultResponse, error) {
	current, err := s.db.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrVaultNotFound
	}
	if current.DCAPlus == nil || !current.DCAPlus.HasUnclaimedEscrow() {
		return nil, ErrEscrowNotDisbursable
	}
	if !current.DCAPlus.StandardScheduleFinished() && !current.IsCancelled() {
		return nil, ErrEscrowNotDisbursable
	}

	settings, err := s.config.GetSettings()
	if err != nil {
		return nil, err
	}
	collectors, err := s.config.GetFeeCollectors()
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := s.disburseEscrowTx(tx, current, settings, collectors, now); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := SaveVaultTx(tx, current); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetVault(vaultID)
}

// GetVault returns a vault with its trigger, or ErrVaultNotFound
func (s *Service) GetVault(vaultID uint64) (*VaultResponse, error) {
	current, err := s.db.GetVault(vaultID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrVaultNotFound
	}

	trigger, err := s.scheduler.GetTrigger(vaultID)
	if err != nil {
		return nil, err
	}

	return &VaultResponse{Vault: current, Trigger: trigger}, nil
}

// GetVaults lists vaults matching the filters
func (s *Service) GetVaults(filters VaultFilters) ([]VaultResponse, error) {
	if filters.Limit == 0 {
		settings, err := s.config.GetSettings()
		if err != nil {
			return nil, err
		}
		filters.Limit = settings.PageLimit
	}

	vaults, err := s.db.GetVaults(filters)
	if err != nil {
		return nil, err
	}

	responses := make([]VaultResponse, 0, len(vaults))
	for i := range vaults {
		trigger, err := s.scheduler.GetTrigger(vaults[i].VaultID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, VaultResponse{Vault: &vaults[i], Trigger: trigger})
	}
	return responses, nil
}
