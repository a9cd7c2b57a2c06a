package vault_test

import (
	"testing"
	"time"

	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/events"
	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/ksred/dca-vault-api/internal/vault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extendedRequest() vault.CreateVaultRequest {
	req := standardRequest()
	req.UseExtendedMode = true
	return req
}

func TestExtendedVault_WithholdsEscrowAndSettlesAtPar(t *testing.T) {
	e := newEngine(t)

	created, err := e.service.CreateVaultAt(extendedRequest(), baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, created.DCAPlus)
	assert.True(t, created.DCAPlus.EscrowLevel.Equal(decimal.NewFromFloat(0.05)))
	assert.Equal(t, int64(2000000), created.DCAPlus.TotalDeposit.Amount)

	// First cycle: 500000 net, 5% withheld
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime))

	current, err := e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), current.DCAPlus.EscrowedBalance.Amount)
	assert.Equal(t, int64(475000), e.ledger.Balance("owner", "udemo"))
	assert.Equal(t, int64(1000000), current.DCAPlus.StandardSwappedAmount.Amount)
	assert.Equal(t, int64(500000), current.DCAPlus.StandardReceivedAmount.Amount)

	// Second cycle drains the vault; both schedules finish together
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime.Add(time.Hour)))

	current, err = e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Equal(t, types.VaultStatusInactive, current.Status)
	assert.Equal(t, int64(50000), current.DCAPlus.EscrowedBalance.Amount)
	assert.Equal(t, int64(950000), e.ledger.Balance("owner", "udemo"))
	assert.True(t, current.DCAPlus.StandardScheduleFinished())
	require.NotNil(t, current.Trigger)

	// The finalizing call settles the escrow. Both schedules received the
	// same, so there is no performance fee and everything is released.
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime.Add(2*time.Hour)))

	current, err = e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current.DCAPlus.EscrowedBalance.Amount)
	assert.Nil(t, current.Trigger)
	assert.Equal(t, int64(1000000), e.ledger.Balance("owner", "udemo"))
	assert.Equal(t, int64(0), e.ledger.Balance("treasury", "udemo"))

	ledger, err := e.events.GetByResourceID(created.VaultID)
	require.NoError(t, err)
	last := ledger[len(ledger)-1]
	assert.Equal(t, events.TypeEscrowDisbursed, last.Type)
	require.NotNil(t, last.Data.EscrowDisbursed)
	assert.Equal(t, int64(50000), last.Data.EscrowDisbursed.Released.Amount)
	assert.Equal(t, int64(0), last.Data.EscrowDisbursed.PerformanceFee.Amount)
}

func TestExtendedVault_PerformanceFeeCappedByEscrow(t *testing.T) {
	e := newEngine(t)

	// Double the swap amount while the curve applies, so the adjusted schedule
	// finishes in two cycles and the shadow standard schedule takes four
	escrowService := escrow.NewService(e.db)
	require.NoError(t, escrowService.UpdateSwapAdjustments(types.PositionTypeEnter, []escrow.AdjustmentPair{
		{Bucket: 0, Factor: decimal.NewFromInt(2)},
	}))

	req := extendedRequest()
	req.SwapAmount = 500000

	e.pool.SetPrice("ukuji", "udemo", decimal.NewFromInt(1), decimal.NewFromInt(1))

	created, err := e.service.CreateVaultAt(req, baseTime.Add(-time.Hour))
	require.NoError(t, err)

	// Cycle 1 at price 1: adjusted swaps 1000000 for 1000000, standard swaps
	// 500000 for 500000
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime))

	// The price collapses before cycle 2; the front-loaded schedule wins
	e.pool.SetPrice("ukuji", "udemo", decimal.NewFromInt(4), decimal.NewFromInt(4))
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime.Add(time.Hour)))

	current, err := e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Equal(t, types.VaultStatusInactive, current.Status)
	assert.Equal(t, int64(1250000), current.ReceivedAmount.Amount)
	assert.Equal(t, int64(62500), current.DCAPlus.EscrowedBalance.Amount)
	assert.False(t, current.DCAPlus.StandardScheduleFinished())
	require.NotNil(t, current.Trigger, "the shadow schedule still needs cycles")

	// Cycle 3 only advances the shadow schedule and emits nothing
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime.Add(2*time.Hour)))

	current, err = e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), current.DCAPlus.StandardSwappedAmount.Amount)
	require.NotNil(t, current.Trigger)
	eventCount := len(e.eventTypes(t, created.VaultID))

	// Cycle 4 finishes the shadow schedule and settles. Outperformance is
	// 1250000 - 875000 = 375000, a 20% fee of 75000, capped at the 62500 held.
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime.Add(3*time.Hour)))

	current, err = e.service.GetVault(created.VaultID)
	require.NoError(t, err)
	assert.Nil(t, current.Trigger)
	assert.Equal(t, int64(0), current.DCAPlus.EscrowedBalance.Amount)
	assert.Equal(t, int64(62500), e.ledger.Balance("treasury", "udemo"))
	assert.Equal(t, int64(1187500), e.ledger.Balance("owner", "udemo"), "nothing released when the fee consumes the escrow")

	ledger, err := e.events.GetByResourceID(created.VaultID)
	require.NoError(t, err)
	require.Len(t, ledger, eventCount+1)
	last := ledger[len(ledger)-1]
	assert.Equal(t, events.TypeEscrowDisbursed, last.Type)
	assert.Equal(t, int64(62500), last.Data.EscrowDisbursed.PerformanceFee.Amount)
	assert.Equal(t, int64(0), last.Data.EscrowDisbursed.Released.Amount)
}

func TestExtendedVault_CancelQueuesEscrowDisbursement(t *testing.T) {
	e := newEngine(t)

	req := extendedRequest()
	req.InitialDeposit = 3000000

	created, err := e.service.CreateVaultAt(req, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.service.ExecuteTriggerAt(created.VaultID, baseTime))

	cancelTime := baseTime.Add(10 * time.Minute)
	cancelled, err := e.service.CancelVaultAt(created.VaultID, "owner", false, cancelTime)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), cancelled.DCAPlus.EscrowedBalance.Amount, "escrow survives cancellation")

	// The release is queued for when the shadow schedule would have finished:
	// 2000000 unswapped at 1000000 per hour is two more cycles
	escrowService := escrow.NewService(e.db)
	due, err := escrowService.GetDueDisbursements(cancelTime.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = escrowService.GetDueDisbursements(cancelTime.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, created.VaultID, due[0].VaultID)

	// Settling a cancelled vault compares only what actually ran, so the full
	// escrow comes back
	settled, err := e.service.DisburseEscrowAt(created.VaultID, cancelTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), settled.DCAPlus.EscrowedBalance.Amount)
	assert.Equal(t, int64(500000), e.ledger.Balance("owner", "udemo"))

	due, err = escrowService.GetDueDisbursements(cancelTime.Add(3*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "the queued task is consumed by settlement")
}

func TestDisburseEscrow_NotReady(t *testing.T) {
	e := newEngine(t)

	plain, err := e.service.CreateVaultAt(standardRequest(), baseTime.Add(-time.Hour))
	require.NoError(t, err)
	_, err = e.service.DisburseEscrowAt(plain.VaultID, baseTime)
	assert.ErrorIs(t, err, vault.ErrEscrowNotDisbursable)

	extended, err := e.service.CreateVaultAt(extendedRequest(), baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, e.service.ExecuteTriggerAt(extended.VaultID, baseTime))

	// Mid-schedule, active and holding escrow
	_, err = e.service.DisburseEscrowAt(extended.VaultID, baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, vault.ErrEscrowNotDisbursable)

	_, err = e.service.DisburseEscrowAt(999, baseTime)
	assert.ErrorIs(t, err, vault.ErrVaultNotFound)
}

func TestExtendedVault_DepositRaisesTotalDeposit(t *testing.T) {
	e := newEngine(t)

	created, err := e.service.CreateVaultAt(extendedRequest(), baseTime.Add(-time.Hour))
	require.NoError(t, err)

	updated, err := e.service.DepositAt(created.VaultID, vault.DepositRequest{
		Address: "owner",
		Amount:  types.NewCoin(500000, "ukuji"),
	}, baseTime.Add(-30*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(2500000), updated.DCAPlus.TotalDeposit.Amount,
		"the shadow schedule target tracks every deposit")
}
