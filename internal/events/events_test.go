package events

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Event{}))

	return NewService(db)
}

func TestEventData_Type(t *testing.T) {
	cases := []struct {
		name     string
		data     EventData
		expected string
	}{
		{"deposit", EventData{FundsDeposited: &FundsDeposited{}}, TypeFundsDeposited},
		{"triggered", EventData{ExecutionTriggered: &ExecutionTriggered{}}, TypeExecutionTriggered},
		{"completed", EventData{ExecutionCompleted: &ExecutionCompleted{}}, TypeExecutionCompleted},
		{"skipped", EventData{ExecutionSkipped: &ExecutionSkipped{}}, TypeExecutionSkipped},
		{"cancelled", EventData{VaultCancelled: &VaultCancelled{}}, TypeVaultCancelled},
		{"escrow", EventData{EscrowDisbursed: &EscrowDisbursed{}}, TypeEscrowDisbursed},
		{"empty", EventData{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.data.Type())
		})
	}
}

func TestBuild_RejectsEmptyPayload(t *testing.T) {
	_, err := Build(1, time.Now(), EventData{})
	assert.Error(t, err)
}

func TestAppendAndReadBack(t *testing.T) {
	service := newTestService(t)
	now := time.Now().UTC().Truncate(time.Second)

	deposited := EventData{FundsDeposited: &FundsDeposited{Amount: types.NewCoin(1000000, "ukuji")}}
	require.NoError(t, service.Append(5, now, deposited))

	completed := EventData{ExecutionCompleted: &ExecutionCompleted{
		Sent:     types.NewCoin(1000000, "ukuji"),
		Received: types.NewCoin(500000, "udemo"),
		Fee:      types.NewCoin(7500, "udemo"),
	}}
	require.NoError(t, service.Append(5, now.Add(time.Minute), completed))

	// Another vault's ledger must stay separate
	require.NoError(t, service.Append(6, now, deposited))

	ledger, err := service.GetByResourceID(5)
	require.NoError(t, err)
	require.Len(t, ledger, 2)

	assert.Equal(t, TypeFundsDeposited, ledger[0].Type)
	require.NotNil(t, ledger[0].Data.FundsDeposited)
	assert.Equal(t, int64(1000000), ledger[0].Data.FundsDeposited.Amount.Amount)

	assert.Equal(t, TypeExecutionCompleted, ledger[1].Type)
	require.NotNil(t, ledger[1].Data.ExecutionCompleted)
	assert.Equal(t, int64(500000), ledger[1].Data.ExecutionCompleted.Received.Amount)
	assert.NotEmpty(t, ledger[1].EventID)
}

func TestLedgerPreservesInsertionOrder(t *testing.T) {
	service := newTestService(t)
	now := time.Now().UTC()

	// Timestamps are identical; storage order decides
	for i := 0; i < 5; i++ {
		data := EventData{ExecutionTriggered: &ExecutionTriggered{AssetPrice: "2", BaseDenom: "ukuji", QuoteDenom: "udemo"}}
		require.NoError(t, service.Append(1, now, data))
	}

	ledger, err := service.GetByResourceID(1)
	require.NoError(t, err)
	require.Len(t, ledger, 5)
}
