package fees

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&CustomSwapFee{}))

	return NewService(db)
}

func TestSwapFeePercentFor_FallsBackToGlobalDefault(t *testing.T) {
	service := newTestService(t)
	globalDefault := decimal.NewFromFloat(0.015)

	percent, err := service.SwapFeePercentFor("udemo", globalDefault)
	require.NoError(t, err)
	assert.True(t, percent.Equal(globalDefault))
}

func TestSwapFeePercentFor_CustomFeeTakesPrecedence(t *testing.T) {
	service := newTestService(t)
	globalDefault := decimal.NewFromFloat(0.015)

	require.NoError(t, service.SetCustomSwapFee("udemo", decimal.NewFromFloat(0.005)))

	percent, err := service.SwapFeePercentFor("udemo", globalDefault)
	require.NoError(t, err)
	assert.True(t, percent.Equal(decimal.NewFromFloat(0.005)))

	// Other denoms are unaffected
	percent, err = service.SwapFeePercentFor("uusk", globalDefault)
	require.NoError(t, err)
	assert.True(t, percent.Equal(globalDefault))
}

func TestSetCustomSwapFee_ReplacesExisting(t *testing.T) {
	service := newTestService(t)

	require.NoError(t, service.SetCustomSwapFee("udemo", decimal.NewFromFloat(0.005)))
	require.NoError(t, service.SetCustomSwapFee("udemo", decimal.NewFromFloat(0.01)))

	percent, err := service.SwapFeePercentFor("udemo", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, percent.Equal(decimal.NewFromFloat(0.01)))

	all, err := service.GetCustomSwapFees()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRemoveCustomSwapFee_RestoresDefault(t *testing.T) {
	service := newTestService(t)
	globalDefault := decimal.NewFromFloat(0.015)

	require.NoError(t, service.SetCustomSwapFee("udemo", decimal.Zero))
	require.NoError(t, service.RemoveCustomSwapFee("udemo"))

	percent, err := service.SwapFeePercentFor("udemo", globalDefault)
	require.NoError(t, err)
	assert.True(t, percent.Equal(globalDefault))
}

func TestSwapFeePercentFor_ZeroCustomFeeIsRespected(t *testing.T) {
	service := newTestService(t)

	// An explicit zero fee is an override, not an absence
	require.NoError(t, service.SetCustomSwapFee("udemo", decimal.Zero))

	percent, err := service.SwapFeePercentFor("udemo", decimal.NewFromFloat(0.015))
	require.NoError(t, err)
	assert.True(t, percent.IsZero())
}
