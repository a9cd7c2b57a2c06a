package oracle

import (
	"testing"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_UnknownPair(t *testing.T) {
	pool := NewMockPool(decimal.Zero)

	_, err := pool.Quote("ukuji", "udemo")
	assert.Error(t, err)
}

func TestQuote_ReturnsBothPrices(t *testing.T) {
	pool := NewMockPool(decimal.Zero)
	pool.SetPrice("ukuji", "udemo", decimal.NewFromFloat(2.1), decimal.NewFromInt(2))

	quote, err := pool.Quote("ukuji", "udemo")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(2.1)))
	assert.True(t, quote.ReferencePrice.Equal(decimal.NewFromInt(2)))
}

func TestSwap_FloorsProceeds(t *testing.T) {
	pool := NewMockPool(decimal.Zero)
	pool.SetPrice("ukuji", "udemo", decimal.NewFromInt(3), decimal.NewFromInt(3))

	received, err := pool.Swap(types.NewCoin(1000000, "ukuji"), "udemo")
	require.NoError(t, err)
	assert.Equal(t, int64(333333), received.Amount)
	assert.Equal(t, "udemo", received.Denom)
}

func TestSwap_DeductsTakerFee(t *testing.T) {
	pool := NewMockPool(decimal.NewFromFloat(0.0015))
	pool.SetPrice("ukuji", "udemo", decimal.NewFromInt(2), decimal.NewFromInt(2))

	// gross 500000, taker fee floor(500000 * 0.0015) = 750
	received, err := pool.Swap(types.NewCoin(1000000, "ukuji"), "udemo")
	require.NoError(t, err)
	assert.Equal(t, int64(499250), received.Amount)
}

func TestSwap_UnknownPair(t *testing.T) {
	pool := NewMockPool(decimal.Zero)

	_, err := pool.Swap(types.NewCoin(1000, "ukuji"), "udemo")
	assert.Error(t, err)
}
