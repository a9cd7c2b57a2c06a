package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyFees_FloorsFeeInFavourOfOwner(t *testing.T) {
	// 1.5% of 999 is 14.985, which must truncate to 14
	net, breakdown := ApplyFees(999, decimal.NewFromFloat(0.015), nil)

	assert.Equal(t, int64(14), breakdown.Total)
	assert.Equal(t, int64(985), net)
}

func TestApplyFees_ZeroFeePercent(t *testing.T) {
	net, breakdown := ApplyFees(500000, decimal.Zero, []Collector{
		{Address: "treasury", Allocation: decimal.NewFromInt(1)},
	})

	assert.Equal(t, int64(500000), net)
	assert.Equal(t, int64(0), breakdown.Total)
	assert.Empty(t, breakdown.ByCollector)
}

func TestApplyFees_SplitsAcrossCollectors(t *testing.T) {
	collectors := []Collector{
		{Address: "treasury", Allocation: decimal.NewFromFloat(0.7)},
		{Address: "staking", Allocation: decimal.NewFromFloat(0.3)},
	}

	// fee = floor(10000 * 0.015) = 150
	net, breakdown := ApplyFees(10000, decimal.NewFromFloat(0.015), collectors)

	assert.Equal(t, int64(9850), net)
	assert.Equal(t, int64(150), breakdown.Total)
	assert.Equal(t, int64(105), breakdown.ByCollector["treasury"])
	assert.Equal(t, int64(45), breakdown.ByCollector["staking"])
}

func TestApplyFees_CollectorSharesFloorIndependently(t *testing.T) {
	collectors := []Collector{
		{Address: "a", Allocation: decimal.NewFromFloat(0.5)},
		{Address: "b", Allocation: decimal.NewFromFloat(0.5)},
	}

	// fee = floor(100 * 0.01) = 1; each share floors to 0 and the remainder
	// stays undistributed
	net, breakdown := ApplyFees(100, decimal.NewFromFloat(0.01), collectors)

	assert.Equal(t, int64(99), net)
	assert.Equal(t, int64(1), breakdown.Total)
	assert.Empty(t, breakdown.ByCollector)
}

func TestApplyFees_NetPlusFeeEqualsGross(t *testing.T) {
	cases := []struct {
		name    string
		gross   int64
		percent decimal.Decimal
	}{
		{"typical", 123457, decimal.NewFromFloat(0.015)},
		{"tiny amount", 3, decimal.NewFromFloat(0.015)},
		{"full fee", 1000, decimal.NewFromInt(1)},
		{"zero gross", 0, decimal.NewFromFloat(0.015)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net, breakdown := ApplyFees(tc.gross, tc.percent, nil)
			assert.Equal(t, tc.gross, net+breakdown.Total)
		})
	}
}
