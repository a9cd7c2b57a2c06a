package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeInterval_Next(t *testing.T) {
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		interval TimeInterval
		expected time.Time
	}{
		{IntervalEverySecond, base.Add(time.Second)},
		{IntervalEveryMinute, base.Add(time.Minute)},
		{IntervalHalfHourly, base.Add(30 * time.Minute)},
		{IntervalHourly, base.Add(time.Hour)},
		{IntervalHalfDaily, base.Add(12 * time.Hour)},
		{IntervalDaily, base.Add(24 * time.Hour)},
		{IntervalWeekly, base.Add(7 * 24 * time.Hour)},
		{IntervalFortnightly, base.Add(14 * 24 * time.Hour)},
		{IntervalMonthly, time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(string(tc.interval), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.interval.Next(base))
		})
	}
}

func TestTimeInterval_NextAnchorsToPreviousTarget(t *testing.T) {
	// Advancement chains from the previous scheduled time, so repeated
	// advancement never drifts relative to when the trigger actually fired
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next := IntervalHourly.Next(base)
	afterTwo := IntervalHourly.Next(next)

	assert.Equal(t, base.Add(2*time.Hour), afterTwo)
}

func TestTimeInterval_IsValid(t *testing.T) {
	assert.True(t, IntervalDaily.IsValid())
	assert.True(t, IntervalEverySecond.IsValid())
	assert.False(t, TimeInterval("biweekly").IsValid())
	assert.False(t, TimeInterval("").IsValid())
}

func TestCoin(t *testing.T) {
	c := NewCoin(1000000, "ukuji")

	assert.Equal(t, "1000000ukuji", c.String())
	assert.False(t, c.IsZero())
	assert.True(t, NewCoin(0, "ukuji").IsZero())
}

func TestVault_BalanceStates(t *testing.T) {
	v := Vault{
		Balance:    NewCoin(110000, "ukuji"),
		SwapAmount: 100000,
	}

	assert.False(t, v.IsDrained())
	assert.False(t, v.HasLowFunds())

	v.Balance.Amount = 10000
	assert.False(t, v.IsDrained())
	assert.True(t, v.HasLowFunds())

	v.Balance.Amount = 0
	assert.True(t, v.IsDrained())
	assert.True(t, v.HasLowFunds())
}
