package types

import (
	"fmt"
	"time"
)

// Coin is a denom-tagged integer amount, expressed in the smallest unit of the denom
type Coin struct {
	Denom  string `json:"denom"`
	Amount int64  `json:"amount"`
}

func NewCoin(amount int64, denom string) Coin {
	return Coin{Denom: denom, Amount: amount}
}

func (c Coin) IsZero() bool {
	return c.Amount == 0
}

func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// VaultStatus represents the lifecycle state of a vault
type VaultStatus string

const (
	VaultStatusScheduled VaultStatus = "scheduled"
	VaultStatusActive    VaultStatus = "active"
	VaultStatusInactive  VaultStatus = "inactive"
	VaultStatusCancelled VaultStatus = "cancelled"
)

// PositionType determines which swap adjustment curve applies to a vault
type PositionType string

const (
	PositionTypeEnter PositionType = "enter"
	PositionTypeExit  PositionType = "exit"
)

// PostExecutionAction determines what happens to a destination's share of proceeds
type PostExecutionAction string

const (
	ActionSend     PostExecutionAction = "send"
	ActionDelegate PostExecutionAction = "delegate"
)

// TimeInterval is the period between vault executions
type TimeInterval string

const (
	IntervalEverySecond TimeInterval = "every_second"
	IntervalEveryMinute TimeInterval = "every_minute"
	IntervalHalfHourly  TimeInterval = "half_hourly"
	IntervalHourly      TimeInterval = "hourly"
	IntervalHalfDaily   TimeInterval = "half_daily"
	IntervalDaily       TimeInterval = "daily"
	IntervalWeekly      TimeInterval = "weekly"
	IntervalFortnightly TimeInterval = "fortnightly"
	IntervalMonthly     TimeInterval = "monthly"
)

// IsValid reports whether the interval is one of the supported periods
func (i TimeInterval) IsValid() bool {
	switch i {
	case IntervalEverySecond, IntervalEveryMinute, IntervalHalfHourly, IntervalHourly,
		IntervalHalfDaily, IntervalDaily, IntervalWeekly, IntervalFortnightly, IntervalMonthly:
		return true
	}
	return false
}

// Next returns the scheduled time one interval after prev. Advancement is always
// relative to the previous scheduled time so a vault that was due for a while
// does not drift.
func (i TimeInterval) Next(prev time.Time) time.Time {
	switch i {
	case IntervalEverySecond:
		return prev.Add(time.Second)
	case IntervalEveryMinute:
		return prev.Add(time.Minute)
	case IntervalHalfHourly:
		return prev.Add(30 * time.Minute)
	case IntervalHourly:
		return prev.Add(time.Hour)
	case IntervalHalfDaily:
		return prev.Add(12 * time.Hour)
	case IntervalDaily:
		return prev.Add(24 * time.Hour)
	case IntervalWeekly:
		return prev.Add(7 * 24 * time.Hour)
	case IntervalFortnightly:
		return prev.Add(14 * 24 * time.Hour)
	case IntervalMonthly:
		// Calendar month, not a fixed number of hours
		return prev.AddDate(0, 1, 0)
	}
	return prev
}
