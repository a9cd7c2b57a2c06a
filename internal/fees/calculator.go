package fees

import (
	"github.com/shopspring/decimal"
)

// Collector receives a share of every swap fee
type Collector struct {
	Address    string          `json:"address"`
	Allocation decimal.Decimal `json:"allocation"`
}

// Breakdown reports how a single execution's fee was split. Allocations are
// floored per collector, so ByCollector can sum to less than Total; the
// truncation remainder is deliberately left undistributed.
type Breakdown struct {
	Total       int64            `json:"total"`
	ByCollector map[string]int64 `json:"by_collector"`
}

// ApplyFees deducts the swap fee from a gross received amount and splits it
// across the collectors. All fractional math truncates toward zero, always in
// favour of the vault owner:
//
//	fee = floor(gross * feePercent)
//	net = gross - fee
//	collector share = floor(fee * allocation)
func ApplyFees(gross int64, feePercent decimal.Decimal, collectors []Collector) (int64, Breakdown) {
	fee := decimal.NewFromInt(gross).Mul(feePercent).Floor().IntPart()
	net := gross - fee

	breakdown := Breakdown{
		Total:       fee,
		ByCollector: make(map[string]int64, len(collectors)),
	}

	for _, collector := range collectors {
		share := decimal.NewFromInt(fee).Mul(collector.Allocation).Floor().IntPart()
		if share == 0 {
			continue
		}
		breakdown.ByCollector[collector.Address] += share
	}

	return net, breakdown
}
