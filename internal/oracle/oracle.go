package oracle

import (
	"fmt"
	"sync"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Quote reports market conditions for a pair at execution time. Price is
// expressed as swap denom per unit of receive denom; ReferencePrice is the
// pool's resting price used for slippage evaluation.
type Quote struct {
	Price          decimal.Decimal
	ReferencePrice decimal.Decimal
}

// PriceOracle is the engine's window onto the external exchange. Both calls
// are all-or-nothing: any failure aborts the whole execution with no partial
// state committed.
type PriceOracle interface {
	Quote(swapDenom, receiveDenom string) (*Quote, error)
	Swap(sent types.Coin, receiveDenom string) (types.Coin, error)
}

type poolKey struct {
	swapDenom    string
	receiveDenom string
}

type pool struct {
	price          decimal.Decimal
	referencePrice decimal.Decimal
}

// MockPool simulates an external swap venue with fixed resting prices and a
// taker fee applied to proceeds before they reach the engine
type MockPool struct {
	mu           sync.RWMutex
	pools        map[poolKey]pool
	takerFeeRate decimal.Decimal
}

func NewMockPool(takerFeeRate decimal.Decimal) *MockPool {
	return &MockPool{
		pools:        make(map[poolKey]pool),
		takerFeeRate: takerFeeRate,
	}
}

// SetPrice registers or updates a pair. Reference defaults to the execution
// price when the two are equal, which makes slippage zero.
func (m *MockPool) SetPrice(swapDenom, receiveDenom string, price, referencePrice decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[poolKey{swapDenom, receiveDenom}] = pool{price: price, referencePrice: referencePrice}
}

func (m *MockPool) Quote(swapDenom, receiveDenom string) (*Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[poolKey{swapDenom, receiveDenom}]
	if !ok {
		return nil, fmt.Errorf("no pool for pair %s/%s", swapDenom, receiveDenom)
	}

	return &Quote{Price: p.price, ReferencePrice: p.referencePrice}, nil
}

// Swap exchanges the sent coin at the current execution price. The pool's own
// taker fee is deducted here, upstream of the engine's swap fee.
func (m *MockPool) Swap(sent types.Coin, receiveDenom string) (types.Coin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logger := log.With().
		Str("component", "mock_pool").
		Str("sent", sent.String()).
		Str("receive_denom", receiveDenom).
		Logger()

	p, ok := m.pools[poolKey{sent.Denom, receiveDenom}]
	if !ok {
		return types.Coin{}, fmt.Errorf("no pool for pair %s/%s", sent.Denom, receiveDenom)
	}

	gross := decimal.NewFromInt(sent.Amount).Div(p.price).Floor().IntPart()
	takerFee := decimal.NewFromInt(gross).Mul(m.takerFeeRate).Floor().IntPart()
	received := types.NewCoin(gross-takerFee, receiveDenom)

	logger.Debug().
		Str("price", p.price.String()).
		Int64("gross", gross).
		Int64("taker_fee", takerFee).
		Str("received", received.String()).
		Msg("swap executed")

	return received, nil
}
