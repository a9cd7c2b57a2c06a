package bank

import (
	"fmt"
	"sync"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Transfer is the host's fund-movement primitive, keyed by address and
// denom-tagged amount. A failed transfer aborts the whole operation.
type Transfer interface {
	Send(toAddress string, amount types.Coin) error
	Delegate(toAddress string, amount types.Coin) error
}

// MockLedger records transfers in memory, standing in for the host platform's
// bank module during development and testing
type MockLedger struct {
	mu       sync.RWMutex
	balances map[string]map[string]int64
}

func NewMockLedger() *MockLedger {
	return &MockLedger{
		balances: make(map[string]map[string]int64),
	}
}

func (m *MockLedger) Send(toAddress string, amount types.Coin) error {
	return m.credit(toAddress, amount, "send")
}

// Delegate stakes funds on behalf of the destination address. The mock treats
// it as a credit tagged separately only in logs.
func (m *MockLedger) Delegate(toAddress string, amount types.Coin) error {
	return m.credit(toAddress, amount, "delegate")
}

func (m *MockLedger) credit(toAddress string, amount types.Coin, method string) error {
	if toAddress == "" {
		return fmt.Errorf("transfer of %s has no destination address", amount)
	}
	if amount.Amount < 0 {
		return fmt.Errorf("cannot transfer negative amount %s", amount)
	}
	if amount.Amount == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[toAddress] == nil {
		m.balances[toAddress] = make(map[string]int64)
	}
	m.balances[toAddress][amount.Denom] += amount.Amount

	log.Debug().
		Str("component", "mock_ledger").
		Str("method", method).
		Str("to_address", toAddress).
		Str("amount", amount.String()).
		Msg("funds transferred")

	return nil
}

// Balance returns the accumulated amount held for an address in a denom
func (m *MockLedger) Balance(address, denom string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[address][denom]
}
