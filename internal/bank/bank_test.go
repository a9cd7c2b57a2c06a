package bank

import (
	"testing"

	"github.com/ksred/dca-vault-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_AccumulatesPerDenom(t *testing.T) {
	ledger := NewMockLedger()

	require.NoError(t, ledger.Send("owner", types.NewCoin(100, "udemo")))
	require.NoError(t, ledger.Send("owner", types.NewCoin(50, "udemo")))
	require.NoError(t, ledger.Send("owner", types.NewCoin(25, "ukuji")))

	assert.Equal(t, int64(150), ledger.Balance("owner", "udemo"))
	assert.Equal(t, int64(25), ledger.Balance("owner", "ukuji"))
	assert.Equal(t, int64(0), ledger.Balance("someone_else", "udemo"))
}

func TestSend_Validation(t *testing.T) {
	ledger := NewMockLedger()

	assert.Error(t, ledger.Send("", types.NewCoin(100, "udemo")))
	assert.Error(t, ledger.Send("owner", types.NewCoin(-1, "udemo")))

	// Zero transfers are a no-op, not an error
	require.NoError(t, ledger.Send("owner", types.NewCoin(0, "udemo")))
	assert.Equal(t, int64(0), ledger.Balance("owner", "udemo"))
}

func TestDelegate_CreditsLikeSend(t *testing.T) {
	ledger := NewMockLedger()

	require.NoError(t, ledger.Delegate("validator", types.NewCoin(100, "udemo")))
	assert.Equal(t, int64(100), ledger.Balance("validator", "udemo"))
}
