package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/usdcpay/types"
)

const testHash = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

func collect(t *testing.T, ch <-chan types.Receipt) []types.Receipt {
	t.Helper()
	var out []types.Receipt
	timeout := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("receipt channel was not closed")
		}
	}
}

func TestEVMChain_GetBalance(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(150_250000)}
	chain := NewEVMChain(backend, 6, time.Millisecond, time.Second, nil)

	bal, err := chain.GetBalance(context.Background(), anvilAddress, usdcToken)
	require.NoError(t, err)
	assert.Equal(t, "150.25", bal)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, usdcToken, *backend.calls[0].To)
}

func TestEVMChain_GetBalanceError(t *testing.T) {
	backend := &fakeBackend{callErr: errors.New("execution reverted")}
	chain := NewEVMChain(backend, 6, time.Millisecond, time.Second, nil)

	_, err := chain.GetBalance(context.Background(), anvilAddress, usdcToken)
	assert.ErrorIs(t, err, types.ErrProviderUnavailable)
}

func TestEVMChain_AwaitReceipt(t *testing.T) {
	tests := []struct {
		name   string
		status uint64
		want   types.ReceiptStatus
	}{
		{"mined", gethtypes.ReceiptStatusSuccessful, types.ReceiptSuccess},
		{"reverted", gethtypes.ReceiptStatusFailed, types.ReceiptFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				receiptAfter: 2,
				receipt:      &gethtypes.Receipt{Status: tt.status, BlockNumber: big.NewInt(1234)},
			}
			chain := NewEVMChain(backend, 6, time.Millisecond, time.Second, nil)

			ch, err := chain.AwaitReceipt(context.Background(), testHash)
			require.NoError(t, err)

			got := collect(t, ch)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Status)
			assert.Equal(t, uint64(1234), got[0].BlockNumber)
			assert.Equal(t, common.HexToHash(testHash).Hex(), got[0].TxHash)
		})
	}
}

func TestEVMChain_AwaitReceiptTimeout(t *testing.T) {
	backend := &fakeBackend{}
	chain := NewEVMChain(backend, 6, time.Millisecond, 20*time.Millisecond, nil)

	ch, err := chain.AwaitReceipt(context.Background(), testHash)
	require.NoError(t, err)

	got := collect(t, ch)
	require.Len(t, got, 1)
	assert.Equal(t, types.ReceiptFailure, got[0].Status)
	assert.Contains(t, got[0].Reason, "no receipt")
}

func TestEVMChain_AwaitReceiptCancelled(t *testing.T) {
	backend := &fakeBackend{}
	chain := NewEVMChain(backend, 6, time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := chain.AwaitReceipt(ctx, testHash)
	require.NoError(t, err)
	cancel()

	assert.Empty(t, collect(t, ch))
}

func TestEVMChain_AwaitReceiptBadHash(t *testing.T) {
	chain := NewEVMChain(&fakeBackend{}, 6, time.Millisecond, time.Second, nil)
	_, err := chain.AwaitReceipt(context.Background(), "0x1234")
	assert.Error(t, err)
}
