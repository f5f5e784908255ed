package types

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentRequest(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		amount    *big.Int
		ref       string
		wantErr   bool
	}{
		{"valid", "0x384Aa214be0B279cbf211e9b2C992d8633F77848", big.NewInt(1), "INV-1", false},
		{"lowercase", "0x384aa214be0b279cbf211e9b2c992d8633f77848", big.NewInt(1), "", false},
		{"zero amount", "0x384Aa214be0B279cbf211e9b2C992d8633F77848", big.NewInt(0), "", true},
		{"negative", "0x384Aa214be0B279cbf211e9b2C992d8633F77848", big.NewInt(-5), "", true},
		{"nil amount", "0x384Aa214be0B279cbf211e9b2C992d8633F77848", nil, "", true},
		{"short address", "0x384A", big.NewInt(1), "", true},
		{"zero address", "0x0000000000000000000000000000000000000000", big.NewInt(1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewPaymentRequest(tt.recipient, tt.amount, tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(tt.recipient), req.Recipient)
			assert.Equal(t, tt.ref, req.InvoiceReference)
		})
	}
}

func TestNewPaymentRequest_CopiesAmount(t *testing.T) {
	amount := big.NewInt(100)
	req, err := NewPaymentRequest("0x384Aa214be0B279cbf211e9b2C992d8633F77848", amount, "")
	require.NoError(t, err)

	amount.SetInt64(1)
	assert.Equal(t, int64(100), req.Amount.Int64())
}

func TestWalletFactsEqual(t *testing.T) {
	a := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	b := a

	base := WalletFacts{IsConnected: true, Account: &a, ActiveChainID: big.NewInt(84532), Balance: big.NewInt(5)}
	same := WalletFacts{IsConnected: true, Account: &b, ActiveChainID: big.NewInt(84532), Balance: big.NewInt(5)}
	assert.True(t, base.Equal(same))

	other := same
	other.Balance = nil
	assert.False(t, base.Equal(other))

	other = same
	other.Account = nil
	assert.False(t, base.Equal(other))

	other = same
	other.ActiveChainID = big.NewInt(1)
	assert.False(t, base.Equal(other))
}

func TestGateDecisionString(t *testing.T) {
	assert.Equal(t, "allowed", Allow().String())
	assert.Equal(t, "blocked(wrong_network)", Block(ReasonWrongNetwork).String())
	for _, r := range []BlockReason{ReasonWalletDisconnected, ReasonWrongNetwork, ReasonInsufficientBalance} {
		assert.NotEmpty(t, r.Message())
	}
}

func TestLifecycleState(t *testing.T) {
	assert.True(t, LifecycleState{Phase: PhaseSigning}.InFlight())
	assert.True(t, LifecycleState{Phase: PhasePending}.InFlight())
	assert.False(t, LifecycleState{Phase: PhaseIdle}.InFlight())

	assert.True(t, LifecycleState{Phase: PhaseConfirmed}.Terminal())
	assert.True(t, LifecycleState{Phase: PhaseError}.Terminal())
	assert.False(t, LifecycleState{Phase: PhaseError, Retryable: true}.Terminal())

	assert.Equal(t, "pending(0xabc)", LifecycleState{Phase: PhasePending, TxHash: "0xabc"}.String())
	assert.Equal(t, "error(boom, retryable=true)", LifecycleState{Phase: PhaseError, Message: "boom", Retryable: true}.String())
}

func TestPaymentError(t *testing.T) {
	cause := fmt.Errorf("wallet: %w", ErrSigningRejected)
	pe := NewPaymentError(ErrCodeSigningRejected, "rejected", cause)

	assert.True(t, pe.Retryable)
	assert.Equal(t, "rejected", pe.Error())
	assert.ErrorIs(t, pe, ErrSigningRejected)

	wrapped := fmt.Errorf("submit: %w", pe)
	got, ok := AsPaymentError(wrapped)
	require.True(t, ok)
	assert.Same(t, pe, got)

	_, ok = AsPaymentError(errors.New("plain"))
	assert.False(t, ok)

	assert.Equal(t, "underlying", (&PaymentError{Err: errors.New("underlying")}).Error())
}

func TestErrorCodeRetryable(t *testing.T) {
	retryable := map[ErrorCode]bool{
		ErrCodeSigningRejected:     true,
		ErrCodeProviderUnavailable: true,
		ErrCodeReceiptFailure:      true,
		ErrCodePrecision:           false,
		ErrCodeInvalidRequest:      false,
		ErrCodeInvalidTransition:   false,
		ErrCodeConfig:              false,
	}
	for code, want := range retryable {
		assert.Equal(t, want, code.Retryable(), code)
	}
}

func TestChainConfig(t *testing.T) {
	c := BaseSepolia
	assert.Equal(t, "https://sepolia.basescan.org/tx/0xabc", c.TxURL("0xabc"))
	assert.Equal(t, "https://sepolia.basescan.org/token/0x036CbD53842c5426634e7929541eC2318f3dCF7e", c.TokenURL())
	assert.True(t, c.IsChain(big.NewInt(84532)))
	assert.False(t, c.IsChain(big.NewInt(8453)))
	assert.False(t, c.IsChain(nil))
}

func TestInvoiceRecordValidate(t *testing.T) {
	rec := InvoiceRecord{ID: "inv-1", VendorAddress: "0x384Aa214be0B279cbf211e9b2C992d8633F77848", Amount: "10"}
	assert.NoError(t, rec.Validate())

	rec.VendorAddress = "acme"
	assert.ErrorIs(t, rec.Validate(), ErrInvalidRequest)
}

func TestDefaultConfigChain(t *testing.T) {
	chain := DefaultConfig().Chain()
	assert.Equal(t, BaseSepolia.Name, chain.Name)
	assert.Equal(t, 0, BaseSepolia.ChainID.Cmp(chain.ChainID))
	assert.Equal(t, int32(6), chain.Decimals)
}
