package clients

import (
	"errors"
	"fmt"

	"github.com/vitwit/usdcpay/types"
)

var (
	// ErrUserRejected is returned when the user declines the transfer.
	ErrUserRejected = fmt.Errorf("wallet: user rejected the transaction: %w", types.ErrSigningRejected)

	// ErrProviderError covers RPC and signer failures.
	ErrProviderError = fmt.Errorf("wallet: provider error: %w", types.ErrProviderUnavailable)

	// ErrNoSigner is returned by a wallet without a configured key.
	ErrNoSigner = errors.New("wallet: no signer configured")
)

// Classify maps a wallet failure onto the payment error taxonomy.
func Classify(err error) *types.PaymentError {
	if pe, ok := types.AsPaymentError(err); ok {
		return pe
	}

	switch {
	case errors.Is(err, types.ErrSigningRejected):
		return types.NewPaymentError(types.ErrCodeSigningRejected, "transaction was rejected in the wallet", err)
	case errors.Is(err, types.ErrPrecision):
		return types.NewPaymentError(types.ErrCodePrecision, err.Error(), err)
	default:
		return types.NewPaymentError(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("wallet provider unavailable: %v", err), err)
	}
}

func providerErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrProviderError, err)
}
