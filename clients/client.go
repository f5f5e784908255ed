package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/usdcpay/types"
)

// ConnectionStatus is what the wallet reports about itself.
type ConnectionStatus struct {
	IsConnected bool
	Account     *common.Address
	ChainID     *big.Int
}

// Wallet signs and broadcasts the token transfer for a payment request.
//
// SignAndBroadcast blocks until the transaction is broadcast and returns its
// hash. It fails with an error wrapping ErrUserRejected when the user
// declines, or ErrProviderError for anything else.
type Wallet interface {
	SignAndBroadcast(ctx context.Context, req types.PaymentRequest) (string, error)
	ConnectionStatus(ctx context.Context) (ConnectionStatus, error)
}

// ChainSource reads balances and reports transaction receipts.
//
// GetBalance returns the token balance as a major-unit decimal string.
// AwaitReceipt delivers at least one terminal receipt for txHash on the
// returned channel and then closes it; duplicates are allowed.
type ChainSource interface {
	GetBalance(ctx context.Context, account, token common.Address) (string, error)
	AwaitReceipt(ctx context.Context, txHash string) (<-chan types.Receipt, error)
}
