package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

var _ ChainSource = (*EVMChain)(nil)

// EVMChain reads ERC-20 balances and polls for transaction receipts.
type EVMChain struct {
	backend      Backend
	decimals     int32
	pollInterval time.Duration
	timeout      time.Duration
	logger       logger.Logger
}

// NewEVMChain polls every pollInterval and reports a failure receipt when
// nothing is mined within timeout.
func NewEVMChain(backend Backend, decimals int32, pollInterval, timeout time.Duration, l logger.Logger) *EVMChain {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &EVMChain{
		backend:      backend,
		decimals:     decimals,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       l,
	}
}

// GetBalance implements ChainSource.
func (c *EVMChain) GetBalance(ctx context.Context, account, token common.Address) (string, error) {
	bal, err := newERC20(token, c.backend).BalanceOf(ctx, account)
	if err != nil {
		return "", providerErr("balanceOf", err)
	}
	return decimal.NewFromBigInt(bal, -c.decimals).String(), nil
}

// AwaitReceipt implements ChainSource.
func (c *EVMChain) AwaitReceipt(ctx context.Context, txHash string) (<-chan types.Receipt, error) {
	if err := utils.ValidateTransactionHash(txHash); err != nil {
		return nil, fmt.Errorf("await receipt: %w", err)
	}

	out := make(chan types.Receipt, 1)
	go c.poll(ctx, common.HexToHash(txHash), out)
	return out, nil
}

func (c *EVMChain) poll(ctx context.Context, hash common.Hash, out chan<- types.Receipt) {
	defer close(out)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			out <- toReceipt(hash, receipt)
			return
		case err != nil && !errors.Is(err, ethereum.NotFound):
			c.logger.Warn("receipt poll failed", map[string]any{"tx_hash": hash.Hex(), "error": err.Error()})
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			out <- types.Receipt{
				TxHash: hash.Hex(),
				Status: types.ReceiptFailure,
				Reason: fmt.Sprintf("no receipt after %s; the transaction may have been dropped", c.timeout),
			}
			return
		case <-ticker.C:
		}
	}
}

func toReceipt(hash common.Hash, r *gethtypes.Receipt) types.Receipt {
	out := types.Receipt{TxHash: hash.Hex(), Status: types.ReceiptSuccess}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if r.Status != gethtypes.ReceiptStatusSuccessful {
		out.Status = types.ReceiptFailure
		out.Reason = "transaction reverted"
	}
	return out
}
