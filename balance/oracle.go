// Package balance reads the payer's token balance and converts it into exact
// minor units.
package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

// Reader is the balance read used by the facts feed.
type Reader interface {
	ReadBalance(ctx context.Context, account *common.Address) (*big.Int, error)
}

var _ Reader = (*Oracle)(nil)

// Oracle adapts a chain data source that reports major-unit decimal strings.
type Oracle struct {
	chain    clients.ChainSource
	token    common.Address
	decimals int32
	logger   logger.Logger
}

func NewOracle(chain clients.ChainSource, token common.Address, decimals int32, l logger.Logger) *Oracle {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &Oracle{
		chain:    chain,
		token:    token,
		decimals: decimals,
		logger:   l,
	}
}

// ReadBalance returns the balance of account in minor units.
//
// A nil account fails with types.ErrAccountAbsent, a chain failure wraps
// types.ErrProviderUnavailable, and a reported value that does not fit the
// token precision fails with types.ErrPrecision. No value is returned in any
// of those cases.
func (o *Oracle) ReadBalance(ctx context.Context, account *common.Address) (*big.Int, error) {
	if account == nil {
		return nil, types.ErrAccountAbsent
	}

	raw, err := o.chain.GetBalance(ctx, *account, o.token)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("balance read failed for %s", account.Hex()),
			fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err))
	}

	minor, err := utils.ToMinorUnits(raw, o.decimals)
	if err != nil {
		o.logger.Warn("balance not representable in token units", map[string]any{
			"account":  account.Hex(),
			"raw":      raw,
			"decimals": o.decimals,
			"error":    err.Error(),
		})
		return nil, err
	}

	o.logger.Debug("balance read", map[string]any{
		"account": account.Hex(),
		"balance": minor.String(),
	})
	return minor, nil
}
