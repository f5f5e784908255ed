package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  },
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [{ "name": "account", "type": "address" }],
    "outputs": [{ "name": "", "type": "uint256" }]
  }
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid erc20 abi: %v", err))
	}
	return parsed
}

// ERC20 reads the token balance of an owner.
type ERC20 interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

var _ ERC20 = (*erc20Caller)(nil)

type erc20Caller struct {
	token  common.Address
	caller ethereum.ContractCaller
}

func newERC20(token common.Address, caller ethereum.ContractCaller) *erc20Caller {
	return &erc20Caller{token: token, caller: caller}
}

func (e *erc20Caller) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	out, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &e.token, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	values, err := parsedERC20.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode balanceOf: unexpected type %T", values[0])
	}
	return bal, nil
}

// PackTransfer builds the call data for transfer(to, value).
func PackTransfer(to common.Address, value *big.Int) ([]byte, error) {
	return parsedERC20.Pack("transfer", to, value)
}
