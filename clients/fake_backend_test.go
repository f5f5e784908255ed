package clients

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var anvilAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type fakeBackend struct {
	mu sync.Mutex

	chainID  *big.Int
	chainErr error

	balance *big.Int
	callErr error
	calls   []ethereum.CallMsg

	sendErr error
	sent    []*gethtypes.Transaction

	// receiptAfter is the number of TransactionReceipt calls that report
	// NotFound before receipt is returned.
	receiptAfter int
	receipt      *gethtypes.Receipt
	receiptErr   error
	receiptCalls int
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return parsedERC20.Methods["balanceOf"].Outputs.Pack(f.balance)
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, f.chainErr
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 65_000, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receipt == nil || f.receiptCalls <= f.receiptAfter {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) Close() {}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
