package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/types"
	"github.com/vitwit/usdcpay/utils"
)

// Approver is asked to confirm a transfer before it is signed. Returning
// false is a user rejection.
type Approver func(ctx context.Context, req types.PaymentRequest) (bool, error)

// AutoApprove confirms every transfer.
func AutoApprove(context.Context, types.PaymentRequest) (bool, error) { return true, nil }

var _ Wallet = (*KeyWallet)(nil)

// KeyWallet is a Wallet backed by a local secp256k1 key and an EVM RPC
// backend. It transfers the configured ERC-20 token with transfer(to, value).
type KeyWallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	token   common.Address
	approve Approver
	logger  logger.Logger
}

type WalletOption func(*KeyWallet)

func WithApprover(a Approver) WalletOption {
	return func(w *KeyWallet) {
		w.approve = a
	}
}

func WithWalletLogger(l logger.Logger) WalletOption {
	return func(w *KeyWallet) {
		w.logger = l
	}
}

// NewKeyWallet builds a wallet for token. An empty privateKeyHex yields a
// disconnected wallet that reports IsConnected=false.
func NewKeyWallet(backend Backend, privateKeyHex string, token common.Address, opts ...WalletOption) (*KeyWallet, error) {
	w := &KeyWallet{
		backend: backend,
		token:   token,
		approve: AutoApprove,
		logger:  logger.NoopLogger{},
	}

	if strings.TrimSpace(privateKeyHex) != "" {
		key, err := utils.PrivateKeyFromHex(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		w.key = key
		w.address = utils.AddressFromPrivateKey(key)
	}

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Address returns the signer address, or the zero address when disconnected.
func (w *KeyWallet) Address() common.Address {
	return w.address
}

// ConnectionStatus implements Wallet.
func (w *KeyWallet) ConnectionStatus(ctx context.Context) (ConnectionStatus, error) {
	if w.key == nil {
		return ConnectionStatus{}, nil
	}

	account := w.address
	status := ConnectionStatus{IsConnected: true, Account: &account}

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return status, providerErr("chain id", err)
	}
	status.ChainID = chainID
	return status, nil
}

// SignAndBroadcast implements Wallet.
func (w *KeyWallet) SignAndBroadcast(ctx context.Context, req types.PaymentRequest) (string, error) {
	if w.key == nil {
		return "", providerErr("sign", ErrNoSigner)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	ok, err := w.approve(ctx, req)
	if err != nil {
		return "", providerErr("approve", err)
	}
	if !ok {
		return "", ErrUserRejected
	}

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return "", providerErr("chain id", err)
	}

	callData, err := PackTransfer(req.Recipient, req.Amount)
	if err != nil {
		return "", providerErr("pack transfer", err)
	}

	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &w.token, Data: callData})
	if err != nil {
		return "", providerErr("estimate gas", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", providerErr("suggest gas price", err)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", providerErr("pending nonce", err)
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &w.token,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})

	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", providerErr("sign tx", err)
	}

	// last point where the attempt can still be abandoned without a transfer
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return "", providerErr("send tx", err)
	}

	hash := signed.Hash().Hex()
	w.logger.Info("transfer broadcast", map[string]any{
		"tx_hash":   hash,
		"recipient": req.Recipient.Hex(),
		"amount":    req.Amount.String(),
		"nonce":     nonce,
	})
	return hash, nil
}
