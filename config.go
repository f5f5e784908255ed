package usdcpay

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/invoices"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
	"github.com/vitwit/usdcpay/types"
)

// NewFromConfig dials the RPC endpoint and builds a client with the key
// wallet, the polling chain source and the configured invoice store.
func NewFromConfig(ctx context.Context, cfg *types.Config, opts ...Option) (*Client, error) {
	base := &Client{}
	for _, opt := range opts {
		opt(base)
	}

	log := base.logger
	if log == nil {
		log = logger.NewZapFileLogger(cfg.LogLevel, cfg.LogFile)
		opts = append(opts, WithLogger(log))
	}
	if base.metrics == nil && cfg.EnableMetrics {
		opts = append(opts, WithMetrics(metrics.NewPrometheusRecorder(nil)))
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	backend, err := clients.Dial(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, types.NewPaymentError(types.ErrCodeProviderUnavailable, err.Error(), err)
	}

	token := common.HexToAddress(cfg.TokenAddress)
	walletOpts := []clients.WalletOption{clients.WithWalletLogger(log)}
	if base.approver != nil {
		walletOpts = append(walletOpts, clients.WithApprover(base.approver))
	}
	wallet, err := clients.NewKeyWallet(backend, cfg.PrivateKey, token, walletOpts...)
	if err != nil {
		backend.Close()
		return nil, types.NewPaymentError(types.ErrCodeConfig, err.Error(), fmt.Errorf("%w: %v", types.ErrConfig, err))
	}
	source := clients.NewEVMChain(backend, cfg.TokenDecimals, cfg.ReceiptPollInterval, cfg.ReceiptTimeout, log)

	store, closer, err := openInvoiceStore(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	c, err := New(cfg, wallet, source, store, opts...)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		backend.Close()
		return nil, err
	}
	c.closers = append(c.closers, closeFunc(func() error { backend.Close(); return nil }))
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	return c, nil
}

var openInvoiceStore = openStore

func openStore(cfg *types.Config) (invoices.Store, interface{ Close() error }, error) {
	switch {
	case cfg.InvoiceDB != "":
		s, err := invoices.OpenSQLite(cfg.InvoiceDB)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case cfg.InvoiceFile != "":
		s, err := invoices.LoadYAML(cfg.InvoiceFile)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		s, _ := invoices.NewMemoryStore()
		return s, nil, nil
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }
