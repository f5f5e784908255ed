// Package usdcpay pays invoices in USDC from a wallet and tracks the transfer
// until it is confirmed on-chain.
package usdcpay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/usdcpay/balance"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/facts"
	"github.com/vitwit/usdcpay/gate"
	"github.com/vitwit/usdcpay/invoices"
	"github.com/vitwit/usdcpay/lifecycle"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
	"github.com/vitwit/usdcpay/types"
)

// Client ties the wallet, the chain source and an invoice store to one
// payment lifecycle.
type Client struct {
	cfg    *types.Config
	chain  types.ChainConfig
	wallet clients.Wallet
	source clients.ChainSource
	store  invoices.Store
	feed   *facts.Feed

	logger   logger.Logger
	metrics  metrics.Recorder
	sink     lifecycle.Sink
	approver clients.Approver
	closers  []io.Closer

	mu      sync.Mutex
	machine *lifecycle.Machine
}

// New builds a client over already constructed collaborators.
func New(cfg *types.Config, wallet clients.Wallet, source clients.ChainSource, store invoices.Store, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, types.NewPaymentError(types.ErrCodeConfig,
			fmt.Sprintf("token address %q is not a hex address", cfg.TokenAddress), types.ErrConfig)
	}

	c := &Client{
		cfg:     cfg,
		chain:   cfg.Chain(),
		wallet:  wallet,
		source:  source,
		store:   store,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store, _ = invoices.NewMemoryStore()
	}

	oracle := balance.NewOracle(source, common.HexToAddress(cfg.TokenAddress), cfg.TokenDecimals, c.logger)
	c.feed = facts.NewFeed(wallet, oracle, cfg.FactsInterval, facts.WithLogger(c.logger))
	c.machine = c.newMachine()
	return c, nil
}

func (c *Client) newMachine() *lifecycle.Machine {
	return lifecycle.New(c.wallet, c.source, c.feed, c.chain.ChainID,
		lifecycle.WithSink(c.sink),
		lifecycle.WithLogger(c.logger),
		lifecycle.WithMetrics(c.metrics),
		lifecycle.WithNetwork(c.chain.Name),
	)
}

func (c *Client) current() *lifecycle.Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine
}

// Chain returns the payment chain metadata.
func (c *Client) Chain() types.ChainConfig {
	return c.chain
}

// Facts returns the latest wallet facts.
func (c *Client) Facts() types.WalletFacts {
	return c.feed.Current()
}

// Refresh reads wallet and balance facts now.
func (c *Client) Refresh(ctx context.Context) types.WalletFacts {
	return c.feed.Refresh(ctx)
}

// Run keeps facts fresh until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	return c.feed.Run(ctx)
}

// SubscribeFacts calls fn with every fact change.
func (c *Client) SubscribeFacts(fn func(types.WalletFacts)) (func(), error) {
	return c.feed.Subscribe(fn)
}

// Decision evaluates the gate for amount minor units against the latest
// facts.
func (c *Client) Decision(amount *big.Int) types.GateDecision {
	return gate.Evaluate(c.feed.Current(), gate.Requirement{ChainID: c.chain.ChainID, MinAmount: amount})
}

// InvoiceDecision evaluates the gate for paying invoice id in full.
func (c *Client) InvoiceDecision(ctx context.Context, id string) (types.GateDecision, error) {
	rec, err := c.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return types.GateDecision{}, err
	}
	amount, err := invoices.AmountMinorUnits(*rec, c.chain.Decimals)
	if err != nil {
		return types.GateDecision{}, err
	}
	return c.Decision(amount), nil
}

func (c *Client) Invoice(ctx context.Context, id string) (*types.InvoiceRecord, error) {
	return c.store.GetInvoiceByID(ctx, id)
}

func (c *Client) ListInvoices(ctx context.Context) ([]types.InvoiceRecord, error) {
	return c.store.ListInvoices(ctx)
}

// PayInvoice submits a transfer of the full invoice amount to its vendor. An
// amount that does not fit the token precision aborts the attempt with a
// fatal error instead of submitting.
func (c *Client) PayInvoice(ctx context.Context, id string) (types.GateDecision, error) {
	rec, err := c.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return types.GateDecision{}, err
	}

	req, err := invoices.PaymentRequest(*rec, c.chain.Decimals)
	if errors.Is(err, types.ErrPrecision) {
		abortErr := c.onCurrent(func(m *lifecycle.Machine) error { return m.Abort(err) })
		if abortErr != nil {
			return types.GateDecision{}, abortErr
		}
		return types.GateDecision{}, err
	}
	if err != nil {
		return types.GateDecision{}, err
	}

	c.logger.Info("paying invoice", map[string]any{
		"invoice_id": rec.ID,
		"reference":  req.InvoiceReference,
		"vendor":     rec.VendorAddress,
		"amount":     rec.Amount,
	})
	return c.submit(ctx, req)
}

// Pay submits req.
func (c *Client) Pay(ctx context.Context, req types.PaymentRequest) (types.GateDecision, error) {
	return c.submit(ctx, req)
}

func (c *Client) submit(ctx context.Context, req types.PaymentRequest) (types.GateDecision, error) {
	var decision types.GateDecision
	err := c.onCurrent(func(m *lifecycle.Machine) error {
		var err error
		decision, err = m.Submit(ctx, req)
		return err
	})
	return decision, err
}

// onCurrent runs fn on the current machine. A rejection caused by NewAttempt
// retiring that machine mid-call is retried once on its replacement.
func (c *Client) onCurrent(fn func(*lifecycle.Machine) error) error {
	m := c.current()
	err := fn(m)
	if err != nil && lifecycle.IsInvalidTransition(err) {
		if next := c.current(); next != m {
			return fn(next)
		}
	}
	return err
}

func (c *Client) Cancel() error {
	return c.current().Cancel()
}

func (c *Client) Reset() error {
	return c.current().Reset()
}

// HandleReceipt forwards an externally observed receipt to the lifecycle.
func (c *Client) HandleReceipt(r types.Receipt) {
	c.current().HandleReceipt(r)
}

func (c *Client) State() types.LifecycleState {
	return c.current().Snapshot()
}

func (c *Client) Outcome() (types.TransactionOutcome, bool) {
	return c.current().Outcome()
}

// Wait blocks until the current attempt leaves signing and pending.
func (c *Client) Wait(ctx context.Context) (types.LifecycleState, error) {
	return c.current().Wait(ctx)
}

// NewAttempt replaces a finished lifecycle with a fresh idle one. It is how a
// new payment starts after a confirmation or a fatal error.
func (c *Client) NewAttempt() error {
	c.mu.Lock()
	old := c.machine
	if err := old.Retire(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.machine = c.newMachine()
	c.mu.Unlock()

	// sink callbacks of the old attempt may still call into the client
	return old.Close()
}

// Close stops the current attempt and releases owned resources.
func (c *Client) Close() error {
	err := c.current().Close()
	for _, cl := range c.closers {
		if cerr := cl.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if s, ok := c.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return err
}
