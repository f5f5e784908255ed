package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/types"
)

var (
	baseSepolia = big.NewInt(84532)
	payer       = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	vendor      = common.HexToAddress("0x384Aa214be0B279cbf211e9b2C992d8633F77848")
)

type signResult struct {
	hash string
	err  error
}

type fakeWallet struct {
	mu      sync.Mutex
	calls   int
	amounts []string
	results chan signResult

	// ignoreCancel makes the wallet answer even after the attempt context
	// is cancelled, like a wallet that already broadcast.
	ignoreCancel bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{results: make(chan signResult, 4)}
}

func (w *fakeWallet) SignAndBroadcast(ctx context.Context, req types.PaymentRequest) (string, error) {
	w.mu.Lock()
	w.calls++
	w.amounts = append(w.amounts, req.Amount.String())
	w.mu.Unlock()

	if w.ignoreCancel {
		r := <-w.results
		return r.hash, r.err
	}
	select {
	case r := <-w.results:
		return r.hash, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *fakeWallet) ConnectionStatus(context.Context) (clients.ConnectionStatus, error) {
	return clients.ConnectionStatus{IsConnected: true, Account: &payer, ChainID: baseSepolia}, nil
}

func (w *fakeWallet) Amounts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.amounts...)
}

func (w *fakeWallet) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type fakeChain struct {
	mu      sync.Mutex
	watched []string
	err     error
	feed    chan types.Receipt
}

func newFakeChain() *fakeChain {
	return &fakeChain{feed: make(chan types.Receipt, 4)}
}

func (c *fakeChain) GetBalance(context.Context, common.Address, common.Address) (string, error) {
	return "500", nil
}

func (c *fakeChain) AwaitReceipt(ctx context.Context, txHash string) (<-chan types.Receipt, error) {
	c.mu.Lock()
	c.watched = append(c.watched, txHash)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}

	out := make(chan types.Receipt)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-c.feed:
				if !ok {
					return
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// recorder captures sink notifications in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []string
	errors []*types.PaymentError
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) sink() Sink {
	return Sink{
		OnSubmitted: func(h string) { r.add("submitted:" + h) },
		OnConfirmed: func(h string) { r.add("confirmed:" + h) },
		OnError: func(pe *types.PaymentError) {
			r.mu.Lock()
			r.errors = append(r.errors, pe)
			r.mu.Unlock()
			r.add(fmt.Sprintf("error:%s", pe.Code))
		},
		OnStateChange: func(s types.LifecycleState) { r.add("state:" + string(s.Phase)) },
	}
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errors() []*types.PaymentError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.PaymentError(nil), r.errors...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.Events() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func allowedFacts() types.WalletFacts {
	return types.WalletFacts{
		IsConnected:   true,
		Account:       &payer,
		ActiveChainID: baseSepolia,
		Balance:       big.NewInt(500_000000),
	}
}

func paymentRequest(t *testing.T, amount int64) types.PaymentRequest {
	t.Helper()
	req, err := types.NewPaymentRequest(vendor.Hex(), big.NewInt(amount), "INV-2024-001")
	require.NoError(t, err)
	return req
}

type harness struct {
	m      *Machine
	wallet *fakeWallet
	chain  *fakeChain
	rec    *recorder
	log    *logger.MemoryLogger

	mu    sync.Mutex
	facts types.WalletFacts
}

func (h *harness) setFacts(f types.WalletFacts) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.facts = f
}

func (h *harness) current() types.WalletFacts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.facts
}

func newHarness(t *testing.T, facts types.WalletFacts, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		wallet: newFakeWallet(),
		chain:  newFakeChain(),
		rec:    &recorder{},
		log:    logger.NewMemoryLogger(),
		facts:  facts,
	}
	opts = append([]Option{WithSink(h.rec.sink()), WithLogger(h.log), WithNetwork("base-sepolia")}, opts...)
	h.m = New(h.wallet, h.chain, FactsFunc(h.current), baseSepolia, opts...)
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

func (h *harness) waitPhase(t *testing.T, phase types.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return h.m.Snapshot().Phase == phase },
		2*time.Second, 5*time.Millisecond, "never reached %s, state %s", phase, h.m.Snapshot())
}

func (h *harness) waitEvents(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.rec.Events()) >= n },
		2*time.Second, 5*time.Millisecond, "events so far: %v", h.rec.Events())
}
