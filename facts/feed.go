// Package facts keeps the latest wallet facts and publishes changes.
package facts

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/vitwit/usdcpay/balance"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/types"
)

// TopicUpdated is published with the new types.WalletFacts whenever a refresh
// observes a change.
const TopicUpdated = "facts:updated"

// Feed polls the wallet and the balance oracle. Current is safe to call from
// any goroutine and is what the lifecycle machine consults at submit time.
type Feed struct {
	wallet   clients.Wallet
	balances balance.Reader
	interval time.Duration
	bus      evbus.Bus
	logger   logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	current  types.WalletFacts
	observed bool

	subMu  sync.Mutex
	subs   map[uint64]func(types.WalletFacts)
	nextID uint64
}

type Option func(*Feed)

func WithLogger(l logger.Logger) Option {
	return func(f *Feed) {
		f.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		f.now = now
	}
}

// WithBus publishes on an existing bus instead of a private one.
func WithBus(bus evbus.Bus) Option {
	return func(f *Feed) {
		f.bus = bus
	}
}

func NewFeed(wallet clients.Wallet, balances balance.Reader, interval time.Duration, opts ...Option) *Feed {
	f := &Feed{
		wallet:   wallet,
		balances: balances,
		interval: interval,
		bus:      evbus.New(),
		logger:   logger.NoopLogger{},
		now:      time.Now,
		subs:     make(map[uint64]func(types.WalletFacts)),
	}
	for _, opt := range opts {
		opt(f)
	}
	// one bus handler per feed; individual subscribers live in f.subs
	_ = f.bus.Subscribe(TopicUpdated, f.dispatch)
	return f
}

// Current returns the last observed facts. Before the first refresh the
// wallet reads as disconnected.
func (f *Feed) Current() types.WalletFacts {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Refresh reads the wallet and balance once. Read failures leave the
// corresponding fact absent; they are logged, not returned.
func (f *Feed) Refresh(ctx context.Context) types.WalletFacts {
	next := types.WalletFacts{ObservedAt: f.now()}

	status, err := f.wallet.ConnectionStatus(ctx)
	if err != nil {
		f.logger.Warn("wallet status read failed", map[string]any{"error": err.Error()})
	}
	next.IsConnected = status.IsConnected
	next.Account = status.Account
	next.ActiveChainID = status.ChainID

	if next.IsConnected && next.Account != nil {
		bal, err := f.balances.ReadBalance(ctx, next.Account)
		if err != nil {
			f.logger.Warn("balance unavailable", map[string]any{
				"account": next.Account.Hex(),
				"error":   err.Error(),
			})
		} else {
			next.Balance = bal
		}
	}

	f.mu.Lock()
	changed := !f.observed || !f.current.Equal(next)
	f.current = next
	f.observed = true
	f.mu.Unlock()

	if changed {
		f.logger.Debug("wallet facts changed", map[string]any{
			"connected": next.IsConnected,
			"chain_id":  bigString(next.ActiveChainID),
			"balance":   bigString(next.Balance),
		})
		f.bus.Publish(TopicUpdated, next)
	}
	return next
}

// Run refreshes immediately and then on every interval until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.Refresh(ctx)
		}
	}
}

// Subscribe calls fn synchronously with every change. The returned function
// removes this subscription only, and may be called from inside fn.
func (f *Feed) Subscribe(fn func(types.WalletFacts)) (func(), error) {
	if fn == nil {
		return nil, errors.New("facts: nil subscriber")
	}

	f.subMu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	f.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subMu.Lock()
			delete(f.subs, id)
			f.subMu.Unlock()
		})
	}, nil
}

// dispatch runs on the bus for every published change. Subscribers are
// called in subscription order from a snapshot, outside subMu.
func (f *Feed) dispatch(facts types.WalletFacts) {
	f.subMu.Lock()
	ids := make([]uint64, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(types.WalletFacts), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, f.subs[id])
	}
	f.subMu.Unlock()

	for _, fn := range handlers {
		fn(facts)
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
