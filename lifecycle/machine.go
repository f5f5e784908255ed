// Package lifecycle drives a single payment attempt from submit through
// on-chain confirmation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/usdcpay/clients"
	"github.com/vitwit/usdcpay/gate"
	"github.com/vitwit/usdcpay/logger"
	"github.com/vitwit/usdcpay/metrics"
	"github.com/vitwit/usdcpay/types"
)

// FactsProvider returns the most recently observed wallet facts.
type FactsProvider interface {
	Current() types.WalletFacts
}

// FactsFunc adapts a function to FactsProvider.
type FactsFunc func() types.WalletFacts

func (f FactsFunc) Current() types.WalletFacts { return f() }

// Machine owns the lifecycle state of one payment at a time.
//
// States: idle -> signing -> pending(hash) -> confirmed(hash), with error
// reachable from signing and pending. Only one attempt is ever in flight;
// Submit outside idle is rejected and changes nothing.
type Machine struct {
	wallet  clients.Wallet
	chain   clients.ChainSource
	facts   FactsProvider
	chainID *big.Int

	sink    Sink
	logger  logger.Logger
	metrics metrics.Recorder
	network string
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	state    types.LifecycleState
	request  *types.PaymentRequest
	outcome  *types.TransactionOutcome
	cancel   context.CancelFunc
	started  time.Time
	changed  chan struct{}
	closed   bool
	stopped  bool
	queue    []func()
	draining bool
	wg       sync.WaitGroup
}

// New returns an idle machine that pays on chainID.
func New(wallet clients.Wallet, chain clients.ChainSource, facts FactsProvider, chainID *big.Int, opts ...Option) *Machine {
	m := &Machine{
		wallet:  wallet,
		chain:   chain,
		facts:   facts,
		chainID: new(big.Int).Set(chainID),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
		newID:   uuid.NewString,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = types.LifecycleState{Phase: types.PhaseIdle, UpdatedAt: m.now()}
	return m
}

// Submit starts an attempt for req if the machine is idle and the gate,
// evaluated against the latest facts, allows it.
//
// A blocked gate is not an error: the decision is returned and nothing
// changes. Submitting outside idle fails with ErrAttemptInFlight (signing or
// pending) or ErrInvalidTransition (confirmed or error) and notifies nobody.
func (m *Machine) Submit(ctx context.Context, req types.PaymentRequest) (types.GateDecision, error) {
	if err := req.Validate(); err != nil {
		return types.GateDecision{}, err
	}
	// the attempt owns its amount; later changes by the caller are not seen
	req.Amount = new(big.Int).Set(req.Amount)

	m.mu.Lock()
	if err := m.submittableLocked(); err != nil {
		phase := m.state.Phase
		m.mu.Unlock()
		m.logger.Warn("submit ignored", map[string]any{"phase": string(phase), "reason": err.Error()})
		return types.GateDecision{}, err
	}

	decision := gate.Evaluate(m.facts.Current(), gate.Requirement{ChainID: m.chainID, MinAmount: req.Amount})
	if !decision.Allowed {
		m.mu.Unlock()
		m.logger.Info("submit blocked by gate", map[string]any{"reason": string(decision.Reason)})
		m.metrics.IncCounter("gate_blocked", map[string]string{"network": m.network, "phase": string(decision.Reason)})
		return decision, nil
	}

	attemptID := m.newID()
	attemptCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.request = &req
	m.outcome = nil
	m.started = m.now()
	m.transitionLocked(types.LifecycleState{Phase: types.PhaseSigning, AttemptID: attemptID})
	m.wg.Add(1)
	m.mu.Unlock()

	m.drain()

	go m.run(attemptCtx, cancel, attemptID, req)
	return decision, nil
}

func (m *Machine) submittableLocked() error {
	if m.closed {
		return types.NewPaymentError(types.ErrCodeInvalidTransition, "payment controller is closed", types.ErrInvalidTransition)
	}
	switch m.state.Phase {
	case types.PhaseIdle:
		return nil
	case types.PhaseSigning, types.PhasePending:
		return types.NewPaymentError(types.ErrCodeAttemptInFlight,
			fmt.Sprintf("a payment is already %s", m.state.Phase), types.ErrAttemptInFlight)
	default:
		return types.NewPaymentError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot submit from %s; reset or start a new attempt", m.state.Phase), types.ErrInvalidTransition)
	}
}

func (m *Machine) run(ctx context.Context, cancel context.CancelFunc, attemptID string, req types.PaymentRequest) {
	defer m.wg.Done()
	defer cancel()

	hash, err := m.wallet.SignAndBroadcast(ctx, req)
	m.metrics.ObserveLatency("sign", m.now().Sub(m.startedAt()), map[string]string{"network": m.network})
	if err != nil {
		m.signingFailed(attemptID, err)
		return
	}
	if !m.broadcast(attemptID, hash) {
		return
	}

	receipts, err := m.chain.AwaitReceipt(ctx, hash)
	if err != nil {
		m.fail(attemptID, hash, types.NewPaymentError(types.ErrCodeProviderUnavailable,
			fmt.Sprintf("could not watch transaction %s: %v; it may still confirm, check the explorer before retrying", hash, err),
			fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)))
		return
	}

	for r := range receipts {
		m.HandleReceipt(r)
	}

	if ctx.Err() == nil {
		m.fail(attemptID, hash, types.NewPaymentError(types.ErrCodeReceiptFailure,
			fmt.Sprintf("no result was reported for transaction %s; funds may have moved, check the explorer before retrying", hash),
			types.ErrReceiptFailure))
	}
}

func (m *Machine) startedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Machine) signingFailed(attemptID string, err error) {
	m.mu.Lock()
	if m.closed || m.state.AttemptID != attemptID || m.state.Phase != types.PhaseSigning {
		m.mu.Unlock()
		m.logger.Debug("wallet result for abandoned attempt ignored", map[string]any{"attempt_id": attemptID, "error": err.Error()})
		return
	}

	pe := clients.Classify(err)
	if !pe.Retryable {
		pe = types.NewPaymentError(types.ErrCodeProviderUnavailable, pe.Message, pe)
	}
	m.errorLocked(pe, "")
	m.mu.Unlock()

	m.drain()
}

// broadcast records the hash and reports whether the attempt is still
// current.
func (m *Machine) broadcast(attemptID, hash string) bool {
	m.mu.Lock()
	if m.closed || m.state.AttemptID != attemptID || m.state.Phase != types.PhaseSigning {
		m.mu.Unlock()
		m.logger.Warn("transaction broadcast after the attempt was cancelled", map[string]any{
			"attempt_id": attemptID,
			"tx_hash":    hash,
		})
		return false
	}

	m.transitionLocked(types.LifecycleState{Phase: types.PhasePending, AttemptID: attemptID, TxHash: hash})
	if fn := m.sink.OnSubmitted; fn != nil {
		m.queue = append(m.queue, func() { fn(hash) })
	}
	m.mu.Unlock()

	m.drain()
	return true
}

// HandleReceipt applies a chain result. Receipts for anything but the pending
// hash are ignored, and a repeated success for a confirmed hash is a no-op.
func (m *Machine) HandleReceipt(r types.Receipt) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Debug("receipt after close ignored", map[string]any{"tx_hash": r.TxHash})
		return
	}

	sameHash := m.state.TxHash != "" && strings.EqualFold(r.TxHash, m.state.TxHash)
	switch {
	case sameHash && m.state.Phase != types.PhasePending:
		phase := m.state.Phase
		m.mu.Unlock()
		m.logger.Debug("duplicate receipt ignored", map[string]any{"tx_hash": r.TxHash, "phase": string(phase)})
		return
	case !sameHash || m.state.Phase != types.PhasePending:
		m.mu.Unlock()
		m.logger.Warn("receipt for unknown transaction ignored", map[string]any{"tx_hash": r.TxHash})
		return
	}

	if !r.Succeeded() {
		reason := r.Reason
		if reason == "" {
			reason = "transaction failed"
		}
		m.errorLocked(types.NewPaymentError(types.ErrCodeReceiptFailure,
			fmt.Sprintf("%s (%s); funds may have moved, check the explorer before retrying", reason, m.state.TxHash),
			types.ErrReceiptFailure), m.state.TxHash)
		m.mu.Unlock()
		m.drain()
		return
	}

	hash := m.state.TxHash
	confirmedAt := m.now()
	m.outcome = &types.TransactionOutcome{
		AttemptID:   m.state.AttemptID,
		TxHash:      hash,
		ConfirmedAt: confirmedAt,
		Request:     *m.request,
	}
	m.metrics.ObserveLatency("confirm", confirmedAt.Sub(m.started), map[string]string{"network": m.network})
	m.transitionLocked(types.LifecycleState{Phase: types.PhaseConfirmed, AttemptID: m.state.AttemptID, TxHash: hash})
	if fn := m.sink.OnConfirmed; fn != nil {
		m.queue = append(m.queue, func() { fn(hash) })
	}
	m.mu.Unlock()

	m.drain()
}

func (m *Machine) fail(attemptID, hash string, pe *types.PaymentError) {
	m.mu.Lock()
	if m.closed || m.state.AttemptID != attemptID || m.state.Phase != types.PhasePending {
		m.mu.Unlock()
		return
	}
	m.errorLocked(pe, hash)
	m.mu.Unlock()

	m.drain()
}

// Cancel abandons an attempt that has not been broadcast yet.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if m.state.Phase != types.PhaseSigning {
		phase := m.state.Phase
		m.mu.Unlock()
		return types.NewPaymentError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot cancel from %s; only an unsigned attempt can be cancelled", phase), types.ErrInvalidTransition)
	}

	m.logger.Info("attempt cancelled before broadcast", map[string]any{"attempt_id": m.state.AttemptID})
	m.cancel()
	m.cancel = nil
	m.request = nil
	m.transitionLocked(types.LifecycleState{Phase: types.PhaseIdle})
	m.mu.Unlock()

	m.drain()
	return nil
}

// Reset returns a retryable error to idle. From signing it cancels. Reset is
// rejected while pending, after confirmation and after a fatal error.
func (m *Machine) Reset() error {
	m.mu.Lock()
	switch {
	case m.state.Phase == types.PhaseIdle:
		m.mu.Unlock()
		return nil
	case m.state.Phase == types.PhaseSigning:
		m.mu.Unlock()
		return m.Cancel()
	case m.state.Phase == types.PhaseError && m.state.Retryable:
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.request = nil
		m.transitionLocked(types.LifecycleState{Phase: types.PhaseIdle})
		m.mu.Unlock()
		m.drain()
		return nil
	}

	state := m.state
	m.mu.Unlock()
	return types.NewPaymentError(types.ErrCodeInvalidTransition,
		fmt.Sprintf("cannot reset from %s", state), types.ErrInvalidTransition)
}

// Abort moves an idle machine into a fatal error, for failures found while
// building the request such as an amount that does not fit the token
// precision.
func (m *Machine) Abort(err error) error {
	pe, ok := types.AsPaymentError(err)
	if !ok {
		pe = types.NewPaymentError(types.ErrCodeInvalidRequest, err.Error(), err)
	}
	fatal := *pe
	fatal.Retryable = false

	m.mu.Lock()
	if m.closed || m.state.Phase != types.PhaseIdle {
		phase := m.state.Phase
		m.mu.Unlock()
		return types.NewPaymentError(types.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot abort from %s", phase), types.ErrInvalidTransition)
	}
	m.errorLocked(&fatal, "")
	m.mu.Unlock()

	m.drain()
	return nil
}

func (m *Machine) errorLocked(pe *types.PaymentError, hash string) {
	m.transitionLocked(types.LifecycleState{
		Phase:     types.PhaseError,
		AttemptID: m.state.AttemptID,
		TxHash:    hash,
		Message:   pe.Message,
		Code:      pe.Code,
		Retryable: pe.Retryable,
	})
	m.logger.Error("payment attempt failed", map[string]any{
		"attempt_id": m.state.AttemptID,
		"tx_hash":    hash,
		"code":       string(pe.Code),
		"retryable":  pe.Retryable,
		"error":      pe.Error(),
	})
	if fn := m.sink.OnError; fn != nil {
		m.queue = append(m.queue, func() { fn(pe) })
	}
}

func (m *Machine) transitionLocked(next types.LifecycleState) {
	next.UpdatedAt = m.now()
	prev := m.state.Phase
	m.state = next

	close(m.changed)
	m.changed = make(chan struct{})

	m.logger.Info("payment state changed", map[string]any{
		"from":       string(prev),
		"to":         string(next.Phase),
		"attempt_id": next.AttemptID,
		"tx_hash":    next.TxHash,
	})
	m.metrics.IncCounter("transition", map[string]string{"network": m.network, "phase": string(next.Phase)})

	if fn := m.sink.OnStateChange; fn != nil {
		m.queue = append(m.queue, func() { fn(next) })
	}
}

// drain delivers queued notifications in order. Only one goroutine drains at
// a time; a reentrant call from a callback returns immediately and its
// notifications are picked up by the active drainer.
func (m *Machine) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() types.LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Outcome returns the confirmed result of the current attempt, if any.
func (m *Machine) Outcome() (types.TransactionOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcome == nil {
		return types.TransactionOutcome{}, false
	}
	return *m.outcome, true
}

// Request returns the request of the attempt in progress or last finished.
func (m *Machine) Request() (types.PaymentRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.request == nil {
		return types.PaymentRequest{}, false
	}
	return *m.request, true
}

// Wait blocks until no attempt is in flight and returns that state. On a
// closed machine it returns immediately with the last state, which may still
// be pending.
func (m *Machine) Wait(ctx context.Context) (types.LifecycleState, error) {
	for {
		m.mu.Lock()
		state, changed, closed := m.state, m.changed, m.closed
		m.mu.Unlock()

		if !state.InFlight() || closed {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Retire stops an idle or finished machine from accepting further submits.
// It fails with ErrAttemptInFlight while signing or pending, so a concurrent
// Submit either starts before Retire and blocks it, or is rejected.
func (m *Machine) Retire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.InFlight() {
		return types.NewPaymentError(types.ErrCodeAttemptInFlight,
			fmt.Sprintf("cannot start a new attempt while %s", m.state.Phase), types.ErrAttemptInFlight)
	}
	m.closed = true
	return nil
}

// Close cancels any in-flight work and waits for the attempt goroutine to
// exit. The machine rejects submits and ignores receipts afterwards.
//
// Close does not transition: a machine closed while pending stays pending and
// the broadcast transaction may still confirm on-chain without being
// reported. Check the explorer for Snapshot().TxHash in that case.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// IsInvalidTransition reports whether err is a rejected caller action.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, types.ErrInvalidTransition)
}
