package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "nftminter/core/errors"
	"nftminter/core/events"
	"nftminter/sdk/wallet"
)

var (
	// ErrSuperseded is returned when the binding changed while an operation
	// was in flight; its outcome was discarded.
	ErrSuperseded = errors.New("approval: superseded by a newer binding")
	// ErrNotBound is returned when no binding is configured.
	ErrNotBound = errors.New("approval: no binding")
	// ErrInvalidState is returned when an action is not permitted in the
	// current state.
	ErrInvalidState = errors.New("approval: action not permitted in current state")
)

// PayFunc submits the payment and waits for it, reporting the transaction
// lifecycle through handlers.
type PayFunc func(ctx context.Context, handlers wallet.Handlers) error

// Machine serialises allowance checks, approvals and payments for one
// binding at a time.
type Machine struct {
	session   *wallet.Session
	callbacks Callbacks
	emitter   events.Emitter
	logger    *slog.Logger
	tracer    trace.Tracer

	unsubscribe func()

	mu         sync.Mutex
	binding    Binding
	bound      bool
	state      State
	generation uint64
	checkSeq   uint64
	amount     *big.Int
	queued     *big.Int
}

// Option customises the machine.
type Option func(*Machine)

// WithEmitter publishes lifecycle events.
func WithEmitter(emitter events.Emitter) Option {
	return func(m *Machine) { m.emitter = emitter }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// New creates a machine driven by session. A session switch resets the
// machine and invalidates in-flight results.
func New(session *wallet.Session, callbacks Callbacks, opts ...Option) *Machine {
	m := &Machine{
		session:   session,
		callbacks: callbacks,
		emitter:   events.NoopEmitter{},
		tracer:    otel.Tracer("nftminter/approval"),
		amount:    big.NewInt(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.emitter == nil {
		m.emitter = events.NoopEmitter{}
	}
	if session != nil {
		m.unsubscribe = session.Subscribe(func(wallet.Snapshot) { m.Reset() })
	}
	return m
}

// Close detaches the machine from its session.
func (m *Machine) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Machine) log() *slog.Logger {
	if m != nil && m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Status returns the current state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Binding: m.binding, Amount: new(big.Int).Set(m.amount), Generation: m.generation}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Bind switches the machine to b. Binding to the current identity is a no-op;
// any other binding resets to Idle and invalidates in-flight results.
func (m *Machine) Bind(b Binding) bool {
	m.mu.Lock()
	if m.bound && m.binding.equal(b) {
		m.mu.Unlock()
		return false
	}
	m.binding = b
	m.bound = true
	notify := m.resetLocked()
	m.mu.Unlock()
	notify()
	return true
}

// Reset returns to Idle and drops the binding.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.binding = Binding{}
	m.bound = false
	notify := m.resetLocked()
	m.mu.Unlock()
	notify()
}

func (m *Machine) resetLocked() func() {
	m.generation++
	m.amount = big.NewInt(0)
	m.queued = nil
	return m.setLocked(StateIdle)
}

// setLocked changes state and returns the transition notification to run
// once the lock is released.
func (m *Machine) setLocked(next State) func() {
	prev := m.state
	m.state = next
	if prev == next || m.callbacks.OnTransition == nil {
		return func() {}
	}
	observer := m.callbacks.OnTransition
	return func() { observer(prev, next) }
}

func (m *Machine) client() (wallet.Client, error) {
	if m.session == nil {
		return nil, wallet.ErrNoClient
	}
	client := m.session.Client()
	if client == nil {
		return nil, wallet.ErrNoClient
	}
	return client, nil
}

// CheckAllowance compares the allowance with amount. Issued while an approval
// or payment is in flight, the check is queued and the latest amount runs
// once the operation finishes.
func (m *Machine) CheckAllowance(ctx context.Context, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return ErrNotBound
	}
	if m.state.inFlight() {
		m.queued = new(big.Int).Set(amount)
		m.mu.Unlock()
		return nil
	}
	m.amount = new(big.Int).Set(amount)
	binding := m.binding
	if binding.Token.IsNative() {
		notify := m.setLocked(StateApproved)
		m.mu.Unlock()
		notify()
		m.toBePaid(binding)
		return nil
	}
	gen := m.generation
	m.checkSeq++
	seq := m.checkSeq
	notify := m.setLocked(StateCheckingAllowance)
	m.mu.Unlock()
	notify()

	allowance := big.NewInt(0)
	client, err := m.client()
	if err == nil {
		allowance, err = client.Allowance(ctx, binding.Token, binding.Owner, binding.Spender)
	}
	if err != nil {
		m.log().Warn("allowance lookup failed", "token", binding.Token.Address.Hex(), "spender", binding.Spender.Hex(), "error", err)
		allowance = big.NewInt(0)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	if seq != m.checkSeq || m.state != StateCheckingAllowance {
		// a newer check owns the outcome
		m.mu.Unlock()
		return nil
	}
	if allowance.Cmp(amount) < 0 {
		notify = m.setLocked(StateNeedsApproval)
		m.mu.Unlock()
		notify()
		m.emitter.Emit(events.ApprovalRequired{Token: binding.Token.Address, Spender: binding.Spender, Amount: new(big.Int).Set(amount)})
		if cb := m.callbacks.OnToBeApproved; cb != nil {
			cb(binding.Token)
		}
		return nil
	}
	notify = m.setLocked(StateApproved)
	m.mu.Unlock()
	notify()
	m.toBePaid(binding)
	return nil
}

func (m *Machine) toBePaid(binding Binding) {
	if cb := m.callbacks.OnToBePaid; cb != nil {
		cb(binding.Token)
	}
}

// Approve requests an allowance for the last checked amount. It is a no-op
// while an approval is already in flight.
func (m *Machine) Approve(ctx context.Context) error {
	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return ErrNotBound
	}
	switch m.state {
	case StateApproving:
		m.mu.Unlock()
		return nil
	case StateNeedsApproval, StateError:
	default:
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: approve from %s", ErrInvalidState, state)
	}
	gen := m.generation
	binding := m.binding
	amount := new(big.Int).Set(m.amount)
	notify := m.setLocked(StateApproving)
	m.mu.Unlock()
	notify()

	ctx, span := m.tracer.Start(ctx, "approval.approve", trace.WithAttributes(
		attribute.String("token", binding.Token.Address.Hex()),
		attribute.String("spender", binding.Spender.Hex()),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	var txHash common.Hash
	client, err := m.client()
	if err == nil {
		var pending *wallet.Pending
		pending, err = client.Approve(ctx, binding.Token, binding.Spender, amount)
		if err == nil {
			_, err = pending.Wait(ctx, wallet.Handlers{OnSubmitted: func(hash common.Hash) {
				txHash = hash
				if !m.current(gen) {
					return
				}
				m.emitter.Emit(events.ApprovalSubmitted{Token: binding.Token.Address, Spender: binding.Spender, TxHash: hash})
				if cb := m.callbacks.OnApproving; cb != nil {
					cb(binding.Token, hash)
				}
			}})
		}
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		span.SetStatus(codes.Error, ErrSuperseded.Error())
		return ErrSuperseded
	}
	if err != nil {
		classified := coreerrors.Classify(err, coreerrors.KindApproval)
		toError := m.setLocked(StateError)
		toRetry := m.setLocked(StateNeedsApproval)
		queued := m.takeQueuedLocked()
		m.mu.Unlock()
		toError()
		toRetry()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.log().Warn("approval failed", "token", binding.Token.Address.Hex(), "spender", binding.Spender.Hex(), "code", classified.Code, "error", err)
		m.emitter.Emit(events.ApprovalFailed{Token: binding.Token.Address, Spender: binding.Spender, TxHash: txHash, Code: string(classified.Code)})
		if cb := m.callbacks.OnApprovingError; cb != nil {
			cb(binding.Token, classified)
		}
		m.runQueued(ctx, queued)
		return classified
	}
	notify = m.setLocked(StateApproved)
	queued := m.takeQueuedLocked()
	m.mu.Unlock()
	notify()
	span.SetStatus(codes.Ok, "approved")
	m.emitter.Emit(events.ApprovalConfirmed{Token: binding.Token.Address, Spender: binding.Spender, TxHash: txHash})
	if cb := m.callbacks.OnApproved; cb != nil {
		cb(binding.Token)
	}
	m.runQueued(ctx, queued)
	return nil
}

// Pay runs pay once the spender is approved. It is a no-op while a payment is
// already in flight. A failed payment returns the machine to Approved.
func (m *Machine) Pay(ctx context.Context, pay PayFunc) error {
	if pay == nil {
		return fmt.Errorf("approval: pay function required")
	}
	m.mu.Lock()
	if !m.bound {
		m.mu.Unlock()
		return ErrNotBound
	}
	switch m.state {
	case StatePaying:
		m.mu.Unlock()
		return nil
	case StateApproved:
	default:
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: pay from %s", ErrInvalidState, state)
	}
	gen := m.generation
	notify := m.setLocked(StatePaying)
	m.mu.Unlock()
	notify()

	ctx, span := m.tracer.Start(ctx, "approval.pay")
	defer span.End()

	confirmed := false
	err := pay(ctx, wallet.Handlers{
		OnSubmitted: func(hash common.Hash) {
			span.SetAttributes(attribute.String("tx", hash.Hex()))
			if !m.current(gen) {
				return
			}
			if cb := m.callbacks.OnPaying; cb != nil {
				cb(hash)
			}
		},
		OnConfirmed: func(receipt *gethtypes.Receipt) {
			m.mu.Lock()
			if gen != m.generation {
				m.mu.Unlock()
				return
			}
			confirmed = true
			notify := m.setLocked(StatePaid)
			m.mu.Unlock()
			notify()
			if cb := m.callbacks.OnPaid; cb != nil {
				cb(receipt)
			}
		},
	})

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		span.SetStatus(codes.Error, ErrSuperseded.Error())
		return ErrSuperseded
	}
	if !confirmed {
		if err == nil {
			err = fmt.Errorf("approval: payment not confirmed")
		}
		classified := coreerrors.Classify(err, coreerrors.KindPayment)
		toError := m.setLocked(StateError)
		toRetry := m.setLocked(StateApproved)
		queued := m.takeQueuedLocked()
		m.mu.Unlock()
		toError()
		toRetry()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if cb := m.callbacks.OnPayingError; cb != nil {
			cb(classified)
		}
		m.runQueued(ctx, queued)
		return classified
	}
	queued := m.takeQueuedLocked()
	m.mu.Unlock()
	if err != nil {
		m.log().Warn("post-payment step failed", "error", err)
	}
	span.SetStatus(codes.Ok, "paid")
	m.runQueued(ctx, queued)
	return nil
}

func (m *Machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

func (m *Machine) takeQueuedLocked() *big.Int {
	queued := m.queued
	m.queued = nil
	return queued
}

func (m *Machine) runQueued(ctx context.Context, amount *big.Int) {
	if amount == nil {
		return
	}
	if err := m.CheckAllowance(context.WithoutCancel(ctx), amount); err != nil && !errors.Is(err, ErrSuperseded) {
		m.log().Warn("queued allowance check failed", "error", err)
	}
}
