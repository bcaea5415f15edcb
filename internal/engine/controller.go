package engine

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

// SpanSource reads the slashing span count bound into late arguments.
type SpanSource interface {
	SlashingSpanCount(ctx context.Context, address string) (uint32, error)
}

// ChainAccess is everything the controller needs from the chain.
type ChainAccess interface {
	FeeSource
	Broadcaster
	SpanSource
}

// Unlocker turns a credential into a signer for an address.
type Unlocker interface {
	Unlock(address, credential string) (chain.Signer, error)
}

// HistoryRecorder persists terminal outcomes. Persistence failures
// must not fail the action itself.
type HistoryRecorder interface {
	Record(outcome TransactionOutcome, actx ActionContext) error
}

type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateConfirming
	StateSuccess
	StateFailed
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateSuccess:
		return "success"
	default:
		return "failed"
	}
}

// BalanceInfo is the guard's view of the signer's funds.
type BalanceInfo struct {
	Available   *big.Int
	Total       *big.Int
	MinRetained *big.Int
	MinJoinBond *big.Int
}

// Status is the controller's externally visible state at a point in
// time.
type Status struct {
	State LifecycleState
	Quote FeeQuote
	Guard GuardResult
}

// Controller drives one action through resolve, estimate, guard and
// confirm. Context or balance updates recompute the pipeline only
// while the controller is idle; once a confirmation starts, the
// decided call set is frozen.
type Controller struct {
	kind     ActionKind
	access   ChainAccess
	unlocker Unlocker
	history  HistoryRecorder
	now      func() time.Time

	mu        sync.Mutex
	state     LifecycleState
	actx      ActionContext
	balance   BalanceInfo
	descs     []CallDescriptor
	estimator *Estimator
	guard     GuardResult
	warnings  []string
}

func NewController(kind ActionKind, access ChainAccess, unlocker Unlocker, history HistoryRecorder) *Controller {
	return &Controller{
		kind:     kind,
		access:   access,
		unlocker: unlocker,
		history:  history,
		now:      time.Now,
		guard:    disabled("no action context"),
	}
}

// SetContext replaces the action context and recomputes descriptors,
// fees and the guard verdict. It is a no-op outside the idle state.
func (c *Controller) SetContext(ctx context.Context, actx ActionContext) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.actx = actx
	c.estimator = NewEstimator(c.access, actx.Signer)

	descs, err := Resolve(c.kind, actx)
	if err != nil {
		c.descs = nil
		c.guard = disabled(err.Error())
		c.mu.Unlock()
		return err
	}
	c.descs = descs
	est := c.estimator
	c.mu.Unlock()

	gen := est.Begin(descs)
	runErr := est.Run(ctx, gen, descs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.estimator == est && c.state == StateIdle {
		c.guard = c.evaluateLocked()
	}
	return runErr
}

// SetBalance updates the funds picture and re-runs the guard. It is a
// no-op outside the idle state.
func (c *Controller) SetBalance(info BalanceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}
	c.balance = info
	if c.descs != nil {
		c.guard = c.evaluateLocked()
	}
}

func (c *Controller) evaluateLocked() GuardResult {
	var fee *big.Int
	if c.estimator != nil {
		fee = c.estimator.Quote().Aggregate()
	}
	return EvaluateGuard(GuardInput{
		Kind:          c.kind,
		Amount:        c.actx.Amount,
		Available:     c.balance.Available,
		MinRetained:   c.balance.MinRetained,
		AggregateFee:  fee,
		MinJoinBond:   c.balance.MinJoinBond,
		Targets:       c.actx.Targets,
		ActiveTargets: c.actx.ActiveTargets,
	})
}

// Status snapshots the lifecycle, fee quote and guard verdict.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{State: c.state, Guard: c.guard}
	if c.estimator != nil {
		st.Quote = c.estimator.Quote()
	}
	return st
}

// Descriptors returns the currently resolved call set.
func (c *Controller) Descriptors() []CallDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallDescriptor, len(c.descs))
	copy(out, c.descs)
	return out
}

// Warnings drains non-fatal problems collected along the way.
func (c *Controller) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.warnings
	c.warnings = nil
	return out
}

// Confirm unlocks the signer, binds late arguments, composes the final
// call and submits it, driving the lifecycle to a terminal state. An
// authentication failure returns the controller to idle; everything
// after a successful broadcast resolves to an outcome.
func (c *Controller) Confirm(ctx context.Context, credential string) (TransactionOutcome, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return TransactionOutcome{}, clierr.New(clierr.CodeInternal, "confirmation already in progress")
	}
	if len(c.descs) == 0 {
		c.mu.Unlock()
		return TransactionOutcome{}, clierr.New(clierr.CodeResolution, "action is not resolved")
	}
	if c.guard.Disabled {
		c.mu.Unlock()
		return TransactionOutcome{}, clierr.New(clierr.CodeInsufficient, c.guard.Reason)
	}
	c.state = StateConfirming
	descs := make([]CallDescriptor, len(c.descs))
	copy(descs, c.descs)
	actx := c.actx
	c.mu.Unlock()

	signer, err := c.unlocker.Unlock(actx.Signer, credential)
	if err != nil {
		c.setState(StateIdle)
		if _, ok := clierr.As(err); ok {
			return TransactionOutcome{}, err
		}
		return TransactionOutcome{}, clierr.Wrap(clierr.CodeAuth, "unlock signer", err)
	}

	bindings, err := c.bindLate(ctx, descs)
	if err != nil {
		c.setState(StateIdle)
		return TransactionOutcome{}, err
	}

	call, err := Compose(descs, bindings)
	if err != nil {
		c.setState(StateIdle)
		return TransactionOutcome{}, err
	}

	outcome, err := submit(ctx, c.access, c.kind, call, signer, c.now)
	if err != nil {
		c.setState(StateIdle)
		return TransactionOutcome{}, err
	}

	c.mu.Lock()
	if outcome.Status == OutcomeSuccess {
		c.state = StateSuccess
	} else {
		c.state = StateFailed
	}
	c.mu.Unlock()

	if c.history != nil {
		if err := c.history.Record(outcome, actx); err != nil {
			c.mu.Lock()
			c.warnings = append(c.warnings, "history not recorded: "+err.Error())
			c.mu.Unlock()
		}
	}
	return outcome, nil
}

func (c *Controller) bindLate(ctx context.Context, descs []CallDescriptor) (LateBindings, error) {
	bindings := LateBindings{SlashingSpans: make(map[string]uint32)}
	for _, d := range descs {
		for _, a := range d.Args {
			if a.Placeholder != PlaceholderSlashingSpans {
				continue
			}
			if _, ok := bindings.SlashingSpans[a.Subject]; ok {
				continue
			}
			spans, err := c.access.SlashingSpanCount(ctx, a.Subject)
			if err != nil {
				return LateBindings{}, clierr.Wrap(clierr.CodeUnavailable, "query slashing spans", err)
			}
			bindings.SlashingSpans[a.Subject] = spans
		}
	}
	return bindings, nil
}

func (c *Controller) setState(s LifecycleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
