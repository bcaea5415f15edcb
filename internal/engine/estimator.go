package engine

import (
	"context"
	"math/big"
	"sync"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

// FeeSource estimates the inclusion fee of one call for an origin.
type FeeSource interface {
	EstimateFee(ctx context.Context, call chain.Call, origin string) (*big.Int, error)
}

// FeeQuote is the per-call fee picture at a point in time. A nil entry
// means that call's estimate has not arrived yet.
type FeeQuote struct {
	Methods []string
	PerCall []*big.Int
}

// Aggregate sums the per-call fees, or returns nil while any estimate
// is still outstanding.
func (q FeeQuote) Aggregate() *big.Int {
	if len(q.PerCall) == 0 {
		return nil
	}
	total := new(big.Int)
	for _, fee := range q.PerCall {
		if fee == nil {
			return nil
		}
		total.Add(total, fee)
	}
	return total
}

// Estimator re-estimates fees every time the descriptor set changes.
// Each estimation round carries a generation number; results arriving
// for a superseded generation are dropped, so the quote always
// reflects the most recently issued round.
type Estimator struct {
	source FeeSource
	origin string

	mu      sync.Mutex
	gen     uint64
	methods []string
	fees    []*big.Int
	err     error
}

func NewEstimator(source FeeSource, origin string) *Estimator {
	return &Estimator{source: source, origin: origin}
}

// Begin starts a new estimation round for descs, invalidating any
// round still in flight, and returns its generation.
func (e *Estimator) Begin(descs []CallDescriptor) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	e.methods = Methods(descs)
	e.fees = make([]*big.Int, len(descs))
	e.err = nil
	return e.gen
}

// Run fetches the fee of every descriptor in the given round, applying
// each result as it lands. Results are discarded when a newer round
// has been begun in the meantime.
func (e *Estimator) Run(ctx context.Context, gen uint64, descs []CallDescriptor) error {
	var wg sync.WaitGroup
	for i, d := range descs {
		wg.Add(1)
		go func(idx int, desc CallDescriptor) {
			defer wg.Done()
			fee, err := e.estimateOne(ctx, desc)
			e.apply(gen, idx, fee, err)
		}(i, d)
	}
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return nil
	}
	return e.err
}

// Estimate runs a full round synchronously and returns the resulting
// quote.
func (e *Estimator) Estimate(ctx context.Context, descs []CallDescriptor) (FeeQuote, error) {
	gen := e.Begin(descs)
	if err := e.Run(ctx, gen, descs); err != nil {
		return FeeQuote{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return FeeQuote{}, clierr.New(clierr.CodeEstimation, "estimation superseded")
	}
	return e.quoteLocked(), nil
}

func (e *Estimator) estimateOne(ctx context.Context, desc CallDescriptor) (*big.Int, error) {
	call, err := composeForEstimate(desc)
	if err != nil {
		return nil, err
	}
	fee, err := e.source.EstimateFee(ctx, call, e.origin)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeEstimation, "estimate "+desc.Method, err)
	}
	return fee, nil
}

func (e *Estimator) apply(gen uint64, idx int, fee *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	if err != nil {
		if e.err == nil {
			e.err = err
		}
		return
	}
	e.fees[idx] = fee
}

// Quote returns the current fee picture without waiting.
func (e *Estimator) Quote() FeeQuote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quoteLocked()
}

func (e *Estimator) quoteLocked() FeeQuote {
	methods := make([]string, len(e.methods))
	copy(methods, e.methods)
	fees := make([]*big.Int, len(e.fees))
	copy(fees, e.fees)
	return FeeQuote{Methods: methods, PerCall: fees}
}
