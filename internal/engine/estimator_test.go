package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

type fakeFeeSource struct {
	mu    sync.Mutex
	fees  map[string]int64
	errs  map[string]error
	gate  chan struct{}
	calls int
}

func (f *fakeFeeSource) EstimateFee(ctx context.Context, call chain.Call, origin string) (*big.Int, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[call.Method]; ok {
		return nil, err
	}
	fee, ok := f.fees[call.Method]
	if !ok {
		return nil, fmt.Errorf("no fee configured for %s", call.Method)
	}
	return big.NewInt(fee), nil
}

func TestEstimateSumsPerCallFees(t *testing.T) {
	source := &fakeFeeSource{fees: map[string]int64{
		MethodChill:  120,
		MethodUnbond: 340,
	}}
	est := NewEstimator(source, testSigner)

	quote, err := est.Estimate(context.Background(), []CallDescriptor{
		descriptor(MethodChill),
		descriptor(MethodUnbond, NewArg(big.NewInt(500))),
	})
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if agg := quote.Aggregate(); agg == nil || agg.Int64() != 460 {
		t.Fatalf("expected aggregate 460, got %v", agg)
	}
	if quote.Methods[0] != MethodChill || quote.Methods[1] != MethodUnbond {
		t.Fatalf("unexpected quote methods: %v", quote.Methods)
	}
}

func TestEstimateSurfacesSourceErrors(t *testing.T) {
	source := &fakeFeeSource{
		fees: map[string]int64{MethodChill: 120},
		errs: map[string]error{MethodUnbond: fmt.Errorf("node unreachable")},
	}
	est := NewEstimator(source, testSigner)

	_, err := est.Estimate(context.Background(), []CallDescriptor{
		descriptor(MethodChill),
		descriptor(MethodUnbond, NewArg(big.NewInt(500))),
	})
	if !clierr.Is(err, clierr.CodeEstimation) {
		t.Fatalf("expected estimation error, got %v", err)
	}
}

func TestAggregateUnavailableWhilePending(t *testing.T) {
	var quote FeeQuote
	quote.Methods = []string{MethodChill, MethodUnbond}
	quote.PerCall = []*big.Int{big.NewInt(120), nil}
	if quote.Aggregate() != nil {
		t.Fatalf("aggregate should be unavailable while an estimate is pending")
	}
}

func TestStaleRoundResultsAreDropped(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeFeeSource{
		fees: map[string]int64{MethodBond: 111, MethodBondExtra: 222},
		gate: gate,
	}
	est := NewEstimator(source, testSigner)

	staleDescs := []CallDescriptor{descriptor(MethodBond, NewArg(big.NewInt(1)))}
	staleGen := est.Begin(staleDescs)

	done := make(chan error, 1)
	go func() { done <- est.Run(context.Background(), staleGen, staleDescs) }()

	// A newer round supersedes the one still blocked on the gate.
	freshDescs := []CallDescriptor{descriptor(MethodBondExtra, NewArg(big.NewInt(2)))}
	freshGen := est.Begin(freshDescs)
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("stale run should not report an error, got %v", err)
	}
	if err := est.Run(context.Background(), freshGen, freshDescs); err != nil {
		t.Fatalf("fresh run failed: %v", err)
	}

	quote := est.Quote()
	if len(quote.Methods) != 1 || quote.Methods[0] != MethodBondExtra {
		t.Fatalf("expected quote for the fresh round, got %v", quote.Methods)
	}
	if agg := quote.Aggregate(); agg == nil || agg.Int64() != 222 {
		t.Fatalf("expected fresh aggregate 222, got %v", agg)
	}
}
