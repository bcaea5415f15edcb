package engine

import (
	"math/big"
	"testing"
)

func TestGuardAllowsAffordableBond(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:         ActionBond,
		Amount:       big.NewInt(5_000),
		Available:    big.NewInt(10_000),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if res.Disabled {
		t.Fatalf("expected bond to be allowed, got disabled: %s", res.Reason)
	}
}

func TestGuardDisablesWhileFeeUnknown(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:        ActionBond,
		Amount:      big.NewInt(5_000),
		Available:   big.NewInt(10_000),
		MinRetained: big.NewInt(1_000),
	})
	if !res.Disabled || res.Informational {
		t.Fatalf("expected non-informational disable while estimating, got %+v", res)
	}
}

func TestGuardSuggestsReducedAmount(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:         ActionBond,
		Amount:       big.NewInt(9_950),
		Available:    big.NewInt(10_000),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if !res.Disabled {
		t.Fatalf("expected disable when retained minimum is breached")
	}
	// available - minRetained - fee = 10000 - 1000 - 100
	if res.SuggestedAmount == nil || res.SuggestedAmount.Int64() != 8_900 {
		t.Fatalf("expected suggested amount 8900, got %v", res.SuggestedAmount)
	}
}

func TestGuardNoSuggestionWhenNothingAffordable(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:         ActionBond,
		Amount:       big.NewInt(500),
		Available:    big.NewInt(1_000),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if !res.Disabled || res.SuggestedAmount != nil {
		t.Fatalf("expected hard disable without suggestion, got %+v", res)
	}
}

func TestGuardFeeOnlyActionChecksFeeAgainstRetainedMinimum(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:         ActionRedeem,
		Available:    big.NewInt(1_050),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if !res.Disabled {
		t.Fatalf("expected disable when fee alone breaches the retained minimum")
	}

	res = EvaluateGuard(GuardInput{
		Kind:         ActionRedeem,
		Available:    big.NewInt(1_200),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if res.Disabled {
		t.Fatalf("expected fee-only action to pass, got %s", res.Reason)
	}
}

func TestGuardNominateSameSetIsInformational(t *testing.T) {
	targets := []string{testTarget, testSigner}
	current := []string{testSigner, testTarget}
	res := EvaluateGuard(GuardInput{
		Kind:          ActionNominate,
		Targets:       targets,
		ActiveTargets: current,
		// Fee still unknown: the no-op check must win regardless.
	})
	if !res.Disabled || !res.Informational {
		t.Fatalf("expected informational disable for identical nomination, got %+v", res)
	}
}

func TestGuardNominateNewSetPasses(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:          ActionNominate,
		Targets:       []string{testTarget},
		ActiveTargets: []string{testSigner},
		Available:     big.NewInt(10_000),
		MinRetained:   big.NewInt(1_000),
		AggregateFee:  big.NewInt(100),
	})
	if res.Disabled {
		t.Fatalf("expected new nomination to pass, got %s", res.Reason)
	}
}

func TestGuardJoinPoolBelowMinJoinBond(t *testing.T) {
	res := EvaluateGuard(GuardInput{
		Kind:         ActionJoinPool,
		Amount:       big.NewInt(400),
		MinJoinBond:  big.NewInt(500),
		Available:    big.NewInt(10_000),
		MinRetained:  big.NewInt(1_000),
		AggregateFee: big.NewInt(100),
	})
	if !res.Disabled || res.SuggestedAmount != nil {
		t.Fatalf("expected disable below min join bond, got %+v", res)
	}
}
