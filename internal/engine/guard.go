package engine

import (
	"math/big"

	"github.com/stakeops/stakectl/internal/id"
)

// GuardInput is everything the balance guard looks at. AggregateFee is
// nil while estimation is outstanding.
type GuardInput struct {
	Kind         ActionKind
	Amount       *big.Int
	Available    *big.Int
	MinRetained  *big.Int
	AggregateFee *big.Int
	MinJoinBond  *big.Int

	Targets       []string
	ActiveTargets []string
}

// GuardResult says whether confirmation is allowed and why not.
// Informational marks reasons that are not about funds, such as a
// no-op nomination.
type GuardResult struct {
	Disabled        bool
	Reason          string
	Informational   bool
	SuggestedAmount *big.Int
}

func disabled(reason string) GuardResult {
	return GuardResult{Disabled: true, Reason: reason}
}

// EvaluateGuard decides whether the action may be confirmed with the
// current amount, fee and balance. The signer must keep MinRetained
// untouched after the amount and the aggregate fee are deducted;
// amount-taking actions that would breach it get a suggested reduced
// amount instead of a hard stop.
func EvaluateGuard(in GuardInput) GuardResult {
	// The no-op nomination check wins over any funds state: resubmitting
	// the identical validator set pays a fee for nothing.
	if in.Kind == ActionNominate && len(in.Targets) > 0 && id.SameAddressSet(in.Targets, in.ActiveTargets) {
		return GuardResult{
			Disabled:      true,
			Informational: true,
			Reason:        "selected validators match the current nomination",
		}
	}

	if in.AggregateFee == nil {
		return disabled("estimating transaction fee")
	}

	available := orZero(in.Available)
	minRetained := orZero(in.MinRetained)

	if !in.Kind.DeductsAmount() {
		left := new(big.Int).Sub(available, in.AggregateFee)
		if left.Cmp(minRetained) < 0 {
			return disabled("balance would drop below the retained minimum after fees")
		}
		return GuardResult{}
	}

	amount := orZero(in.Amount)
	if in.Kind == ActionJoinPool && in.MinJoinBond != nil && amount.Cmp(in.MinJoinBond) < 0 {
		return disabled("amount is below the pool minimum join bond")
	}

	left := new(big.Int).Sub(available, amount)
	left.Sub(left, in.AggregateFee)
	if left.Cmp(minRetained) >= 0 {
		return GuardResult{}
	}

	result := disabled("insufficient balance to keep the retained minimum")
	if in.Kind.AllowsSuggestedAmount() {
		suggested := new(big.Int).Sub(available, minRetained)
		suggested.Sub(suggested, in.AggregateFee)
		if suggested.Sign() > 0 {
			result.SuggestedAmount = suggested
		}
	}
	return result
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
