package engine

import (
	"fmt"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

// LateBindings holds values fetched at submission time for placeholder
// arguments.
type LateBindings struct {
	// SlashingSpans maps an address to its on-chain slashing span count.
	SlashingSpans map[string]uint32
}

// Compose turns resolved descriptors into the single call that gets
// signed. More than one descriptor is wrapped in Utility.batch_all,
// preserving descriptor order, so multi-step actions land atomically.
func Compose(descs []CallDescriptor, bindings LateBindings) (chain.Call, error) {
	if len(descs) == 0 {
		return chain.Call{}, clierr.New(clierr.CodeInternal, "nothing to compose")
	}

	calls := make([]chain.Call, 0, len(descs))
	for _, d := range descs {
		call, err := bindDescriptor(d, bindings)
		if err != nil {
			return chain.Call{}, err
		}
		calls = append(calls, call)
	}

	if len(calls) == 1 {
		return calls[0], nil
	}
	return chain.Call{Method: MethodBatchAll, Inner: calls}, nil
}

// composeForEstimate binds placeholders to zero values. Fee estimation
// does not need the real span count; the argument width is what the
// fee depends on.
func composeForEstimate(d CallDescriptor) (chain.Call, error) {
	return bindDescriptor(d, LateBindings{SlashingSpans: zeroSpans(d)})
}

func zeroSpans(d CallDescriptor) map[string]uint32 {
	spans := make(map[string]uint32)
	for _, a := range d.Args {
		if a.Placeholder == PlaceholderSlashingSpans {
			spans[a.Subject] = 0
		}
	}
	return spans
}

func bindDescriptor(d CallDescriptor, bindings LateBindings) (chain.Call, error) {
	args := make([]any, 0, len(d.Args))
	for i, a := range d.Args {
		switch a.Placeholder {
		case PlaceholderNone:
			args = append(args, a.Value)
		case PlaceholderSlashingSpans:
			spans, ok := bindings.SlashingSpans[a.Subject]
			if !ok {
				return chain.Call{}, clierr.New(clierr.CodeInternal,
					fmt.Sprintf("%s arg %d: unbound slashing span count for %s", d.Method, i, a.Subject))
			}
			args = append(args, spans)
		default:
			return chain.Call{}, clierr.New(clierr.CodeInternal,
				fmt.Sprintf("%s arg %d: unknown placeholder", d.Method, i))
		}
	}
	return chain.Call{Method: d.Method, Args: args}, nil
}
