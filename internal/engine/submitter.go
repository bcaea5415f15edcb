package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

// Broadcaster signs, submits and streams inclusion progress for a call.
type Broadcaster interface {
	SubmitAndWatch(ctx context.Context, call chain.Call, signer chain.Signer) (<-chan chain.InclusionEvent, error)
}

type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	if s == OutcomeSuccess {
		return "success"
	}
	return "failed"
}

// TransactionOutcome is the terminal record of one confirmed action.
// A dispatch failure is an outcome, not an error: the extrinsic made
// it on chain and paid its fee.
type TransactionOutcome struct {
	Action        ActionKind
	Status        OutcomeStatus
	FailureReason string
	BlockHeight   uint64
	TxHash        string
	RealizedFee   *big.Int
	Timestamp     time.Time
}

// submit broadcasts the call and waits for exactly one terminal event.
// It returns an error only when nothing reached the network; once
// broadcast, every path resolves to an outcome.
func submit(ctx context.Context, b Broadcaster, action ActionKind, call chain.Call, signer chain.Signer, now func() time.Time) (TransactionOutcome, error) {
	events, err := b.SubmitAndWatch(ctx, call, signer)
	if err != nil {
		return TransactionOutcome{}, clierr.Wrap(clierr.CodeUnavailable, "submit extrinsic", err)
	}

	failed := func(reason string) TransactionOutcome {
		return TransactionOutcome{Action: action, Status: OutcomeFailed, FailureReason: reason, Timestamp: now()}
	}

	var txHash string
	for {
		select {
		case <-ctx.Done():
			out := failed("finalization timed out")
			out.TxHash = txHash
			return out, nil
		case ev, ok := <-events:
			if !ok {
				out := failed("confirmation stream ended before finalization")
				out.TxHash = txHash
				return out, nil
			}
			if ev.TxHash != "" {
				txHash = ev.TxHash
			}
			switch ev.Kind {
			case chain.EventDropped:
				out := failed("transaction dropped from the pool")
				out.TxHash = txHash
				return out, nil
			case chain.EventInvalid:
				out := failed("transaction rejected as invalid")
				out.TxHash = txHash
				return out, nil
			case chain.EventFinalized:
				out := TransactionOutcome{
					Action:      action,
					Status:      OutcomeSuccess,
					BlockHeight: ev.BlockHeight,
					TxHash:      txHash,
					RealizedFee: ev.PartialFee,
					Timestamp:   now(),
				}
				if ev.DispatchError != "" {
					out.Status = OutcomeFailed
					out.FailureReason = ev.DispatchError
				}
				return out, nil
			}
		}
	}
}
