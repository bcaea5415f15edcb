package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
	"github.com/stakeops/stakectl/internal/id"
	"github.com/stakeops/stakectl/internal/model"
	"github.com/stakeops/stakectl/internal/store"
)

const fieldName = "stakingHistory"

// Recorder keeps an append-only per-account staking history in the
// field store. Every terminal outcome is recorded, failed ones
// included, so the history reflects what was actually attempted.
type Recorder struct {
	store    *store.Store
	account  string
	chain    string
	decimals int
}

func NewRecorder(s *store.Store, account, chain string, decimals int) *Recorder {
	return &Recorder{store: s, account: account, chain: chain, decimals: decimals}
}

// Record appends the outcome under the store's update lock, so records
// written by concurrent recorders survive the read-append-write cycle.
func (r *Recorder) Record(outcome engine.TransactionOutcome, actx engine.ActionContext) error {
	return r.store.Update(r.account, r.chain, fieldName, func(current []byte, exists bool) (any, error) {
		var items []model.HistoryItem
		if exists {
			if err := json.Unmarshal(current, &items); err != nil {
				return nil, clierr.Wrap(clierr.CodePersist, "decode staking history", err)
			}
		}
		return append(items, r.item(outcome, actx)), nil
	})
}

// List returns the newest entries first, at most limit of them.
func (r *Recorder) List(limit int) ([]model.HistoryItem, error) {
	items, err := r.load()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *Recorder) load() ([]model.HistoryItem, error) {
	var items []model.HistoryItem
	if _, err := r.store.Load(r.account, r.chain, fieldName, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Recorder) item(outcome engine.TransactionOutcome, actx engine.ActionContext) model.HistoryItem {
	item := model.HistoryItem{
		Action:       outcome.Action.String(),
		Counterpart:  counterpart(outcome.Action, actx),
		Status:       outcome.Status.String(),
		Reason:       outcome.FailureReason,
		BlockHeight:  outcome.BlockHeight,
		TxHash:       outcome.TxHash,
		RecordedAtTS: outcome.Timestamp.UTC().Format(time.RFC3339),
	}
	if actx.Amount != nil {
		item.Amount = id.FormatDecimal(actx.Amount.String(), r.decimals)
	}
	if outcome.RealizedFee != nil {
		item.RealizedFee = id.FormatDecimal(outcome.RealizedFee.String(), r.decimals)
	}
	return item
}

// counterpart names who or what the action was directed at.
func counterpart(kind engine.ActionKind, actx engine.ActionContext) string {
	switch kind {
	case engine.ActionNominate:
		return strings.Join(actx.Targets, ",")
	case engine.ActionClaim:
		if actx.HasPool {
			return fmt.Sprintf("pool %d", actx.PoolID)
		}
		return actx.ValidatorStash
	case engine.ActionJoinPool, engine.ActionCreatePool, engine.ActionEditPool,
		engine.ActionSetPoolState, engine.ActionKickAll:
		return fmt.Sprintf("pool %d", actx.PoolID)
	default:
		return ""
	}
}
