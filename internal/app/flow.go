package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
	"github.com/stakeops/stakectl/internal/history"
	"github.com/stakeops/stakectl/internal/id"
	"github.com/stakeops/stakectl/internal/model"
)

// actionRequest is one staking command's parsed input, ready to feed
// the engine.
type actionRequest struct {
	kind engine.ActionKind

	amount    *big.Int
	payee     string
	targets   []string
	poolID    uint32
	hasPoolID bool
	validator string
	era       uint32
	hasEra    bool
	root      string
	nominator string
	bouncer   string
	metadata  string
	state     string

	quoteOnly       bool
	yes             bool
	acceptSuggested bool
}

// engineFlags registers the confirmation-flow flags shared by every
// transactional command.
func engineFlags(cmd *cobra.Command, req *actionRequest) {
	cmd.Flags().BoolVar(&req.quoteOnly, "quote-only", false, "Stop after the fee quote and guard verdict")
	cmd.Flags().BoolVar(&req.yes, "yes", false, "Submit without an interactive prompt")
	cmd.Flags().BoolVar(&req.acceptSuggested, "accept-suggested", false, "Adopt the guard's reduced amount when the requested one cannot be kept")
}

// amountFlags registers the two mutually exclusive amount inputs.
type amountFlags struct {
	baseUnits string
	decimal   string
}

func (a *amountFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&a.baseUnits, "amount", "", "Amount in base units")
	flags.StringVar(&a.decimal, "amount-decimal", "", "Amount in token units, like 1.5")
}

func (s *runtimeState) parseAmount(a amountFlags) (*big.Int, error) {
	base, _, err := id.NormalizeAmount(a.baseUnits, a.decimal, s.settings.TokenDecimals)
	if err != nil {
		return nil, err
	}
	return id.ParseBaseUnits(base)
}

// runAction drives one command through the full lifecycle: resolve,
// estimate, guard, confirm, submit, record. Quote-only stops after the
// guard verdict; a disabled guard refuses confirmation with the
// matching exit code.
func (s *runtimeState) runAction(cmd *cobra.Command, req *actionRequest) error {
	account, err := s.requireAccount()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
	defer cancel()
	client, err := s.chainClient(ctx)
	if err != nil {
		return err
	}

	actx, binfo, warnings, err := s.buildActionContext(ctx, client, account, req)
	if err != nil {
		return err
	}

	recorder := history.NewRecorder(s.store, account, s.settings.ChainName, s.settings.TokenDecimals)
	ctrl := engine.NewController(req.kind, client, s.unlocker, recorder)
	if err := ctrl.SetContext(ctx, actx); err != nil {
		// A failed fee estimate still leaves a reportable quote: the
		// guard marks the action disabled while the fee is unknown, and
		// quote-only exists to show exactly that surface.
		if !req.quoteOnly || !clierr.Is(err, clierr.CodeEstimation) {
			return err
		}
		warnings = append(warnings, "fee estimation failed: "+err.Error())
	}
	ctrl.SetBalance(binfo)
	status := ctrl.Status()

	commandPath := trimRootPath(cmd.CommandPath())
	if req.quoteOnly {
		return s.emitSuccess(commandPath, s.buildQuote(req.kind, status), warnings)
	}

	if status.Guard.Disabled && status.Guard.SuggestedAmount != nil && req.acceptSuggested {
		actx.Amount = status.Guard.SuggestedAmount
		if err := ctrl.SetContext(ctx, actx); err != nil {
			return err
		}
		ctrl.SetBalance(binfo)
		status = ctrl.Status()
		warnings = append(warnings, fmt.Sprintf("amount reduced to %s to keep the retained minimum",
			id.FormatBalance(actx.Amount, s.settings.TokenDecimals, s.settings.TokenSymbol)))
	}

	if status.Guard.Disabled {
		if status.Guard.Informational {
			return clierr.New(clierr.CodeUsage, status.Guard.Reason)
		}
		msg := status.Guard.Reason
		if status.Guard.SuggestedAmount != nil {
			msg = fmt.Sprintf("%s (re-run with --accept-suggested to use %s)", msg,
				id.FormatBalance(status.Guard.SuggestedAmount, s.settings.TokenDecimals, s.settings.TokenSymbol))
		}
		return clierr.New(clierr.CodeInsufficient, msg)
	}

	if !req.yes {
		return clierr.New(clierr.CodeUsage, "confirmation required: re-run with --yes to submit")
	}

	confirmCtx, cancelConfirm := context.WithTimeout(cmd.Context(), s.settings.ConfirmTimeout)
	defer cancelConfirm()
	outcome, err := ctrl.Confirm(confirmCtx, "")
	if err != nil {
		return err
	}
	warnings = append(warnings, ctrl.Warnings()...)

	if outcome.Status == engine.OutcomeFailed {
		if outcome.FailureReason == "finalization timed out" {
			s.exitCode = int(clierr.CodeTimeout)
		} else {
			s.exitCode = int(clierr.CodeDispatch)
		}
	}
	return s.emitSuccess(commandPath, s.buildOutcome(outcome), warnings)
}

func (s *runtimeState) buildQuote(kind engine.ActionKind, st engine.Status) model.Quote {
	q := model.Quote{Action: kind.String()}
	for i, method := range st.Quote.Methods {
		fb := model.FeeBreakdown{Method: method}
		if i < len(st.Quote.PerCall) && st.Quote.PerCall[i] != nil {
			fb.FeeRaw = st.Quote.PerCall[i].String()
		}
		q.Calls = append(q.Calls, fb)
	}

	q.Status = model.EngineStatus{
		Lifecycle:      st.State.String(),
		Disabled:       st.Guard.Disabled,
		DisabledReason: st.Guard.Reason,
		Informational:  st.Guard.Informational,
	}
	if agg := st.Quote.Aggregate(); agg != nil {
		q.AggregateRaw = agg.String()
		q.Aggregate = id.FormatBalance(agg, s.settings.TokenDecimals, s.settings.TokenSymbol)
		q.Status.FeeQuote = agg.String()
		q.Status.FeeQuoteDecimal = id.FormatDecimal(agg.String(), s.settings.TokenDecimals)
	}
	if st.Guard.SuggestedAmount != nil {
		q.Status.SuggestedAmount = st.Guard.SuggestedAmount.String()
	}
	return q
}

func (s *runtimeState) buildOutcome(outcome engine.TransactionOutcome) model.Outcome {
	out := model.Outcome{
		Action:        outcome.Action.String(),
		Status:        outcome.Status.String(),
		FailureReason: outcome.FailureReason,
		BlockHeight:   outcome.BlockHeight,
		TxHash:        outcome.TxHash,
		Timestamp:     outcome.Timestamp.UTC().Format(time.RFC3339),
	}
	if outcome.RealizedFee != nil {
		out.RealizedFee = id.FormatBalance(outcome.RealizedFee, s.settings.TokenDecimals, s.settings.TokenSymbol)
	}
	return out
}
