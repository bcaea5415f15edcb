package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stakeops/stakectl/internal/chain"
	"github.com/stakeops/stakectl/internal/config"
	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
	"github.com/stakeops/stakectl/internal/history"
	"github.com/stakeops/stakectl/internal/keystore"
	"github.com/stakeops/stakectl/internal/model"
	"github.com/stakeops/stakectl/internal/out"
	"github.com/stakeops/stakectl/internal/store"
	"github.com/stakeops/stakectl/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// chainReader is what commands need from the node: the engine-facing
// access plus the typed queries used to assemble action context.
type chainReader interface {
	engine.ChainAccess
	Balance(ctx context.Context, address string) (chain.BalanceSnapshot, error)
	StakingPositionOf(ctx context.Context, address string) (chain.StakingPosition, error)
	NominationsOf(ctx context.Context, address string) ([]string, error)
	PoolOf(ctx context.Context, address string) (uint32, bool, error)
	PoolInfoOf(ctx context.Context, poolID uint32) (chain.PoolInfo, error)
	MinJoinBond(ctx context.Context) (*big.Int, error)
	NextPoolID(ctx context.Context) (uint32, error)
	LastPayableEra(ctx context.Context) (uint32, error)
}

type runtimeState struct {
	runner       *Runner
	flags        config.GlobalFlags
	settings     config.Settings
	root         *cobra.Command
	lastCommand  string
	lastWarnings []string
	exitCode     int

	store    *store.Store
	client   chainReader
	unlocker engine.Unlocker

	// test seams
	dial func(ctx context.Context, url string, network uint16) (chainReader, error)
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if state.store != nil {
		_ = state.store.Close()
	}
	if err == nil {
		return state.exitCode
	}
	state.renderError("", err, state.lastWarnings)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Staking transaction CLI for Substrate chains",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			if s.unlocker == nil {
				s.unlocker = keystore.New(settings.SS58Network)
			}
			if shouldOpenStore(s.lastCommand) && s.store == nil {
				fieldStore, err := store.Open(settings.StorePath, settings.StoreLockPath)
				if err != nil {
					return err
				}
				s.store = fieldStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Node request timeout")
	cmd.PersistentFlags().StringVar(&s.flags.ConfirmTimeout, "confirm-timeout", "", "Finalization wait timeout")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Node websocket endpoint")
	cmd.PersistentFlags().StringVar(&s.flags.Account, "account", "", "Signer SS58 address")

	cmd.AddCommand(s.newBondCommand())
	cmd.AddCommand(s.newBondExtraCommand())
	cmd.AddCommand(s.newUnbondCommand())
	cmd.AddCommand(s.newChillCommand())
	cmd.AddCommand(s.newNominateCommand())
	cmd.AddCommand(s.newRedeemCommand())
	cmd.AddCommand(s.newClaimCommand())
	cmd.AddCommand(s.newPoolCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded staking actions for the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := s.requireAccount()
			if err != nil {
				return err
			}
			recorder := history.NewRecorder(s.store, account, s.settings.ChainName, s.settings.TokenDecimals)
			items, err := recorder.List(limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to return")
	return cmd
}

func (s *runtimeState) requireAccount() (string, error) {
	account := strings.TrimSpace(s.settings.Account)
	if account == "" {
		return "", clierr.New(clierr.CodeUsage, "account is required: set --account or STAKECTL_ACCOUNT")
	}
	return account, nil
}

func (s *runtimeState) chainClient(ctx context.Context) (chainReader, error) {
	if s.client != nil {
		return s.client, nil
	}
	dial := s.dial
	if dial == nil {
		dial = func(ctx context.Context, url string, network uint16) (chainReader, error) {
			return chain.Dial(ctx, url, network)
		}
	}
	client, err := dial(ctx, s.settings.RPCURL, s.settings.SS58Network)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	s.lastWarnings = append([]string(nil), warnings...)
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Chain:     s.settings.ChainName,
			Account:   s.settings.Account,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.Code(code).String()
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Chain:     s.settings.ChainName,
			Account:   s.settings.Account,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func shouldOpenStore(commandPath string) bool {
	switch strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ") {
	case "", "version":
		return false
	default:
		return true
	}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
