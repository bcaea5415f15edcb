package app

import (
	"github.com/spf13/cobra"

	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
	"github.com/stakeops/stakectl/internal/id"
)

func (s *runtimeState) newBondCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionBond}
	var amounts amountFlags
	cmd := &cobra.Command{
		Use:   "bond",
		Short: "Bond funds and start solo staking",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := s.parseAmount(amounts)
			if err != nil {
				return err
			}
			req.amount = amount
			return s.runAction(cmd, req)
		},
	}
	amounts.register(cmd.Flags())
	cmd.Flags().StringVar(&req.payee, "payee", "staked", "Reward destination: staked, stash or controller")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newBondExtraCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionBondExtra}
	var amounts amountFlags
	cmd := &cobra.Command{
		Use:   "bond-extra",
		Short: "Bond additional funds on top of the existing stake",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := s.parseAmount(amounts)
			if err != nil {
				return err
			}
			req.amount = amount
			return s.runAction(cmd, req)
		},
	}
	amounts.register(cmd.Flags())
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newUnbondCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionUnbond}
	var amounts amountFlags
	var all bool
	cmd := &cobra.Command{
		Use:   "unbond",
		Short: "Schedule bonded funds for unlocking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if amounts.baseUnits != "" || amounts.decimal != "" {
					return clierr.New(clierr.CodeUsage, "--all cannot be combined with an amount")
				}
				req.kind = engine.ActionUnbondAll
				return s.runAction(cmd, req)
			}
			amount, err := s.parseAmount(amounts)
			if err != nil {
				return err
			}
			req.amount = amount
			return s.runAction(cmd, req)
		},
	}
	amounts.register(cmd.Flags())
	cmd.Flags().BoolVar(&all, "all", false, "Unbond the full active stake")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newChillCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionChill}
	cmd := &cobra.Command{
		Use:   "chill",
		Short: "Stop nominating without unbonding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAction(cmd, req)
		},
	}
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newNominateCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionNominate}
	var targets []string
	cmd := &cobra.Command{
		Use:   "nominate",
		Short: "Nominate a set of validators",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := id.ParseAddressList(targets)
			if err != nil {
				return err
			}
			if len(parsed) == 0 {
				return clierr.New(clierr.CodeUsage, "--targets must name at least one validator")
			}
			req.targets = parsed
			return s.runAction(cmd, req)
		},
	}
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "Validator addresses (comma-separated)")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newRedeemCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionRedeem}
	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Withdraw funds whose unlocking period has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAction(cmd, req)
		},
	}
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newClaimCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionClaim}
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim pending staking rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.hasPoolID = cmd.Flags().Changed("pool-id")
			req.hasEra = cmd.Flags().Changed("era")
			if req.hasPoolID && req.validator != "" {
				return clierr.New(clierr.CodeUsage, "use either --pool-id or --validator, not both")
			}
			if req.validator != "" {
				canonical, _, err := id.ParseAddress(req.validator)
				if err != nil {
					return err
				}
				req.validator = canonical
			}
			return s.runAction(cmd, req)
		},
	}
	cmd.Flags().Uint32Var(&req.poolID, "pool-id", 0, "Claim pool rewards for this pool")
	cmd.Flags().StringVar(&req.validator, "validator", "", "Trigger a validator payout for this stash")
	cmd.Flags().Uint32Var(&req.era, "era", 0, "Era to pay out (defaults to the last payable era)")
	engineFlags(cmd, req)
	return cmd
}
