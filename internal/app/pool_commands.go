package app

import (
	"github.com/spf13/cobra"

	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
	"github.com/stakeops/stakectl/internal/id"
)

func (s *runtimeState) newPoolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Nomination pool operations",
	}
	cmd.AddCommand(s.newPoolJoinCommand())
	cmd.AddCommand(s.newPoolCreateCommand())
	cmd.AddCommand(s.newPoolEditCommand())
	cmd.AddCommand(s.newPoolStateCommand())
	cmd.AddCommand(s.newPoolKickAllCommand())
	return cmd
}

func (s *runtimeState) newPoolJoinCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionJoinPool}
	var amounts amountFlags
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an open nomination pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pool-id") {
				return clierr.New(clierr.CodeUsage, "--pool-id is required")
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
	cmd.Flags().Uint32Var(&req.poolID, "pool-id", 0, "Pool to join")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newPoolCreateCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionCreatePool}
	var amounts amountFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a nomination pool with an initial bond",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := s.parseAmount(amounts)
			if err != nil {
				return err
			}
			req.amount = amount
			if err := canonicalizeRoles(req); err != nil {
				return err
			}
			return s.runAction(cmd, req)
		},
	}
	amounts.register(cmd.Flags())
	cmd.Flags().StringVar(&req.root, "root", "", "Pool root account (defaults to the signer)")
	cmd.Flags().StringVar(&req.nominator, "nominator", "", "Pool nominator account (defaults to the signer)")
	cmd.Flags().StringVar(&req.bouncer, "bouncer", "", "Pool bouncer account (defaults to the signer)")
	cmd.Flags().StringVar(&req.metadata, "metadata", "", "Pool metadata string")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newPoolEditCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionEditPool}
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Update a pool's metadata or role assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pool-id") {
				return clierr.New(clierr.CodeUsage, "--pool-id is required")
			}
			if err := canonicalizeRoles(req); err != nil {
				return err
			}
			return s.runAction(cmd, req)
		},
	}
	cmd.Flags().Uint32Var(&req.poolID, "pool-id", 0, "Pool to edit")
	cmd.Flags().StringVar(&req.metadata, "metadata", "", "New pool metadata string")
	cmd.Flags().StringVar(&req.root, "root", "", "New root account")
	cmd.Flags().StringVar(&req.nominator, "nominator", "", "New nominator account")
	cmd.Flags().StringVar(&req.bouncer, "bouncer", "", "New bouncer account")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newPoolStateCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionSetPoolState}
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Set a pool's state to open, blocked or destroying",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pool-id") {
				return clierr.New(clierr.CodeUsage, "--pool-id is required")
			}
			if !cmd.Flags().Changed("state") {
				return clierr.New(clierr.CodeUsage, "--state is required")
			}
			return s.runAction(cmd, req)
		},
	}
	cmd.Flags().Uint32Var(&req.poolID, "pool-id", 0, "Pool to update")
	cmd.Flags().StringVar(&req.state, "state", "", "Target state: open, blocked or destroying")
	engineFlags(cmd, req)
	return cmd
}

func (s *runtimeState) newPoolKickAllCommand() *cobra.Command {
	req := &actionRequest{kind: engine.ActionKickAll}
	cmd := &cobra.Command{
		Use:   "kick-all",
		Short: "Unbond every other member of a destroying pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pool-id") {
				return clierr.New(clierr.CodeUsage, "--pool-id is required")
			}
			return s.runAction(cmd, req)
		},
	}
	cmd.Flags().Uint32Var(&req.poolID, "pool-id", 0, "Pool to empty")
	engineFlags(cmd, req)
	return cmd
}

// canonicalizeRoles validates and normalizes any role addresses that
// were supplied.
func canonicalizeRoles(req *actionRequest) error {
	for _, role := range []*string{&req.root, &req.nominator, &req.bouncer} {
		if *role == "" {
			continue
		}
		canonical, _, err := id.ParseAddress(*role)
		if err != nil {
			return err
		}
		*role = canonical
	}
	return nil
}
