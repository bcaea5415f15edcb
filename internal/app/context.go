package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/stakeops/stakectl/internal/chain"
	"github.com/stakeops/stakectl/internal/engine"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

const (
	fieldStakingSnapshot = "stakingSnapshot"
	fieldPoolMembership  = "poolMembership"
	fieldMinJoinBond     = "minJoinBond"
)

type poolMembership struct {
	PoolID  uint32 `json:"pool_id"`
	HasPool bool   `json:"has_pool"`
}

// buildActionContext assembles the resolver context and the guard's
// balance picture from live queries, falling back to cached snapshots
// when the node fails mid-flight. The balance itself is always live:
// a stale funds picture must never enable a confirmation.
func (s *runtimeState) buildActionContext(ctx context.Context, client chainReader, account string, req *actionRequest) (engine.ActionContext, engine.BalanceInfo, []string, error) {
	actx := engine.ActionContext{Signer: account}
	var warnings []string

	snap, err := client.Balance(ctx, account)
	if err != nil {
		return actx, engine.BalanceInfo{}, nil, err
	}
	binfo := engine.BalanceInfo{
		Available:   snap.Available,
		Total:       snap.Total,
		MinRetained: snap.MinRetained,
	}

	switch req.kind {
	case engine.ActionBond:
		actx.Amount = req.amount
		payee, err := engine.ParsePayee(req.payee)
		if err != nil {
			return actx, binfo, nil, clierr.Wrap(clierr.CodeUsage, "parse payee", err)
		}
		actx.Payee = payee

	case engine.ActionBondExtra:
		actx.Amount = req.amount

	case engine.ActionUnbond, engine.ActionUnbondAll, engine.ActionRedeem:
		pos, w, err := s.stakingPosition(ctx, client, account)
		warnings = append(warnings, w...)
		if err != nil {
			return actx, binfo, warnings, err
		}
		applyPosition(&actx, pos)
		if req.kind == engine.ActionUnbondAll {
			actx.Amount = pos.BondedActive
		} else if req.kind == engine.ActionUnbond {
			actx.Amount = req.amount
		}

	case engine.ActionChill:
		// fee-only, no chain context beyond the balance

	case engine.ActionNominate:
		actx.Targets = req.targets
		pos, w, err := s.stakingPosition(ctx, client, account)
		warnings = append(warnings, w...)
		if err != nil {
			return actx, binfo, warnings, err
		}
		actx.ActiveTargets = pos.Nominations

	case engine.ActionClaim:
		if req.hasPoolID {
			actx.HasPool = true
			actx.PoolID = req.poolID
		} else {
			membership, w, err := s.poolMembershipOf(ctx, client, account)
			warnings = append(warnings, w...)
			if err != nil {
				return actx, binfo, warnings, err
			}
			if membership.HasPool {
				actx.HasPool = true
				actx.PoolID = membership.PoolID
				break
			}
			if strings.TrimSpace(req.validator) == "" {
				return actx, binfo, warnings, clierr.New(clierr.CodeUsage, "claim outside a pool needs --validator")
			}
			actx.ValidatorStash = req.validator
			actx.Era = req.era
			actx.HasEra = true
			if !req.hasEra {
				era, err := client.LastPayableEra(ctx)
				if err != nil {
					return actx, binfo, warnings, err
				}
				actx.Era = era
			}
		}

	case engine.ActionJoinPool:
		actx.Amount = req.amount
		actx.PoolID = req.poolID
		actx.HasPool = true
		minJoin, w, err := s.minJoinBond(ctx, client, account)
		warnings = append(warnings, w...)
		if err != nil {
			return actx, binfo, warnings, err
		}
		binfo.MinJoinBond = minJoin

	case engine.ActionCreatePool:
		actx.Amount = req.amount
		actx.Roles = engine.PoolRoles{
			Root:      req.root,
			Nominator: req.nominator,
			Bouncer:   req.bouncer,
		}
		actx.PoolMetadata = req.metadata
		nextID, err := client.NextPoolID(ctx)
		if err != nil {
			return actx, binfo, warnings, err
		}
		actx.PoolID = nextID
		actx.HasPool = true

	case engine.ActionEditPool:
		actx.PoolID = req.poolID
		actx.HasPool = true
		actx.PoolMetadata = req.metadata
		if req.root != "" || req.nominator != "" || req.bouncer != "" {
			actx.Roles = engine.PoolRoles{
				Root:      req.root,
				Nominator: req.nominator,
				Bouncer:   req.bouncer,
			}
		}

	case engine.ActionSetPoolState:
		actx.PoolID = req.poolID
		actx.HasPool = true
		state, err := engine.ParsePoolState(req.state)
		if err != nil {
			return actx, binfo, warnings, clierr.Wrap(clierr.CodeUsage, "parse pool state", err)
		}
		actx.TargetState = state
		actx.HasState = true
		info, err := client.PoolInfoOf(ctx, req.poolID)
		if err != nil {
			return actx, binfo, warnings, err
		}
		actx.PoolNominating = info.Nominating

	case engine.ActionKickAll:
		actx.PoolID = req.poolID
		actx.HasPool = true
		info, err := client.PoolInfoOf(ctx, req.poolID)
		if err != nil {
			return actx, binfo, warnings, err
		}
		for _, m := range info.Members {
			actx.PoolMembers = append(actx.PoolMembers, engine.PoolMember{
				Address: m.Address,
				Points:  m.Points,
			})
		}

	default:
		return actx, binfo, warnings, clierr.New(clierr.CodeInternal, fmt.Sprintf("unhandled action %s", req.kind))
	}

	return actx, binfo, warnings, nil
}

func applyPosition(actx *engine.ActionContext, pos chain.StakingPosition) {
	actx.BondedActive = pos.BondedActive
	actx.ActiveTargets = pos.Nominations
	actx.UnlockingChunks = pos.UnlockingChunks
	actx.MaxUnlockingChunks = pos.MaxUnlockingChunks
}

// stakingPosition fetches the live ledger and refreshes the cached
// snapshot; when the node fails it serves the cached snapshot with a
// warning instead of failing the command outright.
func (s *runtimeState) stakingPosition(ctx context.Context, client chainReader, account string) (chain.StakingPosition, []string, error) {
	pos, err := client.StakingPositionOf(ctx, account)
	if err == nil {
		if s.store != nil {
			if saveErr := s.store.Save(account, s.settings.ChainName, fieldStakingSnapshot, pos); saveErr != nil {
				return pos, []string{"staking snapshot not cached: " + saveErr.Error()}, nil
			}
		}
		return pos, nil, nil
	}
	if s.store != nil {
		var cached chain.StakingPosition
		ok, loadErr := s.store.LoadFresh(account, s.settings.ChainName, fieldStakingSnapshot, s.settings.SnapshotTTL, &cached)
		if loadErr == nil && ok {
			return cached, []string{"using cached staking snapshot: " + err.Error()}, nil
		}
	}
	return chain.StakingPosition{}, nil, err
}

func (s *runtimeState) poolMembershipOf(ctx context.Context, client chainReader, account string) (poolMembership, []string, error) {
	poolID, hasPool, err := client.PoolOf(ctx, account)
	if err == nil {
		m := poolMembership{PoolID: poolID, HasPool: hasPool}
		if s.store != nil {
			if saveErr := s.store.Save(account, s.settings.ChainName, fieldPoolMembership, m); saveErr != nil {
				return m, []string{"pool membership not cached: " + saveErr.Error()}, nil
			}
		}
		return m, nil, nil
	}
	if s.store != nil {
		var cached poolMembership
		ok, loadErr := s.store.LoadFresh(account, s.settings.ChainName, fieldPoolMembership, s.settings.SnapshotTTL, &cached)
		if loadErr == nil && ok {
			return cached, []string{"using cached pool membership: " + err.Error()}, nil
		}
	}
	return poolMembership{}, nil, err
}

func (s *runtimeState) minJoinBond(ctx context.Context, client chainReader, account string) (*big.Int, []string, error) {
	value, err := client.MinJoinBond(ctx)
	if err == nil {
		if s.store != nil {
			if saveErr := s.store.Save(account, s.settings.ChainName, fieldMinJoinBond, value); saveErr != nil {
				return value, []string{"min join bond not cached: " + saveErr.Error()}, nil
			}
		}
		return value, nil, nil
	}
	if s.store != nil {
		var cached big.Int
		ok, loadErr := s.store.LoadFresh(account, s.settings.ChainName, fieldMinJoinBond, s.settings.SnapshotTTL, &cached)
		if loadErr == nil && ok {
			return &cached, []string{"using cached min join bond: " + err.Error()}, nil
		}
	}
	return nil, nil, err
}
