package engine

import (
	"math/big"

	"github.com/stakeops/stakectl/internal/chain"
	clierr "github.com/stakeops/stakectl/internal/errors"
)

// Resolve maps an action plus its context to the ordered runtime calls
// that perform it. It is a pure function of its inputs: conditional
// companion calls (chill before a full unbond, flushing full unlocking
// slots, chilling a pool before destroying it) are decided from the
// chain facts already captured in ctx.
func Resolve(kind ActionKind, ctx ActionContext) ([]CallDescriptor, error) {
	switch kind {
	case ActionBond:
		return resolveBond(ctx)
	case ActionBondExtra:
		return resolveBondExtra(ctx)
	case ActionUnbond:
		return resolveUnbond(ctx, ctx.Amount)
	case ActionUnbondAll:
		return resolveUnbond(ctx, ctx.BondedActive)
	case ActionChill:
		return []CallDescriptor{descriptor(MethodChill)}, nil
	case ActionNominate:
		return resolveNominate(ctx)
	case ActionRedeem:
		return resolveRedeem(ctx)
	case ActionClaim:
		return resolveClaim(ctx)
	case ActionJoinPool:
		return resolveJoinPool(ctx)
	case ActionCreatePool:
		return resolveCreatePool(ctx)
	case ActionEditPool:
		return resolveEditPool(ctx)
	case ActionSetPoolState:
		return resolveSetPoolState(ctx)
	case ActionKickAll:
		return resolveKickAll(ctx)
	default:
		return nil, clierr.New(clierr.CodeResolution, "unsupported action")
	}
}

func requireAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return clierr.New(clierr.CodeResolution, "amount must be a positive value")
	}
	return nil
}

func resolveBond(ctx ActionContext) ([]CallDescriptor, error) {
	if err := requireAmount(ctx.Amount); err != nil {
		return nil, err
	}
	return []CallDescriptor{
		descriptor(MethodBond, NewArg(ctx.Amount), NewArg(ctx.Payee)),
	}, nil
}

func resolveBondExtra(ctx ActionContext) ([]CallDescriptor, error) {
	if err := requireAmount(ctx.Amount); err != nil {
		return nil, err
	}
	return []CallDescriptor{descriptor(MethodBondExtra, NewArg(ctx.Amount))}, nil
}

func resolveUnbond(ctx ActionContext, amount *big.Int) ([]CallDescriptor, error) {
	if err := requireAmount(amount); err != nil {
		return nil, err
	}
	if ctx.BondedActive == nil || ctx.BondedActive.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeResolution, "no bonded funds to unbond")
	}
	if amount.Cmp(ctx.BondedActive) > 0 {
		return nil, clierr.New(clierr.CodeResolution, "amount exceeds bonded funds")
	}

	var descs []CallDescriptor
	if amount.Cmp(ctx.BondedActive) == 0 && len(ctx.ActiveTargets) > 0 {
		descs = append(descs, descriptor(MethodChill))
	}
	if chunkSlotsFull(ctx) {
		descs = append(descs, descriptor(MethodWithdrawUnbonded, SlashingSpansArg(ctx.Signer)))
	}
	descs = append(descs, descriptor(MethodUnbond, NewArg(amount)))
	return descs, nil
}

func resolveNominate(ctx ActionContext) ([]CallDescriptor, error) {
	if len(ctx.Targets) == 0 {
		return nil, clierr.New(clierr.CodeResolution, "at least one validator target is required")
	}
	return []CallDescriptor{descriptor(MethodNominate, NewArg(ctx.Targets))}, nil
}

func resolveRedeem(ctx ActionContext) ([]CallDescriptor, error) {
	redeem := descriptor(MethodWithdrawUnbonded, SlashingSpansArg(ctx.Signer))
	if !chunkSlotsFull(ctx) {
		return []CallDescriptor{redeem}, nil
	}
	// Every unlocking slot is occupied: flush before redeeming so the
	// runtime frees the fully unlocked chunks first.
	flush := descriptor(MethodWithdrawUnbonded, SlashingSpansArg(ctx.Signer))
	return []CallDescriptor{flush, redeem}, nil
}

func chunkSlotsFull(ctx ActionContext) bool {
	return ctx.MaxUnlockingChunks > 0 && ctx.UnlockingChunks >= ctx.MaxUnlockingChunks
}

func resolveClaim(ctx ActionContext) ([]CallDescriptor, error) {
	if ctx.HasPool {
		return []CallDescriptor{descriptor(MethodPoolClaimPayout)}, nil
	}
	if ctx.ValidatorStash == "" || !ctx.HasEra {
		return nil, clierr.New(clierr.CodeResolution, "claim requires a pool id, or a validator stash and era")
	}
	return []CallDescriptor{
		descriptor(MethodPayoutStakers, NewArg(chain.AccountArg(ctx.ValidatorStash)), NewArg(ctx.Era)),
	}, nil
}

func resolveJoinPool(ctx ActionContext) ([]CallDescriptor, error) {
	if err := requireAmount(ctx.Amount); err != nil {
		return nil, err
	}
	if !ctx.HasPool {
		return nil, clierr.New(clierr.CodeResolution, "pool id is required")
	}
	return []CallDescriptor{
		descriptor(MethodPoolJoin, NewArg(ctx.Amount), NewArg(ctx.PoolID)),
	}, nil
}

func resolveCreatePool(ctx ActionContext) ([]CallDescriptor, error) {
	if err := requireAmount(ctx.Amount); err != nil {
		return nil, err
	}
	if !ctx.HasPool {
		return nil, clierr.New(clierr.CodeResolution, "next pool id is required")
	}
	roles := ctx.Roles
	if roles.Root == "" {
		roles.Root = ctx.Signer
	}
	if roles.Nominator == "" {
		roles.Nominator = ctx.Signer
	}
	if roles.Bouncer == "" {
		roles.Bouncer = ctx.Signer
	}
	// Creation always pairs with set_metadata so the pool never shows
	// up unnamed, even when the caller gave an empty label.
	return []CallDescriptor{
		descriptor(MethodPoolCreate,
			NewArg(ctx.Amount), NewArg(roles.Root), NewArg(roles.Nominator), NewArg(roles.Bouncer)),
		descriptor(MethodPoolSetMetadata, NewArg(ctx.PoolID), NewArg(ctx.PoolMetadata)),
	}, nil
}

func resolveEditPool(ctx ActionContext) ([]CallDescriptor, error) {
	if !ctx.HasPool {
		return nil, clierr.New(clierr.CodeResolution, "pool id is required")
	}
	var descs []CallDescriptor
	if ctx.PoolMetadata != "" {
		descs = append(descs, descriptor(MethodPoolSetMetadata, NewArg(ctx.PoolID), NewArg(ctx.PoolMetadata)))
	}
	if !ctx.Roles.Empty() {
		descs = append(descs, descriptor(MethodPoolUpdateRoles,
			NewArg(ctx.PoolID),
			NewArg(chain.RoleArg{Set: ctx.Roles.Root != "", Address: ctx.Roles.Root}),
			NewArg(chain.RoleArg{Set: ctx.Roles.Nominator != "", Address: ctx.Roles.Nominator}),
			NewArg(chain.RoleArg{Set: ctx.Roles.Bouncer != "", Address: ctx.Roles.Bouncer})))
	}
	if len(descs) == 0 {
		return nil, clierr.New(clierr.CodeResolution, "nothing to edit: provide metadata or roles")
	}
	return descs, nil
}

func resolveSetPoolState(ctx ActionContext) ([]CallDescriptor, error) {
	if !ctx.HasPool {
		return nil, clierr.New(clierr.CodeResolution, "pool id is required")
	}
	if !ctx.HasState {
		return nil, clierr.New(clierr.CodeResolution, "target pool state is required")
	}
	var descs []CallDescriptor
	if ctx.TargetState == PoolDestroying && ctx.PoolNominating {
		descs = append(descs, descriptor(MethodPoolChill, NewArg(ctx.PoolID)))
	}
	descs = append(descs, descriptor(MethodPoolSetState, NewArg(ctx.PoolID), NewArg(ctx.TargetState)))
	return descs, nil
}

func resolveKickAll(ctx ActionContext) ([]CallDescriptor, error) {
	if !ctx.HasPool {
		return nil, clierr.New(clierr.CodeResolution, "pool id is required")
	}
	var descs []CallDescriptor
	for _, m := range ctx.PoolMembers {
		if m.Address == ctx.Signer {
			continue
		}
		if m.Points == nil || m.Points.Sign() <= 0 {
			continue
		}
		descs = append(descs, descriptor(MethodPoolUnbond, NewArg(m.Address), NewArg(m.Points)))
	}
	if len(descs) == 0 {
		return nil, clierr.New(clierr.CodeResolution, "pool has no members to kick")
	}
	return descs, nil
}
