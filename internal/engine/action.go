package engine

import (
	"fmt"
	"math/big"
)

// ActionKind is the closed set of staking actions the engine drives.
type ActionKind int

const (
	ActionBond ActionKind = iota
	ActionBondExtra
	ActionUnbond
	ActionUnbondAll
	ActionChill
	ActionNominate
	ActionRedeem
	ActionClaim
	ActionJoinPool
	ActionCreatePool
	ActionEditPool
	ActionSetPoolState
	ActionKickAll
)

func (k ActionKind) String() string {
	switch k {
	case ActionBond:
		return "bond"
	case ActionBondExtra:
		return "bond_extra"
	case ActionUnbond:
		return "unbond"
	case ActionUnbondAll:
		return "unbond_all"
	case ActionChill:
		return "chill"
	case ActionNominate:
		return "nominate"
	case ActionRedeem:
		return "redeem"
	case ActionClaim:
		return "claim"
	case ActionJoinPool:
		return "pool_join"
	case ActionCreatePool:
		return "pool_create"
	case ActionEditPool:
		return "pool_edit"
	case ActionSetPoolState:
		return "pool_set_state"
	case ActionKickAll:
		return "pool_kick_all"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// DeductsAmount reports whether the action moves Amount out of the
// signer's transferable balance, as opposed to fee-only actions or
// actions that move already-bonded funds.
func (k ActionKind) DeductsAmount() bool {
	switch k {
	case ActionBond, ActionBondExtra, ActionJoinPool, ActionCreatePool:
		return true
	default:
		return false
	}
}

// AllowsSuggestedAmount reports whether the balance guard may offer a
// reduced amount when the requested one would breach the retained
// minimum.
func (k ActionKind) AllowsSuggestedAmount() bool {
	return k.DeductsAmount()
}

// PoolState is a target nomination pool state.
type PoolState int

const (
	PoolOpen PoolState = iota
	PoolBlocked
	PoolDestroying
)

func (s PoolState) String() string {
	switch s {
	case PoolOpen:
		return "open"
	case PoolBlocked:
		return "blocked"
	case PoolDestroying:
		return "destroying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EnumIndex is the runtime enum discriminant for the state.
func (s PoolState) EnumIndex() uint8 { return uint8(s) }

// ParsePoolState maps a user-supplied state name to a PoolState.
func ParsePoolState(s string) (PoolState, error) {
	switch s {
	case "open":
		return PoolOpen, nil
	case "blocked":
		return PoolBlocked, nil
	case "destroying":
		return PoolDestroying, nil
	default:
		return 0, fmt.Errorf("unknown pool state %q", s)
	}
}

// Payee is the reward destination for a solo bond.
type Payee int

const (
	PayeeStaked Payee = iota
	PayeeStash
	PayeeController
)

func (p Payee) String() string {
	switch p {
	case PayeeStaked:
		return "staked"
	case PayeeStash:
		return "stash"
	default:
		return "controller"
	}
}

// EnumIndex is the runtime reward-destination enum discriminant.
func (p Payee) EnumIndex() uint8 { return uint8(p) }

func ParsePayee(s string) (Payee, error) {
	switch s {
	case "", "staked":
		return PayeeStaked, nil
	case "stash":
		return PayeeStash, nil
	case "controller":
		return PayeeController, nil
	default:
		return 0, fmt.Errorf("unknown payee %q", s)
	}
}

// PoolRoles names the administrative accounts of a pool.
type PoolRoles struct {
	Root      string
	Nominator string
	Bouncer   string
}

func (r PoolRoles) Empty() bool {
	return r.Root == "" && r.Nominator == "" && r.Bouncer == ""
}

// PoolMember pairs a member address with its bonded points.
type PoolMember struct {
	Address string
	Points  *big.Int
}

// ActionContext carries the user inputs and the chain-derived facts an
// action needs to resolve into concrete calls. The resolver reads it,
// never the network.
type ActionContext struct {
	Signer string

	Amount       *big.Int
	Payee        Payee
	PoolID       uint32
	HasPool      bool
	Targets      []string
	Roles        PoolRoles
	PoolMetadata string
	TargetState  PoolState
	HasState     bool

	BondedActive       *big.Int
	ActiveTargets      []string
	UnlockingChunks    int
	MaxUnlockingChunks int
	PoolNominating     bool
	PoolMembers        []PoolMember
	ValidatorStash     string
	Era                uint32
	HasEra             bool
}
