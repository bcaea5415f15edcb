package chain

import (
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
)

// Call is a runtime call by "Pallet.function" name. A non-empty Inner
// slice means the call is a Utility.batch_all wrapping Inner in order,
// and Method/Args are ignored.
type Call struct {
	Method string
	Args   []any
	Inner  []Call
}

func (c Call) IsBatch() bool { return len(c.Inner) > 0 }

// Signer is an unlocked signing identity.
type Signer interface {
	Address() string
	Keyring() signature.KeyringPair
}

type EventKind int

const (
	EventBroadcast EventKind = iota
	EventInBlock
	EventFinalized
	EventDropped
	EventInvalid
)

// InclusionEvent reports submission progress. DispatchError is empty
// when the extrinsic dispatched successfully; it carries the decoded
// failure reason otherwise. Fee and height fields are only populated
// on EventFinalized.
type InclusionEvent struct {
	Kind          EventKind
	BlockHash     string
	BlockHeight   uint64
	TxHash        string
	DispatchError string
	PartialFee    *big.Int
}

// BalanceSnapshot is the signer's transferable position.
type BalanceSnapshot struct {
	Available   *big.Int
	Total       *big.Int
	MinRetained *big.Int
}

// StakingPosition summarizes the signer's staking ledger.
type StakingPosition struct {
	BondedActive       *big.Int
	UnlockingChunks    int
	RedeemableBalance  *big.Int
	MaxUnlockingChunks int
	Nominations        []string
}

// PoolMember is a member of a nomination pool with its bonded points.
type PoolMember struct {
	Address string
	Points  *big.Int
}

// PoolInfo summarizes a nomination pool for resolution context.
type PoolInfo struct {
	ID          uint32
	State       string
	MinJoinBond *big.Int
	Nominating  bool
	Members     []PoolMember
}
