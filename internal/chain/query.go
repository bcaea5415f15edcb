package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/vedhavyas/go-subkey/v2"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

// option is a SCALE Option<T> for payload types gsrpc has no ready
// wrapper for.
type option[T any] struct {
	HasValue bool
	Value    T
}

func (o *option[T]) Decode(decoder scale.Decoder) error {
	b, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	if b == 0 {
		return nil
	}
	o.HasValue = true
	return decoder.Decode(&o.Value)
}

func (o option[T]) Encode(encoder scale.Encoder) error {
	if !o.HasValue {
		return encoder.PushByte(0)
	}
	if err := encoder.PushByte(1); err != nil {
		return err
	}
	return encoder.Encode(o.Value)
}

// stakingLedger matches the runtime staking ledger layout.
type stakingLedger struct {
	Stash          types.AccountID
	Total          types.U128
	Active         types.U128
	Unlocking      []unlockChunk `scale:"max=32"`
	ClaimedRewards []types.U32   `scale:"max=512"`
}

type unlockChunk struct {
	Value types.U128
	Era   types.U32
}

// nominations matches the runtime nominator record layout.
type nominations struct {
	Targets     []types.AccountID `scale:"max=16"`
	SubmittedIn types.U32
	Suppressed  types.Bool
}

// slashingSpans matches the runtime slashing span record layout.
type slashingSpans struct {
	SpanIndex        types.U32
	LastStart        types.U32
	LastNonzeroSlash types.U32
	Prior            []types.U32
}

type poolRolesRecord struct {
	Depositor types.AccountID
	Root      option[types.AccountID]
	Nominator option[types.AccountID]
	Bouncer   option[types.AccountID]
}

type bondedPool struct {
	Commission    poolCommission
	MemberCounter types.U32
	Points        types.U128
	Roles         poolRolesRecord
	State         types.U8
}

type poolCommission struct {
	Current         option[commissionEntry]
	Max             option[types.U32]
	ChangeRate      option[commissionChangeRate]
	ThrottleFrom    option[types.U32]
	ClaimPermission option[claimPermission]
}

type commissionEntry struct {
	Perbill     types.U32
	Beneficiary types.AccountID
}

type commissionChangeRate struct {
	MaxIncrease types.U32
	MinDelay    types.U32
}

// claimPermission is the commission claim permission enum: index 1
// carries a concrete account.
type claimPermission struct {
	Permissionless bool
	Account        types.AccountID
}

func (p *claimPermission) Decode(decoder scale.Decoder) error {
	b, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	if b == 0 {
		p.Permissionless = true
		return nil
	}
	return decoder.Decode(&p.Account)
}

type poolMemberRecord struct {
	PoolID                    types.U32
	Points                    types.U128
	LastRecordedRewardCounter types.U128
	UnbondingEras             []unbondingEraEntry
}

type unbondingEraEntry struct {
	Era    types.U32
	Points types.U128
}

type activeEraInfo struct {
	Index types.U32
	Start types.OptionU64
}

// Balance returns the signer's transferable position. The retained
// minimum is the chain's existential deposit.
func (c *Client) Balance(ctx context.Context, address string) (BalanceSnapshot, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return BalanceSnapshot{}, clierr.Wrap(clierr.CodeUsage, "parse account", err)
	}
	key, err := types.CreateStorageKey(c.meta, "System", "Account", pub[:])
	if err != nil {
		return BalanceSnapshot{}, clierr.Wrap(clierr.CodeInternal, "build account key", err)
	}
	var info types.AccountInfo
	ok, err := c.api.RPC.State.GetStorageLatest(key, &info)
	if err != nil {
		return BalanceSnapshot{}, clierr.Wrap(clierr.CodeUnavailable, "query account", err)
	}

	ed, err := c.existentialDeposit()
	if err != nil {
		return BalanceSnapshot{}, err
	}

	snap := BalanceSnapshot{
		Available:   new(big.Int),
		Total:       new(big.Int),
		MinRetained: ed,
	}
	if !ok {
		return snap, nil
	}

	free := info.Data.Free.Int
	frozen := new(big.Int).Set(info.Data.MiscFrozen.Int)
	if info.Data.FreeFrozen.Int.Cmp(frozen) > 0 {
		frozen.Set(info.Data.FreeFrozen.Int)
	}
	snap.Total = new(big.Int).Add(free, info.Data.Reserved.Int)
	snap.Available = new(big.Int).Sub(free, frozen)
	if snap.Available.Sign() < 0 {
		snap.Available.SetInt64(0)
	}
	return snap, nil
}

// StakingPositionOf reads the staking ledger, the unlocking schedule
// and the current nominations of the address.
func (c *Client) StakingPositionOf(ctx context.Context, address string) (StakingPosition, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return StakingPosition{}, clierr.Wrap(clierr.CodeUsage, "parse account", err)
	}

	pos := StakingPosition{
		BondedActive:      new(big.Int),
		RedeemableBalance: new(big.Int),
	}

	maxChunks, err := c.constantU32("Staking", "MaxUnlockingChunks")
	if err != nil {
		return StakingPosition{}, err
	}
	pos.MaxUnlockingChunks = int(maxChunks)

	ledgerKey, err := types.CreateStorageKey(c.meta, "Staking", "Ledger", pub[:])
	if err != nil {
		return StakingPosition{}, clierr.Wrap(clierr.CodeInternal, "build ledger key", err)
	}
	var ledger stakingLedger
	ok, err := c.api.RPC.State.GetStorageLatest(ledgerKey, &ledger)
	if err != nil {
		return StakingPosition{}, clierr.Wrap(clierr.CodeUnavailable, "query staking ledger", err)
	}
	if ok {
		pos.BondedActive = ledger.Active.Int
		pos.UnlockingChunks = len(ledger.Unlocking)

		era, eraKnown, err := c.activeEra(ctx)
		if err != nil {
			return StakingPosition{}, err
		}
		for _, chunk := range ledger.Unlocking {
			if eraKnown && uint32(chunk.Era) <= era {
				pos.RedeemableBalance.Add(pos.RedeemableBalance, chunk.Value.Int)
			}
		}
	}

	targets, err := c.NominationsOf(ctx, address)
	if err != nil {
		return StakingPosition{}, err
	}
	pos.Nominations = targets
	return pos, nil
}

// NominationsOf returns the validator addresses the account currently
// nominates, in storage order.
func (c *Client) NominationsOf(ctx context.Context, address string) ([]string, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "parse account", err)
	}
	key, err := types.CreateStorageKey(c.meta, "Staking", "Nominators", pub[:])
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build nominators key", err)
	}
	var record nominations
	ok, err := c.api.RPC.State.GetStorageLatest(key, &record)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "query nominations", err)
	}
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(record.Targets))
	for _, target := range record.Targets {
		out = append(out, subkey.SS58Encode(target.ToBytes(), c.network))
	}
	return out, nil
}

// SlashingSpanCount returns the span count the runtime expects as the
// withdraw argument: prior spans plus the open one, zero when the
// account was never slashed-tracked.
func (c *Client) SlashingSpanCount(ctx context.Context, address string) (uint32, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUsage, "parse account", err)
	}
	key, err := types.CreateStorageKey(c.meta, "Staking", "SlashingSpans", pub[:])
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeInternal, "build slashing spans key", err)
	}
	var spans slashingSpans
	ok, err := c.api.RPC.State.GetStorageLatest(key, &spans)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "query slashing spans", err)
	}
	if !ok {
		return 0, nil
	}
	return uint32(len(spans.Prior)) + 1, nil
}

func (c *Client) activeEra(ctx context.Context) (uint32, bool, error) {
	key, err := types.CreateStorageKey(c.meta, "Staking", "ActiveEra")
	if err != nil {
		return 0, false, clierr.Wrap(clierr.CodeInternal, "build active era key", err)
	}
	var era activeEraInfo
	ok, err := c.api.RPC.State.GetStorageLatest(key, &era)
	if err != nil {
		return 0, false, clierr.Wrap(clierr.CodeUnavailable, "query active era", err)
	}
	if !ok {
		return 0, false, nil
	}
	return uint32(era.Index), true, nil
}

// LastPayableEra is the newest era whose rewards can be claimed.
func (c *Client) LastPayableEra(ctx context.Context) (uint32, error) {
	era, ok, err := c.activeEra(ctx)
	if err != nil {
		return 0, err
	}
	if !ok || era == 0 {
		return 0, clierr.New(clierr.CodeUnavailable, "active era unknown")
	}
	return era - 1, nil
}

// PoolOf returns the pool the address is a member of, or ok=false.
func (c *Client) PoolOf(ctx context.Context, address string) (uint32, bool, error) {
	member, ok, err := c.poolMember(address)
	if err != nil || !ok {
		return 0, false, err
	}
	return uint32(member.PoolID), true, nil
}

func (c *Client) poolMember(address string) (poolMemberRecord, bool, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return poolMemberRecord{}, false, clierr.Wrap(clierr.CodeUsage, "parse account", err)
	}
	key, err := types.CreateStorageKey(c.meta, "NominationPools", "PoolMembers", pub[:])
	if err != nil {
		return poolMemberRecord{}, false, clierr.Wrap(clierr.CodeInternal, "build pool member key", err)
	}
	var record poolMemberRecord
	ok, err := c.api.RPC.State.GetStorageLatest(key, &record)
	if err != nil {
		return poolMemberRecord{}, false, clierr.Wrap(clierr.CodeUnavailable, "query pool member", err)
	}
	return record, ok, nil
}

// PoolInfoOf loads the pool record plus the facts resolution needs:
// whether its bonded account nominates and who its members are.
func (c *Client) PoolInfoOf(ctx context.Context, poolID uint32) (PoolInfo, error) {
	idEnc, err := codec.Encode(types.NewU32(poolID))
	if err != nil {
		return PoolInfo{}, clierr.Wrap(clierr.CodeInternal, "encode pool id", err)
	}
	key, err := types.CreateStorageKey(c.meta, "NominationPools", "BondedPools", idEnc)
	if err != nil {
		return PoolInfo{}, clierr.Wrap(clierr.CodeInternal, "build bonded pool key", err)
	}
	var pool bondedPool
	ok, err := c.api.RPC.State.GetStorageLatest(key, &pool)
	if err != nil {
		return PoolInfo{}, clierr.Wrap(clierr.CodeUnavailable, "query bonded pool", err)
	}
	if !ok {
		return PoolInfo{}, clierr.New(clierr.CodeResolution, fmt.Sprintf("pool %d does not exist", poolID))
	}

	info := PoolInfo{ID: poolID, State: poolStateName(uint8(pool.State))}

	minJoin, err := c.MinJoinBond(ctx)
	if err != nil {
		return PoolInfo{}, err
	}
	info.MinJoinBond = minJoin

	bonded := subkey.SS58Encode(poolAccountID(poolID, poolAccountBonded), c.network)
	targets, err := c.NominationsOf(ctx, bonded)
	if err != nil {
		return PoolInfo{}, err
	}
	info.Nominating = len(targets) > 0

	members, err := c.poolMembersOf(poolID)
	if err != nil {
		return PoolInfo{}, err
	}
	info.Members = members
	return info, nil
}

func (c *Client) poolMembersOf(poolID uint32) ([]PoolMember, error) {
	prefix, err := types.CreateStorageKey(c.meta, "NominationPools", "PoolMembers")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build pool members prefix", err)
	}
	keys, err := c.api.RPC.State.GetKeysLatest(prefix)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "list pool members", err)
	}
	var members []PoolMember
	for _, key := range keys {
		var record poolMemberRecord
		ok, err := c.api.RPC.State.GetStorageLatest(key, &record)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "query pool member", err)
		}
		if !ok || uint32(record.PoolID) != poolID {
			continue
		}
		raw := []byte(key)
		if len(raw) < 32 {
			continue
		}
		account := raw[len(raw)-32:]
		members = append(members, PoolMember{
			Address: subkey.SS58Encode(account, c.network),
			Points:  record.Points.Int,
		})
	}
	return members, nil
}

// MinJoinBond is the chain-wide minimum to join any pool.
func (c *Client) MinJoinBond(ctx context.Context) (*big.Int, error) {
	key, err := types.CreateStorageKey(c.meta, "NominationPools", "MinJoinBond")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build min join bond key", err)
	}
	var min types.U128
	ok, err := c.api.RPC.State.GetStorageLatest(key, &min)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "query min join bond", err)
	}
	if !ok {
		return new(big.Int), nil
	}
	return min.Int, nil
}

// NextPoolID returns the id the next created pool will get.
func (c *Client) NextPoolID(ctx context.Context) (uint32, error) {
	key, err := types.CreateStorageKey(c.meta, "NominationPools", "LastPoolId")
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeInternal, "build last pool id key", err)
	}
	var last types.U32
	ok, err := c.api.RPC.State.GetStorageLatest(key, &last)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "query last pool id", err)
	}
	if !ok {
		return 1, nil
	}
	return uint32(last) + 1, nil
}

func (c *Client) existentialDeposit() (*big.Int, error) {
	raw, err := c.constantBytes("Balances", "ExistentialDeposit")
	if err != nil {
		return nil, err
	}
	var ed types.U128
	if err := decodeStorage(types.StorageDataRaw(raw), &ed); err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "decode existential deposit", err)
	}
	return ed.Int, nil
}

func (c *Client) constantU32(pallet, name string) (uint32, error) {
	raw, err := c.constantBytes(pallet, name)
	if err != nil {
		return 0, err
	}
	var v types.U32
	if err := decodeStorage(types.StorageDataRaw(raw), &v); err != nil {
		return 0, clierr.Wrap(clierr.CodeInternal, "decode constant "+pallet+"."+name, err)
	}
	return uint32(v), nil
}

func (c *Client) constantBytes(pallet, name string) ([]byte, error) {
	if c.meta.Version != 14 {
		return nil, clierr.New(clierr.CodeUnavailable, "unsupported metadata version")
	}
	for _, p := range c.meta.AsMetadataV14.Pallets {
		if string(p.Name) != pallet {
			continue
		}
		for _, constant := range p.Constants {
			if string(constant.Name) == name {
				return constant.Value, nil
			}
		}
	}
	return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("constant %s.%s not found", pallet, name))
}

type poolAccountType byte

const (
	poolAccountBonded poolAccountType = 0
	poolAccountReward poolAccountType = 1
)

// poolAccountID derives the pool's system sub-account from the
// nomination pools pallet id, the account type and the pool id.
func poolAccountID(poolID uint32, kind poolAccountType) []byte {
	out := make([]byte, 32)
	n := copy(out, "modl")
	n += copy(out[n:], "py/nopls")
	out[n] = byte(kind)
	n++
	out[n] = byte(poolID)
	out[n+1] = byte(poolID >> 8)
	out[n+2] = byte(poolID >> 16)
	out[n+3] = byte(poolID >> 24)
	return out
}

func poolStateName(idx uint8) string {
	switch idx {
	case 0:
		return "open"
	case 1:
		return "blocked"
	case 2:
		return "destroying"
	default:
		return fmt.Sprintf("state(%d)", idx)
	}
}
