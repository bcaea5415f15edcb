package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/vedhavyas/go-subkey/v2"
	"golang.org/x/crypto/blake2b"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

// Client talks to a Substrate node over the gsrpc websocket API.
type Client struct {
	api     *gsrpc.SubstrateAPI
	meta    *types.Metadata
	genesis types.Hash
	network uint16
}

// Dial connects to the node and loads runtime metadata.
func Dial(ctx context.Context, url string, network uint16) (*Client, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect to node", err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch metadata", err)
	}
	genesis, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch genesis hash", err)
	}
	return &Client{api: api, meta: meta, genesis: genesis, network: network}, nil
}

func (c *Client) Network() uint16 { return c.network }

// enumArg is implemented by simple unit-variant enums that encode as a
// single index byte.
type enumArg interface {
	EnumIndex() uint8
}

// buildCall recursively turns a Call into a runtime types.Call,
// wrapping Inner calls into the batch argument.
func (c *Client) buildCall(call Call) (types.Call, error) {
	if call.IsBatch() {
		inner := make([]types.Call, 0, len(call.Inner))
		for _, ic := range call.Inner {
			built, err := c.buildCall(ic)
			if err != nil {
				return types.Call{}, err
			}
			inner = append(inner, built)
		}
		return types.NewCall(c.meta, call.Method, inner)
	}

	args := make([]any, 0, len(call.Args))
	for i, raw := range call.Args {
		arg, err := c.encodeArg(raw)
		if err != nil {
			return types.Call{}, clierr.Wrap(clierr.CodeInternal,
				fmt.Sprintf("%s arg %d", call.Method, i), err)
		}
		args = append(args, arg)
	}
	return types.NewCall(c.meta, call.Method, args...)
}

func (c *Client) encodeArg(raw any) (any, error) {
	switch v := raw.(type) {
	case *big.Int:
		return types.NewUCompact(v), nil
	case uint32:
		return types.NewU32(v), nil
	case AccountArg:
		pub, err := accountIDOf(string(v))
		if err != nil {
			return nil, err
		}
		acc, err := types.NewAccountID(pub[:])
		if err != nil {
			return nil, err
		}
		return *acc, nil
	case RoleArg:
		return c.roleOp(v)
	case string:
		if looksLikeAddress(v) {
			return c.multiAddress(v)
		}
		return types.NewBytes([]byte(v)), nil
	case []string:
		addrs := make([]types.MultiAddress, 0, len(v))
		for _, s := range v {
			ma, err := c.multiAddress(s)
			if err != nil {
				return nil, err
			}
			addrs = append(addrs, ma)
		}
		return addrs, nil
	case enumArg:
		return types.NewU8(v.EnumIndex()), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", raw)
	}
}

// AccountArg marks an address that must encode as a bare 32-byte
// account id instead of a MultiAddress lookup.
type AccountArg string

// RoleArg is an optional pool role assignment. Unset encodes as the
// keep-current variant of the runtime's config op.
type RoleArg struct {
	Set     bool
	Address string
}

// roleOp maps a RoleArg to the runtime ConfigOp enum: 0 keeps the
// current value, 1 sets a new account.
type roleOp struct {
	set     bool
	account types.AccountID
}

func (r roleOp) Encode(enc scale.Encoder) error {
	if !r.set {
		return enc.PushByte(0)
	}
	if err := enc.PushByte(1); err != nil {
		return err
	}
	return enc.Encode(r.account)
}

func (c *Client) roleOp(v RoleArg) (roleOp, error) {
	if !v.Set {
		return roleOp{}, nil
	}
	pub, err := accountIDOf(v.Address)
	if err != nil {
		return roleOp{}, err
	}
	acc, err := types.NewAccountID(pub[:])
	if err != nil {
		return roleOp{}, err
	}
	return roleOp{set: true, account: *acc}, nil
}

func (c *Client) multiAddress(address string) (types.MultiAddress, error) {
	pub, err := accountIDOf(address)
	if err != nil {
		return types.MultiAddress{}, err
	}
	return types.NewMultiAddressFromAccountID(pub[:])
}

func accountIDOf(address string) ([32]byte, error) {
	var out [32]byte
	_, pub, err := subkey.SS58Decode(address)
	if err != nil {
		return out, fmt.Errorf("decode address %s: %w", address, err)
	}
	if len(pub) != 32 {
		return out, fmt.Errorf("address %s is not a 32-byte account", address)
	}
	copy(out[:], pub)
	return out, nil
}

func looksLikeAddress(s string) bool {
	if len(s) < 46 || len(s) > 50 {
		return false
	}
	_, pub, err := subkey.SS58Decode(s)
	return err == nil && len(pub) == 32
}

// EstimateFee signs the call with a throwaway key and asks the node
// for its dispatch info. The inclusion fee does not depend on who
// signs, only on the encoded call.
func (c *Client) EstimateFee(ctx context.Context, call Call, origin string) (*big.Int, error) {
	built, err := c.buildCall(call)
	if err != nil {
		return nil, err
	}
	ext := types.NewExtrinsic(built)
	if err := c.signExtrinsic(&ext, signature.TestKeyringPairAlice); err != nil {
		return nil, clierr.Wrap(clierr.CodeEstimation, "sign for estimation", err)
	}
	head, err := c.api.RPC.Chain.GetBlockHashLatest()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch head", err)
	}
	fee, err := c.queryFeeInfo(ext, head)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeEstimation, "query payment info", err)
	}
	return fee, nil
}

// feeAmount decodes the partialFee field of payment_queryInfo, which
// nodes return either as a decimal string or 0x-prefixed hex.
type feeAmount struct {
	Int *big.Int
}

func (f *feeAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return fmt.Errorf("invalid fee value %q", string(data))
	}
	f.Int = v
	return nil
}

type paymentDispatchInfo struct {
	PartialFee feeAmount `json:"partialFee"`
}

// queryFeeInfo issues the payment_queryInfo RPC for the signed
// extrinsic at the given block.
func (c *Client) queryFeeInfo(ext types.Extrinsic, blockHash types.Hash) (*big.Int, error) {
	enc, err := codec.EncodeToHex(ext)
	if err != nil {
		return nil, err
	}
	var info paymentDispatchInfo
	if err := c.api.Client.Call(&info, "payment_queryInfo", enc, blockHash.Hex()); err != nil {
		return nil, err
	}
	if info.PartialFee.Int == nil {
		return new(big.Int), nil
	}
	return info.PartialFee.Int, nil
}

func (c *Client) signExtrinsic(ext *types.Extrinsic, kp signature.KeyringPair) error {
	rv, err := c.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return err
	}
	nonce, err := c.accountNonce(kp.PublicKey)
	if err != nil {
		return err
	}
	opts := types.SignatureOptions{
		BlockHash:          c.genesis,
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        c.genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	return ext.Sign(kp, opts)
}

func (c *Client) accountNonce(pub []byte) (uint32, error) {
	key, err := types.CreateStorageKey(c.meta, "System", "Account", pub)
	if err != nil {
		return 0, err
	}
	var info types.AccountInfo
	ok, err := c.api.RPC.State.GetStorageLatest(key, &info)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return uint32(info.Nonce), nil
}

// SubmitAndWatch signs, broadcasts and streams inclusion progress
// until finalization or a terminal pool status. The returned channel
// is closed when the subscription ends.
func (c *Client) SubmitAndWatch(ctx context.Context, call Call, signer Signer) (<-chan InclusionEvent, error) {
	built, err := c.buildCall(call)
	if err != nil {
		return nil, err
	}
	ext := types.NewExtrinsic(built)
	if err := c.signExtrinsic(&ext, signer.Keyring()); err != nil {
		return nil, clierr.Wrap(clierr.CodeAuth, "sign extrinsic", err)
	}

	txHash, err := extrinsicHash(ext)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "hash extrinsic", err)
	}

	sub, err := c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "submit extrinsic", err)
	}

	out := make(chan InclusionEvent, 8)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				out <- InclusionEvent{Kind: EventDropped, TxHash: txHash, DispatchError: err.Error()}
				return
			case status := <-sub.Chan():
				switch {
				case status.IsBroadcast:
					out <- InclusionEvent{Kind: EventBroadcast, TxHash: txHash}
				case status.IsInBlock:
					out <- InclusionEvent{Kind: EventInBlock, TxHash: txHash, BlockHash: status.AsInBlock.Hex()}
				case status.IsDropped, status.IsUsurped:
					out <- InclusionEvent{Kind: EventDropped, TxHash: txHash}
					return
				case status.IsInvalid:
					out <- InclusionEvent{Kind: EventInvalid, TxHash: txHash}
					return
				case status.IsFinalized:
					out <- c.finalizedEvent(ext, txHash, status.AsFinalized)
					return
				}
			}
		}
	}()
	return out, nil
}

// finalizedEvent fills in block height, the decoded dispatch result
// and the realized fee for the finalized extrinsic.
func (c *Client) finalizedEvent(ext types.Extrinsic, txHash string, blockHash types.Hash) InclusionEvent {
	ev := InclusionEvent{Kind: EventFinalized, TxHash: txHash, BlockHash: blockHash.Hex()}

	if header, err := c.api.RPC.Chain.GetHeader(blockHash); err == nil {
		ev.BlockHeight = uint64(header.Number)
	}
	if fee, err := c.queryFeeInfo(ext, blockHash); err == nil {
		ev.PartialFee = fee
	}
	reason, err := c.dispatchFailure(ext, blockHash)
	ev.DispatchError = dispatchResultText(reason, err)
	return ev
}

// dispatchResultText turns the dispatch lookup into the event's error
// text. A failed lookup must not pass for a clean dispatch: the
// extrinsic may have failed on chain, so the outcome reports the
// verification gap instead of success.
func dispatchResultText(reason string, err error) string {
	if err != nil {
		return "could not verify dispatch result: " + err.Error()
	}
	return reason
}

func extrinsicHash(ext types.Extrinsic) (string, error) {
	enc, err := codec.Encode(ext)
	if err != nil {
		return "", err
	}
	h := blake2b.Sum256(enc)
	return codec.HexEncodeToString(h[:]), nil
}

// decodeStorage scale-decodes a raw storage value into target.
func decodeStorage(raw types.StorageDataRaw, target any) error {
	return scale.NewDecoder(bytes.NewReader(raw)).Decode(target)
}
