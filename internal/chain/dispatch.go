package chain

import (
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

// dispatchFailure inspects the System events of the finalized block
// and returns the decoded failure reason of our extrinsic, or "" when
// it dispatched successfully.
func (c *Client) dispatchFailure(ext types.Extrinsic, blockHash types.Hash) (string, error) {
	index, err := c.extrinsicIndex(ext, blockHash)
	if err != nil {
		return "", err
	}

	key, err := types.CreateStorageKey(c.meta, "System", "Events")
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "build events key", err)
	}
	raw, err := c.api.RPC.State.GetStorageRaw(key, blockHash)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUnavailable, "fetch block events", err)
	}

	var events types.EventRecords
	if err := types.EventRecordsRaw(*raw).DecodeEventRecords(c.meta, &events); err != nil {
		// Runtimes grow event variants faster than static decoders; a
		// decode failure here must not turn a finalized extrinsic into
		// a reported error.
		return "", nil
	}

	for _, failed := range events.System_ExtrinsicFailed {
		if !failed.Phase.IsApplyExtrinsic || failed.Phase.AsApplyExtrinsic != uint32(index) {
			continue
		}
		return c.describeDispatchError(failed.DispatchError), nil
	}
	return "", nil
}

func (c *Client) extrinsicIndex(ext types.Extrinsic, blockHash types.Hash) (int, error) {
	block, err := c.api.RPC.Chain.GetBlock(blockHash)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUnavailable, "fetch finalized block", err)
	}
	want, err := codec.Encode(ext)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeInternal, "encode extrinsic", err)
	}
	for i, blockExt := range block.Block.Extrinsics {
		enc, err := codec.Encode(blockExt)
		if err != nil {
			continue
		}
		if bytes.Equal(enc, want) {
			return i, nil
		}
	}
	return 0, clierr.New(clierr.CodeInternal, "extrinsic not found in finalized block")
}

func (c *Client) describeDispatchError(de types.DispatchError) string {
	switch {
	case de.IsModule:
		return c.moduleErrorName(uint8(de.ModuleError.Index), uint8(de.ModuleError.Error[0]))
	case de.IsBadOrigin:
		return "bad origin"
	case de.IsCannotLookup:
		return "account lookup failed"
	case de.IsToken:
		return "token error"
	case de.IsArithmetic:
		return "arithmetic error"
	default:
		return "dispatch failed"
	}
}

// moduleErrorName resolves the pallet and error names from metadata so
// failures read like "Staking.InsufficientBond" instead of raw indexes.
func (c *Client) moduleErrorName(palletIndex uint8, errorIndex uint8) string {
	fallback := fmt.Sprintf("module %d error %d", palletIndex, errorIndex)
	if c.meta.Version != 14 {
		return fallback
	}
	for _, p := range c.meta.AsMetadataV14.Pallets {
		if uint8(p.Index) != palletIndex {
			continue
		}
		if !p.HasErrors {
			return fallback
		}
		def, ok := c.meta.AsMetadataV14.EfficientLookup[p.Errors.Type.Int64()]
		if !ok || !def.Def.IsVariant {
			return fallback
		}
		for _, variant := range def.Def.Variant.Variants {
			if uint8(variant.Index) == errorIndex {
				return fmt.Sprintf("%s.%s", p.Name, variant.Name)
			}
		}
		return fallback
	}
	return fallback
}
