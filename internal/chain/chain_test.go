package chain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

func TestPoolAccountIDDerivation(t *testing.T) {
	acc := poolAccountID(1, poolAccountBonded)
	if len(acc) != 32 {
		t.Fatalf("expected 32-byte account, got %d", len(acc))
	}
	if string(acc[:4]) != "modl" || string(acc[4:12]) != "py/nopls" {
		t.Fatalf("unexpected pallet prefix: %x", acc[:12])
	}
	if acc[12] != 0 {
		t.Fatalf("bonded account type byte should be 0, got %d", acc[12])
	}
	if acc[13] != 1 || acc[14] != 0 || acc[15] != 0 || acc[16] != 0 {
		t.Fatalf("pool id should be little-endian encoded: %x", acc[13:17])
	}
	for _, b := range acc[17:] {
		if b != 0 {
			t.Fatalf("tail must be zero padded: %x", acc[17:])
		}
	}

	reward := poolAccountID(1, poolAccountReward)
	if reward[12] != 1 {
		t.Fatalf("reward account type byte should be 1, got %d", reward[12])
	}
	if bytes.Equal(acc, reward) {
		t.Fatalf("bonded and reward accounts must differ")
	}
}

func TestLooksLikeAddress(t *testing.T) {
	valid := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	if !looksLikeAddress(valid) {
		t.Fatalf("expected %s to be recognized as an address", valid)
	}
	for _, s := range []string{"", "pool metadata label", "0x1234"} {
		if looksLikeAddress(s) {
			t.Fatalf("%q should not look like an address", s)
		}
	}
}

func TestRoleOpEncoding(t *testing.T) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := (roleOp{}).Encode(*enc); err != nil {
		t.Fatalf("encode unset role: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0}) {
		t.Fatalf("unset role should encode as a single noop byte, got %x", buf.Bytes())
	}

	acc, err := types.NewAccountID(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewAccountID failed: %v", err)
	}
	buf.Reset()
	enc = scale.NewEncoder(&buf)
	if err := (roleOp{set: true, account: *acc}).Encode(*enc); err != nil {
		t.Fatalf("encode set role: %v", err)
	}
	if buf.Len() != 33 || buf.Bytes()[0] != 1 {
		t.Fatalf("set role should encode as index byte plus account, got %x", buf.Bytes())
	}
}

func TestOptionDecode(t *testing.T) {
	var none option[types.U32]
	dec := scale.NewDecoder(bytes.NewReader([]byte{0}))
	if err := none.Decode(*dec); err != nil {
		t.Fatalf("decode none: %v", err)
	}
	if none.HasValue {
		t.Fatalf("expected no value")
	}

	var some option[types.U32]
	dec = scale.NewDecoder(bytes.NewReader([]byte{1, 42, 0, 0, 0}))
	if err := some.Decode(*dec); err != nil {
		t.Fatalf("decode some: %v", err)
	}
	if !some.HasValue || uint32(some.Value) != 42 {
		t.Fatalf("expected value 42, got %+v", some)
	}
}

func TestDispatchResultText(t *testing.T) {
	if got := dispatchResultText("", nil); got != "" {
		t.Fatalf("clean dispatch should report no error, got %q", got)
	}
	if got := dispatchResultText("Staking.InsufficientBond", nil); got != "Staking.InsufficientBond" {
		t.Fatalf("dispatch failure reason should pass through, got %q", got)
	}
	got := dispatchResultText("", errors.New("fetch block events: node gone"))
	want := "could not verify dispatch result: fetch block events: node gone"
	if got != want {
		t.Fatalf("lookup failure must not pass for success: got %q, want %q", got, want)
	}
}

func TestFeeAmountUnmarshal(t *testing.T) {
	var dec feeAmount
	if err := dec.UnmarshalJSON([]byte(`"1500000000"`)); err != nil {
		t.Fatalf("decimal fee: %v", err)
	}
	if dec.Int.String() != "1500000000" {
		t.Fatalf("expected 1500000000, got %s", dec.Int)
	}

	var hex feeAmount
	if err := hex.UnmarshalJSON([]byte(`"0x59682f00"`)); err != nil {
		t.Fatalf("hex fee: %v", err)
	}
	if hex.Int.String() != "1500000000" {
		t.Fatalf("expected 1500000000, got %s", hex.Int)
	}

	var bad feeAmount
	if err := bad.UnmarshalJSON([]byte(`"not-a-fee"`)); err == nil {
		t.Fatalf("expected error for malformed fee")
	}
}

func TestPoolStateName(t *testing.T) {
	if poolStateName(0) != "open" || poolStateName(1) != "blocked" || poolStateName(2) != "destroying" {
		t.Fatalf("unexpected pool state names")
	}
}
