package engine

import (
	"math/big"
	"testing"
)

func TestComposeSingleDescriptorIsNotBatched(t *testing.T) {
	call, err := Compose([]CallDescriptor{
		descriptor(MethodUnbond, NewArg(big.NewInt(500))),
	}, LateBindings{})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if call.IsBatch() {
		t.Fatalf("single descriptor should not be wrapped in a batch")
	}
	if call.Method != MethodUnbond {
		t.Fatalf("unexpected method: %s", call.Method)
	}
}

func TestComposeWrapsMultipleDescriptorsInOrder(t *testing.T) {
	call, err := Compose([]CallDescriptor{
		descriptor(MethodChill),
		descriptor(MethodUnbond, NewArg(big.NewInt(500))),
	}, LateBindings{})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !call.IsBatch() || call.Method != MethodBatchAll {
		t.Fatalf("expected batch_all wrapper, got %+v", call)
	}
	if call.Inner[0].Method != MethodChill || call.Inner[1].Method != MethodUnbond {
		t.Fatalf("batch order not preserved: %s, %s", call.Inner[0].Method, call.Inner[1].Method)
	}
}

func TestComposeBindsSlashingSpans(t *testing.T) {
	call, err := Compose([]CallDescriptor{
		descriptor(MethodWithdrawUnbonded, SlashingSpansArg(testSigner)),
	}, LateBindings{SlashingSpans: map[string]uint32{testSigner: 4}})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if got := call.Args[0].(uint32); got != 4 {
		t.Fatalf("expected bound span count 4, got %d", got)
	}
}

func TestComposeFailsOnUnboundPlaceholder(t *testing.T) {
	_, err := Compose([]CallDescriptor{
		descriptor(MethodWithdrawUnbonded, SlashingSpansArg(testSigner)),
	}, LateBindings{})
	if err == nil {
		t.Fatalf("expected error for unbound placeholder")
	}
}

func TestComposeForEstimateZeroesPlaceholders(t *testing.T) {
	call, err := composeForEstimate(descriptor(MethodWithdrawUnbonded, SlashingSpansArg(testSigner)))
	if err != nil {
		t.Fatalf("composeForEstimate failed: %v", err)
	}
	if got := call.Args[0].(uint32); got != 0 {
		t.Fatalf("expected zero placeholder for estimation, got %d", got)
	}
}
