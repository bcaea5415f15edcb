package engine

import (
	"math/big"
	"testing"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

const (
	testSigner = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testTarget = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func mustResolve(t *testing.T, kind ActionKind, ctx ActionContext) []CallDescriptor {
	t.Helper()
	descs, err := Resolve(kind, ctx)
	if err != nil {
		t.Fatalf("Resolve(%s) failed: %v", kind, err)
	}
	return descs
}

func assertMethods(t *testing.T, descs []CallDescriptor, want ...string) {
	t.Helper()
	got := Methods(descs)
	if len(got) != len(want) {
		t.Fatalf("expected %d descriptors %v, got %v", len(want), want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descriptor %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestResolveBondCarriesAmountAndPayee(t *testing.T) {
	descs := mustResolve(t, ActionBond, ActionContext{
		Signer: testSigner,
		Amount: big.NewInt(1_500_000_000_000),
		Payee:  PayeeStash,
	})
	assertMethods(t, descs, MethodBond)
	if descs[0].Args[0].Value.(*big.Int).Int64() != 1_500_000_000_000 {
		t.Fatalf("unexpected bond amount: %v", descs[0].Args[0].Value)
	}
	if descs[0].Args[1].Value.(Payee) != PayeeStash {
		t.Fatalf("unexpected payee: %v", descs[0].Args[1].Value)
	}
}

func TestResolveBondRequiresPositiveAmount(t *testing.T) {
	_, err := Resolve(ActionBond, ActionContext{Signer: testSigner})
	if code := clierr.ExitCode(err); code != int(clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v (code %d)", err, code)
	}
}

func TestResolvePartialUnbondIsSingleCall(t *testing.T) {
	descs := mustResolve(t, ActionUnbond, ActionContext{
		Signer:             testSigner,
		Amount:             big.NewInt(400),
		BondedActive:       big.NewInt(1000),
		ActiveTargets:      []string{testTarget},
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodUnbond)
}

func TestResolveFullUnbondPrependsChill(t *testing.T) {
	descs := mustResolve(t, ActionUnbond, ActionContext{
		Signer:             testSigner,
		Amount:             big.NewInt(1000),
		BondedActive:       big.NewInt(1000),
		ActiveTargets:      []string{testTarget},
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodChill, MethodUnbond)
}

func TestResolveFullUnbondWithoutNominationsSkipsChill(t *testing.T) {
	descs := mustResolve(t, ActionUnbond, ActionContext{
		Signer:             testSigner,
		Amount:             big.NewInt(1000),
		BondedActive:       big.NewInt(1000),
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodUnbond)
}

func TestResolveUnbondAllUsesBondedActive(t *testing.T) {
	descs := mustResolve(t, ActionUnbondAll, ActionContext{
		Signer:             testSigner,
		BondedActive:       big.NewInt(777),
		ActiveTargets:      []string{testTarget},
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodChill, MethodUnbond)
	if descs[1].Args[0].Value.(*big.Int).Int64() != 777 {
		t.Fatalf("expected full bonded amount, got %v", descs[1].Args[0].Value)
	}
}

func TestResolveUnbondRejectsAmountAboveBonded(t *testing.T) {
	_, err := Resolve(ActionUnbond, ActionContext{
		Signer:       testSigner,
		Amount:       big.NewInt(2000),
		BondedActive: big.NewInt(1000),
	})
	if code := clierr.ExitCode(err); code != int(clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestResolveUnbondFlushesFullUnlockingSlots(t *testing.T) {
	descs := mustResolve(t, ActionUnbond, ActionContext{
		Signer:             testSigner,
		Amount:             big.NewInt(100),
		BondedActive:       big.NewInt(1000),
		UnlockingChunks:    32,
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodWithdrawUnbonded, MethodUnbond)
	if descs[0].Args[0].Placeholder != PlaceholderSlashingSpans {
		t.Fatalf("expected late-bound slashing spans argument")
	}
	if descs[0].Args[0].Subject != testSigner {
		t.Fatalf("expected spans placeholder for signer, got %s", descs[0].Args[0].Subject)
	}
}

func TestResolveRedeemUsesLateBoundSpans(t *testing.T) {
	descs := mustResolve(t, ActionRedeem, ActionContext{
		Signer:             testSigner,
		UnlockingChunks:    3,
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodWithdrawUnbonded)
	if descs[0].Args[0].Placeholder != PlaceholderSlashingSpans {
		t.Fatalf("expected late-bound slashing spans argument")
	}
}

func TestResolveRedeemAtChunkLimitPrependsFlush(t *testing.T) {
	descs := mustResolve(t, ActionRedeem, ActionContext{
		Signer:             testSigner,
		UnlockingChunks:    32,
		MaxUnlockingChunks: 32,
	})
	assertMethods(t, descs, MethodWithdrawUnbonded, MethodWithdrawUnbonded)
	for i, d := range descs {
		if d.Args[0].Placeholder != PlaceholderSlashingSpans {
			t.Fatalf("descriptor %d: expected late-bound spans", i)
		}
	}
}

func TestResolveClaimPrefersPool(t *testing.T) {
	descs := mustResolve(t, ActionClaim, ActionContext{
		Signer:  testSigner,
		HasPool: true,
		PoolID:  7,
	})
	assertMethods(t, descs, MethodPoolClaimPayout)
}

func TestResolveClaimSoloRequiresStashAndEra(t *testing.T) {
	_, err := Resolve(ActionClaim, ActionContext{Signer: testSigner, ValidatorStash: testTarget})
	if code := clierr.ExitCode(err); code != int(clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}

	descs := mustResolve(t, ActionClaim, ActionContext{
		Signer:         testSigner,
		ValidatorStash: testTarget,
		Era:            1203,
		HasEra:         true,
	})
	assertMethods(t, descs, MethodPayoutStakers)
	if descs[0].Args[1].Value.(uint32) != 1203 {
		t.Fatalf("unexpected era: %v", descs[0].Args[1].Value)
	}
}

func TestResolveCreatePoolAlwaysSetsMetadata(t *testing.T) {
	descs := mustResolve(t, ActionCreatePool, ActionContext{
		Signer:  testSigner,
		Amount:  big.NewInt(5000),
		HasPool: true,
		PoolID:  42,
	})
	assertMethods(t, descs, MethodPoolCreate, MethodPoolSetMetadata)
	// Missing roles default to the signer.
	for i := 1; i <= 3; i++ {
		if descs[0].Args[i].Value.(string) != testSigner {
			t.Fatalf("role arg %d should default to signer", i)
		}
	}
}

func TestResolveEditPoolRequiresSomething(t *testing.T) {
	_, err := Resolve(ActionEditPool, ActionContext{Signer: testSigner, HasPool: true, PoolID: 3})
	if code := clierr.ExitCode(err); code != int(clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestResolveEditPoolEmitsOnlyRequestedCalls(t *testing.T) {
	descs := mustResolve(t, ActionEditPool, ActionContext{
		Signer:       testSigner,
		HasPool:      true,
		PoolID:       3,
		PoolMetadata: "westend ops",
	})
	assertMethods(t, descs, MethodPoolSetMetadata)

	descs = mustResolve(t, ActionEditPool, ActionContext{
		Signer:       testSigner,
		HasPool:      true,
		PoolID:       3,
		PoolMetadata: "westend ops",
		Roles:        PoolRoles{Root: testTarget},
	})
	assertMethods(t, descs, MethodPoolSetMetadata, MethodPoolUpdateRoles)
}

func TestResolveDestroyingPoolChillsFirst(t *testing.T) {
	descs := mustResolve(t, ActionSetPoolState, ActionContext{
		Signer:         testSigner,
		HasPool:        true,
		PoolID:         9,
		HasState:       true,
		TargetState:    PoolDestroying,
		PoolNominating: true,
	})
	assertMethods(t, descs, MethodPoolChill, MethodPoolSetState)

	descs = mustResolve(t, ActionSetPoolState, ActionContext{
		Signer:      testSigner,
		HasPool:     true,
		PoolID:      9,
		HasState:    true,
		TargetState: PoolBlocked,
	})
	assertMethods(t, descs, MethodPoolSetState)
}

func TestResolveKickAllUnbondsEachMemberExceptSigner(t *testing.T) {
	descs := mustResolve(t, ActionKickAll, ActionContext{
		Signer:  testSigner,
		HasPool: true,
		PoolID:  5,
		PoolMembers: []PoolMember{
			{Address: testSigner, Points: big.NewInt(100)},
			{Address: testTarget, Points: big.NewInt(40)},
			{Address: "5DAAnrj7VHTznn2AWBemMuyBwZWs6FNFjdyVXUeYum3PTXFy", Points: big.NewInt(60)},
			{Address: "5HGjWAeFDfFCWPsjFQdVV2Msvz2XtMktvgocEZcCj68kUMaw", Points: big.NewInt(0)},
		},
	})
	assertMethods(t, descs, MethodPoolUnbond, MethodPoolUnbond)
	if descs[0].Args[0].Value.(string) != testTarget {
		t.Fatalf("expected member order preserved, got %v", descs[0].Args[0].Value)
	}
}
