package engine

// Runtime call names emitted by the resolver.
const (
	MethodBond             = "Staking.bond"
	MethodBondExtra        = "Staking.bond_extra"
	MethodUnbond           = "Staking.unbond"
	MethodChill            = "Staking.chill"
	MethodNominate         = "Staking.nominate"
	MethodWithdrawUnbonded = "Staking.withdraw_unbonded"
	MethodPayoutStakers    = "Staking.payout_stakers"

	MethodPoolJoin        = "NominationPools.join"
	MethodPoolCreate      = "NominationPools.create"
	MethodPoolSetMetadata = "NominationPools.set_metadata"
	MethodPoolUpdateRoles = "NominationPools.update_roles"
	MethodPoolSetState    = "NominationPools.set_state"
	MethodPoolChill       = "NominationPools.chill"
	MethodPoolUnbond      = "NominationPools.unbond"
	MethodPoolClaimPayout = "NominationPools.claim_payout"

	MethodBatchAll = "Utility.batch_all"
)

// PlaceholderKind marks an argument whose value is only known at
// submission time.
type PlaceholderKind int

const (
	PlaceholderNone PlaceholderKind = iota
	// PlaceholderSlashingSpans is bound to the on-chain slashing span
	// count of the named address just before signing.
	PlaceholderSlashingSpans
)

// Arg is a single call argument: either a concrete value or a
// placeholder resolved late.
type Arg struct {
	Value       any
	Placeholder PlaceholderKind
	Subject     string
}

func NewArg(v any) Arg {
	return Arg{Value: v}
}

func SlashingSpansArg(address string) Arg {
	return Arg{Placeholder: PlaceholderSlashingSpans, Subject: address}
}

// CallDescriptor is one runtime call the resolver decided on, by
// "Pallet.function" name with ordered arguments.
type CallDescriptor struct {
	Method string
	Args   []Arg
}

func descriptor(method string, args ...Arg) CallDescriptor {
	return CallDescriptor{Method: method, Args: args}
}

// Methods lists descriptor methods in order, for status surfaces and
// fee breakdowns.
func Methods(descs []CallDescriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Method
	}
	return out
}
