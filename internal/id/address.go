package id

import (
	"fmt"
	"strings"

	"github.com/vedhavyas/go-subkey/v2"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

// ParseAddress validates an SS58 address and returns its canonical form and
// 32-byte account id.
func ParseAddress(input string) (string, []byte, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return "", nil, clierr.New(clierr.CodeUsage, "address is required")
	}
	network, pubKey, err := subkey.SS58Decode(clean)
	if err != nil {
		return "", nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid ss58 address %q", clean), err)
	}
	if len(pubKey) != 32 {
		return "", nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("address %q does not decode to a 32-byte account", clean))
	}
	return subkey.SS58Encode(pubKey, network), pubKey, nil
}

// ParseAddressList splits comma-separated SS58 addresses, validates each and
// drops duplicates while preserving order.
func ParseAddressList(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			norm := strings.TrimSpace(part)
			if norm == "" {
				continue
			}
			canonical, _, err := ParseAddress(norm)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[canonical]; ok {
				continue
			}
			seen[canonical] = struct{}{}
			out = append(out, canonical)
		}
	}
	return out, nil
}

// SameAddressSet reports whether two address lists contain exactly the same
// members, ignoring order.
func SameAddressSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, addr := range a {
		set[addr] = struct{}{}
	}
	for _, addr := range b {
		if _, ok := set[addr]; !ok {
			return false
		}
	}
	return true
}
