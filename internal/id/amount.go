package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// NormalizeAmount accepts exactly one of a base-unit integer string or a
// decimal string and returns both representations for the given token
// decimals.
func NormalizeAmount(baseUnits, decimal string, decimals int) (string, string, error) {
	if baseUnits != "" && decimal != "" {
		return "", "", clierr.New(clierr.CodeUsage, "use either --amount or --amount-decimal, not both")
	}
	if baseUnits == "" && decimal == "" {
		return "", "", clierr.New(clierr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return "", "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}

	if baseUnits != "" {
		if strings.HasPrefix(baseUnits, "-") {
			return "", "", clierr.New(clierr.CodeUsage, "--amount must be non-negative")
		}
		if _, ok := new(big.Int).SetString(baseUnits, 10); !ok {
			return "", "", clierr.New(clierr.CodeUsage, "--amount must be a positive integer string")
		}
		return baseUnits, FormatDecimal(baseUnits, decimals), nil
	}

	if !decimalPattern.MatchString(decimal) {
		return "", "", clierr.New(clierr.CodeUsage, "--amount-decimal must be in decimal form like 1.23")
	}
	base, err := decimalToBaseUnits(decimal, decimals)
	if err != nil {
		return "", "", err
	}
	return base, normalizeDecimal(decimal), nil
}

// ParseBaseUnits parses a non-negative base-unit integer string.
func ParseBaseUnits(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, "invalid base-units integer")
	}
	if value.Sign() < 0 {
		return nil, clierr.New(clierr.CodeUsage, "amount must be non-negative")
	}
	return value, nil
}

// FormatDecimal converts a base-unit integer string into a decimal string.
func FormatDecimal(baseUnits string, decimals int) string {
	n := new(big.Int)
	n.SetString(baseUnits, 10)
	if decimals == 0 {
		return n.String()
	}

	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := s[len(s)-decimals:]
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// FormatBalance renders a base-unit amount with the chain token symbol.
func FormatBalance(amount *big.Int, decimals int, symbol string) string {
	if amount == nil {
		return "-"
	}
	v := FormatDecimal(amount.String(), decimals)
	if strings.TrimSpace(symbol) == "" {
		return v
	}
	return fmt.Sprintf("%s %s", v, symbol)
}

func decimalToBaseUnits(decimal string, decimals int) (string, error) {
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := intPart + fracPart
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", clierr.New(clierr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}

func normalizeDecimal(v string) string {
	if !strings.Contains(v, ".") {
		out := strings.TrimLeft(v, "0")
		if out == "" {
			return "0"
		}
		return out
	}
	parts := strings.SplitN(v, ".", 2)
	intPart := strings.TrimLeft(parts[0], "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart := strings.TrimRight(parts[1], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}
