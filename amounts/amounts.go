// Package amounts computes contribution amounts from vote weights and renders
// token amounts for display.
package amounts

import (
	"math/big"
	"strings"
)

// Locale controls digit grouping and the decimal mark.
type Locale struct {
	GroupSeparator   string
	DecimalSeparator string
	GroupSize        int
}

// DefaultLocale groups thousands with "," and uses "." as the decimal mark.
var DefaultLocale = Locale{
	GroupSeparator:   ",",
	DecimalSeparator: ".",
	GroupSize:        3,
}

// VoiceCreditAmount returns weight² × factor, the token cost of a vote weight.
// A nil weight counts as zero and a nil factor as one.
func VoiceCreditAmount(weight, factor *big.Int) *big.Int {
	amount := new(big.Int)
	if weight == nil {
		return amount
	}
	amount.Mul(weight, weight)
	if factor != nil {
		amount.Mul(amount, factor)
	}
	return amount
}

// FormatAmount converts value from its smallest unit using decimals, rounds
// half up to at most maxDecimals fraction digits and drops trailing zeros.
// A nil locale selects DefaultLocale.
func FormatAmount(value *big.Int, decimals int, locale *Locale, maxDecimals int) string {
	if locale == nil {
		locale = &DefaultLocale
	}
	if value == nil {
		value = new(big.Int)
	}
	if decimals < 0 {
		decimals = 0
	}
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	abs := new(big.Int).Abs(value)

	// scaled is value expressed in units of 10^-maxDecimals tokens.
	scaled := new(big.Int)
	if decimals <= maxDecimals {
		scaled.Mul(abs, pow10(maxDecimals-decimals))
	} else {
		div := pow10(decimals - maxDecimals)
		rem := new(big.Int)
		scaled.QuoRem(abs, div, rem)
		if rem.Lsh(rem, 1).Cmp(div) >= 0 {
			scaled.Add(scaled, big.NewInt(1))
		}
	}

	intPart, fracPart := new(big.Int).QuoRem(scaled, pow10(maxDecimals), new(big.Int))

	var b strings.Builder
	if value.Sign() < 0 && scaled.Sign() != 0 {
		b.WriteByte('-')
	}
	b.WriteString(group(intPart.String(), locale))

	if maxDecimals > 0 && fracPart.Sign() != 0 {
		frac := fracPart.String()
		frac = strings.Repeat("0", maxDecimals-len(frac)) + frac
		b.WriteString(locale.DecimalSeparator)
		b.WriteString(strings.TrimRight(frac, "0"))
	}
	return b.String()
}

func group(digits string, locale *Locale) string {
	size := locale.GroupSize
	if size <= 0 || locale.GroupSeparator == "" || len(digits) <= size {
		return digits
	}

	var b strings.Builder
	head := len(digits) % size
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += size {
		if b.Len() > 0 {
			b.WriteString(locale.GroupSeparator)
		}
		b.WriteString(digits[i : i+size])
	}
	return b.String()
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
