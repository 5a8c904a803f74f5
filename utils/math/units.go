// Package math holds the amount arithmetic shared by the quote and
// ladder layers: decimal normalization between tokens of different
// precision and the sanity-ratio bounds on quoted outputs.
package math

import (
	"math/big"
)

// NativeDecimals is the precision of the chain's native currency.
const NativeDecimals = 18

var ten = big.NewInt(10)

// Pow10 returns 10^n as a big.Int.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(n)), nil)
}

// Scale converts a whole-unit amount into base units of a token with
// the given decimal precision (100 with 6 decimals -> 100_000_000).
func Scale(wholeUnits int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(wholeUnits), Pow10(decimals))
}

// ToFloat renders a base-unit amount as whole units. Only used for
// reporting and threshold comparison, never for on-chain arithmetic.
func ToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	f.Quo(f, new(big.Float).SetInt(Pow10(decimals)))
	out, _ := f.Float64()
	return out
}

// WeiToFloat renders a native-currency amount in whole units.
func WeiToFloat(wei *big.Int) float64 {
	return ToFloat(wei, NativeDecimals)
}

// ExceedsRatio reports whether out/in > ratio after normalizing both
// amounts to whole units. Exact integer comparison:
// out * 10^inDec > ratio * in * 10^outDec.
func ExceedsRatio(out *big.Int, outDec uint8, in *big.Int, inDec uint8, ratio int64) bool {
	if out == nil || in == nil || in.Sign() == 0 {
		return false
	}
	lhs := new(big.Int).Mul(out, Pow10(inDec))
	rhs := new(big.Int).Mul(in, Pow10(outDec))
	rhs.Mul(rhs, big.NewInt(ratio))
	return lhs.Cmp(rhs) > 0
}

// MulScalar returns amount * k without mutating amount.
func MulScalar(amount *big.Int, k int64) *big.Int {
	return new(big.Int).Mul(amount, big.NewInt(k))
}
