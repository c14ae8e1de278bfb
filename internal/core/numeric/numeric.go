// Package numeric wraps the checked integer arithmetic every engine
// computes with. All quantities are cosmossdk.io/math Ints, which cap
// at 256 bits; the Safe* helpers convert the library's overflow panics
// into ErrOverflow so callers can reject an operation before any state
// is touched.
package numeric

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// ErrOverflow is returned when a checked operation would exceed the
// 256-bit integer range.
var ErrOverflow = errors.New("arithmetic overflow")

// BpsDenom is the basis-point denominator: fees are integers out of 10000.
const BpsDenom = 10000

// Scale is the 1e18 fixed-point scale used by the reward accumulator
// and the price accumulators.
var Scale = sdkmath.NewIntWithDecimal(1, 18)

// SafeAdd returns a+b, or ErrOverflow.
func SafeAdd(a, b sdkmath.Int) (res sdkmath.Int, err error) {
	defer recoverOverflow(&err, "add", a, b)
	return a.Add(b), nil
}

// SafeSub returns a-b, or ErrOverflow.
func SafeSub(a, b sdkmath.Int) (res sdkmath.Int, err error) {
	defer recoverOverflow(&err, "sub", a, b)
	return a.Sub(b), nil
}

// SafeMul returns a*b, or ErrOverflow.
func SafeMul(a, b sdkmath.Int) (res sdkmath.Int, err error) {
	defer recoverOverflow(&err, "mul", a, b)
	return a.Mul(b), nil
}

// MulDiv returns floor(a*b/den). The full product is checked before the
// division; den must be positive.
func MulDiv(a, b, den sdkmath.Int) (sdkmath.Int, error) {
	if !den.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: division by non-positive %s", ErrOverflow, den)
	}
	prod, err := SafeMul(a, b)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return prod.Quo(den), nil
}

// BpsOf returns floor(amount*bps/10000).
func BpsOf(amount sdkmath.Int, bps uint32) (sdkmath.Int, error) {
	return MulDiv(amount, sdkmath.NewInt(int64(bps)), sdkmath.NewInt(BpsDenom))
}

// SqrtFloor returns the exact integer square root floor(sqrt(x)).
// x must be non-negative.
func SqrtFloor(x sdkmath.Int) sdkmath.Int {
	if x.Sign() <= 0 {
		return sdkmath.ZeroInt()
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(x.BigInt()))
}

func recoverOverflow(err *error, op string, a, b sdkmath.Int) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %s %s %s", ErrOverflow, a, op, b)
	}
}
