package numeric

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestSqrtFloor(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{2_000_000, 1414},
		{1_999_396, 1414}, // 1414^2 exactly
		{1_999_395, 1413},
	}
	for _, c := range cases {
		got := SqrtFloor(sdkmath.NewInt(c.in))
		require.Equal(t, c.want, got.Int64(), "sqrt(%d)", c.in)
	}
}

func TestBpsOf(t *testing.T) {
	// 30 bps of 10000 is 30; of 100 it truncates to 0.
	got, err := BpsOf(sdkmath.NewInt(10000), 30)
	require.NoError(t, err)
	require.Equal(t, int64(30), got.Int64())

	got, err = BpsOf(sdkmath.NewInt(100), 30)
	require.NoError(t, err)
	require.True(t, got.IsZero())

	got, err = BpsOf(sdkmath.NewInt(12500), 8)
	require.NoError(t, err)
	require.Equal(t, int64(10), got.Int64())
}

func TestMulDivRejectsBadDenominator(t *testing.T) {
	_, err := MulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	require.ErrorIs(t, err, ErrOverflow)
}

func TestSafeMulOverflow(t *testing.T) {
	huge := sdkmath.NewIntWithDecimal(1, 70)
	_, err := SafeMul(huge, huge)
	require.ErrorIs(t, err, ErrOverflow)

	// Within range stays exact.
	got, err := SafeMul(sdkmath.NewInt(1000), sdkmath.NewInt(2000))
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), got.Int64())
}
