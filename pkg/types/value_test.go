package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/types"
)

func TestCompareDecimal_ArbitraryPrecision(t *testing.T) {
	// 0.1 + 0.2 must compare equal to 0.3 exactly, unlike float64 arithmetic.
	sum, err := types.AddDecimal("0.1", "0.2")
	require.NoError(t, err)
	require.Equal(t, 0, types.CompareDecimal(sum, "0.3"))
}

func TestValue_CompareOrdersNumerically(t *testing.T) {
	require.Equal(t, -1, types.N("9").Compare(types.N("10")))
	require.Equal(t, 1, types.N("10").Compare(types.N("9")))
	require.Equal(t, 0, types.N("10.0").Compare(types.N("10")))
}

func TestValue_Equal(t *testing.T) {
	require.True(t, types.S("a").Equal(types.S("a")))
	require.False(t, types.S("a").Equal(types.S("b")))
	require.True(t, types.Bool(true).Equal(types.Bool(true)))
}

func TestEncodeDecodeIndexPK_RoundTrips(t *testing.T) {
	encoded := types.EncodeIndexPK("by-status", []byte("c1"), []byte("open"))
	name, base, sk, ok := types.DecodeIndexPK(encoded)
	require.True(t, ok)
	require.Equal(t, "by-status", name)
	require.Equal(t, []byte("c1"), base)
	require.Equal(t, []byte("open"), sk)
}

func TestStripe_IsStableForSameKey(t *testing.T) {
	a := types.Stripe([]byte("customer-42"))
	b := types.Stripe([]byte("customer-42"))
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 256)
}
