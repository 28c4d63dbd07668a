package random

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMixSeedAvalanche(t *testing.T) {
	// 相邻输入的输出应有大量位不同
	for x := uint64(0); x < 64; x++ {
		diff := bits.OnesCount64(mixSeed(x) ^ mixSeed(x+1))
		require.Greater(t, diff, 10, "x=%d", x)
	}
}

func TestTopUpSeedDependsOnFilled(t *testing.T) {
	seed := int64(42)
	require.NotEqual(t, topUpSeed(&seed, 10), topUpSeed(&seed, 11))
	require.Equal(t, topUpSeed(&seed, 10), topUpSeed(&seed, 10))
}
