package random_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/quantpricing/pkg/random"
)

func TestUniformDeterministicAcrossWorkers(t *testing.T) {
	const n = 100_003
	seed := random.Seed(1233)

	base, err := random.New(random.WithWorkers(1)).Uniform(n, seed)
	require.NoError(t, err)
	require.Len(t, base, n)

	for _, workers := range []int{2, 4, 7, 32} {
		got, err := random.New(random.WithWorkers(workers)).Uniform(n, seed)
		require.NoError(t, err)
		require.Equal(t, base, got, "workers=%d", workers)
	}

	again, err := random.New().Uniform(n, seed)
	require.NoError(t, err)
	require.Equal(t, base, again)
}

func TestUniformRange(t *testing.T) {
	for _, n := range []int{1, 999, 1000, 1014, 50_000} {
		u, err := random.New().Uniform(n, random.Seed(int64(n)))
		require.NoError(t, err)
		require.Len(t, u, n)
		for i, v := range u {
			require.True(t, v >= 0 && v < 1, "u[%d]=%v", i, v)
		}
	}
}

func TestUniformTailFilled(t *testing.T) {
	// 最后一个切片吸收余数，尾部不能残留零值
	const n = 1000*15 + 14
	u, err := random.New().Uniform(n, random.Seed(7))
	require.NoError(t, err)
	for i := n - 20; i < n; i++ {
		assert.NotZero(t, u[i], "index %d", i)
	}
}

func TestUniformSeedsDiffer(t *testing.T) {
	e := random.New()
	a, err := e.Uniform(2000, random.Seed(1))
	require.NoError(t, err)
	b, err := e.Uniform(2000, random.Seed(2))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestUniformUnseeded(t *testing.T) {
	u, err := random.New().Uniform(10, nil)
	require.NoError(t, err)
	require.Len(t, u, 10)
}

func TestInvalidQuantity(t *testing.T) {
	e := random.New()
	_, err := e.Uniform(-1, nil)
	require.ErrorIs(t, err, random.ErrInvalidQuantity)
	_, err = e.Normal(-5, nil, random.BoxMuller)
	require.ErrorIs(t, err, random.ErrInvalidQuantity)
}

func TestUnknownMethod(t *testing.T) {
	_, err := random.New().Normal(10, random.Seed(1), random.Method(42))
	require.ErrorIs(t, err, random.ErrUnknownMethod)

	_, err = random.ParseMethod("ziggurat")
	require.ErrorIs(t, err, random.ErrUnknownMethod)

	m, err := random.ParseMethod("polar")
	require.NoError(t, err)
	require.Equal(t, random.PolarRejection, m)
	require.Equal(t, "polar", m.String())
}

func TestNormalMoments(t *testing.T) {
	const n = 200_000
	for _, method := range []random.Method{random.BoxMuller, random.PolarRejection} {
		t.Run(method.String(), func(t *testing.T) {
			z, err := random.New().Normal(n, random.Seed(1233), method)
			require.NoError(t, err)
			require.Len(t, z, n)

			mean, variance := stat.MeanVariance(z, nil)
			assert.Less(t, math.Abs(mean), 0.01)
			assert.InDelta(t, 1.0, variance, 0.02)
			for _, v := range z {
				require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		})
	}
}

func TestNormalDeterministic(t *testing.T) {
	for _, method := range []random.Method{random.BoxMuller, random.PolarRejection} {
		a, err := random.New(random.WithWorkers(1)).Normal(25_001, random.Seed(99), method)
		require.NoError(t, err)
		b, err := random.New(random.WithWorkers(8)).Normal(25_001, random.Seed(99), method)
		require.NoError(t, err)
		require.Equal(t, a, b, method.String())
	}
}

func TestNormalOddCount(t *testing.T) {
	for _, n := range []int{1, 3, 1001} {
		z, err := random.New().Normal(n, random.Seed(5), random.BoxMuller)
		require.NoError(t, err)
		require.Len(t, z, n)
	}
}

func TestBoxMullerPairing(t *testing.T) {
	// 每对输出共享同一半径 sqrt(-2 ln u1)
	const n = 10
	seed := random.Seed(11)
	e := random.New()
	u, err := e.Uniform(n, seed)
	require.NoError(t, err)
	z, err := e.Normal(n, seed, random.BoxMuller)
	require.NoError(t, err)

	for i := 0; i < n; i += 2 {
		r := math.Sqrt(-2 * math.Log(u[i]))
		assert.InDelta(t, r*math.Cos(2*math.Pi*u[i+1]), z[i], 1e-12)
		assert.InDelta(t, r*math.Sin(2*math.Pi*u[i+1]), z[i+1], 1e-12)
	}
}

func TestPolarAlwaysFills(t *testing.T) {
	// 小样本下拒绝后的缺口由 Box-Muller 补齐
	for n := 1; n <= 64; n++ {
		z, err := random.New().Normal(n, random.Seed(int64(n)), random.PolarRejection)
		require.NoError(t, err)
		require.Len(t, z, n)
		for _, v := range z {
			require.False(t, math.IsNaN(v))
		}
	}
}
