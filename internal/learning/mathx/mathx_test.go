package mathx

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSPD(rng *rand.Rand, n int) [][]float64 {
	// M·Mᵀ + n·I is comfortably SPD.
	m := ZeroMatrix(n)
	for i := range m {
		for j := range m[i] {
			m[i][j] = rng.Float64()*2 - 1
		}
	}
	a := ZeroMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a[i][j] = Dot(m[i], m[j])
		}
		a[i][i] += float64(n)
	}
	return a
}

func TestInvertSPDRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{1, 2, 5, 16, 32} {
		a := randomSPD(rng, n)
		inv, err := InvertSPD(a)
		require.NoError(t, err, "n=%d", n)
		prod := MatMul(inv, a)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, prod[i][j], 1e-9, "n=%d (%d,%d)", n, i, j)
			}
		}
	}
}

func TestCholeskyReconstructs(t *testing.T) {
	a := [][]float64{{4, 12, -16}, {12, 37, -43}, {-16, -43, 98}}
	l, err := Cholesky(a)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, l[0][0], 1e-12)
	assert.InDelta(t, 6.0, l[1][0], 1e-12)
	assert.InDelta(t, 1.0, l[1][1], 1e-12)
	assert.InDelta(t, -8.0, l[2][0], 1e-12)
	assert.InDelta(t, 5.0, l[2][1], 1e-12)
	assert.InDelta(t, 3.0, l[2][2], 1e-12)
	assert.Equal(t, 0.0, l[0][1])
}

func TestCholeskyRejectsNonSPD(t *testing.T) {
	cases := map[string][][]float64{
		"negative diagonal": {{-1, 0}, {0, 1}},
		"indefinite":        {{1, 2}, {2, 1}},
		"singular":          {{1, 1}, {1, 1}},
		"zero":              ZeroMatrix(3),
	}
	for name, a := range cases {
		_, err := InvertSPD(a)
		require.ErrorIs(t, err, ErrNotPositiveDefinite, name)
		// deterministic: the same input fails the same way
		_, err2 := InvertSPD(a)
		require.ErrorIs(t, err2, ErrNotPositiveDefinite, name)
	}
}

func TestCholeskyShapeMismatch(t *testing.T) {
	_, err := Cholesky([][]float64{{1, 0}, {0}})
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestVectorOps(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	assert.Equal(t, 32.0, Dot(a, b))
	assert.Equal(t, []float64{5, 7, 9}, AddVec(a, b))
	assert.Equal(t, []float64{2, 4, 6}, ScaleVec(a, 2))
	o := Outer(a, b)
	assert.Equal(t, 12.0, o[1][2])
	assert.Equal(t, []float64{1, 2, 3}, a, "inputs must not be modified")
	assert.Equal(t, []float64{14, 32}, MatVec([][]float64{{1, 2, 3}, {4, 5, 6}}, a))
	id := Identity(3)
	assert.Equal(t, b, MatVec(id, b))
	sum := AddMat(id, ScaleMat(id, 2))
	assert.Equal(t, 3.0, sum[2][2])
	assert.Equal(t, 0.0, sum[0][1])
}

func TestStandardNormalMoments(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 20000
	sum, sumSq := 0.0, 0.0
	for i := 0; i < n; i++ {
		z := StandardNormal(rng)
		require.False(t, math.IsNaN(z) || math.IsInf(z, 0))
		sum += z
		sumSq += z * z
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, variance, 0.05)
}

func TestSampleMVNDeterministicWithSeed(t *testing.T) {
	mean := []float64{1, -1}
	cov := [][]float64{{2, 0.5}, {0.5, 1}}
	x1, err := SampleMVN(mean, cov, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	x2, err := SampleMVN(mean, cov, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, x1, x2)
}

func TestSampleMVNCovariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	mean := []float64{0.5, -0.25}
	cov := [][]float64{{1, 0.6}, {0.6, 2}}
	const n = 20000
	var m0, m1, c01 float64
	samples := make([][]float64, n)
	for i := 0; i < n; i++ {
		x, err := SampleMVN(mean, cov, rng)
		require.NoError(t, err)
		samples[i] = x
		m0 += x[0]
		m1 += x[1]
	}
	m0 /= n
	m1 /= n
	for _, x := range samples {
		c01 += (x[0] - m0) * (x[1] - m1)
	}
	c01 /= n
	assert.InDelta(t, mean[0], m0, 0.05)
	assert.InDelta(t, mean[1], m1, 0.05)
	assert.InDelta(t, 0.6, c01, 0.06)
}
