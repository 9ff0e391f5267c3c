package federation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/learnhub/internal/learning/bandit"
	"github.com/yungbote/learnhub/internal/learning/mathx"
)

func trained(t *testing.T, gains ...float64) *bandit.Posterior {
	t.Helper()
	p := bandit.New(1, 1)
	xs := [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}}
	for i, g := range gains {
		require.NoError(t, p.Update(xs[i%len(xs)], g))
	}
	return p
}

func TestExportUsesRawPrecision(t *testing.T) {
	p := trained(t, 1, -1, 0.5, 0.2)
	s, jittered, err := Export(p)
	require.NoError(t, err)
	assert.False(t, jittered)
	assert.Equal(t, SummaryVersion, s.Version)
	assert.Equal(t, 4, s.SampleSize)
	assert.Equal(t, p.A, s.Precision)

	a, b := s.Natural()
	for i := range b {
		assert.InDelta(t, p.B[i], b[i], 1e-9)
	}
	a[0][0] = 99
	assert.NotEqual(t, 99.0, s.Precision[0][0], "Natural must not alias the summary")
}

func TestMergeDimensionMismatch(t *testing.T) {
	_, err := Merge(Neutral(2), Neutral(3))
	require.ErrorIs(t, err, ErrDimensionMismatch)

	bad := Neutral(2)
	bad.Precision = mathx.Identity(3)
	_, err = Merge(bad, Neutral(2))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMergeBothEmptyIsNeutral(t *testing.T) {
	stale := Summary{Mean: []float64{3, 4}, Precision: [][]float64{{5, 0}, {0, 5}}}
	got, err := Merge(stale, Summary{Mean: []float64{1, 1}, Precision: mathx.Identity(2)})
	require.NoError(t, err)
	assert.Equal(t, Neutral(2), got)
}

func TestMergeZeroSampleKeepsOtherSide(t *testing.T) {
	s, _, err := Export(trained(t, 1, -0.5, 0.3))
	require.NoError(t, err)
	empty := Neutral(2)

	left, err := Merge(s, empty)
	require.NoError(t, err)
	right, err := Merge(empty, s)
	require.NoError(t, err)
	for _, got := range []Summary{left, right} {
		assert.Equal(t, s.SampleSize, got.SampleSize)
		assert.InDeltaSlice(t, s.Mean, got.Mean, 1e-12)
		for i := range s.Precision {
			assert.InDeltaSlice(t, s.Precision[i], got.Precision[i], 1e-12)
		}
	}
}

func TestMergeWithSelfDoublesSampleKeepsMean(t *testing.T) {
	s, _, err := Export(trained(t, 1, -1, 0.5, 0.2, 0.9))
	require.NoError(t, err)
	got, err := Merge(s, s)
	require.NoError(t, err)
	assert.Equal(t, 2*s.SampleSize, got.SampleSize)
	assert.InDeltaSlice(t, s.Mean, got.Mean, 1e-9)
	for i := range s.Precision {
		assert.InDeltaSlice(t, s.Precision[i], got.Precision[i], 1e-9)
	}
}

func TestMergeWeightsBySampleShare(t *testing.T) {
	local := Summary{Mean: []float64{1}, Precision: [][]float64{{30}}, SampleSize: 30}
	remote := Summary{Mean: []float64{-1}, Precision: [][]float64{{10}}, SampleSize: 10}
	got, err := Merge(local, remote)
	require.NoError(t, err)
	// wLocal = 10/40, wRemote = 30/40: both sides contribute 7.5 precision
	assert.InDelta(t, 15.0, got.Precision[0][0], 1e-12)
	assert.InDelta(t, 0.0, got.Mean[0], 1e-12)
	assert.Equal(t, 40, got.SampleSize)
}

func TestValidateRejectsNegativeSample(t *testing.T) {
	s := Neutral(1)
	s.SampleSize = -1
	require.ErrorIs(t, s.Validate(), ErrInvalidSummary)
}
