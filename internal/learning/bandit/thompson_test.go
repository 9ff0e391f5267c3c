package bandit

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/learnhub/internal/learning/mathx"
)

func TestEnsureInitialisesEmptyPosterior(t *testing.T) {
	p := &Posterior{}
	require.NoError(t, p.Ensure(3))
	assert.Equal(t, 6, p.FeatureDim)
	assert.Len(t, p.A, 6)
	assert.Equal(t, PriorRegularization, p.A[2][2])
	assert.Equal(t, 0.0, p.A[0][1])
	assert.Equal(t, mathx.Zeros(6), p.B)
	assert.Equal(t, 0, p.ObservationCount)
	assert.Equal(t, DefaultForgetting, p.Forgetting)
}

func TestEnsureRejectsStructuralMismatch(t *testing.T) {
	p := New(4, 1)
	require.ErrorIs(t, p.Ensure(5), ErrFeatureDimMismatch)

	p = New(2, 1)
	p.A = mathx.Identity(3)
	require.ErrorIs(t, p.Ensure(2), ErrShapeMismatch)

	p = New(2, 1)
	p.B = []float64{1}
	require.ErrorIs(t, p.Ensure(2), ErrShapeMismatch)
}

func TestFeaturesConcatenatesStudentThenLesson(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 3, 4}, Features([]float64{1, 2}, []float64{3, 4}))
}

func TestSelectAndUpdateShareFeatureVector(t *testing.T) {
	student := []float64{1, 0}
	good := []float64{0, 1}
	bad := []float64{1, 0}

	p := New(2, 1)
	for i := 0; i < 200; i++ {
		require.NoError(t, p.Update(Features(student, good), 1))
		require.NoError(t, p.Update(Features(student, bad), -1))
	}
	rng := rand.New(rand.NewPCG(1, 1))
	for i := 0; i < 20; i++ {
		sel, ok, err := p.Select(student, []Candidate{{ID: "bad", Vec: bad}, {ID: "good", Vec: good}}, rng)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "good", sel.LessonID)
	}

	// the learned mean scores each candidate like the rewards it was fed
	mean, _, err := p.Mean()
	require.NoError(t, err)
	assert.InDelta(t, 1, mathx.Dot(mean, Features(student, good)), 0.01)
	assert.InDelta(t, -1, mathx.Dot(mean, Features(student, bad)), 0.01)
}

func TestSelectEmptyCandidates(t *testing.T) {
	p := New(2, 1)
	_, ok, err := p.Select([]float64{0, 0}, nil, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectDeterministicWithSeed(t *testing.T) {
	p := New(2, 1)
	cands := []Candidate{{ID: "a", Vec: []float64{0.1, 0.2}}, {ID: "b", Vec: []float64{-0.3, 0.4}}, {ID: "c", Vec: []float64{0.5, -0.1}}}
	s1, _, err := p.Select([]float64{0.2, 0.1}, cands, rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	s2, _, err := p.Select([]float64{0.2, 0.1}, cands, rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}

func TestSelectTieGoesToFirstCandidate(t *testing.T) {
	p := New(1, 1)
	same := []float64{0.5}
	sel, ok, err := p.Select([]float64{0.5}, []Candidate{{ID: "first", Vec: same}, {ID: "second", Vec: same}}, rand.New(rand.NewPCG(3, 3)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", sel.LessonID)
}

func TestStationaryUpdatesConvergeToGain(t *testing.T) {
	p := New(2, 1)
	x := Features([]float64{0.3, -0.2}, []float64{0.1, 0.4})
	const gain = 0.7
	prev := 1e9
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Update(x, gain))
		mean, _, err := p.Mean()
		require.NoError(t, err)
		diff := gain - mathx.Dot(mean, x)
		require.GreaterOrEqual(t, diff, -1e-9)
		require.LessOrEqual(t, diff, prev+1e-9, "update %d moved away from gain", i)
		prev = diff
	}
	assert.Less(t, prev, 0.01)
	assert.Equal(t, 50, p.ObservationCount)
}

func TestForgettingDecaysUnrelatedObservations(t *testing.T) {
	x1 := Features([]float64{1, 0}, []float64{0, 0})
	x2 := Features([]float64{0, 0}, []float64{0, 1})

	precisionAlongX1 := func(forgetting float64) float64 {
		p := New(2, forgetting)
		require.NoError(t, p.Update(x1, 1))
		for i := 0; i < 50; i++ {
			require.NoError(t, p.Update(x2, 0.5))
		}
		_, _, err := p.Covariance()
		require.NoError(t, err)
		return mathx.Dot(x1, mathx.MatVec(p.A, x1))
	}

	stationary := precisionAlongX1(1)
	forgetful := precisionAlongX1(0.9)
	assert.InDelta(t, 1.01, stationary, 1e-9)
	assert.Less(t, forgetful, 0.01)
}

func TestCovarianceJitterRetriesOnce(t *testing.T) {
	p := New(2, 1)
	p.A = mathx.ZeroMatrix(4)
	cov, jittered, err := p.Covariance()
	require.NoError(t, err)
	assert.True(t, jittered)
	assert.InDelta(t, 1/Jitter, cov[0][0], 1e-3)

	p.A = mathx.ScaleMat(mathx.Identity(4), -1)
	_, _, err = p.Covariance()
	require.ErrorIs(t, err, ErrPosteriorCorrupt)

	_, ok, err := p.Select([]float64{0, 0}, []Candidate{{ID: "a", Vec: []float64{1, 1}}}, rand.New(rand.NewPCG(1, 1)))
	require.ErrorIs(t, err, ErrPosteriorCorrupt)
	assert.False(t, ok)
}

func TestSelectRetriesDrawOnce(t *testing.T) {
	cands := []Candidate{{ID: "a", Vec: []float64{1, 1}}}

	// singular A: the single retry from A + Jitter·I succeeds
	p := New(2, 1)
	p.A = mathx.ZeroMatrix(4)
	sel, ok, err := p.Select([]float64{0, 0}, cands, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, sel.Jittered)

	// A inverts, but its covariance is too small to factor. The retry is
	// spent on A + Jitter·I and nothing adds a second jitter to the covariance.
	p = New(2, 1)
	p.A = mathx.ScaleMat(mathx.Identity(4), 1e11)
	sel, ok, err = p.Select([]float64{0, 0}, cands, rand.New(rand.NewPCG(1, 1)))
	require.ErrorIs(t, err, ErrPosteriorCorrupt)
	assert.False(t, ok)
	assert.True(t, sel.Jittered)
}

func TestUpdateRejectsWrongLength(t *testing.T) {
	p := New(2, 1)
	require.ErrorIs(t, p.Update([]float64{1, 2, 3}, 1), ErrShapeMismatch)
	assert.Equal(t, 0, p.ObservationCount)
}
