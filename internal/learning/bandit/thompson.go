// Package bandit implements linear Thompson sampling over the concatenated
// student and lesson embeddings, with a recursive-least-squares posterior
// that supports exponential forgetting.
package bandit

import (
	"errors"
	"fmt"

	"github.com/yungbote/learnhub/internal/learning/mathx"
)

const (
	PriorRegularization = 0.01
	Jitter              = 1e-5
	DefaultForgetting   = 1.0
)

var (
	ErrFeatureDimMismatch = errors.New("bandit: feature dimension does not match embedding dimension")
	ErrShapeMismatch      = errors.New("bandit: posterior shape mismatch")
	ErrPosteriorCorrupt   = errors.New("bandit: precision matrix not positive definite after jitter")
)

// Posterior is N(A⁻¹b, A⁻¹) over the linear reward weights. A must stay
// symmetric positive definite; mutate it only through Update or Replace.
type Posterior struct {
	FeatureDim       int         `json:"featureDim"`
	A                [][]float64 `json:"A"`
	B                []float64   `json:"b"`
	ObservationCount int         `json:"observationCount"`
	Forgetting       float64     `json:"forgetting"`
}

type Candidate struct {
	ID  string
	Vec []float64
}

func New(embeddingDim int, forgetting float64) *Posterior {
	p := &Posterior{FeatureDim: 2 * embeddingDim, Forgetting: forgetting}
	p.reset()
	return p
}

// Features is the one concatenation rule shared by selection and update.
func Features(student, lesson []float64) []float64 {
	x := make([]float64, 0, len(student)+len(lesson))
	x = append(x, student...)
	x = append(x, lesson...)
	return x
}

func (p *Posterior) reset() {
	p.A = mathx.ScaleMat(mathx.Identity(p.FeatureDim), PriorRegularization)
	p.B = mathx.Zeros(p.FeatureDim)
	p.ObservationCount = 0
}

// Ensure validates the posterior against the embedding dimension and
// initialises an empty one. A zero FeatureDim is adopted as 2·embeddingDim.
func (p *Posterior) Ensure(embeddingDim int) error {
	want := 2 * embeddingDim
	if p.FeatureDim == 0 {
		p.FeatureDim = want
	}
	if p.FeatureDim != want {
		return fmt.Errorf("featureDim=%d embeddingDim=%d: %w", p.FeatureDim, embeddingDim, ErrFeatureDimMismatch)
	}
	if p.Forgetting <= 0 || p.Forgetting > 1 {
		p.Forgetting = DefaultForgetting
	}
	if len(p.A) == 0 {
		p.reset()
		return nil
	}
	if !mathx.IsSquare(p.A, p.FeatureDim) {
		return fmt.Errorf("A is %d rows, want %dx%d: %w", len(p.A), p.FeatureDim, p.FeatureDim, ErrShapeMismatch)
	}
	if len(p.B) != p.FeatureDim {
		return fmt.Errorf("b has length %d, want %d: %w", len(p.B), p.FeatureDim, ErrShapeMismatch)
	}
	return nil
}

// Covariance returns A⁻¹. A non-SPD A gets one retry with Jitter on the
// diagonal; jittered reports whether that retry was needed.
func (p *Posterior) Covariance() (cov [][]float64, jittered bool, err error) {
	return InvertWithJitter(p.A)
}

// InvertWithJitter inverts an SPD matrix, retrying exactly once with
// Jitter added to the diagonal.
func InvertWithJitter(a [][]float64) ([][]float64, bool, error) {
	inv, err := mathx.InvertSPD(a)
	if err == nil {
		return inv, false, nil
	}
	if errors.Is(err, mathx.ErrShapeMismatch) {
		return nil, false, fmt.Errorf("%v: %w", err, ErrShapeMismatch)
	}
	inv, err = mathx.InvertSPD(mathx.AddDiagonal(a, Jitter))
	if err != nil {
		return nil, true, fmt.Errorf("%v: %w", err, ErrPosteriorCorrupt)
	}
	return inv, true, nil
}

// Mean returns the posterior mean A⁻¹b.
func (p *Posterior) Mean() ([]float64, bool, error) {
	cov, jittered, err := p.Covariance()
	if err != nil {
		return nil, jittered, err
	}
	return mathx.MatVec(cov, p.B), jittered, nil
}

// Selection is the outcome of one Thompson draw.
type Selection struct {
	LessonID string
	Score    float64
	Jittered bool
}

// Select draws θ ~ N(A⁻¹b, A⁻¹) and returns the candidate maximizing
// θ·Features(student, candidate). The first candidate wins ties. ok is
// false when candidates is empty.
func (p *Posterior) Select(student []float64, candidates []Candidate, rng mathx.Rand) (sel Selection, ok bool, err error) {
	if len(candidates) == 0 {
		return Selection{}, false, nil
	}
	theta, jittered, err := p.sample(rng)
	if err != nil {
		return Selection{Jittered: jittered}, false, err
	}

	sel = Selection{Jittered: jittered}
	for i, c := range candidates {
		x := Features(student, c.Vec)
		if len(x) != p.FeatureDim {
			return Selection{}, false, fmt.Errorf("candidate %q has %d features, want %d: %w", c.ID, len(x), p.FeatureDim, ErrShapeMismatch)
		}
		score := mathx.Dot(theta, x)
		if i == 0 || score > sel.Score {
			sel.LessonID = c.ID
			sel.Score = score
		}
	}
	return sel, true, nil
}

// sample draws θ. Inversion and the Cholesky factor used for the draw share
// a single retry: on any failure the whole draw is repeated once from
// A + Jitter·I.
func (p *Posterior) sample(rng mathx.Rand) ([]float64, bool, error) {
	theta, err := draw(p.A, p.B, rng)
	if err == nil {
		return theta, false, nil
	}
	if errors.Is(err, mathx.ErrShapeMismatch) {
		return nil, false, fmt.Errorf("%v: %w", err, ErrShapeMismatch)
	}
	theta, err = draw(mathx.AddDiagonal(p.A, Jitter), p.B, rng)
	if err != nil {
		return nil, true, fmt.Errorf("sample posterior: %v: %w", err, ErrPosteriorCorrupt)
	}
	return theta, true, nil
}

func draw(a [][]float64, b []float64, rng mathx.Rand) ([]float64, error) {
	cov, err := mathx.InvertSPD(a)
	if err != nil {
		return nil, err
	}
	return mathx.SampleMVN(mathx.MatVec(cov, b), cov, rng)
}

// Update folds one observation: A ← γA + xxᵀ, b ← γb + gain·x.
func (p *Posterior) Update(x []float64, gain float64) error {
	if len(x) != p.FeatureDim {
		return fmt.Errorf("feature vector has length %d, want %d: %w", len(x), p.FeatureDim, ErrShapeMismatch)
	}
	g := p.Forgetting
	p.A = mathx.AddMat(mathx.ScaleMat(p.A, g), mathx.Outer(x, x))
	p.B = mathx.AddVec(mathx.ScaleVec(p.B, g), mathx.ScaleVec(x, gain))
	p.ObservationCount++
	return nil
}

// Replace installs a new natural-parameter pair, e.g. after a federated
// merge.
func (p *Posterior) Replace(a [][]float64, b []float64, observations int) error {
	if !mathx.IsSquare(a, p.FeatureDim) || len(b) != p.FeatureDim {
		return fmt.Errorf("replace with %dx? / %d: %w", len(a), len(b), ErrShapeMismatch)
	}
	p.A = mathx.CloneMat(a)
	p.B = mathx.CloneVec(b)
	p.ObservationCount = observations
	return nil
}

func (p *Posterior) Clone() *Posterior {
	c := *p
	c.A = mathx.CloneMat(p.A)
	c.B = mathx.CloneVec(p.B)
	return &c
}
