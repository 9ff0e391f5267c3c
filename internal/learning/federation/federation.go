// Package federation exchanges bandit posteriors between hubs as portable
// summaries and merges them with precision weighting.
package federation

import (
	"errors"
	"fmt"

	"github.com/yungbote/learnhub/internal/learning/bandit"
	"github.com/yungbote/learnhub/internal/learning/mathx"
)

const SummaryVersion = 1

var (
	ErrDimensionMismatch = errors.New("federation: summary dimensions differ")
	ErrInvalidSummary    = errors.New("federation: invalid summary")
)

// Summary is the wire form of a posterior. Precision is in the same raw
// accumulated units as the bandit's A, not normalized by SampleSize.
type Summary struct {
	Version    int         `json:"version"`
	HubID      string      `json:"hubId,omitempty"`
	Mean       []float64   `json:"mean"`
	Precision  [][]float64 `json:"precision"`
	SampleSize int         `json:"sampleSize"`
}

func (s Summary) Dim() int { return len(s.Mean) }

// Validate checks the summary is internally consistent.
func (s Summary) Validate() error {
	if s.Version != 0 && s.Version != SummaryVersion {
		return fmt.Errorf("version %d: %w", s.Version, ErrInvalidSummary)
	}
	if s.SampleSize < 0 {
		return fmt.Errorf("negative sample size %d: %w", s.SampleSize, ErrInvalidSummary)
	}
	if !mathx.IsSquare(s.Precision, len(s.Mean)) {
		return fmt.Errorf("precision is not %dx%d: %w", len(s.Mean), len(s.Mean), ErrDimensionMismatch)
	}
	return nil
}

// Natural returns the posterior's natural parameters (A, b = A·mean).
func (s Summary) Natural() (a [][]float64, b []float64) {
	a = mathx.CloneMat(s.Precision)
	return a, mathx.MatVec(a, s.Mean)
}

// Neutral is the summary of a hub with no observations.
func Neutral(dim int) Summary {
	return Summary{
		Version:   SummaryVersion,
		Mean:      mathx.Zeros(dim),
		Precision: mathx.Identity(dim),
	}
}

// Export snapshots a posterior. The second return reports whether inverting
// A needed the jitter retry.
func Export(p *bandit.Posterior) (Summary, bool, error) {
	mean, jittered, err := p.Mean()
	if err != nil {
		return Summary{}, jittered, err
	}
	return Summary{
		Version:    SummaryVersion,
		Mean:       mean,
		Precision:  mathx.CloneMat(p.A),
		SampleSize: p.ObservationCount,
	}, jittered, nil
}

// Merge combines two posteriors. Each side's precision is weighted by the
// other side's share of the total sample,
//
//	wLocal  = remote.n / (local.n + remote.n)
//	wRemote = local.n  / (local.n + remote.n)
//	P       = wLocal·P_l + wRemote·P_r
//	mean    = P⁻¹ (wLocal·P_l·μ_l + wRemote·P_r·μ_r)
//
// A side with zero observations carries no information, so merging it into
// the other side returns that side unchanged. Two empty sides give the
// neutral summary.
func Merge(local, remote Summary) (Summary, error) {
	if len(local.Mean) != len(remote.Mean) {
		return Summary{}, fmt.Errorf("local dim %d, remote dim %d: %w", len(local.Mean), len(remote.Mean), ErrDimensionMismatch)
	}
	if err := local.Validate(); err != nil {
		return Summary{}, fmt.Errorf("local: %w", err)
	}
	if err := remote.Validate(); err != nil {
		return Summary{}, fmt.Errorf("remote: %w", err)
	}
	dim := len(local.Mean)

	switch {
	case local.SampleSize == 0 && remote.SampleSize == 0:
		return Neutral(dim), nil
	case remote.SampleSize == 0:
		return clone(local), nil
	case local.SampleSize == 0:
		return clone(remote), nil
	}

	total := float64(local.SampleSize + remote.SampleSize)
	wLocal := float64(remote.SampleSize) / total
	wRemote := float64(local.SampleSize) / total

	pl := mathx.ScaleMat(local.Precision, wLocal)
	pr := mathx.ScaleMat(remote.Precision, wRemote)
	merged := mathx.AddMat(pl, pr)

	cov, _, err := bandit.InvertWithJitter(merged)
	if err != nil {
		return Summary{}, fmt.Errorf("invert merged precision: %w", err)
	}
	eta := mathx.AddVec(mathx.MatVec(pl, local.Mean), mathx.MatVec(pr, remote.Mean))

	return Summary{
		Version:    SummaryVersion,
		HubID:      local.HubID,
		Mean:       mathx.MatVec(cov, eta),
		Precision:  merged,
		SampleSize: local.SampleSize + remote.SampleSize,
	}, nil
}

func clone(s Summary) Summary {
	return Summary{
		Version:    SummaryVersion,
		HubID:      s.HubID,
		Mean:       mathx.CloneVec(s.Mean),
		Precision:  mathx.CloneMat(s.Precision),
		SampleSize: s.SampleSize,
	}
}
