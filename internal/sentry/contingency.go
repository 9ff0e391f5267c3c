package sentry

import (
	"math"
	"strings"
)

const (
	// chiSquareCritical is the df=1 critical value at p = 0.05.
	chiSquareCritical = 3.841
	// chiConfidenceScale controls how fast confidence saturates past the
	// critical value.
	chiConfidenceScale = 4.0
	// minExpectedCount feeds nMin = ceil(minExpectedCount / min(p, 1-p)).
	minExpectedCount = 20.0
)

// Cell is the 2×2 table hadPrior × passedWell for one (prior, target) pair.
//
//	            passed  failed
//	hadPrior      a       b
//	noPrior       c       d
type Cell struct {
	A int `json:"a"`
	B int `json:"b"`
	C int `json:"c"`
	D int `json:"d"`
}

func (c Cell) N() int { return c.A + c.B + c.C + c.D }

func (c *Cell) Record(hadPrior, passed bool) {
	switch {
	case hadPrior && passed:
		c.A++
	case hadPrior:
		c.B++
	case passed:
		c.C++
	default:
		c.D++
	}
}

func (c *Cell) Add(o Cell) {
	c.A += o.A
	c.B += o.B
	c.C += o.C
	c.D += o.D
}

// ChiSquare is Pearson's statistic with Yates continuity correction:
//
//	χ² = (|ad − bc| − n/2)² · n / ((a+b)(c+d)(a+c)(b+d))
//
// It is 0 when any marginal is 0.
func (c Cell) ChiSquare() float64 {
	a, b, cc, d := float64(c.A), float64(c.B), float64(c.C), float64(c.D)
	n := a + b + cc + d
	den := (a + b) * (cc + d) * (a + cc) * (b + d)
	if den == 0 {
		return 0
	}
	diff := math.Abs(a*d-b*cc) - n/2
	return diff * diff * n / den
}

// Benefit is the pass-rate gain attributable to the prior, floored at 0.
func (c Cell) Benefit() float64 {
	withPrior, withoutPrior := 0.0, 0.0
	if c.A+c.B > 0 {
		withPrior = float64(c.A) / float64(c.A+c.B)
	}
	if c.C+c.D > 0 {
		withoutPrior = float64(c.C) / float64(c.C+c.D)
	}
	return math.Max(0, withPrior-withoutPrior)
}

// Edge is one published prerequisite relation. Lower Weight means stronger
// transfer from From to To.
type Edge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
	SampleSize int     `json:"sample_size"`
}

// ComputeEdge scores an aggregated cell. ok is false when the evidence is
// insufficient: fewer than minSample observations, or a prior that every
// (or no) observation had.
func ComputeEdge(from, to string, c Cell, minSample int) (Edge, bool) {
	n := c.N()
	if n < minSample || n == 0 {
		return Edge{}, false
	}
	pPrior := float64(c.A+c.B) / float64(n)
	if pPrior <= 0 || pPrior >= 1 {
		return Edge{}, false
	}
	nMin := math.Ceil(minExpectedCount / math.Min(pPrior, 1-pPrior))

	chi := c.ChiSquare()
	confidence := 0.0
	if chi >= chiSquareCritical {
		chiConf := clamp01(1 - 1/(1+(chi-chiSquareCritical)/chiConfidenceScale))
		sampleConf := clamp01(math.Min(1, float64(n)/(2*nMin)))
		confidence = chiConf * sampleConf
	}
	return Edge{
		From:       from,
		To:         to,
		Weight:     clamp01(1 - c.Benefit()),
		Confidence: confidence,
		SampleSize: n,
	}, true
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

const pairSep = "\x00"

func pairKey(prior, target string) string { return prior + pairSep + target }

func splitPair(key string) (prior, target string, ok bool) {
	return strings.Cut(key, pairSep)
}

// Tables holds every student's cells, keyed by student id then pair key.
type Tables map[string]map[string]*Cell

func (t Tables) cell(studentID, prior, target string) *Cell {
	row, ok := t[studentID]
	if !ok {
		row = map[string]*Cell{}
		t[studentID] = row
	}
	key := pairKey(prior, target)
	c, ok := row[key]
	if !ok {
		c = &Cell{}
		row[key] = c
	}
	return c
}

// Aggregate sums the cells of members by pair.
func (t Tables) Aggregate(members []string) map[string]Cell {
	out := map[string]Cell{}
	for _, id := range members {
		for key, c := range t[id] {
			if c == nil {
				continue
			}
			agg := out[key]
			agg.Add(*c)
			out[key] = agg
		}
	}
	return out
}
