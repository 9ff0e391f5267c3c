package sentry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Cohort is one greedy cluster of students with similar mastery vectors.
type Cohort struct {
	ID       string
	Members  []string
	Skills   []string
	Centroid []float64
}

func (c Cohort) Size() int { return len(c.Members) }

// WeightedJaccard is Σ min(aᵢ,bᵢ) / Σ max(aᵢ,bᵢ). On binary vectors it is
// the set Jaccard index. Two all-zero vectors are identical (1).
func WeightedJaccard(a, b []float64) float64 {
	num, den := 0.0, 0.0
	for i := range a {
		num += math.Min(a[i], b[i])
		den += math.Max(a[i], b[i])
	}
	if den == 0 {
		return 1
	}
	return num / den
}

// DiscoverCohorts clusters students greedily in sorted id order: each joins
// the first cluster whose running centroid is at least minSimilarity
// similar to the student's binary mastery vector, else starts a new one.
func DiscoverCohorts(m *Mastery, masteryThreshold, minSimilarity float64) []Cohort {
	skills := m.Skills()
	var cohorts []Cohort
	for _, id := range m.StudentIDs() {
		row := m.Students[id]
		vec := make([]float64, len(skills))
		for i, s := range skills {
			if row[s] >= masteryThreshold {
				vec[i] = 1
			}
		}

		joined := false
		for ci := range cohorts {
			c := &cohorts[ci]
			if WeightedJaccard(c.Centroid, vec) < minSimilarity {
				continue
			}
			n := float64(len(c.Members))
			for i := range c.Centroid {
				c.Centroid[i] = (c.Centroid[i]*n + vec[i]) / (n + 1)
			}
			c.Members = append(c.Members, id)
			joined = true
			break
		}
		if !joined {
			cohorts = append(cohorts, Cohort{Members: []string{id}, Skills: skills, Centroid: vec})
		}
	}
	for i := range cohorts {
		cohorts[i].ID = cohortID(cohorts[i].Skills, cohorts[i].Centroid)
	}
	return cohorts
}

// Largest returns the biggest cohort; the earliest formed wins ties.
func Largest(cohorts []Cohort) (Cohort, bool) {
	best := -1
	for i, c := range cohorts {
		if best < 0 || len(c.Members) > len(cohorts[best].Members) {
			best = i
		}
	}
	if best < 0 {
		return Cohort{}, false
	}
	return cohorts[best], true
}

// cohortID is the first 8 hex chars of sha256 over the centroid rounded to
// 4 decimals, labelled by skill so it does not depend on unrelated skills.
func cohortID(skills []string, centroid []float64) string {
	var b strings.Builder
	for i, s := range skills {
		v := math.Round(centroid[i]*1e4) / 1e4
		if v == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s=%.4f;", s, v)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:8]
}
