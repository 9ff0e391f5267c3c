// Package rasch tracks per-student ability on the logit scale against a fixed
// set of probe difficulties.
package rasch

import "math"

const (
	abilityMin = -10.0
	abilityMax = 10.0

	hessianRegularization = 1e-5
	hessianFloor          = 1e-8

	// declared lesson difficulties are 1-5; 3 maps to logit 0
	difficultyCenter = 3.0
)

// Ability is one student's estimate. Variance is the inverse Hessian of the
// last update.
type Ability struct {
	Ability  float64 `json:"ability"`
	Variance float64 `json:"variance"`
}

type Probe struct {
	Difficulty float64 `json:"difficulty"`
	Skill      string  `json:"skill"`
}

type ProbeResult struct {
	ProbeID string `json:"probeId"`
	Correct bool   `json:"correct"`
}

type State struct {
	Students     map[string]*Ability `json:"students"`
	Probes       map[string]Probe    `json:"probes"`
	GlobalAnchor float64             `json:"globalAnchor"`
}

func NewState() *State {
	return &State{
		Students: map[string]*Ability{},
		Probes:   map[string]Probe{},
	}
}

// Normalize fills nil maps left by an older or hand-written state file.
func (s *State) Normalize() {
	if s.Students == nil {
		s.Students = map[string]*Ability{}
	}
	if s.Probes == nil {
		s.Probes = map[string]Probe{}
	}
	for id, a := range s.Students {
		if a == nil {
			delete(s.Students, id)
		}
	}
}

// EnsureStudent returns the student's ability, creating {0, 1} if unseen.
func (s *State) EnsureStudent(studentID string) *Ability {
	a, ok := s.Students[studentID]
	if !ok {
		a = &Ability{Ability: 0, Variance: 1}
		s.Students[studentID] = a
	}
	return a
}

func (s *State) Student(studentID string) (Ability, bool) {
	a, ok := s.Students[studentID]
	if !ok {
		return Ability{}, false
	}
	return *a, true
}

// RegisterProbe anchors a lesson as an assessment item. The declared 1-5
// difficulty d is stored as d-3. Existing probes are never overwritten since
// recorded abilities are calibrated against the original difficulty.
func (s *State) RegisterProbe(probeID string, declaredDifficulty float64, skill string) bool {
	if _, ok := s.Probes[probeID]; ok {
		return false
	}
	s.Probes[probeID] = Probe{Difficulty: declaredDifficulty - difficultyCenter, Skill: skill}
	return true
}

// Update applies one approximate Newton-Raphson MAP step for the student
// against the probes in results and returns the step, which is the gain
// signal for the embedding model and the bandit.
//
//	p    = σ(ability − difficulty)
//	grad = Σ (y − p)
//	hess = Σ p(1 − p) + 1e-5
//	ability += grad / hess,  variance = 1 / hess
//
// Unknown probe ids are skipped. When no probe in results is known the
// estimate is left untouched and the gain is 0.
func Update(s *State, studentID string, results []ProbeResult) float64 {
	a := s.EnsureStudent(studentID)

	grad, hess := 0.0, 0.0
	for _, r := range results {
		probe, ok := s.Probes[r.ProbeID]
		if !ok {
			continue
		}
		p := sigmoid(a.Ability - probe.Difficulty)
		y := 0.0
		if r.Correct {
			y = 1
		}
		grad += y - p
		hess += p * (1 - p)
	}

	// With no known probe grad is 0, so the step is 0 and the variance
	// becomes 1/(regularization): the call carries no information.
	hess += hessianRegularization
	if hess < hessianFloor {
		hess = hessianFloor
	}
	step := grad / hess
	a.Ability = clamp(a.Ability+step, abilityMin, abilityMax)
	a.Variance = 1 / hess
	return step
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1.0 / (1.0 + z)
	}
	z := math.Exp(x)
	return z / (1.0 + z)
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
