// Package embedding keeps per-student and per-lesson latent vectors trained
// by online matrix factorization with exponential forgetting.
package embedding

import (
	"sort"

	"github.com/yungbote/learnhub/internal/learning/mathx"
)

const (
	DefaultDim        = 16
	DefaultLR         = 0.01
	DefaultReg        = 0.001
	DefaultForgetting = 0.98

	initScale = 0.05
)

type Model struct {
	Dim        int                  `json:"dim"`
	LR         float64              `json:"lr"`
	Reg        float64              `json:"reg"`
	Forgetting float64              `json:"forgetting"`
	Students   map[string][]float64 `json:"students"`
	Lessons    map[string][]float64 `json:"lessons"`
	// LessonOrder is the first-seen order of Lessons, used to break ties.
	LessonOrder []string `json:"lessonOrder"`
}

func New(dim int, lr, reg, forgetting float64) *Model {
	m := &Model{Dim: dim, LR: lr, Reg: reg, Forgetting: forgetting}
	m.Normalize()
	return m
}

func NewDefault() *Model {
	return New(DefaultDim, DefaultLR, DefaultReg, DefaultForgetting)
}

// Normalize fills zero hyper-parameters with defaults and rebuilds
// LessonOrder so it lists exactly the keys of Lessons.
func (m *Model) Normalize() {
	if m.Dim <= 0 {
		m.Dim = DefaultDim
	}
	if m.LR <= 0 {
		m.LR = DefaultLR
	}
	if m.Reg < 0 {
		m.Reg = DefaultReg
	}
	if m.Forgetting <= 0 || m.Forgetting > 1 {
		m.Forgetting = DefaultForgetting
	}
	if m.Students == nil {
		m.Students = map[string][]float64{}
	}
	if m.Lessons == nil {
		m.Lessons = map[string][]float64{}
	}

	seen := make(map[string]bool, len(m.Lessons))
	order := make([]string, 0, len(m.Lessons))
	for _, id := range m.LessonOrder {
		if _, ok := m.Lessons[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	// lessons missing from the order (older files) go last, sorted
	var missing []string
	for id := range m.Lessons {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	m.LessonOrder = append(order, missing...)
}

func (m *Model) randomVector(rng mathx.Rand) []float64 {
	v := make([]float64, m.Dim)
	for i := range v {
		v[i] = initScale * mathx.StandardNormal(rng)
	}
	return v
}

// EnsureStudent returns the student's vector, creating it if unseen. The
// returned slice is owned by the model.
func (m *Model) EnsureStudent(studentID string, rng mathx.Rand) (vec []float64, created bool) {
	if v, ok := m.Students[studentID]; ok {
		return v, false
	}
	v := m.randomVector(rng)
	m.Students[studentID] = v
	return v, true
}

func (m *Model) EnsureLesson(lessonID string, rng mathx.Rand) (vec []float64, created bool) {
	if v, ok := m.Lessons[lessonID]; ok {
		return v, false
	}
	v := m.randomVector(rng)
	m.Lessons[lessonID] = v
	m.LessonOrder = append(m.LessonOrder, lessonID)
	return v, true
}

func (m *Model) HasLesson(lessonID string) bool {
	_, ok := m.Lessons[lessonID]
	return ok
}

// Predict returns z·w for a known pair, or 0 if either side is unknown.
func (m *Model) Predict(studentID, lessonID string) float64 {
	z, ok := m.Students[studentID]
	if !ok {
		return 0
	}
	w, ok := m.Lessons[lessonID]
	if !ok {
		return 0
	}
	return mathx.Dot(z, w)
}

// Update co-adapts the student vector z and lesson vector w toward gain:
//
//	err  = gain − z·w
//	z[k] = γ·z[k] + lr·(err·w[k] − reg·z[k])
//	w[k] = γ·w[k] + lr·(err·z[k] − reg·w[k])
//
// Both rows are computed from the pre-update values. Returns err.
func (m *Model) Update(studentID, lessonID string, gain float64, rng mathx.Rand) float64 {
	z, _ := m.EnsureStudent(studentID, rng)
	w, _ := m.EnsureLesson(lessonID, rng)

	oldZ := mathx.CloneVec(z)
	oldW := mathx.CloneVec(w)
	err := gain - mathx.Dot(oldZ, oldW)

	g := m.Forgetting
	for k := 0; k < m.Dim && k < len(z) && k < len(w); k++ {
		z[k] = g*oldZ[k] + m.LR*(err*oldW[k]-m.Reg*oldZ[k])
		w[k] = g*oldW[k] + m.LR*(err*oldZ[k]-m.Reg*oldW[k])
	}
	return err
}
