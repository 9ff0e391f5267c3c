package sentry

import "sort"

// Mastery is the per-student skill summary {students: {id: {skill: level}}}.
// A recorded level never decreases.
type Mastery struct {
	Students map[string]map[string]float64 `json:"students"`
}

func NewMastery() *Mastery {
	return &Mastery{Students: map[string]map[string]float64{}}
}

// Fold raises each provided skill to max(existing, evidencedLevel).
func (m *Mastery) Fold(studentID string, provided []SkillEvidence) {
	if m.Students == nil {
		m.Students = map[string]map[string]float64{}
	}
	row, ok := m.Students[studentID]
	if !ok {
		row = map[string]float64{}
		m.Students[studentID] = row
	}
	for _, s := range provided {
		if cur, ok := row[s.Skill]; !ok || s.EvidencedLevel > cur {
			row[s.Skill] = s.EvidencedLevel
		}
	}
}

func (m *Mastery) Student(studentID string) map[string]float64 {
	row := m.Students[studentID]
	out := make(map[string]float64, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// StudentIDs returns the students in sorted order.
func (m *Mastery) StudentIDs() []string {
	ids := make([]string, 0, len(m.Students))
	for id := range m.Students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Skills returns the sorted union of all recorded skills.
func (m *Mastery) Skills() []string {
	set := map[string]struct{}{}
	for _, row := range m.Students {
		for s := range row {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
