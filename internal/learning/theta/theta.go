// Package theta turns the lesson catalog, a student's mastery and the
// published skill graph into the eligible candidate set handed to the
// bandit.
package theta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/learnhub/internal/platform/fileutil"
	"github.com/yungbote/learnhub/internal/sentry"
)

const DefaultMasteryThreshold = 0.6

type Lesson struct {
	LessonID   string   `json:"lessonId"`
	Skill      string   `json:"skill"`
	Difficulty float64  `json:"difficulty"`
	Requires   []string `json:"requires,omitempty"`
}

// Catalog is the compiled lesson index in declaration order.
type Catalog struct {
	Lessons []Lesson `json:"lessons"`
}

// LoadCatalog reads a lesson index file.
func LoadCatalog(path string) (*Catalog, error) {
	var c Catalog
	found, err := fileutil.ReadJSON(path, &c)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if !found {
		return &Catalog{}, nil
	}
	return &c, nil
}

func (c *Catalog) teaching(skill string) []Lesson {
	var out []Lesson
	for _, l := range c.Lessons {
		if l.Skill == skill {
			out = append(out, l)
		}
	}
	return out
}

type Candidate struct {
	LessonID string  `json:"lessonId"`
	Skill    string  `json:"skill"`
	BaseCost float64 `json:"baseCost"`
	Discount float64 `json:"discount"`
	Cost     float64 `json:"cost"`
}

type Options struct {
	MasteryThreshold float64
	// GoalSkill restricts the search to lessons on the path to this skill.
	GoalSkill string
}

// Eligible returns lessons the student can take now: the lesson's skill is
// not yet mastered and every skill it requires is. A lesson blocked by an
// unmet requirement is replaced, breadth first, by the lessons teaching that
// requirement. Candidates are ordered by cost, then catalog order.
func Eligible(c *Catalog, mastery map[string]float64, g *sentry.Graph, opts Options) []Candidate {
	if c == nil {
		return nil
	}
	threshold := opts.MasteryThreshold
	if threshold <= 0 {
		threshold = DefaultMasteryThreshold
	}
	mastered := func(skill string) bool { return mastery[skill] >= threshold }
	unmet := func(l Lesson) []string {
		var out []string
		for _, r := range l.Requires {
			if r = strings.TrimSpace(r); r != "" && !mastered(r) {
				out = append(out, r)
			}
		}
		return out
	}

	var queue []Lesson
	if goal := strings.TrimSpace(opts.GoalSkill); goal != "" {
		queue = c.teaching(goal)
	} else {
		queue = append(queue, c.Lessons...)
	}

	visitedSkill := map[string]bool{}
	picked := map[string]bool{}
	var out []Candidate
	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]
		if l.LessonID == "" || picked[l.LessonID] || mastered(l.Skill) {
			continue
		}
		missing := unmet(l)
		if len(missing) == 0 {
			picked[l.LessonID] = true
			out = append(out, price(l, mastered, g))
			continue
		}
		for _, s := range missing {
			if visitedSkill[s] {
				continue
			}
			visitedSkill[s] = true
			queue = append(queue, c.teaching(s)...)
		}
	}

	order := make(map[string]int, len(c.Lessons))
	for i, l := range c.Lessons {
		if _, ok := order[l.LessonID]; !ok {
			order[l.LessonID] = i
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return order[out[i].LessonID] < order[out[j].LessonID]
	})
	return out
}

// price is BaseCost − CohortDiscount, where the discount is the strongest
// (1 − weight)·confidence·BaseCost over edges from mastered priors.
func price(l Lesson, mastered func(string) bool, g *sentry.Graph) Candidate {
	base := l.Difficulty
	discount := 0.0
	for _, e := range g.EdgesInto(l.Skill) {
		if !mastered(e.From) {
			continue
		}
		if d := (1 - e.Weight) * e.Confidence * base; d > discount {
			discount = d
		}
	}
	return Candidate{
		LessonID: l.LessonID,
		Skill:    l.Skill,
		BaseCost: base,
		Discount: discount,
		Cost:     base - discount,
	}
}

// IDs returns the candidate lesson ids in order.
func IDs(cands []Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.LessonID
	}
	return ids
}
