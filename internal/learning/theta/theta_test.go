package theta

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/yungbote/learnhub/internal/platform/fileutil"
	"github.com/yungbote/learnhub/internal/sentry"
)

func catalog() *Catalog {
	return &Catalog{Lessons: []Lesson{
		{LessonID: "count-1", Skill: "count", Difficulty: 1},
		{LessonID: "add-1", Skill: "add", Difficulty: 2, Requires: []string{"count"}},
		{LessonID: "mul-1", Skill: "mul", Difficulty: 4, Requires: []string{"add"}},
		{LessonID: "sub-1", Skill: "sub", Difficulty: 3, Requires: []string{"count"}},
	}}
}

func TestEligibleExpandsUnmetRequirements(t *testing.T) {
	got := IDs(Eligible(catalog(), map[string]float64{}, nil, Options{GoalSkill: "mul"}))
	if len(got) != 1 || got[0] != "count-1" {
		t.Fatalf("got %v, want [count-1]", got)
	}

	got = IDs(Eligible(catalog(), map[string]float64{"count": 0.9}, nil, Options{GoalSkill: "mul"}))
	if len(got) != 1 || got[0] != "add-1" {
		t.Fatalf("got %v, want [add-1]", got)
	}
}

func TestEligibleSkipsMastered(t *testing.T) {
	mastery := map[string]float64{"count": 0.9, "add": 0.7}
	got := IDs(Eligible(catalog(), mastery, nil, Options{}))
	// sub (3) is cheaper than mul (4)
	if len(got) != 2 || got[0] != "sub-1" || got[1] != "mul-1" {
		t.Fatalf("got %v", got)
	}
}

func TestCohortDiscountReordersCandidates(t *testing.T) {
	g := &sentry.Graph{Edges: []sentry.Edge{
		{From: "add", To: "mul", Weight: 0, Confidence: 0.8, SampleSize: 40},
		{From: "mul", To: "sub", Weight: 0, Confidence: 1, SampleSize: 40},
	}}
	mastery := map[string]float64{"count": 0.9, "add": 0.7}
	cands := Eligible(catalog(), mastery, g, Options{})
	if len(cands) != 2 || cands[0].LessonID != "mul-1" {
		t.Fatalf("got %+v", cands)
	}
	mul := cands[0]
	if mul.BaseCost != 4 || math.Abs(mul.Discount-3.2) > 1e-12 || math.Abs(mul.Cost-0.8) > 1e-12 {
		t.Fatalf("mul pricing %+v", mul)
	}
	if cands[1].Discount != 0 {
		t.Fatalf("edge from unmastered prior applied: %+v", cands[1])
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := fileutil.WriteJSONAtomic(path, catalog()); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadCatalog(path)
	if err != nil || len(c.Lessons) != 4 || c.Lessons[2].Requires[0] != "add" {
		t.Fatalf("catalog %+v err=%v", c, err)
	}
	empty, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || len(empty.Lessons) != 0 {
		t.Fatalf("missing catalog %+v err=%v", empty, err)
	}
}
