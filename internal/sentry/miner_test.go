package sentry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var day = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ev(id string, mastery float64, provided ...SkillEvidence) Event {
	return Event{PseudoID: id, SkillsProvided: provided, Mastery: mastery, CompletedAt: day}
}

func skill(name string, level float64) SkillEvidence {
	return SkillEvidence{Skill: name, EvidencedLevel: level}
}

func newTestMiner(t *testing.T) *Miner {
	t.Helper()
	root := t.TempDir()
	m := NewMiner(Config{EventsDir: filepath.Join(root, "events"), StateDir: filepath.Join(root, "state")}, nil, nil)
	m.now = func() time.Time { return day }
	return m
}

func appendEvents(t *testing.T, m *Miner, events ...Event) {
	t.Helper()
	if _, err := m.EventLog().Append(events, day); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	good := []byte(`{"pseudoId":" p1 ","skillsProvided":[{"skill":"add","evidencedLevel":0.8},{"skill":" ","evidencedLevel":1}],"skillsRequired":["count",""],"mastery":0.7,"completedAt":"2026-03-02T09:00:00Z"}`)
	e, err := ParseEvent(good)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if e.PseudoID != "p1" || len(e.SkillsProvided) != 1 || len(e.SkillsRequired) != 1 || e.Mastery != 0.7 {
		t.Fatalf("unexpected event %+v", e)
	}

	for name, line := range map[string]string{
		"not json":      `{"pseudoId":`,
		"no pseudo":     `{"mastery":0.5}`,
		"mastery range": `{"pseudoId":"p","mastery":1.5}`,
		"level range":   `{"pseudoId":"p","mastery":0.5,"skillsProvided":[{"skill":"a","evidencedLevel":-1}]}`,
	} {
		if _, err := ParseEvent([]byte(line)); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("%s: err=%v, want ErrMalformedEvent", name, err)
		}
	}
}

func TestFoldUsesPreEventMastery(t *testing.T) {
	st := NewState()
	st.Fold(ev("s", 0.9, skill("count", 0.9)), 0.6, 0.6)
	if len(st.Tables["s"]) != 0 {
		t.Fatalf("first event has no priors, got %v", st.Tables["s"])
	}

	// both skills of one lesson are checked against the same snapshot
	touched := st.Fold(ev("s", 0.9, skill("add", 0.9), skill("sub", 0.9), skill("add", 0.5)), 0.6, 0.6)
	if touched != 2 {
		t.Fatalf("touched=%d want 2", touched)
	}
	if _, ok := st.Tables["s"][pairKey("add", "sub")]; ok {
		t.Fatalf("same-event skills counted as prior")
	}
	if c := st.Tables["s"][pairKey("count", "add")]; c == nil || *c != (Cell{A: 1}) {
		t.Fatalf("count→add cell %+v", c)
	}

	// a low prior counts as no-prior
	st.Fold(ev("t", 0.2, skill("count", 0.3)), 0.6, 0.6)
	st.Fold(ev("t", 0.2, skill("add", 0.4)), 0.6, 0.6)
	if c := st.Tables["t"][pairKey("count", "add")]; c == nil || *c != (Cell{D: 1}) {
		t.Fatalf("low prior cell %+v", c)
	}
}

func TestMasteryNeverDecreases(t *testing.T) {
	m := NewMastery()
	m.Fold("s", []SkillEvidence{skill("add", 0.8)})
	m.Fold("s", []SkillEvidence{skill("add", 0.3), skill("mul", 0.2)})
	m.Fold("s", []SkillEvidence{skill("mul", 0.1)})
	got := m.Student("s")
	if got["add"] != 0.8 || got["mul"] != 0.2 {
		t.Fatalf("mastery regressed: %v", got)
	}
}

func TestCohortGatingBelowPool(t *testing.T) {
	m := newTestMiner(t)
	for i := 0; i < 19; i++ {
		id := fmt.Sprintf("s%02d", i)
		appendEvents(t, m, ev(id, 0.9, skill("add", 0.9)), ev(id, 0.9, skill("mul", 0.9)))
	}
	res, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Published || res.Reason != ReasonPoolTooSmall || res.Folded != 38 {
		t.Fatalf("result %+v", res)
	}
	if _, ok, _ := m.Graph(); ok {
		t.Fatalf("graph must not be published for 19 students")
	}
}

func TestCohortGatingTwentyIdentical(t *testing.T) {
	m := newTestMiner(t)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("s%02d", i)
		appendEvents(t, m, ev(id, 0.9, skill("add", 0.9)), ev(id, 0.9, skill("mul", 0.9)))
	}
	cohorts := func() []Cohort {
		st, _, err := m.store.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return DiscoverCohorts(st.Mastery, 0.6, 0.5)
	}

	res, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Published || res.CohortSize != 20 {
		t.Fatalf("result %+v", res)
	}
	cs := cohorts()
	if len(cs) != 1 || cs[0].Size() != 20 || len(cs[0].ID) != 8 || cs[0].ID != res.CohortID {
		t.Fatalf("cohorts %+v", cs)
	}
	g, ok, err := m.Graph()
	if err != nil || !ok {
		t.Fatalf("graph: ok=%v err=%v", ok, err)
	}
	if g.SampleSize != 20 || g.DiscoveredCohort != res.CohortID || g.Level != "village" {
		t.Fatalf("graph %+v", g)
	}
	// every student had the prior: no variance, no edge
	if len(g.Edges) != 0 {
		t.Fatalf("edges %+v", g.Edges)
	}
}

func TestAnalyzePublishesTransferEdge(t *testing.T) {
	m := newTestMiner(t)
	published := 0
	m.AddPublisher(PublisherFunc{SinkName: "probe", Fn: func(_ context.Context, g *Graph) error {
		published++
		return nil
	}})
	m.AddPublisher(PublisherFunc{SinkName: "broken", Fn: func(context.Context, *Graph) error {
		return errors.New("sink down")
	}})

	for i := 0; i < 20; i++ {
		a := fmt.Sprintf("a%02d", i)
		appendEvents(t, m,
			ev(a, 0.9, skill("count", 0.9)),
			ev(a, 0.9, skill("add", 0.9)),
			ev(a, 0.9, skill("mul", 0.9)),
		)
		b := fmt.Sprintf("b%02d", i)
		appendEvents(t, m,
			ev(b, 0.9, skill("count", 0.9)),
			ev(b, 0.3, skill("add", 0.3)),
			ev(b, 0.2, skill("mul", 0.9)),
		)
	}

	res, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Published || res.CohortSize != 40 || res.Edges != 1 || published != 1 {
		t.Fatalf("result %+v published=%d", res, published)
	}
	g := res.Graph
	e := g.Edges[0]
	if e.From != "add" || e.To != "mul" || e.Weight != 0 || e.Confidence <= 0 || e.SampleSize != 40 {
		t.Fatalf("edge %+v", e)
	}
	if got := g.EdgesInto("mul"); len(got) != 1 {
		t.Fatalf("EdgesInto(mul) = %+v", got)
	}

	// a second pass with nothing new neither refolds nor republishes
	res2, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if res2.Folded != 0 || res2.Published || res2.Reason != ReasonNoNewEvents || published != 1 {
		t.Fatalf("second pass %+v", res2)
	}

	// new events republish wholesale, keeping created_date
	m.now = func() time.Time { return day.Add(time.Hour) }
	appendEvents(t, m, ev("a00", 0.9, skill("div", 0.9)))
	res3, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("third Analyze: %v", err)
	}
	if res3.Folded != 1 || !res3.Published {
		t.Fatalf("third pass %+v", res3)
	}
	if !res3.Graph.CreatedDate.Equal(day) || !res3.Graph.LastUpdated.Equal(day.Add(time.Hour)) {
		t.Fatalf("dates created=%v updated=%v", res3.Graph.CreatedDate, res3.Graph.LastUpdated)
	}
}

func TestAnalyzeSkipsMalformedAndWaitsForPartialLine(t *testing.T) {
	m := newTestMiner(t)
	dir := m.EventLog().Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "2026-03-01.ndjson")
	content := "{\"pseudoId\":\"p1\",\"skillsProvided\":[{\"skill\":\"add\",\"evidencedLevel\":0.9}],\"mastery\":0.9}\n" +
		"garbage\n" +
		"\n" +
		"{\"pseudoId\":\"p2\",\"mastery\":0.5"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Folded != 1 || res.Malformed != 1 {
		t.Fatalf("result %+v", res)
	}
	st, _, _ := m.store.Load()
	if got := st.Cursors.Cursors["2026-03-01.ndjson"]; got != 3 {
		t.Fatalf("cursor=%d want 3 (partial line not consumed)", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("}\n"); err != nil {
		t.Fatalf("complete line: %v", err)
	}
	f.Close()

	res, err = m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if res.Folded != 1 || res.Students != 2 {
		t.Fatalf("second pass %+v", res)
	}
}

func TestCancelledAnalyzePersistsNothing(t *testing.T) {
	m := newTestMiner(t)
	appendEvents(t, m, ev("p1", 0.9, skill("add", 0.9)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Analyze(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	st, _, err := m.store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(st.Cursors.Cursors) != 0 || len(st.Mastery.Students) != 0 {
		t.Fatalf("cancelled pass persisted state: %+v", st.Cursors)
	}

	res, err := m.Analyze(context.Background())
	if err != nil || res.Folded != 1 {
		t.Fatalf("resume: %+v err=%v", res, err)
	}
}

func TestCorruptStateIsBackedUpAndReplayed(t *testing.T) {
	m := newTestMiner(t)
	appendEvents(t, m,
		ev("p1", 0.9, skill("add", 0.9)),
		ev("p2", 0.8, skill("add", 0.8)),
	)
	if res, err := m.Analyze(context.Background()); err != nil || res.Folded != 2 {
		t.Fatalf("first pass %+v err=%v", res, err)
	}

	masteryPath := m.store.path(masteryFile)
	if err := os.WriteFile(masteryPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	res, err := m.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze after corruption: %v", err)
	}
	// fresh cursors replay the whole log into fresh tables
	if !res.Recovered || res.Folded != 2 || res.Students != 2 {
		t.Fatalf("recovery pass %+v", res)
	}
	bak, err := os.ReadFile(m.store.BackupPath(masteryFile))
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if string(bak) != "{not json" {
		t.Fatalf("backup content %q", bak)
	}

	mastery, err := m.StudentMastery("p1")
	if err != nil || mastery["add"] != 0.9 {
		t.Fatalf("mastery after recovery %v err=%v", mastery, err)
	}

	res, err = m.Analyze(context.Background())
	if err != nil || res.Recovered || res.Folded != 0 {
		t.Fatalf("pass after recovery %+v err=%v", res, err)
	}
}
