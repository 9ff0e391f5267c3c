package skillgraph_refresh

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/learnhub/internal/data/repos/skillgraph"
	"github.com/yungbote/learnhub/internal/data/repos/testutil"
	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
	"github.com/yungbote/learnhub/internal/sentry"
)

var day = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newMiner(t *testing.T, pubs ...sentry.Publisher) *sentry.Miner {
	t.Helper()
	root := t.TempDir()
	return sentry.NewMiner(sentry.Config{
		EventsDir: filepath.Join(root, "events"),
		StateDir:  filepath.Join(root, "state"),
	}, nil, nil, pubs...)
}

func appendCohort(t *testing.T, m *sentry.Miner, n int) {
	t.Helper()
	var events []sentry.Event
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		events = append(events,
			sentry.Event{PseudoID: id, SkillsProvided: []sentry.SkillEvidence{{Skill: "add", EvidencedLevel: 0.9}}, Mastery: 0.9, CompletedAt: day},
			sentry.Event{PseudoID: id, SkillsProvided: []sentry.SkillEvidence{{Skill: "mul", EvidencedLevel: 0.9}}, Mastery: 0.9, CompletedAt: day},
		)
	}
	if _, err := m.EventLog().Append(events, day); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestPipelineRecordsRunAndMirrorsGraph(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	hubID := "hub-pipeline"
	graphs := skillgraph.NewSkillGraphRepo(db, log)
	runs := skillgraph.NewAnalysisRunRepo(db, log)

	m := newMiner(t, NewMirrorPublisher(graphs, hubID))
	appendCohort(t, m, 20)

	p := New(m, runs, hubID, log, nil)
	res, err := p.Run(context.Background(), TriggerCLI)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Published || res.CohortSize != 20 {
		t.Fatalf("result %+v", res)
	}

	dbc := dbctx.New(context.Background())
	recent, err := runs.ListRecent(dbc, hubID, 5)
	if err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent: err=%v len=%d", err, len(recent))
	}
	if r := recent[0]; r.Status != types.RunStatusSucceeded || !r.Published || r.Folded != 40 || r.Trigger != TriggerCLI || r.FinishedAt == nil {
		t.Fatalf("run row %+v", r)
	}

	edges, err := graphs.ListEdges(dbc, hubID)
	if err != nil || len(edges) != res.Edges {
		t.Fatalf("mirrored edges: err=%v got=%d want=%d", err, len(edges), res.Edges)
	}
	pub, err := graphs.LatestPublication(dbc, hubID)
	if err != nil || pub == nil || pub.CohortID != res.CohortID || pub.SampleSize != 20 {
		t.Fatalf("publication %+v err=%v", pub, err)
	}

	// second pass has nothing new
	res, err = p.Run(context.Background(), TriggerInterval)
	if err != nil || res.Published || res.Reason != sentry.ReasonNoNewEvents {
		t.Fatalf("second pass %+v err=%v", res, err)
	}
	if recent, _ := runs.ListRecent(dbc, hubID, 5); len(recent) != 2 || recent[0].Reason != sentry.ReasonNoNewEvents {
		t.Fatalf("second run not recorded: %+v", recent)
	}
}

func TestPipelineWithoutDatabase(t *testing.T) {
	m := newMiner(t)
	appendCohort(t, m, 3)
	res, err := New(m, nil, "hub-nodb", nil, nil).Run(context.Background(), TriggerAPI)
	if err != nil || res.Published || res.Reason != sentry.ReasonPoolTooSmall {
		t.Fatalf("result %+v err=%v", res, err)
	}
}
