package skillgraph

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/learnhub/internal/data/repos/testutil"
	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
)

func TestAnalysisRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewAnalysisRunRepo(db, testutil.Logger(t))

	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	run, err := repo.Start(dbc, "hub-runs", "watch", t0)
	if err != nil || run == nil || run.Status != types.RunStatusRunning {
		t.Fatalf("Start: run=%v err=%v", run, err)
	}

	run.Status = types.RunStatusSucceeded
	run.Folded = 12
	run.Published = true
	run.CohortID = "abcd1234"
	run.CohortSize = 25
	run.EdgeCount = 3
	if err := repo.Finish(dbc, run); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := repo.GetByID(dbc, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.RunStatusSucceeded || got.Folded != 12 || !got.Published || got.FinishedAt == nil {
		t.Fatalf("finished row: %+v", got)
	}

	if _, err := repo.Start(dbc, "hub-runs", "interval", t0.Add(time.Minute)); err != nil {
		t.Fatalf("Start second: %v", err)
	}
	runs, err := repo.ListRecent(dbc, "hub-runs", 10)
	if err != nil || len(runs) != 2 || runs[0].Trigger != "interval" {
		t.Fatalf("ListRecent: err=%v runs=%v", err, runs)
	}
}
