package skillgraph

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/learnhub/internal/data/repos/testutil"
	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
)

func TestSkillGraphRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSkillGraphRepo(db, testutil.Logger(t))

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &types.SkillGraphPublication{HubID: "hub-a", CohortID: "aaaa1111", Level: "village", SampleSize: 20, GraphCreatedAt: t0, PublishedAt: t0}
	if err := repo.ReplaceGraph(dbc, first, []*types.SkillGraphEdge{
		testutil.Edge("add", "mul", 0, 0.8, 40),
		testutil.Edge("count", "add", 0.2, 0.5, 40),
	}); err != nil {
		t.Fatalf("ReplaceGraph: %v", err)
	}
	if first.EdgeCount != 2 {
		t.Fatalf("EdgeCount: got %d", first.EdgeCount)
	}

	other := &types.SkillGraphPublication{HubID: "hub-b", CohortID: "bbbb2222", GraphCreatedAt: t0, PublishedAt: t0}
	if err := repo.ReplaceGraph(dbc, other, []*types.SkillGraphEdge{testutil.Edge("x", "y", 1, 0, 20)}); err != nil {
		t.Fatalf("ReplaceGraph other hub: %v", err)
	}

	rows, err := repo.ListEdges(dbc, "hub-a")
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListEdges: err=%v len=%d", err, len(rows))
	}
	if rows[0].FromSkill != "add" || rows[0].PublicationID != first.ID {
		t.Fatalf("ListEdges order/publication: %+v", rows[0])
	}

	t1 := t0.Add(time.Hour)
	second := &types.SkillGraphPublication{HubID: "hub-a", CohortID: "cccc3333", GraphCreatedAt: t0, PublishedAt: t1}
	if err := repo.ReplaceGraph(dbc, second, []*types.SkillGraphEdge{testutil.Edge("sub", "div", 0.1, 0.9, 30)}); err != nil {
		t.Fatalf("ReplaceGraph second: %v", err)
	}
	rows, err = repo.ListEdges(dbc, "hub-a")
	if err != nil || len(rows) != 1 || rows[0].FromSkill != "sub" {
		t.Fatalf("after replace: err=%v rows=%v", err, rows)
	}
	if rows, err := repo.ListEdges(dbc, "hub-b"); err != nil || len(rows) != 1 {
		t.Fatalf("other hub untouched: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListEdgesFrom(dbc, "hub-a", []string{"sub", "add"}); err != nil || len(rows) != 1 {
		t.Fatalf("ListEdgesFrom: err=%v len=%d", err, len(rows))
	}

	latest, err := repo.LatestPublication(dbc, "hub-a")
	if err != nil || latest == nil || latest.ID != second.ID {
		t.Fatalf("LatestPublication: got=%v err=%v", latest, err)
	}
	if none, err := repo.LatestPublication(dbc, "hub-missing"); err != nil || none != nil {
		t.Fatalf("LatestPublication missing: got=%v err=%v", none, err)
	}
	if pubs, err := repo.ListPublications(dbc, "hub-a", 0); err != nil || len(pubs) != 2 || pubs[0].ID != second.ID {
		t.Fatalf("ListPublications: err=%v pubs=%v", err, pubs)
	}
}

func TestReplaceGraphRequiresHub(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewSkillGraphRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if err := repo.ReplaceGraph(dbc, &types.SkillGraphPublication{}, nil); err == nil {
		t.Fatalf("expected error for empty hub id")
	}
	if err := repo.ReplaceGraph(dbc, nil, nil); err == nil {
		t.Fatalf("expected error for nil publication")
	}
}
