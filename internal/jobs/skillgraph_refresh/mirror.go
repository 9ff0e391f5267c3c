package skillgraph_refresh

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/yungbote/learnhub/internal/data/repos/skillgraph"
	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
	"github.com/yungbote/learnhub/internal/sentry"
)

// MirrorPublisher keeps the relational copy of the published graph.
type MirrorPublisher struct {
	repo  skillgraph.SkillGraphRepo
	hubID string
}

func NewMirrorPublisher(repo skillgraph.SkillGraphRepo, hubID string) *MirrorPublisher {
	return &MirrorPublisher{repo: repo, hubID: hubID}
}

func (p *MirrorPublisher) Name() string { return "database" }

func (p *MirrorPublisher) Publish(ctx context.Context, g *sentry.Graph) error {
	if p == nil || p.repo == nil || g == nil {
		return nil
	}
	doc, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pub := &types.SkillGraphPublication{
		HubID:          p.hubID,
		CohortID:       g.DiscoveredCohort,
		Level:          g.Level,
		SampleSize:     g.SampleSize,
		Document:       datatypes.JSON(doc),
		GraphCreatedAt: g.CreatedDate,
		PublishedAt:    g.LastUpdated,
	}
	edges := make([]*types.SkillGraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, &types.SkillGraphEdge{
			FromSkill:  e.From,
			ToSkill:    e.To,
			Weight:     e.Weight,
			Confidence: e.Confidence,
			SampleSize: e.SampleSize,
		})
	}
	return p.repo.ReplaceGraph(dbctx.New(ctx), pub, edges)
}
