package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/platform/neo4jdb"
	"github.com/yungbote/learnhub/internal/sentry"
)

// SkillGraphPublisher mirrors each published graph into neo4j as
// (:Skill)-[:COLLAPSES_INTO]->(:Skill) relationships scoped by hub.
type SkillGraphPublisher struct {
	client *neo4jdb.Client
	log    *logger.Logger
	hubID  string
}

func NewSkillGraphPublisher(client *neo4jdb.Client, baseLog *logger.Logger, hubID string) *SkillGraphPublisher {
	return &SkillGraphPublisher{
		client: client,
		log:    baseLog.With("publisher", "Neo4jSkillGraph"),
		hubID:  strings.TrimSpace(hubID),
	}
}

func (p *SkillGraphPublisher) Name() string { return "neo4j" }

func (p *SkillGraphPublisher) Publish(ctx context.Context, g *sentry.Graph) error {
	if p == nil || p.client == nil || p.client.Driver == nil || g == nil {
		return nil
	}
	if p.hubID == "" {
		return fmt.Errorf("neo4j skill graph sync: missing hub id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	skills := map[string]struct{}{}
	rels := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.From == "" || e.To == "" {
			continue
		}
		skills[e.From] = struct{}{}
		skills[e.To] = struct{}{}
		rels = append(rels, map[string]any{
			"from":        e.From,
			"to":          e.To,
			"weight":      e.Weight,
			"confidence":  e.Confidence,
			"sample_size": int64(e.SampleSize),
		})
	}
	nodes := make([]string, 0, len(skills))
	for s := range skills {
		nodes = append(nodes, s)
	}

	session := p.client.WriteSession(ctx)
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT skill_name_unique IF NOT EXISTS FOR (s:Skill) REQUIRE s.name IS UNIQUE`, nil); err != nil {
		p.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Skill)-[e:COLLAPSES_INTO {hub_id: $hub_id}]->(:Skill)
DELETE e
`, map[string]any{"hub_id": p.hubID})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $names AS name
MERGE (s:Skill {name: name})
SET s.synced_at = $synced_at
`, map[string]any{"names": nodes, "synced_at": now})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(rels) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rels AS r
MATCH (a:Skill {name: r.from})
MATCH (b:Skill {name: r.to})
MERGE (a)-[e:COLLAPSES_INTO {hub_id: $hub_id}]->(b)
SET e.weight = r.weight,
    e.confidence = r.confidence,
    e.sample_size = r.sample_size,
    e.cohort = $cohort,
    e.level = $level,
    e.synced_at = $synced_at
`, map[string]any{
				"rels":      rels,
				"hub_id":    p.hubID,
				"cohort":    g.DiscoveredCohort,
				"level":     g.Level,
				"synced_at": now,
			})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j skill graph sync: %w", err)
	}
	p.log.Debug("skill graph synced", "hub_id", p.hubID, "edges", len(rels))
	return nil
}
