package sentry

import (
	"sort"
	"time"

	"github.com/yungbote/learnhub/internal/platform/fileutil"
)

// Graph is the published skill graph consumed by the scheduler.
type Graph struct {
	Edges            []Edge    `json:"edges"`
	DiscoveredCohort string    `json:"discovered_cohort"`
	SampleSize       int       `json:"sample_size"`
	Level            string    `json:"level"`
	CreatedDate      time.Time `json:"created_date"`
	LastUpdated      time.Time `json:"last_updated"`
}

// EdgesInto returns the edges whose To is skill.
func (g *Graph) EdgesInto(skill string) []Edge {
	if g == nil {
		return nil
	}
	var out []Edge
	for _, e := range g.Edges {
		if e.To == skill {
			out = append(out, e)
		}
	}
	return out
}

// BuildEdges scores every aggregated pair and returns the supported edges
// sorted by (from, to).
func BuildEdges(cells map[string]Cell, minSample int) []Edge {
	edges := make([]Edge, 0, len(cells))
	for key, c := range cells {
		prior, target, ok := splitPair(key)
		if !ok || prior == target {
			continue
		}
		if e, ok := ComputeEdge(prior, target, c, minSample); ok {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// LoadGraph reads a published graph; ok is false if none exists yet.
func LoadGraph(path string) (*Graph, bool, error) {
	var g Graph
	found, err := fileutil.ReadJSON(path, &g)
	if err != nil || !found {
		return nil, false, err
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	return &g, true, nil
}
