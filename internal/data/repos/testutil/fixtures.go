package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/learnhub/internal/domain"
)

func SeedPublication(tb testing.TB, ctx context.Context, tx *gorm.DB, hubID, cohortID string, at time.Time) *types.SkillGraphPublication {
	tb.Helper()
	p := &types.SkillGraphPublication{
		ID:             uuid.New(),
		HubID:          hubID,
		CohortID:       cohortID,
		Level:          "village",
		SampleSize:     20,
		Document:       datatypes.JSON([]byte(`{"edges":[]}`)),
		GraphCreatedAt: at,
		PublishedAt:    at,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed publication: %v", err)
	}
	return p
}

func Edge(from, to string, weight, confidence float64, n int) *types.SkillGraphEdge {
	return &types.SkillGraphEdge{
		FromSkill:  from,
		ToSkill:    to,
		Weight:     weight,
		Confidence: confidence,
		SampleSize: n,
	}
}
