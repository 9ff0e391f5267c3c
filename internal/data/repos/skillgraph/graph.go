package skillgraph

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type SkillGraphRepo interface {
	// ReplaceGraph swaps the hub's mirrored edge set for edges and records pub.
	ReplaceGraph(dbc dbctx.Context, pub *types.SkillGraphPublication, edges []*types.SkillGraphEdge) error

	ListEdges(dbc dbctx.Context, hubID string) ([]*types.SkillGraphEdge, error)
	ListEdgesFrom(dbc dbctx.Context, hubID string, fromSkills []string) ([]*types.SkillGraphEdge, error)
	LatestPublication(dbc dbctx.Context, hubID string) (*types.SkillGraphPublication, error)
	ListPublications(dbc dbctx.Context, hubID string, limit int) ([]*types.SkillGraphPublication, error)
}

type skillGraphRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillGraphRepo(db *gorm.DB, baseLog *logger.Logger) SkillGraphRepo {
	return &skillGraphRepo{db: db, log: baseLog.With("repo", "SkillGraphRepo")}
}

func (r *skillGraphRepo) ReplaceGraph(dbc dbctx.Context, pub *types.SkillGraphPublication, edges []*types.SkillGraphEdge) error {
	if pub == nil {
		return errors.New("publication is required")
	}
	hubID := strings.TrimSpace(pub.HubID)
	if hubID == "" {
		return errors.New("publication hub id is required")
	}
	pub.EdgeCount = len(edges)

	return dbc.Conn(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pub).Error; err != nil {
			return err
		}
		if err := tx.Where("hub_id = ?", hubID).Delete(&types.SkillGraphEdge{}).Error; err != nil {
			return err
		}
		if len(edges) == 0 {
			return nil
		}
		for _, e := range edges {
			e.HubID = hubID
			e.PublicationID = pub.ID
			if e.CreatedAt.IsZero() {
				e.CreatedAt = pub.PublishedAt
			}
		}
		return tx.CreateInBatches(&edges, 200).Error
	})
}

func (r *skillGraphRepo) ListEdges(dbc dbctx.Context, hubID string) ([]*types.SkillGraphEdge, error) {
	var out []*types.SkillGraphEdge
	if err := dbc.Conn(r.db).
		Where("hub_id = ?", hubID).
		Order("from_skill ASC, to_skill ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillGraphRepo) ListEdgesFrom(dbc dbctx.Context, hubID string, fromSkills []string) ([]*types.SkillGraphEdge, error) {
	var out []*types.SkillGraphEdge
	if len(fromSkills) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("hub_id = ? AND from_skill IN ?", hubID, fromSkills).
		Order("from_skill ASC, to_skill ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillGraphRepo) LatestPublication(dbc dbctx.Context, hubID string) (*types.SkillGraphPublication, error) {
	var out types.SkillGraphPublication
	err := dbc.Conn(r.db).
		Where("hub_id = ?", hubID).
		Order("published_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.HubID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *skillGraphRepo) ListPublications(dbc dbctx.Context, hubID string, limit int) ([]*types.SkillGraphPublication, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.SkillGraphPublication
	if err := dbc.Conn(r.db).
		Omit("document").
		Where("hub_id = ?", hubID).
		Order("published_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
