package skillgraph

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/learnhub/internal/domain"
	"github.com/yungbote/learnhub/internal/pkg/dbctx"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type AnalysisRunRepo interface {
	Start(dbc dbctx.Context, hubID, trigger string, startedAt time.Time) (*types.AnalysisRun, error)
	Finish(dbc dbctx.Context, run *types.AnalysisRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AnalysisRun, error)
	ListRecent(dbc dbctx.Context, hubID string, limit int) ([]*types.AnalysisRun, error)
}

type analysisRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRunRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRunRepo {
	return &analysisRunRepo{db: db, log: baseLog.With("repo", "AnalysisRunRepo")}
}

func (r *analysisRunRepo) Start(dbc dbctx.Context, hubID, trigger string, startedAt time.Time) (*types.AnalysisRun, error) {
	row := &types.AnalysisRun{
		HubID:     hubID,
		Trigger:   trigger,
		Status:    types.RunStatusRunning,
		StartedAt: startedAt.UTC(),
	}
	if err := dbc.Conn(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *analysisRunRepo) Finish(dbc dbctx.Context, run *types.AnalysisRun) error {
	if run == nil || run.ID == uuid.Nil {
		return nil
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	return dbc.Conn(r.db).
		Model(&types.AnalysisRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":      run.Status,
			"folded":      run.Folded,
			"malformed":   run.Malformed,
			"published":   run.Published,
			"reason":      run.Reason,
			"cohort_id":   run.CohortID,
			"cohort_size": run.CohortSize,
			"edge_count":  run.EdgeCount,
			"error":       run.Error,
			"finished_at": run.FinishedAt,
		}).Error
}

func (r *analysisRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AnalysisRun, error) {
	var out types.AnalysisRun
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *analysisRunRepo) ListRecent(dbc dbctx.Context, hubID string, limit int) ([]*types.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*types.AnalysisRun
	if err := dbc.Conn(r.db).
		Where("hub_id = ?", hubID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
