package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/learnhub/internal/data/repos/skillgraph"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type Repos struct {
	SkillGraph   skillgraph.SkillGraphRepo
	AnalysisRuns skillgraph.AnalysisRunRepo
}

// wireRepos returns an empty set when the database is disabled.
func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	if db == nil {
		return Repos{}
	}
	log.Info("Wiring repos...")
	return Repos{
		SkillGraph:   skillgraph.NewSkillGraphRepo(db, log),
		AnalysisRuns: skillgraph.NewAnalysisRunRepo(db, log),
	}
}
