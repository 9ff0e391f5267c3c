package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/learnhub/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Published skill graph mirror
		&types.SkillGraphEdge{},
		&types.SkillGraphPublication{},

		// Miner audit
		&types.AnalysisRun{},
	)
}
