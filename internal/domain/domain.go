package domain

import (
	"github.com/yungbote/learnhub/internal/domain/skillgraph"
)

const (
	RunStatusRunning   = skillgraph.RunStatusRunning
	RunStatusSucceeded = skillgraph.RunStatusSucceeded
	RunStatusFailed    = skillgraph.RunStatusFailed
)

type (
	SkillGraphEdge        = skillgraph.Edge
	SkillGraphPublication = skillgraph.Publication
	AnalysisRun           = skillgraph.AnalysisRun
)
