package skillgraph

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Edge mirrors one edge of the hub's currently published skill graph. The
// whole set for a hub is replaced on every publication.
type Edge struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	HubID     string `gorm:"column:hub_id;not null;index:idx_skill_graph_edge,unique,priority:1" json:"hub_id"`
	FromSkill string `gorm:"column:from_skill;not null;index:idx_skill_graph_edge,unique,priority:2" json:"from"`
	ToSkill   string `gorm:"column:to_skill;not null;index:idx_skill_graph_edge,unique,priority:3" json:"to"`

	Weight     float64 `gorm:"column:weight;not null;default:1" json:"weight"`
	Confidence float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`
	SampleSize int     `gorm:"column:sample_size;not null;default:0" json:"sample_size"`

	PublicationID uuid.UUID `gorm:"type:uuid;column:publication_id;not null;index" json:"publication_id"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

func (Edge) TableName() string { return "skill_graph_edge" }

func (e *Edge) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Publication is the audit row written for every published graph.
type Publication struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	HubID      string `gorm:"column:hub_id;not null;index" json:"hub_id"`
	CohortID   string `gorm:"column:cohort_id;not null;index" json:"cohort_id"`
	Level      string `gorm:"column:level;not null;default:'village'" json:"level"`
	SampleSize int    `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	EdgeCount  int    `gorm:"column:edge_count;not null;default:0" json:"edge_count"`

	// Document is the graph exactly as written for the scheduler.
	Document datatypes.JSON `gorm:"column:document" json:"document,omitempty"`

	GraphCreatedAt time.Time `gorm:"column:graph_created_at;not null" json:"graph_created_at"`
	PublishedAt    time.Time `gorm:"column:published_at;not null;index" json:"published_at"`
}

func (Publication) TableName() string { return "skill_graph_publication" }

func (p *Publication) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// AnalysisRun records one miner pass.
type AnalysisRun struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	HubID   string `gorm:"column:hub_id;not null;index" json:"hub_id"`
	Trigger string `gorm:"column:trigger_source;not null" json:"trigger"`
	Status  string `gorm:"column:status;not null;index" json:"status"`

	Folded     int    `gorm:"column:folded;not null;default:0" json:"folded"`
	Malformed  int    `gorm:"column:malformed;not null;default:0" json:"malformed"`
	Published  bool   `gorm:"column:published;not null;default:false" json:"published"`
	Reason     string `gorm:"column:reason" json:"reason,omitempty"`
	CohortID   string `gorm:"column:cohort_id" json:"cohort_id,omitempty"`
	CohortSize int    `gorm:"column:cohort_size;not null;default:0" json:"cohort_size"`
	EdgeCount  int    `gorm:"column:edge_count;not null;default:0" json:"edge_count"`
	Error      string `gorm:"column:error" json:"error,omitempty"`

	StartedAt  time.Time  `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (AnalysisRun) TableName() string { return "skill_graph_analysis_run" }

func (r *AnalysisRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
