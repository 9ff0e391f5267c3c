package sentry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type Config struct {
	EventsDir        string  `yaml:"events_dir"`
	StateDir         string  `yaml:"state_dir"`
	Level            string  `yaml:"level"`
	MasteryThreshold float64 `yaml:"mastery_threshold"`
	PassThreshold    float64 `yaml:"pass_threshold"`
	MinSimilarity    float64 `yaml:"min_similarity"`
	MinCohortSize    int     `yaml:"min_cohort_size"`
	MinSampleSize    int     `yaml:"min_sample_size"`
}

func DefaultConfig() Config {
	return Config{
		Level:            "village",
		MasteryThreshold: 0.6,
		PassThreshold:    0.6,
		MinSimilarity:    0.5,
		MinCohortSize:    20,
		MinSampleSize:    20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.MasteryThreshold <= 0 {
		c.MasteryThreshold = d.MasteryThreshold
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = d.PassThreshold
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = d.MinSimilarity
	}
	if c.MinCohortSize <= 0 {
		c.MinCohortSize = d.MinCohortSize
	}
	if c.MinSampleSize <= 0 {
		c.MinSampleSize = d.MinSampleSize
	}
	return c
}

// Fold applies one event: contingency cells are updated against the
// student's mastery as it was before this event, then the event's provided
// skills are folded into mastery. Skills provided by the same event never
// count as each other's prior. Returns the number of cells touched.
func (st *State) Fold(ev Event, masteryThreshold, passThreshold float64) int {
	prior := st.Mastery.Students[ev.PseudoID]
	passed := ev.Mastery >= passThreshold

	seen := make(map[string]bool, len(ev.SkillsProvided))
	targets := make([]string, 0, len(ev.SkillsProvided))
	for _, s := range ev.SkillsProvided {
		if !seen[s.Skill] {
			seen[s.Skill] = true
			targets = append(targets, s.Skill)
		}
	}

	touched := 0
	for priorSkill, level := range prior {
		hadPrior := level >= masteryThreshold
		for _, target := range targets {
			if target == priorSkill {
				continue
			}
			st.Tables.cell(ev.PseudoID, priorSkill, target).Record(hadPrior, passed)
			touched++
		}
	}
	st.Mastery.Fold(ev.PseudoID, ev.SkillsProvided)
	return touched
}

// Result summarizes one analysis pass.
type Result struct {
	Folded      int       `json:"folded"`
	Malformed   int       `json:"malformed"`
	Published   bool      `json:"published"`
	Reason      string    `json:"reason,omitempty"`
	Students    int       `json:"students"`
	CohortID    string    `json:"cohortId,omitempty"`
	CohortSize  int       `json:"cohortSize"`
	Edges       int       `json:"edges"`
	Recovered   bool      `json:"recovered,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
	Graph       *Graph    `json:"-"`
}

const (
	ReasonNoNewEvents    = "no new events"
	ReasonPoolTooSmall   = "student pool below minimum cohort size"
	ReasonCohortTooSmall = "largest cohort below minimum size"
)

// Miner runs analysis passes. Passes are serialized; state is read from and
// written to disk on every pass.
type Miner struct {
	cfg        Config
	events     *EventLog
	store      *Store
	publishers []Publisher
	log        *logger.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	mu         sync.Mutex
}

func NewMiner(cfg Config, baseLog *logger.Logger, metrics *observability.Metrics, publishers ...Publisher) *Miner {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	cfg = cfg.withDefaults()
	return &Miner{
		cfg:        cfg,
		events:     NewEventLog(cfg.EventsDir),
		store:      NewStore(cfg.StateDir),
		publishers: publishers,
		log:        baseLog.With("component", "sentry_miner"),
		metrics:    metrics,
		now:        time.Now,
	}
}

func (m *Miner) Config() Config { return m.cfg }

func (m *Miner) EventLog() *EventLog { return m.events }

func (m *Miner) GraphPath() string { return m.store.GraphPath() }

// AddPublisher appends a sink; call before the first Analyze.
func (m *Miner) AddPublisher(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishers = append(m.publishers, p)
}

func (m *Miner) Graph() (*Graph, bool, error) {
	return LoadGraph(m.store.GraphPath())
}

func (m *Miner) StudentMastery(studentID string) (map[string]float64, error) {
	mastery, err := m.store.LoadMastery()
	if err != nil {
		return nil, err
	}
	return mastery.Student(studentID), nil
}

// Analyze folds every unprocessed event line, persists the tables, mastery
// and cursors once, and republishes the graph when at least one event was
// folded and the cohort gates pass. A cancelled pass persists nothing.
func (m *Miner) Analyze(ctx context.Context) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "sentry.analyze")
	defer func() { observability.EndSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	st, recovered, err := m.store.Load()
	if err != nil {
		return Result{}, err
	}
	if len(recovered) > 0 {
		res.Recovered = true
		m.metrics.IncCorruptState()
		m.log.Warn("Sentry state unreadable, backed up and replaying the event log", "files", recovered)
	}

	blank := 0
	err = m.events.Scan(ctx, st.Cursors, func(file string, lineNo int, line []byte) error {
		if len(line) == 0 {
			blank++
			return nil
		}
		ev, perr := ParseEvent(line)
		if perr != nil {
			res.Malformed++
			m.log.Debug("Skipping malformed event line", "file", file, "line", lineNo, "error", perr)
			return nil
		}
		st.Fold(ev, m.cfg.MasteryThreshold, m.cfg.PassThreshold)
		res.Folded++
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("scan events: %w", err)
	}
	m.metrics.AddEventsFolded(res.Folded)
	m.metrics.AddEventsSkipped("malformed", res.Malformed)

	res.Students = len(st.Mastery.Students)
	res.CompletedAt = m.now().UTC()
	span.SetAttributes(attribute.Int("sentry.folded", res.Folded), attribute.Int("sentry.malformed", res.Malformed))

	if res.Recovered || res.Folded+res.Malformed+blank > 0 {
		if err := m.store.Save(st); err != nil {
			return Result{}, err
		}
	}
	if res.Folded == 0 {
		res.Reason = ReasonNoNewEvents
		return res, nil
	}

	if res.Students < m.cfg.MinCohortSize {
		res.Reason = ReasonPoolTooSmall
		m.log.Info("Skill graph not published", "reason", res.Reason, "students", res.Students)
		return res, nil
	}
	cohort, _ := Largest(DiscoverCohorts(st.Mastery, m.cfg.MasteryThreshold, m.cfg.MinSimilarity))
	res.CohortID = cohort.ID
	res.CohortSize = cohort.Size()
	if cohort.Size() < m.cfg.MinCohortSize {
		res.Reason = ReasonCohortTooSmall
		m.log.Info("Skill graph not published", "reason", res.Reason, "cohort_size", cohort.Size())
		return res, nil
	}

	edges := BuildEdges(st.Tables.Aggregate(cohort.Members), m.cfg.MinSampleSize)
	g := &Graph{
		Edges:            edges,
		DiscoveredCohort: cohort.ID,
		SampleSize:       cohort.Size(),
		Level:            m.cfg.Level,
		CreatedDate:      res.CompletedAt,
		LastUpdated:      res.CompletedAt,
	}
	if prev, ok, perr := LoadGraph(m.store.GraphPath()); perr == nil && ok && !prev.CreatedDate.IsZero() {
		g.CreatedDate = prev.CreatedDate
	}

	if err := (FilePublisher{Path: m.store.GraphPath()}).Publish(ctx, g); err != nil {
		m.metrics.IncPublishFailure("file")
		return res, fmt.Errorf("write skill graph: %w", err)
	}
	for _, p := range m.publishers {
		if perr := p.Publish(ctx, g); perr != nil {
			m.metrics.IncPublishFailure(p.Name())
			m.log.Warn("Skill graph sink failed", "sink", p.Name(), "error", perr)
		}
	}

	res.Published = true
	res.Edges = len(edges)
	res.Graph = g
	m.metrics.SetPublishedGraph(len(edges), cohort.Size())
	m.log.Info("Skill graph published", "cohort", cohort.ID, "cohort_size", cohort.Size(), "edges", len(edges), "folded", res.Folded)
	return res, nil
}
