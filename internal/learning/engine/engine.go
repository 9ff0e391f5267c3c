// Package engine is the adaptive selection façade: it owns the persisted
// Rasch, embedding and bandit state and serializes every mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/learnhub/internal/learning/bandit"
	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/learning/mathx"
	"github.com/yungbote/learnhub/internal/learning/rasch"
	"github.com/yungbote/learnhub/internal/observability"
	apperr "github.com/yungbote/learnhub/internal/pkg/errors"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

type Config struct {
	StatePath string
	HubID     string
	Hyper     Hyper
	// Rand overrides the sampling source; tests inject a seeded one.
	Rand mathx.Rand
}

type LessonSeed struct {
	LessonID   string  `json:"lessonId"`
	Difficulty float64 `json:"difficulty"`
	Skill      string  `json:"skill"`
}

type Status struct {
	HubID             string `json:"hubId,omitempty"`
	Students          int    `json:"students"`
	Lessons           int    `json:"lessons"`
	Probes            int    `json:"probes"`
	Observations      int    `json:"observations"`
	LocalObservations int    `json:"localObservations"`
	Peers             int    `json:"peers"`
	EmbeddingDim      int    `json:"embeddingDim"`
	FeatureDim        int    `json:"featureDim"`
}

type Observation struct {
	Gain     float64       `json:"gain"`
	Ability  rasch.Ability `json:"ability"`
	Assessed bool          `json:"assessed"`
}

type Engine struct {
	mu      sync.Mutex
	state   *State
	store   *Store
	hyper   Hyper
	hubID   string
	rng     mathx.Rand
	log     *logger.Logger
	metrics *observability.Metrics
}

// New loads (or initialises) the state at cfg.StatePath.
func New(cfg Config, baseLog *logger.Logger, metrics *observability.Metrics) *Engine {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	rng := cfg.Rand
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17|1))
	}
	e := &Engine{
		store:   NewStore(cfg.StatePath, baseLog, metrics),
		hyper:   cfg.Hyper,
		hubID:   cfg.HubID,
		rng:     rng,
		log:     baseLog.With("component", "engine"),
		metrics: metrics,
	}
	e.state, _ = e.store.Load(cfg.Hyper)
	return e
}

// Reload replaces the in-memory state with what is on disk.
func (e *Engine) Reload(ctx context.Context) LoadResult {
	_, span := observability.StartSpan(ctx, "engine.reload")
	defer span.End()
	e.mu.Lock()
	defer e.mu.Unlock()
	st, res := e.store.Load(e.hyper)
	e.state = st
	span.SetAttributes(attribute.String("engine.load_result", string(res)))
	return res
}

// persist saves the state. Failures are logged and swallowed; the in-memory
// state stays authoritative until the next successful save.
func (e *Engine) persist() {
	if err := e.store.Save(e.state); err != nil {
		e.metrics.IncSaveFailure()
		e.log.Error("Engine state save failed", "error", err)
	}
}

func (e *Engine) seedLocked(s LessonSeed) (bool, error) {
	id := strings.TrimSpace(s.LessonID)
	if id == "" {
		return false, fmt.Errorf("lessonId required: %w", apperr.ErrInvalidArgument)
	}
	if s.Difficulty < 1 || s.Difficulty > 5 {
		return false, fmt.Errorf("lesson %q difficulty %v outside 1-5: %w", id, s.Difficulty, apperr.ErrInvalidArgument)
	}
	_, createdVec := e.state.Embedding.EnsureLesson(id, e.rng)
	createdProbe := e.state.Rasch.RegisterProbe(id, s.Difficulty, s.Skill)
	return createdVec || createdProbe, nil
}

// SeedLesson registers one lesson. Re-seeding an existing lesson never
// changes its probe difficulty.
func (e *Engine) SeedLesson(ctx context.Context, s LessonSeed) error {
	_, err := e.SeedLessons(ctx, []LessonSeed{s})
	return err
}

// SeedLessons registers a batch and persists once. Invalid entries fail the
// whole batch before anything is changed.
func (e *Engine) SeedLessons(ctx context.Context, seeds []LessonSeed) (int, error) {
	_, span := observability.StartSpan(ctx, "engine.seed_lessons", attribute.Int("engine.seed_count", len(seeds)))
	defer span.End()

	for _, s := range seeds {
		if strings.TrimSpace(s.LessonID) == "" || s.Difficulty < 1 || s.Difficulty > 5 {
			err := fmt.Errorf("invalid seed %+v: %w", s, apperr.ErrInvalidArgument)
			observability.EndSpan(span, err)
			return 0, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	added := 0
	for _, s := range seeds {
		created, err := e.seedLocked(s)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	if added > 0 {
		e.persist()
	}
	e.log.Debug("Lessons seeded", "requested", len(seeds), "added", added)
	return added, nil
}

// SelectBestLesson Thompson-samples one lesson for the student from
// candidates. A nil candidates slice means every known lesson; an empty
// non-nil slice selects nothing. Candidates unknown to the embedding model
// get vectors on the fly. ok is false when there is nothing to score.
func (e *Engine) SelectBestLesson(ctx context.Context, studentID string, candidates []string) (lessonID string, ok bool, err error) {
	_, span := observability.StartSpan(ctx, "engine.select_best_lesson", attribute.Int("engine.candidates", len(candidates)))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(studentID) == "" {
		return "", false, fmt.Errorf("studentId required: %w", apperr.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	if err := st.Bandit.Ensure(st.Embedding.Dim); err != nil {
		e.metrics.IncSelection("error")
		e.log.Error("Bandit state invalid", "error", err)
		return "", false, err
	}

	dirty := false
	student, created := st.Embedding.EnsureStudent(studentID, e.rng)
	dirty = dirty || created

	ids := candidates
	if ids == nil {
		ids = st.Embedding.LessonOrder
	}
	seen := make(map[string]bool, len(ids))
	view := make([]bandit.Candidate, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		vec, created := st.Embedding.EnsureLesson(id, e.rng)
		dirty = dirty || created
		view = append(view, bandit.Candidate{ID: id, Vec: vec})
	}

	sel, ok, err := st.Bandit.Select(student, view, e.rng)
	if sel.Jittered {
		e.metrics.IncJitterRetry(err == nil)
	}
	if dirty {
		e.persist()
	}
	if err != nil {
		e.metrics.IncSelection("error")
		e.log.Error("Lesson selection failed", "student_id", studentID, "error", err)
		return "", false, err
	}
	if !ok {
		e.metrics.IncSelection("empty")
		return "", false, nil
	}
	e.metrics.IncSelection("selected")
	span.SetAttributes(attribute.String("engine.lesson_id", sel.LessonID))
	return sel.LessonID, true, nil
}

// RecordObservation folds one completed lesson into all three models from a
// single Rasch step, then persists.
func (e *Engine) RecordObservation(ctx context.Context, studentID, lessonID string, results []rasch.ProbeResult) (obs Observation, err error) {
	_, span := observability.StartSpan(ctx, "engine.record_observation", attribute.Int("engine.probe_results", len(results)))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(lessonID) == "" {
		return Observation{}, fmt.Errorf("studentId and lessonId required: %w", apperr.ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	// validate before touching anything so a structural error leaves all
	// three models as they were
	if err := ensurePosteriors(st); err != nil {
		e.log.Error("Bandit state invalid", "error", err)
		return Observation{}, err
	}

	assessed := false
	for _, r := range results {
		if _, ok := st.Rasch.Probes[r.ProbeID]; ok {
			assessed = true
			break
		}
	}
	gain := rasch.Update(st.Rasch, studentID, results)
	st.Embedding.Update(studentID, lessonID, gain, e.rng)
	x := bandit.Features(st.Embedding.Students[studentID], st.Embedding.Lessons[lessonID])
	if err := st.Bandit.Update(x, gain); err != nil {
		e.log.Error("Bandit update failed", "error", err)
		return Observation{}, err
	}
	if err := st.Local.Update(x, gain); err != nil {
		e.log.Error("Bandit update failed", "error", err)
		return Observation{}, err
	}
	e.persist()

	ability, _ := st.Rasch.Student(studentID)
	e.metrics.ObserveObservation(gain)
	e.log.Debug("Observation recorded", "student_id", studentID, "lesson_id", lessonID, "gain", gain)
	return Observation{Gain: gain, Ability: ability, Assessed: assessed}, nil
}

func (e *Engine) StudentAbility(studentID string) (rasch.Ability, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Rasch.Student(studentID)
}

// Probes returns a copy of the registered probes.
func (e *Engine) Probes() map[string]rasch.Probe {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]rasch.Probe, len(e.state.Rasch.Probes))
	for id, p := range e.state.Rasch.Probes {
		out[id] = p
	}
	return out
}

func ensurePosteriors(st *State) error {
	if err := st.Bandit.Ensure(st.Embedding.Dim); err != nil {
		return err
	}
	return st.Local.Ensure(st.Embedding.Dim)
}

func (e *Engine) exportLocked() (federation.Summary, error) {
	if err := ensurePosteriors(e.state); err != nil {
		return federation.Summary{}, err
	}
	s, jittered, err := federation.Export(e.state.Local)
	if jittered {
		e.metrics.IncJitterRetry(err == nil)
	}
	if err != nil {
		return federation.Summary{}, err
	}
	s.HubID = e.hubID
	return s, nil
}

// combineLocked rebuilds the selection posterior from the local evidence and
// the latest summary of every peer, folded in hub order.
func (e *Engine) combineLocked() (federation.Summary, error) {
	combined, err := e.exportLocked()
	if err != nil {
		return federation.Summary{}, err
	}
	for _, hub := range e.state.peerOrder() {
		combined, err = federation.Merge(combined, e.state.Peers[hub])
		if err != nil {
			return federation.Summary{}, fmt.Errorf("fold peer %q: %w", hub, err)
		}
	}
	a, b := combined.Natural()
	if err := e.state.Bandit.Replace(a, b, combined.SampleSize); err != nil {
		return federation.Summary{}, err
	}
	combined.HubID = e.hubID
	return combined, nil
}

// ExportBanditSummary exports the evidence observed at this hub only. Evidence
// merged from peers is never re-exported, so it cannot echo back to them.
func (e *Engine) ExportBanditSummary(ctx context.Context) (s federation.Summary, err error) {
	_, span := observability.StartSpan(ctx, "engine.export_summary")
	defer func() { observability.EndSpan(span, err) }()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exportLocked()
}

// MergeRemoteSummary records remote as the latest summary from its hub and
// rebuilds A and b = A·mean from the local evidence plus every peer's latest
// summary. A summary with the sample size already recorded for that hub
// changes nothing. source labels metrics and logs ("http", "bus", "cli").
func (e *Engine) MergeRemoteSummary(ctx context.Context, remote federation.Summary, source string) (merged federation.Summary, err error) {
	_, span := observability.StartSpan(ctx, "engine.merge_remote_summary",
		attribute.String("federation.source", source),
		attribute.String("federation.remote_hub", remote.HubID),
		attribute.Int("federation.remote_sample_size", remote.SampleSize),
	)
	status := "ok"
	defer func() {
		observability.EndSpan(span, err)
		if err != nil {
			status = "error"
		}
		e.metrics.IncMerge(source, status)
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	hub := strings.TrimSpace(remote.HubID)
	if err := e.checkRemoteLocked(hub, remote); err != nil {
		e.log.Warn("Remote summary rejected", "source", source, "remote_hub", remote.HubID, "error", err)
		return federation.Summary{}, err
	}
	remote.HubID = hub

	if prev, ok := e.state.Peers[hub]; ok && prev.SampleSize == remote.SampleSize {
		status = "unchanged"
		return e.combinedLocked()
	}

	prev, hadPrev := e.state.Peers[hub]
	e.state.Peers[hub] = remote
	merged, err = e.combineLocked()
	if err != nil {
		if hadPrev {
			e.state.Peers[hub] = prev
		} else {
			delete(e.state.Peers, hub)
		}
		if !errors.Is(err, federation.ErrDimensionMismatch) && !IsFatal(err) {
			err = fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
		}
		e.log.Warn("Remote summary rejected", "source", source, "remote_hub", hub, "error", err)
		return federation.Summary{}, err
	}
	e.persist()
	e.log.Info("Remote summary merged", "source", source, "remote_hub", hub,
		"local_n", e.state.Local.ObservationCount, "remote_n", remote.SampleSize,
		"peers", len(e.state.Peers), "merged_n", merged.SampleSize)
	return merged, nil
}

// checkRemoteLocked rejects summaries that cannot be attributed to another
// hub or do not fit the local posterior.
func (e *Engine) checkRemoteLocked(hub string, remote federation.Summary) error {
	if err := ensurePosteriors(e.state); err != nil {
		return err
	}
	if want := e.state.Local.FeatureDim; remote.Dim() != want {
		return fmt.Errorf("remote dim %d, local dim %d: %w", remote.Dim(), want, federation.ErrDimensionMismatch)
	}
	if err := remote.Validate(); err != nil {
		if errors.Is(err, federation.ErrDimensionMismatch) {
			return err
		}
		return fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
	}
	if hub == "" {
		return fmt.Errorf("summary has no hubId: %w", apperr.ErrInvalidArgument)
	}
	if hub == e.hubID {
		return fmt.Errorf("summary from this hub %q: %w", hub, apperr.ErrInvalidArgument)
	}
	return nil
}

// combinedLocked summarises the current selection posterior.
func (e *Engine) combinedLocked() (federation.Summary, error) {
	s, jittered, err := federation.Export(e.state.Bandit)
	if jittered {
		e.metrics.IncJitterRetry(err == nil)
	}
	if err != nil {
		return federation.Summary{}, err
	}
	s.HubID = e.hubID
	return s, nil
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	return Status{
		HubID:             e.hubID,
		Students:          len(st.Rasch.Students),
		Lessons:           len(st.Embedding.Lessons),
		Probes:            len(st.Rasch.Probes),
		Observations:      st.Bandit.ObservationCount,
		LocalObservations: st.Local.ObservationCount,
		Peers:             len(st.Peers),
		EmbeddingDim:      st.Embedding.Dim,
		FeatureDim:        st.Bandit.FeatureDim,
	}
}

// Save forces a persist, e.g. on shutdown.
func (e *Engine) Save() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Save(e.state)
}
