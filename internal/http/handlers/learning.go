package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnhub/internal/http/response"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/learning/rasch"
	"github.com/yungbote/learnhub/internal/learning/theta"
	apperr "github.com/yungbote/learnhub/internal/pkg/errors"
	"github.com/yungbote/learnhub/internal/platform/apierr"
	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

// SkillSource supplies the published graph and per-student mastery.
type SkillSource interface {
	Graph() (*sentry.Graph, bool, error)
	StudentMastery(studentID string) (map[string]float64, error)
}

type LearningHandler struct {
	engine      *engine.Engine
	skills      SkillSource
	catalogPath string
	threshold   float64
	log         *logger.Logger
}

func NewLearningHandler(eng *engine.Engine, skills SkillSource, catalogPath string, masteryThreshold float64, baseLog *logger.Logger) *LearningHandler {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &LearningHandler{
		engine:      eng,
		skills:      skills,
		catalogPath: catalogPath,
		threshold:   masteryThreshold,
		log:         baseLog.With("handler", "LearningHandler"),
	}
}

type seedLessonsRequest struct {
	Lessons []engine.LessonSeed `json:"lessons"`
}

func (h *LearningHandler) SeedLessons(c *gin.Context) {
	var req seedLessonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.Lessons) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("lessons required"))
		return
	}
	added, err := h.engine.SeedLessons(c.Request.Context(), req.Lessons)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"added": added, "lessons": h.engine.Status().Lessons})
}

type selectRequest struct {
	// Candidates absent means every known lesson; [] means none.
	Candidates *[]string `json:"candidates"`
}

type selectResponse struct {
	LessonID   string            `json:"lessonId,omitempty"`
	Found      bool              `json:"found"`
	Candidates []theta.Candidate `json:"candidates,omitempty"`
}

func (h *LearningHandler) SelectLesson(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	var req selectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	var candidates []string
	if req.Candidates != nil {
		candidates = append([]string{}, (*req.Candidates)...)
	}
	id, ok, err := h.engine.SelectBestLesson(c.Request.Context(), studentID, candidates)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, selectResponse{LessonID: id, Found: ok})
}

type nextRequest struct {
	GoalSkill string `json:"goalSkill"`
}

// NextLesson narrows the catalog to eligible lessons and lets the bandit
// pick among them.
func (h *LearningHandler) NextLesson(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	var req nextRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	catalog, err := theta.LoadCatalog(h.catalogPath)
	if err != nil {
		respondErr(c, h.log, fmt.Errorf("load catalog: %w", err))
		return
	}
	mastery, err := h.skills.StudentMastery(studentID)
	if err != nil {
		respondErr(c, h.log, fmt.Errorf("load mastery: %w", err))
		return
	}
	g, _, err := h.skills.Graph()
	if err != nil {
		h.log.Warn("Skill graph unreadable, pricing without discounts", "error", err)
		g = nil
	}

	cands := theta.Eligible(catalog, mastery, g, theta.Options{MasteryThreshold: h.threshold, GoalSkill: req.GoalSkill})
	if len(cands) == 0 {
		response.RespondOK(c, selectResponse{Found: false, Candidates: []theta.Candidate{}})
		return
	}
	id, ok, err := h.engine.SelectBestLesson(c.Request.Context(), studentID, theta.IDs(cands))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, selectResponse{LessonID: id, Found: ok, Candidates: cands})
}

func (h *LearningHandler) StudentAbility(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	ab, ok := h.engine.StudentAbility(studentID)
	if !ok {
		respondErr(c, h.log, apierr.NotFound("student_not_found", fmt.Errorf("student %q: %w", studentID, apperr.ErrNotFound)))
		return
	}
	response.RespondOK(c, gin.H{"studentId": studentID, "ability": ab.Ability, "variance": ab.Variance})
}

type observationRequest struct {
	StudentID    string              `json:"studentId"`
	LessonID     string              `json:"lessonId"`
	ProbeResults []rasch.ProbeResult `json:"probeResults"`
	// Results is the older field name, read only when probeResults is absent.
	Results []rasch.ProbeResult `json:"results"`
}

func (r observationRequest) probeResults() []rasch.ProbeResult {
	if r.ProbeResults != nil {
		return r.ProbeResults
	}
	return r.Results
}

func (h *LearningHandler) RecordObservation(c *gin.Context) {
	var req observationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	obs, err := h.engine.RecordObservation(c.Request.Context(), strings.TrimSpace(req.StudentID), strings.TrimSpace(req.LessonID), req.probeResults())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	response.RespondOK(c, obs)
}

func (h *LearningHandler) Status(c *gin.Context) {
	out := gin.H{"engine": h.engine.Status()}
	if g, ok, err := h.skills.Graph(); err == nil && ok {
		out["graph"] = gin.H{
			"cohort":      g.DiscoveredCohort,
			"edges":       len(g.Edges),
			"sampleSize":  g.SampleSize,
			"lastUpdated": g.LastUpdated,
		}
	}
	response.RespondOK(c, out)
}
