// Package sentry mines the completion event stream for skill-transfer
// relationships and publishes them as a confidence-scored skill graph.
package sentry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedEvent = errors.New("sentry: malformed event")

type SkillEvidence struct {
	Skill          string  `json:"skill"`
	EvidencedLevel float64 `json:"evidencedLevel"`
}

// Event is one lesson completion as written to the event log.
type Event struct {
	PseudoID       string          `json:"pseudoId"`
	LessonID       string          `json:"lessonId,omitempty"`
	SkillsProvided []SkillEvidence `json:"skillsProvided"`
	SkillsRequired []string        `json:"skillsRequired"`
	Mastery        float64         `json:"mastery"`
	CompletedAt    time.Time       `json:"completedAt"`
}

// Validate normalizes skill names and rejects events the miner cannot use.
func (e *Event) Validate() error {
	e.PseudoID = strings.TrimSpace(e.PseudoID)
	if e.PseudoID == "" {
		return fmt.Errorf("pseudoId required: %w", ErrMalformedEvent)
	}
	if e.Mastery < 0 || e.Mastery > 1 || e.Mastery != e.Mastery {
		return fmt.Errorf("mastery %v outside [0,1]: %w", e.Mastery, ErrMalformedEvent)
	}
	provided := e.SkillsProvided[:0]
	for _, s := range e.SkillsProvided {
		s.Skill = strings.TrimSpace(s.Skill)
		if s.Skill == "" {
			continue
		}
		if s.EvidencedLevel < 0 || s.EvidencedLevel > 1 || s.EvidencedLevel != s.EvidencedLevel {
			return fmt.Errorf("skill %q level %v outside [0,1]: %w", s.Skill, s.EvidencedLevel, ErrMalformedEvent)
		}
		provided = append(provided, s)
	}
	e.SkillsProvided = provided
	required := e.SkillsRequired[:0]
	for _, s := range e.SkillsRequired {
		if s = strings.TrimSpace(s); s != "" {
			required = append(required, s)
		}
	}
	e.SkillsRequired = required
	return nil
}

// ParseEvent decodes and validates one NDJSON line.
func ParseEvent(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, fmt.Errorf("%v: %w", err, ErrMalformedEvent)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
