package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/learnhub/internal/learning/bandit"
	"github.com/yungbote/learnhub/internal/learning/embedding"
	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/learning/rasch"
)

const StateVersion = 1

// State is the persisted aggregate of all three models.
//
// Bandit is the posterior used for selection. Local holds only the evidence
// observed at this hub and is what gets exported; Peers keeps the latest
// summary merged from each other hub. Bandit is rebuilt from Local and Peers
// on every merge, so a peer's evidence is counted once however often it
// arrives.
type State struct {
	Version   int                           `json:"version"`
	Rasch     *rasch.State                  `json:"rasch"`
	Embedding *embedding.Model              `json:"embedding"`
	Bandit    *bandit.Posterior             `json:"bandit"`
	Local     *bandit.Posterior             `json:"local,omitempty"`
	Peers     map[string]federation.Summary `json:"peers,omitempty"`
}

type Hyper struct {
	Dim              int     `yaml:"dim"`
	LearningRate     float64 `yaml:"learning_rate"`
	Regularization   float64 `yaml:"regularization"`
	Forgetting       float64 `yaml:"forgetting"`
	BanditForgetting float64 `yaml:"bandit_forgetting"`
}

func DefaultHyper() Hyper {
	return Hyper{
		Dim:              embedding.DefaultDim,
		LearningRate:     embedding.DefaultLR,
		Regularization:   embedding.DefaultReg,
		Forgetting:       embedding.DefaultForgetting,
		BanditForgetting: bandit.DefaultForgetting,
	}
}

func NewState(h Hyper) *State {
	d := DefaultHyper()
	if h.Dim <= 0 {
		h.Dim = d.Dim
	}
	if h.LearningRate <= 0 {
		h.LearningRate = d.LearningRate
	}
	if h.Regularization < 0 {
		h.Regularization = d.Regularization
	}
	if h.Forgetting <= 0 || h.Forgetting > 1 {
		h.Forgetting = d.Forgetting
	}
	if h.BanditForgetting <= 0 || h.BanditForgetting > 1 {
		h.BanditForgetting = d.BanditForgetting
	}
	return &State{
		Version:   StateVersion,
		Rasch:     rasch.NewState(),
		Embedding: embedding.New(h.Dim, h.LearningRate, h.Regularization, h.Forgetting),
		Bandit:    bandit.New(h.Dim, h.BanditForgetting),
		Local:     bandit.New(h.Dim, h.BanditForgetting),
		Peers:     map[string]federation.Summary{},
	}
}

// normalize fills sections missing from a decoded file and rejects content
// that cannot be a valid state.
func (s *State) normalize(h Hyper) error {
	if s.Version > StateVersion {
		return fmt.Errorf("version %d > %d: %w", s.Version, StateVersion, ErrUnsupportedVersion)
	}
	s.Version = StateVersion
	fresh := NewState(h)
	if s.Rasch == nil {
		s.Rasch = fresh.Rasch
	}
	s.Rasch.Normalize()
	if s.Embedding == nil {
		s.Embedding = fresh.Embedding
	}
	s.Embedding.Normalize()
	for id, v := range s.Embedding.Students {
		if len(v) != s.Embedding.Dim {
			return fmt.Errorf("student %q vector has %d dims, want %d: %w", id, len(v), s.Embedding.Dim, ErrCorruptState)
		}
	}
	for id, v := range s.Embedding.Lessons {
		if len(v) != s.Embedding.Dim {
			return fmt.Errorf("lesson %q vector has %d dims, want %d: %w", id, len(v), s.Embedding.Dim, ErrCorruptState)
		}
	}
	if s.Bandit == nil {
		s.Bandit = bandit.New(s.Embedding.Dim, fresh.Bandit.Forgetting)
	}
	// files written before peers were tracked hold only local evidence
	if s.Local == nil {
		s.Local = s.Bandit.Clone()
	}
	if s.Peers == nil {
		s.Peers = map[string]federation.Summary{}
	}
	for hub, p := range s.Peers {
		if strings.TrimSpace(hub) == "" || p.Dim() != 2*s.Embedding.Dim || p.Validate() != nil {
			delete(s.Peers, hub)
		}
	}
	return nil
}

// peerOrder is the fold order used when rebuilding Bandit.
func (s *State) peerOrder() []string {
	hubs := make([]string, 0, len(s.Peers))
	for hub := range s.Peers {
		hubs = append(hubs, hub)
	}
	sort.Strings(hubs)
	return hubs
}
