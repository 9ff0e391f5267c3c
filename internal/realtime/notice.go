package realtime

import (
	"time"

	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/sentry"
)

type NoticeKind string

const (
	KindGraphPublished NoticeKind = "graph_published"
	KindBanditSummary  NoticeKind = "bandit_summary"
)

// Notice is the hub-to-hub message carried on the bus. Exactly one of
// Graph or Summary is set, matching Kind.
type Notice struct {
	Kind   NoticeKind `json:"kind"`
	HubID  string     `json:"hub_id"`
	SentAt time.Time  `json:"sent_at"`

	Graph   *sentry.Graph       `json:"graph,omitempty"`
	Summary *federation.Summary `json:"summary,omitempty"`
}

func GraphPublished(hubID string, g *sentry.Graph, at time.Time) Notice {
	return Notice{Kind: KindGraphPublished, HubID: hubID, SentAt: at.UTC(), Graph: g}
}

func BanditSummary(hubID string, s federation.Summary, at time.Time) Notice {
	return Notice{Kind: KindBanditSummary, HubID: hubID, SentAt: at.UTC(), Summary: &s}
}

// Valid reports whether the payload matches the kind.
func (n Notice) Valid() bool {
	if n.HubID == "" {
		return false
	}
	switch n.Kind {
	case KindGraphPublished:
		return n.Graph != nil
	case KindBanditSummary:
		return n.Summary != nil
	default:
		return false
	}
}
