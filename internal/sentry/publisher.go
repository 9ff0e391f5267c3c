package sentry

import (
	"context"

	"github.com/yungbote/learnhub/internal/platform/fileutil"
)

// Publisher receives every newly computed graph. The graph replaces
// whatever the sink held before.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, g *Graph) error
}

// FilePublisher writes the graph document atomically.
type FilePublisher struct {
	Path string
}

func (p FilePublisher) Name() string { return "file" }

func (p FilePublisher) Publish(_ context.Context, g *Graph) error {
	return fileutil.WriteJSONAtomic(p.Path, g)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc struct {
	SinkName string
	Fn       func(ctx context.Context, g *Graph) error
}

func (p PublisherFunc) Name() string { return p.SinkName }

func (p PublisherFunc) Publish(ctx context.Context, g *Graph) error { return p.Fn(ctx, g) }
