package bus

import (
	"context"

	"github.com/yungbote/learnhub/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, n realtime.Notice) error
	StartForwarder(ctx context.Context, onMsg func(n realtime.Notice)) error
	Close() error
}

type Config struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}
