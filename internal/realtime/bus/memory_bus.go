package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/yungbote/learnhub/internal/realtime"
)

// MemoryBus fans notices out in-process. A hub without redis uses it so
// the notice path stays the same.
type MemoryBus struct {
	mu     sync.Mutex
	subs   []func(realtime.Notice)
	closed bool
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(_ context.Context, n realtime.Notice) error {
	// round-trip through JSON so subscribers see what redis would deliver
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	subs := append([]func(realtime.Notice){}, b.subs...)
	b.mu.Unlock()

	for _, fn := range subs {
		var cp realtime.Notice
		if err := json.Unmarshal(raw, &cp); err != nil {
			return err
		}
		fn(cp)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(n realtime.Notice)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	idx := len(b.subs)
	b.subs = append(b.subs, onMsg)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if idx < len(b.subs) {
			b.subs[idx] = func(realtime.Notice) {}
		}
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
	return nil
}
