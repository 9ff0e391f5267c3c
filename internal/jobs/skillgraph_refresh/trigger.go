package skillgraph_refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/sentry"
)

const (
	TriggerWatch    = "watch"
	TriggerInterval = "interval"
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
)

type TriggerConfig struct {
	// Watch runs a pass when event files in the events dir change.
	Watch bool `yaml:"watch"`
	// Debounce is the quiet period after the last file change.
	Debounce time.Duration `yaml:"debounce"`
	// Interval runs a pass periodically; zero disables the ticker.
	Interval time.Duration `yaml:"interval"`
	// MinSpacing is the minimum time between two passes.
	MinSpacing time.Duration `yaml:"min_spacing"`
}

func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Watch:      true,
		Debounce:   2 * time.Second,
		Interval:   15 * time.Minute,
		MinSpacing: 10 * time.Second,
	}
}

// Runner runs one analysis pass.
type Runner interface {
	Run(ctx context.Context, trigger string) (sentry.Result, error)
}

// Trigger schedules analysis passes from file changes, a ticker and
// explicit requests. Concurrent requests share one pass.
type Trigger struct {
	runner  Runner
	dir     string
	cfg     TriggerConfig
	log     *logger.Logger
	group   singleflight.Group
	limiter *rate.Limiter
}

func NewTrigger(runner Runner, eventsDir string, cfg TriggerConfig, baseLog *logger.Logger) *Trigger {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultTriggerConfig().Debounce
	}
	limit := rate.Inf
	if cfg.MinSpacing > 0 {
		limit = rate.Every(cfg.MinSpacing)
	}
	return &Trigger{
		runner:  runner,
		dir:     eventsDir,
		cfg:     cfg,
		log:     baseLog.With("component", "SkillGraphTrigger"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// RunNow runs a pass, or joins the one already in flight.
func (t *Trigger) RunNow(ctx context.Context, source string) (sentry.Result, error) {
	v, err, _ := t.group.Do("analyze", func() (any, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			return sentry.Result{}, err
		}
		return t.runner.Run(ctx, source)
	})
	res, _ := v.(sentry.Result)
	return res, err
}

// Start blocks until ctx is done.
func (t *Trigger) Start(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if t.cfg.Watch {
		w, err := t.watch()
		if err != nil {
			return err
		}
		defer w.Close()
		events, watchErrs = w.Events, w.Errors
	}

	var tick <-chan time.Time
	if t.cfg.Interval > 0 {
		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		debounce *time.Timer
		fire     <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	t.log.Info("Skill graph trigger started", "dir", t.dir, "watch", t.cfg.Watch, "interval", t.cfg.Interval.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isEventFile(ev) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(t.cfg.Debounce)
			} else {
				debounce.Reset(t.cfg.Debounce)
			}
			fire = debounce.C
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			t.log.Warn("Event dir watch error", "error", err)
		case <-fire:
			fire = nil
			t.run(ctx, TriggerWatch)
		case <-tick:
			t.run(ctx, TriggerInterval)
		}
	}
}

func (t *Trigger) run(ctx context.Context, source string) {
	if _, err := t.RunNow(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		t.log.Warn("Triggered analysis failed", "trigger", source, "error", err)
	}
}

func (t *Trigger) watch() (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(t.dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func isEventFile(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == ".ndjson" || ext == ".jsonl"
}
