package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/learnhub/internal/data/db"
	"github.com/yungbote/learnhub/internal/jobs/skillgraph_refresh"
	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/platform/envutil"
	"github.com/yungbote/learnhub/internal/platform/neo4jdb"
	"github.com/yungbote/learnhub/internal/realtime/bus"
	"github.com/yungbote/learnhub/internal/sentry"
)

const ServiceName = "learnhub"

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	MetricsAddr string   `yaml:"metrics_addr"`
}

type FederationConfig struct {
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"token_ttl"`
	// BroadcastInterval sends the local bandit summary to peers; zero disables it.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

type Config struct {
	HubID       string `yaml:"hub_id"`
	Environment string `yaml:"environment"`
	LogMode     string `yaml:"log_mode"`

	DataDir     string `yaml:"data_dir"`
	StatePath   string `yaml:"state_path"`
	CatalogPath string `yaml:"catalog_path"`

	HTTP       HTTPConfig                       `yaml:"http"`
	Engine     engine.Hyper                     `yaml:"engine"`
	Sentry     sentry.Config                    `yaml:"sentry"`
	Analysis   skillgraph_refresh.TriggerConfig `yaml:"analysis"`
	Database   db.Config                        `yaml:"database"`
	Neo4j      neo4jdb.Config                   `yaml:"neo4j"`
	Redis      bus.Config                       `yaml:"redis"`
	Federation FederationConfig                 `yaml:"federation"`
}

func DefaultConfig() Config {
	return Config{
		HubID:       "village-local",
		Environment: "development",
		LogMode:     "development",
		DataDir:     "data",
		HTTP:        HTTPConfig{Addr: ":8080"},
		Engine:      engine.DefaultHyper(),
		Sentry:      sentry.DefaultConfig(),
		Analysis:    skillgraph_refresh.DefaultTriggerConfig(),
		Database:    db.Config{Driver: "sqlite"},
		Federation:  FederationConfig{TokenTTL: 24 * time.Hour},
	}
}

// LoadConfig reads defaults, then the YAML file at path (if any), then
// environment overrides. A path that was given but does not exist is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HubID = envutil.String("LEARNHUB_HUB_ID", c.HubID)
	c.Environment = envutil.String("LEARNHUB_ENV", c.Environment)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.DataDir = envutil.String("LEARNHUB_DATA_DIR", c.DataDir)
	c.StatePath = envutil.String("LEARNHUB_STATE_PATH", c.StatePath)
	c.CatalogPath = envutil.String("LEARNHUB_CATALOG_PATH", c.CatalogPath)

	c.HTTP.Addr = envutil.String("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.MetricsAddr = envutil.String("METRICS_ADDR", c.HTTP.MetricsAddr)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		c.HTTP.CORSOrigins = strings.Split(v, ",")
	}

	c.Engine.Dim = envutil.Int("EMBEDDING_DIM", c.Engine.Dim)
	c.Engine.LearningRate = envutil.Float("EMBEDDING_LEARNING_RATE", c.Engine.LearningRate)
	c.Engine.Regularization = envutil.Float("EMBEDDING_REGULARIZATION", c.Engine.Regularization)
	c.Engine.Forgetting = envutil.Float("EMBEDDING_FORGETTING", c.Engine.Forgetting)
	c.Engine.BanditForgetting = envutil.Float("BANDIT_FORGETTING", c.Engine.BanditForgetting)

	c.Sentry.EventsDir = envutil.String("LEARNHUB_EVENTS_DIR", c.Sentry.EventsDir)
	c.Sentry.Level = envutil.String("SENTRY_LEVEL", c.Sentry.Level)
	c.Sentry.MasteryThreshold = envutil.Float("SENTRY_MASTERY_THRESHOLD", c.Sentry.MasteryThreshold)
	c.Sentry.PassThreshold = envutil.Float("SENTRY_PASS_THRESHOLD", c.Sentry.PassThreshold)
	c.Sentry.MinSimilarity = envutil.Float("SENTRY_MIN_SIMILARITY", c.Sentry.MinSimilarity)
	c.Sentry.MinCohortSize = envutil.Int("SENTRY_MIN_COHORT_SIZE", c.Sentry.MinCohortSize)
	c.Sentry.MinSampleSize = envutil.Int("SENTRY_MIN_SAMPLE_SIZE", c.Sentry.MinSampleSize)

	c.Analysis.Watch = envutil.Bool("ANALYSIS_WATCH", c.Analysis.Watch)
	c.Analysis.Debounce = envutil.Duration("ANALYSIS_DEBOUNCE", c.Analysis.Debounce)
	c.Analysis.Interval = envutil.Duration("ANALYSIS_INTERVAL", c.Analysis.Interval)
	c.Analysis.MinSpacing = envutil.Duration("ANALYSIS_MIN_SPACING", c.Analysis.MinSpacing)

	c.Database.Driver = envutil.String("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = envutil.String("DB_DSN", c.Database.DSN)

	c.Neo4j.URI = envutil.String("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.User = envutil.String("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = envutil.String("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = envutil.String("NEO4J_DATABASE", c.Neo4j.Database)
	c.Neo4j.Timeout = envutil.Duration("NEO4J_TIMEOUT", c.Neo4j.Timeout)
	c.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", c.Neo4j.MaxPoolSize)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Channel = envutil.String("REDIS_CHANNEL", c.Redis.Channel)

	c.Federation.Secret = envutil.String("FEDERATION_SECRET", c.Federation.Secret)
	c.Federation.TokenTTL = envutil.Duration("FEDERATION_TOKEN_TTL", c.Federation.TokenTTL)
	c.Federation.BroadcastInterval = envutil.Duration("FEDERATION_BROADCAST_INTERVAL", c.Federation.BroadcastInterval)
}

// derive fills file locations that default to the data dir.
func (c *Config) derive() {
	if c.StatePath == "" {
		c.StatePath = filepath.Join(c.DataDir, "lms_state.json")
	}
	if c.CatalogPath == "" {
		c.CatalogPath = filepath.Join(c.DataDir, "index.json")
	}
	if c.Sentry.EventsDir == "" {
		c.Sentry.EventsDir = filepath.Join(c.DataDir, "events")
	}
	if c.Sentry.StateDir == "" {
		c.Sentry.StateDir = filepath.Join(c.DataDir, "sentry")
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = filepath.Join(c.DataDir, "learnhub.db")
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HubID) == "" {
		errs = append(errs, errors.New("hub_id is required"))
	}
	if c.Engine.Dim <= 0 {
		errs = append(errs, fmt.Errorf("engine.dim must be positive, got %d", c.Engine.Dim))
	}
	if c.Engine.Forgetting <= 0 || c.Engine.Forgetting > 1 {
		errs = append(errs, fmt.Errorf("engine.forgetting must be in (0,1], got %v", c.Engine.Forgetting))
	}
	if c.Engine.BanditForgetting <= 0 || c.Engine.BanditForgetting > 1 {
		errs = append(errs, fmt.Errorf("engine.bandit_forgetting must be in (0,1], got %v", c.Engine.BanditForgetting))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	return errors.Join(errs...)
}
