package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Engine.Dim)
	assert.Equal(t, filepath.Join("data", "lms_state.json"), cfg.StatePath)
	assert.Equal(t, filepath.Join("data", "events"), cfg.Sentry.EventsDir)
	assert.Equal(t, filepath.Join("data", "learnhub.db"), cfg.Database.DSN)
	assert.Equal(t, 20, cfg.Sentry.MinCohortSize)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learnhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hub_id: village-3
data_dir: /srv/hub
engine:
  dim: 8
  forgetting: 0.9
sentry:
  level: district
  min_cohort_size: 30
analysis:
  interval: 1m
database:
  driver: none
`), 0o644))

	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("SENTRY_MIN_COHORT_SIZE", "25")
	t.Setenv("CORS_ORIGINS", "http://a.local,http://b.local")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "village-3", cfg.HubID)
	assert.Equal(t, 8, cfg.Engine.Dim)
	assert.Equal(t, 0.9, cfg.Engine.Forgetting)
	// keys missing from the file keep their defaults
	assert.Equal(t, 0.01, cfg.Engine.LearningRate)
	assert.Equal(t, "district", cfg.Sentry.Level)
	assert.Equal(t, 25, cfg.Sentry.MinCohortSize)
	assert.Equal(t, time.Minute, cfg.Analysis.Interval)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, filepath.Join("/srv/hub", "lms_state.json"), cfg.StatePath)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  dim: -1\n  forgetting: 2\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "engine.dim")
	assert.ErrorContains(t, err, "engine.forgetting")
}
