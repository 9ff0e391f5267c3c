package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/learnhub/internal/learning/engine"
)

func testConfig(t *testing.T, driver string) Config {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "false")
	cfg := DefaultConfig()
	cfg.HubID = "village-test"
	cfg.DataDir = t.TempDir()
	cfg.Database.Driver = driver
	cfg.derive()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t, "none")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Repos.SkillGraph)
	assert.Nil(t, a.Clients.Neo4j)
	assert.NotNil(t, a.Clients.Bus)
	assert.False(t, a.Signer.Enabled())

	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithSQLiteAndCloseSavesState(t *testing.T) {
	cfg := testConfig(t, "sqlite")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.DB)
	require.NotNil(t, a.Repos.SkillGraph)
	assert.Equal(t, filepath.Join(cfg.DataDir, "learnhub.db"), cfg.Database.DSN)

	n, err := a.Engine.SeedLessons(context.Background(), []engine.LessonSeed{
		{LessonID: "fractions-1", Difficulty: 3, Skill: "fractions"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	a.Close(context.Background())

	reopened := engine.New(engine.Config{StatePath: cfg.StatePath, Hyper: cfg.Engine}, nil, nil)
	assert.Equal(t, 1, reopened.Status().Lessons)
}
