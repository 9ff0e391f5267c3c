package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/learnhub/internal/learning/engine"
	"github.com/yungbote/learnhub/internal/learning/federation"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestSeedStatusAndSummaryExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEARNHUB_DATA_DIR", dir)
	t.Setenv("LOG_MODE", "test")

	index := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(index, []byte(`{"lessons":[
		{"lessonId":"frac-1","skill":"fractions","difficulty":2},
		{"lessonId":"frac-2","skill":"fractions","difficulty":4,"requires":["counting"]}
	]}`), 0o644))

	out := execute(t, "seed", index)
	assert.Contains(t, out, "seeded 2 new lessons")

	var st engine.Status
	require.NoError(t, json.Unmarshal([]byte(execute(t, "status")), &st))
	assert.Equal(t, 2, st.Lessons)

	summaryPath := filepath.Join(dir, "summary.json")
	execute(t, "summary", "export", "--out", summaryPath)
	raw, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var s federation.Summary
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, 0, s.SampleSize)
	assert.NoError(t, s.Validate())
	summaryOut = ""
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("LEARNHUB_DATA_DIR", t.TempDir())
	t.Setenv("LOG_MODE", "test")
	t.Setenv("FEDERATION_SECRET", "")

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"token"})
	assert.Error(t, rootCmd.ExecuteContext(context.Background()))

	t.Setenv("FEDERATION_SECRET", "shared-secret")
	out := execute(t, "token", "--hub", "village-9")
	assert.NotEmpty(t, out)
}
