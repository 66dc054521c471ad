package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	cfg, err := Load("testdata/snapshot.yaml")
	require.NoError(t, err)

	assert.Equal(t, "fr-CA", cfg.Culture)
	assert.Equal(t, "cel", cfg.Evaluator)
	assert.True(t, cfg.ComponentCache)
	assert.True(t, cfg.DevelopmentAsserts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Deserialize.RecycleInstances)
	require.NotNil(t, cfg.Deserialize.PreserveNames)
	assert.False(t, *cfg.Deserialize.PreserveNames)
	assert.Nil(t, cfg.Deserialize.ApplyDefaults)
	assert.Equal(t, "/tmp/editor.db", cfg.State.Path)
	assert.Equal(t, 25, cfg.State.HistoryLimit)
	assert.Equal(t, "designer", cfg.Activity.Channel)
	assert.Equal(t, "4f0c1c55-3a64-4d2e-9d1b-2a1f4c8e7b10", cfg.Activity.ActorID)
}

func TestLoadTOML(t *testing.T) {
	cfg, err := Load("testdata/snapshot.toml")
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.Culture)
	assert.Equal(t, "warn", cfg.Log.Level)
	require.NotNil(t, cfg.Deserialize.ApplyDefaults)
	assert.False(t, *cfg.Deserialize.ApplyDefaults)
	assert.Equal(t, "designer.db", cfg.State.Path)
	assert.Equal(t, 10, cfg.State.HistoryLimit)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load("testdata/snapshot.ini")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownEvaluator(t *testing.T) {
	_, err := Load("testdata/bad_evaluator.yaml")
	assert.ErrorContains(t, err, "unknown evaluator")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SNAPSHOT_CULTURE", "es-MX")
	t.Setenv("SNAPSHOT_HISTORY_LIMIT", "7")
	t.Setenv("SNAPSHOT_APPLY_DEFAULTS", "true")
	t.Setenv("SNAPSHOT_COMPONENT_CACHE", "false")

	cfg, err := Load("testdata/snapshot.yaml")
	require.NoError(t, err)
	assert.Equal(t, "es-MX", cfg.Culture)
	assert.Equal(t, 7, cfg.State.HistoryLimit)
	assert.False(t, cfg.ComponentCache)
	require.NotNil(t, cfg.Deserialize.ApplyDefaults)
	assert.True(t, *cfg.Deserialize.ApplyDefaults)
}

func TestSnippetTimeoutMustParse(t *testing.T) {
	t.Setenv("SNAPSHOT_SNIPPET_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "snippet_timeout")

	t.Setenv("SNAPSHOT_SNIPPET_TIMEOUT", "250ms")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "250ms", cfg.SnippetTimeout)
}

func TestEnvironmentOverrideParseErrors(t *testing.T) {
	t.Setenv("SNAPSHOT_PRESERVE_NAMES", "maybe")
	_, err := Load("")
	assert.ErrorContains(t, err, "SNAPSHOT_PRESERVE_NAMES")
}

func TestOptionsConversion(t *testing.T) {
	cfg, err := Load("testdata/snapshot.yaml")
	require.NoError(t, err)

	assert.Len(t, cfg.Options(nil), 5)
	assert.Len(t, cfg.DeserializeOptions(), 3)

	cfg = Default()
	assert.Len(t, cfg.Options(nil), 3)
	assert.Len(t, cfg.DeserializeOptions(), 1)
}

func TestSlogLoggerHonoursLevelAndFormat(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger := cfg.slogLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("op", "close"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"op":"close"`)
}
