package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30, cfg.Assessment.LookbackDays)
	assert.Equal(t, 50, cfg.Assessment.HistoryLimit)
	assert.Equal(t, 16000, cfg.LLM.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Tools.FetchTimeout)
	assert.Equal(t, 4000, cfg.Tools.MaxContentChars)
	assert.Equal(t, 25, cfg.ZeroTrust.AITypeID)
	assert.True(t, cfg.Assessment.SyntheticTrends)
}

func TestLoadFile_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log_level: debug
llm:
  model: gpt-4.1
  stream: true
assessment:
  timezone: Europe/Berlin
  synthetic_trends: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SAI_LLM__API_KEY", "sk-test")
	t.Setenv("SAI_ZERO_TRUST__MAX_PAGES", "3")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Stream)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.ZeroTrust.MaxPages)
	assert.False(t, cfg.Assessment.SyntheticTrends)
	assert.Equal(t, "Europe/Berlin", cfg.Assessment.Location().String())
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Assessment.HistoryLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestLocation_Fallback(t *testing.T) {
	assert.Equal(t, time.UTC, AssessmentConfig{}.Location())
	assert.Equal(t, time.UTC, AssessmentConfig{Timezone: "Not/AZone"}.Location())
}
