package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"MODELS_CONFIG": filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, AssessorLLM, cfg.Assessor)
	assert.Equal(t, calc.DefaultRatePolicy(), cfg.Models.RatePolicy)
	assert.Equal(t, calc.DefaultTenurePolicy(), cfg.Models.TenurePolicy)

	p := cfg.RetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)
	assert.Equal(t, time.Second, p.MaxJitter)
	assert.Zero(t, p.Deadline)

	pc := cfg.Pipeline()
	assert.Equal(t, 700*time.Millisecond, pc.Progress.Cadence)
	assert.Equal(t, 1200*time.Millisecond, pc.Progress.Hold)

	// Zero caps fall back to the store defaults inside the store constructors.
	assert.Equal(t, store.Limits{}, cfg.Limits())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"MODELS_CONFIG":       filepath.Join(t.TempDir(), "missing.yaml"),
		"STORE_BACKEND":       "Redis",
		"REDIS_DB":            "3",
		"ASSESSOR":            "simulated",
		"RETRY_MAX_ATTEMPTS":  "3",
		"RETRY_BASE_DELAY_MS": "10",
		"ASSESSMENT_DEADLINE": "90s",
		"PROGRESS_HOLD_MS":    "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, AssessorSimulated, cfg.Assessor)
	assert.Equal(t, 3, cfg.RetryPolicy().MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryPolicy().BaseDelay)
	assert.Equal(t, 90*time.Second, cfg.RetryPolicy().Deadline)
	assert.Zero(t, cfg.Pipeline().Progress.Hold)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"backend":      {"STORE_BACKEND": "mongo"},
		"postgres url": {"STORE_BACKEND": "postgres"},
		"assessor":     {"ASSESSOR": "oracle"},
		"attempts":     {"RETRY_MAX_ATTEMPTS": "0"},
		"too many":     {"RETRY_MAX_ATTEMPTS": "40"},
		"not a number": {"REDIS_DB": "one"},
		"bad duration": {"ASSESSMENT_DEADLINE": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			vars["MODELS_CONFIG"] = filepath.Join(t.TempDir(), "missing.yaml")
			_, err := FromEnv(lookup(vars))
			assert.Error(t, err)
		})
	}
}

func TestLoadModelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
active_provider: deepseek
agents:
  assessment:
    provider: openai
    model: gpt-4.1
rate_policy:
  version: test-v2
  basis: midpoint
  fallback_pct: 20
  bands:
    - { min_score: 300, max_score: 900, low_pct: 10, high_pct: 12 }
tenure_policy:
  months: [6, 12]
history:
  reports: 3
`), 0o644))

	m, err := LoadModels(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", m.ActiveProvider)
	assert.Equal(t, "openai", m.Agents["assessment"].Provider)
	assert.Equal(t, "gpt-4.1", m.Agents["assessment"].Model)
	assert.Equal(t, "test-v2", m.RatePolicy.Version)
	assert.Equal(t, calc.RateMidpoint, m.RatePolicy.Basis)
	assert.Equal(t, []int{6, 12}, m.TenurePolicy.Months)
	assert.Equal(t, calc.DefaultTenurePolicy().EMICeilingPct, m.TenurePolicy.EMICeilingPct)
	assert.Equal(t, 3, m.History.Reports)
}

func TestParseModelsRejectsBadPolicy(t *testing.T) {
	_, err := ParseModels([]byte(`
rate_policy:
  version: broken
  basis: sideways
  bands:
    - { min_score: 300, max_score: 900, low_pct: 10, high_pct: 12 }
`))
	assert.Error(t, err)

	_, err = ParseModels([]byte("tenure_policy:\n  months: [0]\n"))
	assert.Error(t, err)

	_, err = ParseModels([]byte("agents: [not, a, map]"))
	assert.Error(t, err)
}

func TestRepoModelsFileParses(t *testing.T) {
	m, err := LoadModels(filepath.Join("..", "..", "..", "config", "models.yaml"))
	require.NoError(t, err)
	assert.Equal(t, calc.DefaultRatePolicy(), m.RatePolicy)
	assert.Equal(t, calc.DefaultTenurePolicy(), m.TenurePolicy)
}

func TestLockTTLCoversRetrySchedule(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"MODELS_CONFIG": filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	require.NoError(t, err)
	// 2+4+8+16s of backoff, 4s of jitter, 7.5s of progress.
	assert.GreaterOrEqual(t, cfg.LockTTL(), 37500*time.Millisecond)
}

func TestLockTTLAtMaxAttempts(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"RETRY_MAX_ATTEMPTS": strconv.Itoa(MaxRetryAttempts),
		"MODELS_CONFIG":      filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	require.NoError(t, err)
	// 2s doubling for nine retries is 1022s of backoff before jitter
	assert.Greater(t, cfg.LockTTL(), 1022*time.Second)
}
