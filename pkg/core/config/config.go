// Package config loads process settings from the environment (optionally a
// .env file) and the YAML model/policy file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/resilience"
	"finpulse/pkg/core/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	AssessorLLM       = "llm"
	AssessorSimulated = "simulated"
)

type Config struct {
	Port     string
	LogLevel string

	StoreBackend  string
	DatabaseURL   string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	Assessor     string
	ModelsConfig string
	PromptsDir   string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxJitter   time.Duration
	Deadline         time.Duration

	ProgressCadence time.Duration
	ProgressHold    time.Duration

	Models Models
}

// Models is the content of config/models.yaml.
type Models struct {
	agent.Config `yaml:",inline"`
	RatePolicy   calc.RatePolicy   `yaml:"rate_policy"`
	TenurePolicy calc.TenurePolicy `yaml:"tenure_policy"`
	History      History           `yaml:"history"`
}

type History struct {
	Reports int `yaml:"reports"`
	Logins  int `yaml:"logins"`
}

// Load reads .env (if present), the environment and the models file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// MaxRetryAttempts bounds RETRY_MAX_ATTEMPTS. Ten attempts at the default
// base delay already wait over seventeen minutes.
const MaxRetryAttempts = 10

// FromEnv builds the configuration from a lookup function, so tests can pass a map.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env{get: getenv}
	cfg := Config{
		Port:     e.str("PORT", "8080"),
		LogLevel: e.str("LOG_LEVEL", "info"),

		StoreBackend:  strings.ToLower(e.str("STORE_BACKEND", BackendMemory)),
		DatabaseURL:   e.str("DATABASE_URL", ""),
		RedisAddress:  e.str("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.int("REDIS_DB", 0),
		RedisPrefix:   e.str("REDIS_PREFIX", "finpulse"),

		Assessor:     strings.ToLower(e.str("ASSESSOR", AssessorLLM)),
		ModelsConfig: e.str("MODELS_CONFIG", "config/models.yaml"),
		PromptsDir:   e.str("PROMPTS_DIR", ""),

		RetryMaxAttempts: e.int("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:   e.millis("RETRY_BASE_DELAY_MS", 2000),
		RetryMaxJitter:   e.millis("RETRY_MAX_JITTER_MS", 1000),
		Deadline:         e.duration("ASSESSMENT_DEADLINE", 0),

		ProgressCadence: e.millis("PROGRESS_CADENCE_MS", 700),
		ProgressHold:    e.millis("PROGRESS_HOLD_MS", 1200),
	}
	if e.err != nil {
		return Config{}, e.err
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.Assessor {
	case AssessorLLM, AssessorSimulated:
	default:
		return Config{}, fmt.Errorf("unknown ASSESSOR %q", cfg.Assessor)
	}
	if cfg.RetryMaxAttempts < 1 || cfg.RetryMaxAttempts > MaxRetryAttempts {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be between 1 and %d, got %d", MaxRetryAttempts, cfg.RetryMaxAttempts)
	}

	models, err := LoadModels(cfg.ModelsConfig)
	if err != nil {
		return Config{}, err
	}
	cfg.Models = models
	return cfg, nil
}

// LoadModels reads the YAML file at path. A missing file yields the defaults.
func LoadModels(path string) (Models, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.For("config").WithField("path", path).Warn("models config not found, using defaults")
		return ParseModels(nil)
	}
	if err != nil {
		return Models{}, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := ParseModels(data)
	if err != nil {
		return Models{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModels decodes the YAML and fills in unset policies.
func ParseModels(data []byte) (Models, error) {
	var m Models
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Models{}, fmt.Errorf("parse models config: %w", err)
	}

	if len(m.RatePolicy.Bands) == 0 {
		m.RatePolicy = calc.DefaultRatePolicy()
	}
	if err := m.RatePolicy.Validate(); err != nil {
		return Models{}, err
	}
	if len(m.TenurePolicy.Months) == 0 {
		m.TenurePolicy.Months = calc.DefaultTenurePolicy().Months
	}
	if m.TenurePolicy.EMICeilingPct <= 0 {
		m.TenurePolicy.EMICeilingPct = calc.DefaultTenurePolicy().EMICeilingPct
	}
	for _, months := range m.TenurePolicy.Months {
		if months < 1 {
			return Models{}, fmt.Errorf("tenure policy: invalid tenure %d months", months)
		}
	}
	return m, nil
}

func (c Config) Limits() store.Limits {
	return store.Limits{Reports: c.Models.History.Reports, Logins: c.Models.History.Logins}
}

func (c Config) RetryPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = c.RetryMaxAttempts
	p.BaseDelay = c.RetryBaseDelay
	p.MaxJitter = c.RetryMaxJitter
	p.Deadline = c.Deadline
	return p
}

// Pipeline assembles the orchestrator settings.
func (c Config) Pipeline() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Retry = c.RetryPolicy()
	pc.Progress.Cadence = c.ProgressCadence
	pc.Progress.Hold = c.ProgressHold
	pc.Rates = c.Models.RatePolicy
	pc.Tenures = c.Models.TenurePolicy
	return pc
}

// LockTTL bounds how long a distributed in-flight lock may outlive a crashed
// holder: the worst-case retry schedule plus the progress sequence.
func (c Config) LockTTL() time.Duration {
	p := c.RetryPolicy()
	var waits time.Duration
	for retry := 1; retry < p.MaxAttempts; retry++ {
		waits += p.BaseWait(retry) + p.MaxJitter
	}
	if c.Deadline > 0 && c.Deadline < waits {
		waits = c.Deadline
	}
	return waits + c.Pipeline().Progress.Duration() + 2*time.Minute
}

type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) millis(key string, def int) time.Duration {
	return time.Duration(e.int(key, def)) * time.Millisecond
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
