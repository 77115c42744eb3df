package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	GenAI    *genaiConfig
	Agent    *agentConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"celia"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address        string `envconfig:"CELIA_AGENT_ADDRESS" default:":3443"`
	MetricsAddress string `envconfig:"CELIA_AGENT_METRICS_ADDRESS" default:":8080"`
	BaseUrl        string `envconfig:"CELIA_AGENT_BASE_URL" default:"http://localhost:3443"`
	LogLevel       string `envconfig:"CELIA_AGENT_LOG_LEVEL" default:"info"`
}

type genaiConfig struct {
	Model             string        `envconfig:"CELIA_AGENT_MODEL" default:"gemini-3-pro-preview"`
	APIKey            string        `envconfig:"API_KEY" default:""`
	RequestsPerMinute int           `envconfig:"CELIA_AGENT_REQUESTS_PER_MINUTE" default:"30"`
	MaxAttempts       int           `envconfig:"CELIA_AGENT_MAX_ATTEMPTS" default:"3"`
	BaseDelay         time.Duration `envconfig:"CELIA_AGENT_BASE_DELAY" default:"1s"`
	MaxDelay          time.Duration `envconfig:"CELIA_AGENT_MAX_DELAY" default:"10s"`
	MaxMessageLength  int           `envconfig:"CELIA_AGENT_MAX_MESSAGE_LENGTH" default:"100000"`
	MaxPlanSteps      int           `envconfig:"CELIA_AGENT_MAX_PLAN_STEPS" default:"20"`
	CacheEnabled      bool          `envconfig:"CELIA_AGENT_CACHE_ENABLED" default:"true"`
	CacheCapacity     int           `envconfig:"CELIA_AGENT_CACHE_CAPACITY" default:"256"`
	CacheTTL          time.Duration `envconfig:"CELIA_AGENT_CACHE_TTL" default:"1h"`
}

type agentConfig struct {
	MaxConcurrentJobs int           `envconfig:"CELIA_AGENT_MAX_CONCURRENT_JOBS" default:"3"`
	JobTimeout        time.Duration `envconfig:"CELIA_AGENT_JOB_TIMEOUT" default:"10m"`
	WorkspaceDir      string        `envconfig:"CELIA_AGENT_WORKSPACE_DIR" default:"jobs"`
	MaxTaskLength     int           `envconfig:"CELIA_AGENT_MAX_TASK_LENGTH" default:"4096"`
}

// New builds the configuration from the environment.
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefault returns the configuration with every variable at its default,
// used by tests.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{Type: "sqlite", Name: ":memory:"},
		Service:  &svcConfig{Address: ":3443", MetricsAddress: ":8080", LogLevel: "info"},
		GenAI: &genaiConfig{
			Model:             "gemini-3-pro-preview",
			RequestsPerMinute: 30,
			MaxAttempts:       3,
			BaseDelay:         time.Second,
			MaxDelay:          10 * time.Second,
			MaxMessageLength:  100000,
			MaxPlanSteps:      20,
			CacheEnabled:      true,
			CacheCapacity:     256,
			CacheTTL:          time.Hour,
		},
		Agent: &agentConfig{
			MaxConcurrentJobs: 3,
			JobTimeout:        10 * time.Minute,
			WorkspaceDir:      "jobs",
			MaxTaskLength:     4096,
		},
	}
}
