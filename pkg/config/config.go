package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// RolloutConfig drives `paperrl rollout`.
type RolloutConfig struct {
	Name        string       `yaml:"name"`
	DatasetPath string       `yaml:"dataset_path"`
	MaxSteps    int          `yaml:"max_steps"`
	Episodes    int          `yaml:"episodes"`
	Workers     int          `yaml:"workers"`
	Seed        *uint64      `yaml:"seed"`
	Agent       AgentConfig  `yaml:"agent"`
	Output      OutputConfig `yaml:"output"`
	Logging     LogConfig    `yaml:"logging"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AgentConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
}

type OutputConfig struct {
	TrajectoriesPath string `yaml:"trajectories_path"`
	StatsPath        string `yaml:"stats_path"`
	KeepRecent       int    `yaml:"keep_recent"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultRolloutConfig mirrors the single-step setup used for training.
func DefaultRolloutConfig() *RolloutConfig {
	return &RolloutConfig{
		Name:        "paper_classification",
		DatasetPath: "data/rl_env_data.jsonl",
		MaxSteps:    1,
		Episodes:    100,
		Workers:     4,
		Agent: AgentConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o-mini",
		},
		Output: OutputConfig{
			KeepRecent: 100,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML rollout config. Unset fields keep their defaults and
// provider credentials fall back to the environment.
func LoadConfig(path string) (*RolloutConfig, error) {
	cfg := DefaultRolloutConfig()
	if path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RolloutConfig) applyEnv() {
	switch c.Agent.Provider {
	case ProviderOpenAI:
		if c.Agent.APIKey == "" {
			c.Agent.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if c.Agent.BaseURL == "" {
			c.Agent.BaseURL = os.Getenv("OPENAI_API_BASE_URL")
		}
	case ProviderGemini:
		if c.Agent.APIKey == "" {
			c.Agent.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

func (c *RolloutConfig) Validate() error {
	if c.DatasetPath == "" {
		return goerr.New("dataset_path is required")
	}
	if c.MaxSteps < 1 {
		return goerr.New("max_steps must be at least 1", goerr.V("max_steps", c.MaxSteps))
	}
	if c.Episodes < 1 {
		return goerr.New("episodes must be at least 1", goerr.V("episodes", c.Episodes))
	}
	if c.Workers < 1 {
		return goerr.New("workers must be at least 1", goerr.V("workers", c.Workers))
	}
	switch c.Agent.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return goerr.New("unknown agent provider", goerr.V("provider", c.Agent.Provider))
	}
	return nil
}

func loadYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return goerr.Wrap(err, "failed to parse config", goerr.V("path", path))
	}
	return nil
}
