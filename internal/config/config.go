// Package config loads the console configuration. Precedence is flags
// (applied by the caller), then environment, then the YAML file, then
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/buchuleaf/harmony-cli/prompt"
	"github.com/buchuleaf/harmony-cli/providers/base"
	"github.com/buchuleaf/harmony-cli/truncate"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	ProviderChatCompletion = "chatcompletion"
	ProviderAnthropic      = "anthropic"

	DefaultModel       = "gpt-oss"
	DefaultToolTimeout = 30

	homeDirName = ".harmony-cli"
	fileName    = "config.yaml"
)

// Config holds all console settings.
type Config struct {
	APIURL          string   `yaml:"api_url"`
	APIKey          string   `yaml:"api_key,omitempty"`
	Model           string   `yaml:"model"`
	Provider        string   `yaml:"provider"`
	MaxOutputTokens int      `yaml:"max_output_tokens,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`

	// ToolTimeout is the default tool timeout in seconds.
	ToolTimeout     int    `yaml:"tool_timeout"`
	Reasoning       string `yaml:"reasoning"`
	KnowledgeCutoff string `yaml:"knowledge_cutoff"`
	PythonBin       string `yaml:"python_bin,omitempty"`
	Shell           string `yaml:"shell,omitempty"`

	LogLevel  string `yaml:"log_level"`
	DebugFile string `yaml:"debug_file,omitempty"`

	Budgets truncate.Budgets `yaml:"budgets"`

	// Home holds logs, transcripts and the config file.
	Home string `yaml:"-"`
	// Root is the working directory tools run in.
	Root string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIURL:          base.DefaultAPIURL,
		Model:           DefaultModel,
		Provider:        ProviderChatCompletion,
		ToolTimeout:     DefaultToolTimeout,
		Reasoning:       prompt.DefaultReasoning,
		KnowledgeCutoff: prompt.DefaultKnowledgeCutoff,
		LogLevel:        "info",
		Budgets:         truncate.DefaultBudgets(),
	}
}

// Getenv looks up an environment variable.
type Getenv func(string) string

// HomeDir returns HARMONY_CLI_HOME or ~/.harmony-cli.
func HomeDir(getenv Getenv) string {
	if h := getenv("HARMONY_CLI_HOME"); h != "" {
		return h
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, homeDirName)
	}
	return homeDirName
}

// RootDir returns HARMONY_CLI_ROOT, then PWD, then the process working
// directory.
func RootDir(getenv Getenv) string {
	for _, env := range []string{"HARMONY_CLI_ROOT", "PWD"} {
		if v := getenv(env); v != "" {
			return v
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// DefaultPath is the config file under home.
func DefaultPath(home string) string { return filepath.Join(home, fileName) }

// Load reads defaults, then path, then the environment. A missing file is
// only an error when explicit is true.
func Load(path string, explicit bool, getenv Getenv) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	cfg.Home = HomeDir(getenv)
	if path == "" {
		path = DefaultPath(cfg.Home)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(getenv)
	cfg.Root = RootDir(getenv)
	cfg.Budgets = cfg.Budgets.WithDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv Getenv) {
	set := func(dst *string, env string) {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}
	set(&c.APIURL, base.APIURLEnv)
	set(&c.Model, "HARMONY_CLI_MODEL")
	set(&c.Provider, "HARMONY_CLI_PROVIDER")
	set(&c.PythonBin, "HARMONY_CLI_PYTHON")
	set(&c.LogLevel, "HARMONY_CLI_LOG_LEVEL")
}

// Validate checks values the console cannot run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderChatCompletion, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}
	if c.APIURL == "" {
		return fmt.Errorf("%w: api_url is empty", ErrInvalid)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is empty", ErrInvalid)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: tool_timeout must be positive", ErrInvalid)
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("%w: max_output_tokens must not be negative", ErrInvalid)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("%w: temperature %.2f out of range [0, 2]", ErrInvalid, *c.Temperature)
	}
	switch c.Reasoning {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("%w: reasoning must be low, medium or high", ErrInvalid)
	}
	if err := c.Budgets.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if info, err := os.Stat(c.Root); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: root %q is not a directory", ErrInvalid, c.Root)
	}
	return nil
}

// ToolTimeoutDuration returns ToolTimeout as a duration.
func (c *Config) ToolTimeoutDuration() time.Duration {
	return time.Duration(c.ToolTimeout) * time.Second
}

// LogPath is the log file under home.
func (c *Config) LogPath() string { return filepath.Join(c.Home, "harmony-cli.log") }

// TranscriptsDir is where /export writes by default.
func (c *Config) TranscriptsDir() string { return filepath.Join(c.Home, "transcripts") }

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
