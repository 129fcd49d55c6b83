package base

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultAPIURL is the llama.cpp style local chat-completions endpoint.
const DefaultAPIURL = "http://localhost:8080/v1/chat/completions"

// APIURLEnv overrides the endpoint URL.
const APIURLEnv = "HARMONY_CLI_API_URL"

func init() {
	// Auto-load .env file if it exists (silent fail)
	_ = godotenv.Load()
}

// LoadEnv loads environment variables from specified .env files.
// If no files are specified, it loads from .env in the current directory.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// Config contains common configuration for all providers.
type Config struct {
	APIKey  string
	BaseURL string

	// DebugPath writes JSONL debug records (request/chunk) when set.
	DebugPath string

	MaxOutputTokens *int
	Temperature     *float64

	ExtraHeaders map[string]string
	ExtraBody    map[string]any

	Logger *zap.Logger
}

// ApplyEnvDefaults fills empty values from the environment. baseURLEnvs
// are tried in order.
func ApplyEnvDefaults(cfg *Config, apiKeyEnv string, baseURLEnvs ...string) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(apiKeyEnv)
	}
	for _, env := range baseURLEnvs {
		if cfg.BaseURL != "" {
			break
		}
		cfg.BaseURL = os.Getenv(env)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
}

// EndpointBase turns a full endpoint URL such as
// http://host:8080/v1/chat/completions into the SDK base URL
// http://host:8080/v1/. URLs without the suffix are treated as base URLs.
func EndpointBase(url, suffix string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, "/"+strings.Trim(suffix, "/"))
	return url + "/"
}
