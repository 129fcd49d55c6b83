// Package anthropic streams from an Anthropic Messages compatible
// /v1/messages endpoint. Recent llama.cpp servers expose one next to
// chat completions.
package anthropic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/providers/base"
	"go.uber.org/zap"
)

const (
	endpointPath = "v1/messages"

	// DefaultMaxOutputTokens is sent when no limit is configured; the
	// Messages API requires one.
	DefaultMaxOutputTokens = 8192
)

// Config configures the Messages provider.
type Config struct {
	base.Config

	ThinkingEnabled bool
	ThinkingBudget  int
	MaxRetries      int
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithAPIURL sets the endpoint, either .../v1/messages or the server root.
func WithAPIURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTemperature sets the temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = &t }
}

// WithMaxOutputTokens sets the max output tokens.
func WithMaxOutputTokens(n int) Option {
	return func(c *Config) { c.MaxOutputTokens = &n }
}

// WithDebug enables JSONL debug logging to the specified file path.
func WithDebug(path string) Option {
	return func(c *Config) { c.DebugPath = path }
}

// WithLogger sets the provider logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithThinking enables extended thinking.
func WithThinking(budget int) Option {
	return func(c *Config) {
		c.ThinkingEnabled = true
		c.ThinkingBudget = budget
	}
}

// Provider implements harmony.Provider over the Messages API.
type Provider struct {
	model  string
	cfg    Config
	client anthropic.Client
}

// New creates a provider. It reads ANTHROPIC_API_KEY, then
// HARMONY_CLI_API_URL or ANTHROPIC_BASE_URL when not set explicitly.
func New(model string, opts ...Option) *Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "ANTHROPIC_API_KEY", base.APIURLEnv, "ANTHROPIC_BASE_URL")

	clientOpts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if u := base.EndpointBase(cfg.BaseURL, endpointPath); u != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(u))
	}
	for k, v := range cfg.ExtraHeaders {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	for k, v := range cfg.ExtraBody {
		clientOpts = append(clientOpts, option.WithJSONSet(k, v))
	}
	return &Provider{model: model, cfg: cfg, client: anthropic.NewClient(clientOpts...)}
}

// Model returns the model name sent with each request.
func (p *Provider) Model() string { return p.model }

func (p *Provider) Stream(ctx context.Context, req harmony.ProviderRequest) (harmony.ProviderStream, error) {
	params := BuildParams(req)
	params.Model = anthropic.Model(p.model)
	params.MaxTokens = DefaultMaxOutputTokens
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = int64(*p.cfg.MaxOutputTokens)
	}
	if p.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*p.cfg.Temperature)
	}
	if p.cfg.ThinkingEnabled {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(p.cfg.ThinkingBudget))
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath, "anthropic", p.model)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	debug.Record("request", params)

	var raw *http.Response
	if err := p.client.Post(ctx, endpointPath, params, &raw, option.WithJSONSet("stream", true)); err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("post %s: %w", endpointPath, err)
	}
	return newStream(ssestream.NewDecoder(raw), debug, p.cfg.Logger), nil
}

var _ harmony.Provider = (*Provider)(nil)
