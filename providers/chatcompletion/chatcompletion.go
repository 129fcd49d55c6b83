// Package chatcompletion streams from an OpenAI-compatible
// /v1/chat/completions endpoint, the kind llama.cpp, vLLM and Ollama serve
// for gpt-oss models.
package chatcompletion

import (
	"context"
	"fmt"
	"net/http"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/providers/base"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"go.uber.org/zap"
)

// DefaultModel is the model name sent when none is configured.
const DefaultModel = "gpt-oss"

const endpointPath = "chat/completions"

// Config configures the chat-completions provider.
type Config struct {
	base.Config

	// MaxRetries is handed to the SDK. Local servers fail fast, so the
	// default is zero.
	MaxRetries int
	Reasoning  ReasoningHandler
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key. Local servers usually ignore it.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithAPIURL sets the endpoint. Both the full
// http://host/v1/chat/completions form and the bare base URL are accepted.
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

// WithMaxRetries sets how often the SDK retries a failed request.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithReasoningHandler replaces the reasoning field handling.
func WithReasoningHandler(h ReasoningHandler) Option {
	return func(c *Config) { c.Reasoning = h }
}

// WithExtraHeader adds a custom header to requests.
func WithExtraHeader(key, value string) Option {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		c.ExtraHeaders[key] = value
	}
}

// WithExtraBody adds a custom field to the request body.
func WithExtraBody(key string, value any) Option {
	return func(c *Config) {
		if c.ExtraBody == nil {
			c.ExtraBody = make(map[string]any)
		}
		c.ExtraBody[key] = value
	}
}

// Provider implements harmony.Provider over the chat-completions API.
type Provider struct {
	model  string
	cfg    Config
	client openai.Client
}

// New creates a provider for model. Unset values fall back to
// OPENAI_API_KEY, then HARMONY_CLI_API_URL or OPENAI_BASE_URL, then the
// local default endpoint.
func New(model string, opts ...Option) *Provider {
	if model == "" {
		model = DefaultModel
	}
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "OPENAI_API_KEY", base.APIURLEnv, "OPENAI_BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = base.DefaultAPIURL
	}
	if cfg.Reasoning == nil {
		cfg.Reasoning = DefaultReasoningHandler{}
	}

	clientOpts := []option.RequestOption{
		option.WithBaseURL(base.EndpointBase(cfg.BaseURL, endpointPath)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	for k, v := range cfg.ExtraBody {
		clientOpts = append(clientOpts, option.WithJSONSet(k, v))
	}
	return &Provider{model: model, cfg: cfg, client: openai.NewClient(clientOpts...)}
}

// Model returns the model name sent with each request.
func (p *Provider) Model() string { return p.model }

// Stream posts the conversation with stream=true and returns the decoded
// event stream. HTTP failures surface here, before any delta.
func (p *Provider) Stream(ctx context.Context, req harmony.ProviderRequest) (harmony.ProviderStream, error) {
	params := BuildMessages(req, p.cfg.Reasoning)
	params.Model = p.model
	if p.cfg.Temperature != nil {
		params.Temperature = openai.Float(*p.cfg.Temperature)
	}
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = openai.Int(int64(*p.cfg.MaxOutputTokens))
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath, "chatcompletion", p.model)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	debug.Record("request", params)

	p.cfg.Logger.Debug("posting chat completion",
		zap.String("model", p.model),
		zap.Int("messages", len(params.Messages)),
		zap.Int("tools", len(params.Tools)))

	var raw *http.Response
	err = p.client.Post(ctx, endpointPath, params, &raw, option.WithJSONSet("stream", true))
	if err != nil {
		_ = debug.Close()
		return nil, fmt.Errorf("post %s: %w", endpointPath, err)
	}
	return newStream(ssestream.NewDecoder(raw), p.cfg.Reasoning, debug, p.cfg.Logger), nil
}

var _ harmony.Provider = (*Provider)(nil)
