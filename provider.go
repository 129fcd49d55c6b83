package harmony

import "context"

// ProviderRequest is the provider-agnostic generation input.
type ProviderRequest struct {
	SystemPrompt string
	History      []Message
	Tools        []ToolSpec
}

// ProviderStream yields decoded deltas until io.EOF. Malformed transport
// frames are skipped by the implementation, never surfaced as errors.
type ProviderStream interface {
	Next(ctx context.Context) (StreamDelta, error)
	Close() error
}

// Provider opens a streaming completion.
type Provider interface {
	Stream(ctx context.Context, req ProviderRequest) (ProviderStream, error)
}
