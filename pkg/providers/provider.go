// Package providers defines the abstraction over external AI
// text-generation services and the request/response types shared by
// provider adapters.
package providers

import "context"

// Provider is the interface AI provider adapters implement. The
// orchestrator treats it as an opaque, fallible, latency-bearing call:
// prompt in, text out. No retries happen at this layer; a failed call
// surfaces to the caller, who may retry manually at fresh quota cost.
type Provider interface {
	// Generate sends one generation request and returns the produced
	// text. Implementations must respect context cancellation; a
	// timeout surfaces as an ordinary error.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// HealthCheck verifies the provider is reachable and authorized.
	HealthCheck(ctx context.Context) error

	// Name returns the adapter's provider name (e.g. "openai").
	Name() string

	// Close releases underlying resources. The provider must not be
	// used afterwards.
	Close() error
}

// GenerateRequest is a provider-agnostic generation request.
type GenerateRequest struct {
	// SystemPrompt sets the model's instructions.
	SystemPrompt string

	// UserPrompt is the content to operate on.
	UserPrompt string

	// Temperature controls randomness (0.0 to 2.0).
	Temperature float32

	// MaxTokens caps the generated length. Zero means provider default.
	MaxTokens int

	// JSONResponse requests a JSON-object response format, used for
	// batched prompts that must parse into a fixed shape.
	JSONResponse bool
}

// GenerateResponse is a provider-agnostic generation result.
type GenerateResponse struct {
	// Text is the generated content.
	Text string

	// Usage reports token consumption when the provider supplies it.
	Usage TokenUsage
}

// TokenUsage tracks token consumption for one generation call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
