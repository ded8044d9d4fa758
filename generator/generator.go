// Package generator abstracts the text-generation capability the chat
// orchestrator depends on. The service itself does not run a model; it talks
// to an inference backend over HTTP and treats the capability as optional:
// when the backend cannot be reached at startup, the rest of the service
// stays up and chat turns fail with a service-unavailable outcome.
package generator

import "context"

// Client produces one generated continuation for a prompt. Implementations
// must honor ctx cancellation; the orchestrator bounds every call with a
// deadline.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are the generation parameters sent with every request. The values
// are fixed per deployment: a 100-token continuation, stochastic sampling,
// temperature 0.7.
type Params struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	DoSample     bool    `json:"do_sample"`
	Temperature  float64 `json:"temperature"`
}
