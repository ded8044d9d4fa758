package generator

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/user/chatbot-go/config"
)

// HTTPClient talks to a text-generation inference server. The wire format is
// the common generate-endpoint shape: POST /generate with the prompt and
// parameters, answered by a list of candidates of which the first is used.
type HTTPClient struct {
	rest   *resty.Client
	params Params
}

type generateRequest struct {
	Inputs     string `json:"inputs"`
	Parameters Params `json:"parameters"`
}

type generateCandidate struct {
	GeneratedText string `json:"generated_text"`
}

// NewHTTPClient constructs a client for the configured backend and probes its
// health endpoint once. A failed probe returns an error; the caller decides
// whether to treat the capability as absent (the server does) or to abort.
func NewHTTPClient(cfg *config.GeneratorConfig) (*HTTPClient, error) {
	rest := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	c := &HTTPClient{
		rest: rest,
		params: Params{
			MaxNewTokens: cfg.MaxNewTokens,
			DoSample:     true,
			Temperature:  cfg.Temperature,
		},
	}

	resp, err := rest.R().Get("/health")
	if err != nil {
		return nil, fmt.Errorf("generation backend unreachable at %s: %w", cfg.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("generation backend unhealthy: %s", resp.Status())
	}

	return c, nil
}

// Generate requests one continuation for the prompt. The first candidate
// returned by the backend is the reply; an empty candidate list or empty
// text is reported as an error rather than silently returning "".
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	var candidates []generateCandidate

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(generateRequest{Inputs: prompt, Parameters: c.params}).
		SetResult(&candidates).
		Post("/generate")
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generation backend returned %s", resp.Status())
	}
	if len(candidates) == 0 || candidates[0].GeneratedText == "" {
		return "", fmt.Errorf("generation backend returned no text")
	}

	return candidates[0].GeneratedText, nil
}
