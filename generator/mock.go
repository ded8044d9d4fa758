package generator

import "context"

// Mock is a canned-response Client for tests and local development without
// an inference backend.
type Mock struct {
	// Reply is returned verbatim; when empty, the prompt is echoed back.
	Reply string
	// Err, when set, is returned instead of a reply.
	Err error
	// Prompts records every prompt passed to Generate.
	Prompts []string
}

// Generate implements Client.
func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Reply == "" {
		return prompt, nil
	}
	return m.Reply, nil
}
