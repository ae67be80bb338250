// Package echo is a deterministic Completer for development and tests. It
// answers with the prompt it received, optionally under a fixed preamble.
package echo

import (
	"context"
	"strings"

	"maestro/internal/provider"
)

type Completer struct {
	// Preamble, when set, prefixes every reply.
	Preamble string
}

func New(preamble string) *Completer {
	return &Completer{Preamble: preamble}
}

func (c *Completer) Complete(_ context.Context, req provider.Request) (provider.Completion, error) {
	text := req.Prompt
	if c.Preamble != "" {
		text = c.Preamble + " " + text
	}
	return provider.Completion{
		Text:         text,
		InputTokens:  approximateTokens(req.SystemPrompt) + approximateTokens(req.Prompt),
		OutputTokens: approximateTokens(text),
	}, nil
}

// approximateTokens is a rough word count, good enough for echo accounting.
func approximateTokens(text string) int {
	return len(strings.Fields(text))
}
