// Package provider defines the completion boundary between the orchestrator
// and language-model backends. The orchestrator only sees pseudonymized text
// through this interface; raw sensitive values never cross it.
package provider

import "context"

// Request carries one completion call. Prompt is the pseudonymized message;
// SystemPrompt comes from the agent handling the conversation.
type Request struct {
	SystemPrompt string
	Prompt       string
	MaxTokens    int
}

// Completion is the model's reply plus its token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Completer produces a reply for a prompt. Implementations wrap a concrete
// model backend; they must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
