package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatClient talks to a chat-completion backend.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Input is the body of a generate request. Either field may be empty, not both.
type Input struct {
	UserPrompt   string `json:"userPrompt"`
	DetectedText string `json:"detectedText"`
}

type Health struct {
	Available      bool   `json:"available"`
	ModelAvailable *bool  `json:"modelAvailable,omitempty"`
	Error          string `json:"error,omitempty"`
}
