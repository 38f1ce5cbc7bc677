package llm

import "context"

type Message struct {
	Role    string `json:"role"` // system|user|assistant
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider turns a message list into a single completion.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	Model() string
	Close() error
}
