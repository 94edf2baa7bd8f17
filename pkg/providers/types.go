package providers

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

// LLMProvider turns an ordered list of turns into one completion.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string) (string, error)
	Name() string
}

// ImageDescriber produces a text description of a local image file.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, path string) (string, error)
}

// splitSystem separates leading system turns from the conversation.
func splitSystem(messages []Message) (system string, rest []Message) {
	for i, m := range messages {
		if m.Role != RoleSystem {
			return system, messages[i:]
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system, nil
}
