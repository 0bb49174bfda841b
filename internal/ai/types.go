package ai

import "github.com/sashabaranov/go-openai"

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of a conversation. ToolCalls is only set on
// assistant messages, ToolCallID only on tool messages.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Name       string      `json:"name,omitempty"`         // For tool messages
	ToolCallID string      `json:"tool_call_id,omitempty"` // For tool response messages
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// ToolCall is a request from the model to run a tool. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Transcript is the record of one answered question.
type Transcript struct {
	Question       string    `json:"question"`
	Messages       []Message `json:"messages"`
	InferenceCalls int       `json:"inference_calls"`
	ToolResults    int       `json:"tool_results"`
	Answer         string    `json:"answer"`
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) Message {
	msg := Message{
		Role:    RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}
