// Package agent implements the bounded tool-calling loop shared by all
// pipeline workers.
package agent

import "github.com/policyscan/policyscan/internal/provider"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation. Append-only; never mutated.
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []provider.ToolCall
	IsError    bool
}

// Conversation is the ordered message log of one loop run.
// Each run owns its own conversation; nothing survives across runs.
type Conversation struct {
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// AddSystem appends a system message.
func (c *Conversation) AddSystem(content string) {
	c.messages = append(c.messages, Message{Role: RoleSystem, Content: content})
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, Message{Role: RoleUser, Content: content})
}

// AddAssistant appends an assistant message with any requested tool calls.
func (c *Conversation) AddAssistant(content string, toolCalls []provider.ToolCall) {
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls})
}

// AddToolResult appends a tool result message correlated to a tool call.
func (c *Conversation) AddToolResult(toolCallID, name, content string, isError bool) {
	c.messages = append(c.messages, Message{
		Role:       RoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: toolCallID,
		IsError:    isError,
	})
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns the log in append order.
func (c *Conversation) Messages() []Message {
	return c.messages
}

// ProviderMessages converts the log to the provider wire format, in order.
func (c *Conversation) ProviderMessages() []provider.Message {
	result := make([]provider.Message, len(c.messages))
	for i, msg := range c.messages {
		result[i] = provider.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
	}
	return result
}
