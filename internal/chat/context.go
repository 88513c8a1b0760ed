// Package chat holds the conversation a function call is dispatched against:
// the message type shared by the LLM clients and the dispatcher, an in-memory
// conversation context, and stores that persist conversations between turns.
package chat

import (
	"sync"
)

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleFunction marks the output of a dispatched function call.
	RoleFunction Role = "function"
)

// Message is a single entry of the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is set on function messages to the name of the originating call.
	Name string `json:"name,omitempty"`
	// FunctionCall is set on assistant messages that requested a call, so
	// providers can replay the request when the conversation continues.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall is the wire shape of a call request as stored in history.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Context is an in-memory conversation. The dispatcher is its only writer
// during a call; the mutex lets HTTP handlers snapshot it safely.
type Context struct {
	mu       sync.RWMutex
	id       string
	messages []Message
}

// NewContext creates a conversation seeded with the given messages.
func NewContext(id string, messages ...Message) *Context {
	c := &Context{id: id}
	c.messages = append(c.messages, messages...)
	return c
}

// ID returns the conversation identifier.
func (c *Context) ID() string {
	return c.id
}

// LastMessage returns the most recent message, or a zero Message when the
// conversation is empty.
func (c *Context) LastMessage() Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}
	}
	return c.messages[len(c.messages)-1]
}

// AppendMessage adds a message to the end of the conversation.
func (c *Context) AppendMessage(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// AppendUserQuestion is a shorthand for appending a user message.
func (c *Context) AppendUserQuestion(question string) {
	c.AppendMessage(Message{Role: RoleUser, Content: question})
}

// Messages returns a copy of the conversation history.
func (c *Context) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the conversation.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
