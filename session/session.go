// Package session holds per-conversation state.
//
// A Conversation is owned by exactly one orchestrator session: created at
// session start, grown monotonically, discarded at session end. Nothing is
// shared across sessions.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content string
	// Failed marks assistant turns that are fallback messages for a query
	// the pipeline could not answer.
	Failed bool
	At     time.Time
}

// Conversation is an append-only ordered turn log for one session.
type Conversation struct {
	id    string
	turns []Turn
}

// NewConversation creates an empty conversation with a fresh session ID.
func NewConversation() *Conversation {
	return &Conversation{id: uuid.NewString()}
}

// ID returns the session identifier.
func (c *Conversation) ID() string {
	return c.id
}

// Append adds a turn. Turns are never modified or removed afterwards.
func (c *Conversation) Append(role Role, content string) {
	c.turns = append(c.turns, Turn{Role: role, Content: content, At: time.Now()})
}

// AppendFailed adds an assistant turn marked as a failure fallback.
func (c *Conversation) AppendFailed(content string) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Content: content, Failed: true, At: time.Now()})
}

// Turns returns a copy of all turns in order.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Recent returns a copy of the most recent n turns, oldest first. Oldest
// turns are the ones dropped when the conversation exceeds n.
func (c *Conversation) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	start := max(len(c.turns)-n, 0)
	return append([]Turn(nil), c.turns[start:]...)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}
