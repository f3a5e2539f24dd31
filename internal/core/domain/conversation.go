package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is the whole persisted chat state for one document and user.
// Version increments on every successful write.
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	Turns      []Turn    `json:"turns"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsNew reports whether the conversation has never been persisted.
func (c *Conversation) IsNew() bool {
	return c.Version == 0
}

// AppendExchange adds one user turn followed by one assistant turn.
func (c *Conversation) AppendExchange(userText, imageURL, assistantText string, at time.Time) {
	c.Turns = append(c.Turns,
		Turn{Role: RoleUser, Content: userText, ImageURL: imageURL, CreatedAt: at},
		Turn{Role: RoleAssistant, Content: assistantText, CreatedAt: at},
	)
	c.UpdatedAt = at
}

// RecentTurns returns at most n trailing turns.
func (c *Conversation) RecentTurns(n int) []Turn {
	if n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	if len(c.Turns) <= n {
		return c.Turns
	}
	return c.Turns[len(c.Turns)-n:]
}

type ChatReply struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}
