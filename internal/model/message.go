package model

import "fmt"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Validate() error {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	}
	return fmt.Errorf("invalid role: %q", string(r))
}

type Conversation struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Ctime  int64  `json:"ctime"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	Sources        []SourceRef `json:"sources,omitempty"`
	Ctime          int64       `json:"ctime"`
}

// SourceRef describes one context chunk the assistant was shown, numbered
// the same way the prompt numbers it so clients can render citations.
type SourceRef struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
}
