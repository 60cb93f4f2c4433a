package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AnswerCache remembers the last answer for a normalized question.
type AnswerCache struct {
	Question    string `json:"question"`
	Fingerprint string `json:"fingerprint"`
	Answer      string `json:"answer"`
	Intent      Intent `json:"intent"`
}

// Session is the persisted per-user conversation record.
type Session struct {
	ID          string            `json:"id"`
	Messages    []Message         `json:"messages"`
	Requirement ConversationState `json:"requirement"`
	LastUserAt  time.Time         `json:"last_user_at"`
	Cache       *AnswerCache      `json:"cache,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Append adds a message and keeps at most maxMessages trailing entries.
func (s *Session) Append(msg Message, maxMessages int) {
	s.Messages = append(s.Messages, msg)
	if maxMessages > 0 && len(s.Messages) > maxMessages {
		s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-maxMessages:]...)
	}
}

// Recent returns up to n trailing messages.
func (s *Session) Recent(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
