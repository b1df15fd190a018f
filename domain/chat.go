package domain

import "fmt"

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Limits on a single chat request.
const (
	MaxChatMessages   = 200
	MaxChatContentLen = 20000
)

// ChatMessage is one turn of the end-user conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidateMessages checks an incoming conversation. Clients may only submit
// user and assistant turns; the system prompt is added server-side.
func ValidateMessages(messages []ChatMessage) error {
	if len(messages) > MaxChatMessages {
		return &FieldError{Field: "messages", Reason: fmt.Sprintf("at most %d messages allowed", MaxChatMessages)}
	}
	for i, message := range messages {
		if message.Role != RoleUser && message.Role != RoleAssistant {
			return &FieldError{Field: fmt.Sprintf("messages[%d].role", i), Reason: "must be user or assistant"}
		}
		if len(message.Content) > MaxChatContentLen {
			return &FieldError{Field: fmt.Sprintf("messages[%d].content", i), Reason: fmt.Sprintf("exceeds %d characters", MaxChatContentLen)}
		}
	}
	return nil
}
