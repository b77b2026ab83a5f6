package core

import "time"

// User is a chat participant reference.
type User struct {
	ID        int64
	Username  string
	FullName  string
	AvatarURL string
	Online    bool
}

// DisplayName returns the best available name for rendering.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Message is the domain model for a chat message. ID is server-assigned and
// is the deduplication key within a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	Sender         *User // nil for system messages
	Content        string
	CreatedAt      time.Time
	Read           bool
	System         bool
}

// SenderID returns the sender's id, or 0 for system messages.
func (m *Message) SenderID() int64 {
	if m.Sender == nil {
		return 0
	}
	return m.Sender.ID
}
