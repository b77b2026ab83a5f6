package proto

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Timestamp tolerates the timestamp shapes the backend emits: RFC3339 with or
// without zone, fractional seconds, or epoch milliseconds.
type Timestamp struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(millis)
		return nil
	}

	return fmt.Errorf("unsupported timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.Format(time.RFC3339Nano) + `"`), nil
}

// User is the wire shape of a user reference nested in other payloads.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Online    bool   `json:"isOnline,omitempty"`
}

// Message is a chat message as delivered on topics, personal queues and the
// history endpoint.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Content        string    `json:"content"`
	CreatedAt      Timestamp `json:"createdAt"`
	IsRead         bool      `json:"isRead"`
	IsSystem       bool      `json:"isSystem"`
	Sender         *User     `json:"sender"`
	// SenderID appears instead of the nested sender object in some event
	// variants; SenderRef resolves the two.
	SenderID int64 `json:"senderId,omitempty"`
}

// SenderRef returns the message sender as a canonical user reference,
// regardless of whether the payload carried a nested object or a bare id.
func (m *Message) SenderRef() *User {
	if m.Sender != nil {
		return m.Sender
	}
	if m.SenderID != 0 {
		return &User{ID: m.SenderID}
	}
	return nil
}

// Conversation is a conversation summary from the list endpoint.
type Conversation struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	AvatarURL        string    `json:"avatarUrl,omitempty"`
	IsGroup          bool      `json:"isGroup"`
	IsOnline         bool      `json:"isOnline"`
	AdminID          int64     `json:"adminId,omitempty"`
	Participants     []User    `json:"participants,omitempty"`
	ParticipantCount int       `json:"participantCount,omitempty"`
	LastMessage      string    `json:"lastMessage,omitempty"`
	LastMessageTime  Timestamp `json:"lastMessageTime"`
	UnreadCount      int       `json:"unreadCount,omitempty"`
	Muted            bool      `json:"muted"`
}

// Typing is a typing-indicator event.
type Typing struct {
	ConversationID int64  `json:"conversationId"`
	UserID         int64  `json:"userId"`
	Username       string `json:"username,omitempty"`
	FullName       string `json:"fullName,omitempty"`
	Typing         bool   `json:"typing"`
}

// ReadReceipt signals that a user has read a conversation up to now.
type ReadReceipt struct {
	ConversationID int64  `json:"conversationId"`
	ReaderID       int64  `json:"readerId"`
	ReaderName     string `json:"readerName,omitempty"`
	ReaderAvatar   string `json:"readerAvatar,omitempty"`
}

// Presence is a user status change on the presence topic.
type Presence struct {
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// Online reports whether the presence status means the user is connected.
func (p *Presence) Online() bool {
	return p.Status == "ONLINE"
}

// SendMessageRequest is the publish payload for sending a chat message.
// Exactly one of ConversationID or RecipientID must be set: RecipientID asks
// the backend to create the conversation on first message.
type SendMessageRequest struct {
	ConversationID   int64   `json:"conversationId,omitempty"`
	RecipientID      int64   `json:"recipientId,omitempty"`
	Content          string  `json:"content"`
	MentionedUserIDs []int64 `json:"mentionedUserIds,omitempty"`
}

// TypingRequest is the publish payload for typing status.
type TypingRequest struct {
	ConversationID int64 `json:"conversationId"`
	Typing         bool  `json:"typing"`
}

// MarkReadRequest is the publish payload for read receipts.
type MarkReadRequest struct {
	ConversationID int64 `json:"conversationId"`
}
