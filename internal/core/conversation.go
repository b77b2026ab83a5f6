package core

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Conversation is a conversation summary. A temporary conversation is a
// client-local placeholder for a chat that the backend has not assigned an
// id to yet; it is keyed by a generated uuid until promotion.
type Conversation struct {
	// Key is the stable local map key: the decimal id once confirmed, a
	// uuid while temporary.
	Key       string
	ID        int64
	Temporary bool
	// RecipientID is the peer a temporary direct conversation targets.
	RecipientID int64

	Name      string
	AvatarURL string

	Group            bool
	AdminID          int64
	Participants     []User
	ParticipantCount int

	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int

	Muted  bool
	Online bool
}

// ConfirmedKey is the store key for a server-assigned conversation id.
func ConfirmedKey(conversationID int64) string {
	return strconv.FormatInt(conversationID, 10)
}

// NewTemporaryConversation builds the placeholder for a direct chat with a
// user who has no existing conversation.
func NewTemporaryConversation(peer User) Conversation {
	return Conversation{
		Key:             uuid.NewString(),
		Temporary:       true,
		RecipientID:     peer.ID,
		Name:            peer.DisplayName(),
		AvatarURL:       peer.AvatarURL,
		Participants:    []User{peer},
		Online:          peer.Online,
		LastMessageTime: time.Now(),
	}
}

// HasParticipant reports whether the given user takes part in the
// conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	if c.RecipientID == userID {
		return true
	}
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
