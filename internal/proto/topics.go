package proto

import (
	"strconv"
	"strings"
)

// Topics the backend broadcasts on and destinations it accepts publishes to.
const (
	PersonalMessagesQueue = "/user/queue/messages"
	PersonalReceiptsQueue = "/user/queue/read-receipts"

	DestSendMessage = "/app/chat.send"
	DestTyping      = "/app/chat.typing"
	DestMarkRead    = "/app/chat.markRead"

	conversationPrefix = "/topic/conversation/"
	presencePrefix     = "/topic/active/"
)

// ConversationTopic is the broadcast topic carrying messages and read
// receipts for one conversation.
func ConversationTopic(conversationID int64) string {
	return conversationPrefix + strconv.FormatInt(conversationID, 10)
}

// TypingTopic carries typing indicators for one conversation.
func TypingTopic(conversationID int64) string {
	return ConversationTopic(conversationID) + "/typing"
}

// ReadTopic carries read receipts for one conversation.
func ReadTopic(conversationID int64) string {
	return ConversationTopic(conversationID) + "/read"
}

// PresenceTopic carries online/offline transitions for one user.
func PresenceTopic(username string) string {
	return presencePrefix + username
}

// TopicClass identifies what kind of payload a topic delivers.
type TopicClass int

const (
	ClassUnknown TopicClass = iota
	ClassConversation
	ClassTyping
	ClassRead
	ClassPersonalMessages
	ClassPersonalReceipts
	ClassPresence
)

// ClassifyTopic maps a topic string onto its payload class.
func ClassifyTopic(topic string) TopicClass {
	switch {
	case topic == PersonalMessagesQueue:
		return ClassPersonalMessages
	case topic == PersonalReceiptsQueue:
		return ClassPersonalReceipts
	case strings.HasPrefix(topic, presencePrefix):
		return ClassPresence
	case strings.HasPrefix(topic, conversationPrefix):
		switch {
		case strings.HasSuffix(topic, "/typing"):
			return ClassTyping
		case strings.HasSuffix(topic, "/read"):
			return ClassRead
		default:
			return ClassConversation
		}
	default:
		return ClassUnknown
	}
}
