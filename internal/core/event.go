package core

// EventKind is a notification the session emits to its consumer (the UI
// layer or the CLI).
type EventKind int

const (
	// EventConversationsUpdated signals that the conversation list changed.
	EventConversationsUpdated EventKind = iota
	// EventConversationSelected signals that the active conversation changed.
	EventConversationSelected
	// EventMessageAppended signals a new message in the active conversation.
	EventMessageAppended
	// EventConversationUpdated signals a preview/metadata change on one
	// conversation.
	EventConversationUpdated
	// EventHistoryLoaded signals that fetched history was merged into the
	// active conversation.
	EventHistoryLoaded
	// EventTypingChanged delivers the current typing-user set of the active
	// conversation.
	EventTypingChanged
	// EventRead signals that the active conversation was read by a peer.
	EventRead
	// EventPresenceChanged signals an online/offline transition of a user.
	EventPresenceChanged
	// EventNotify asks the consumer to raise an unread-message notification.
	// Muted conversations, system messages, and the user's own echoes never
	// produce it.
	EventNotify
	// EventConnection reports transport connectivity transitions.
	EventConnection
	// EventError surfaces a non-fatal failure (e.g. a fetch that came back
	// empty-handed) for display.
	EventError
)

// Event describes what happened in the session.
type Event struct {
	Kind            EventKind
	ConversationKey string
	ConversationID  int64
	Message         *Message
	TypingUsers     []User
	Reader          *User
	User            *User
	Connected       bool
	Error           *CoreError
}
