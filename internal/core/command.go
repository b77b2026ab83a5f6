package core

import "github.com/arklim/chatsync/internal/proto"

// commandKind enumerates everything that can enter the session loop. All
// state mutation happens by processing commands on one goroutine, so the
// store, registry and tracker need no locking.
type commandKind int

const (
	cmdSelectConversation commandKind = iota
	cmdStartConversation
	cmdSendMessage
	cmdSendTyping
	cmdMarkRead
	cmdLoadConversations
	cmdSetMute
	cmdTransportEvent
	cmdHistoryLoaded
	cmdConversationsLoaded
	cmdConnectionChange
	cmdQuery
)

type queryKind int

const (
	queryConversations queryKind = iota
	queryMessages
	queryCurrent
	queryTyping
)

type command struct {
	kind commandKind

	conversation Conversation
	user         User
	content      string
	mentions     []int64
	typing       bool
	muted        bool

	conversationID  int64
	conversationKey string

	event         proto.Event
	history       []proto.Message
	conversations []proto.Conversation
	connected     bool

	query queryKind
	reply chan any
	errc  chan error
}
