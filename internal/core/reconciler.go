package core

import (
	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/proto"
)

// ReconcilerHooks connect the reconciler to session-owned side effects.
// Unset hooks default to no-ops, which keeps the reconciler testable in
// isolation.
type ReconcilerHooks struct {
	// CurrentKey reports the store key of the active conversation, "" when
	// none is open.
	CurrentKey func() string
	// OnConfirmed runs after a temporary conversation got its confirmed id:
	// the session establishes the per-conversation subscriptions there.
	OnConfirmed func(conversationID int64)
	// MarkRead publishes a read receipt for inbound messages landing in the
	// open conversation.
	MarkRead func(conversationID int64)
	// ReloadConversations triggers a full list refetch when an event
	// references a conversation the store has never seen.
	ReloadConversations func()
	// Emit delivers a session event to the consumer.
	Emit func(Event)
}

// Reconciler merges message, typing, read-receipt and presence events from
// every delivery channel into consistent store state. It is delivery-channel
// agnostic: the broadcast topic and the personal queue feed the same path,
// and duplicates are discarded purely by message id.
type Reconciler struct {
	store       *ConversationStore
	typing      *TypingTracker
	localUserID int64
	log         *zerolog.Logger
	hooks       ReconcilerHooks
}

// NewReconciler builds a reconciler over the given store and tracker.
func NewReconciler(store *ConversationStore, typing *TypingTracker, localUserID int64, logger *zerolog.Logger, hooks ReconcilerHooks) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if hooks.CurrentKey == nil {
		hooks.CurrentKey = func() string { return "" }
	}
	if hooks.OnConfirmed == nil {
		hooks.OnConfirmed = func(int64) {}
	}
	if hooks.MarkRead == nil {
		hooks.MarkRead = func(int64) {}
	}
	if hooks.ReloadConversations == nil {
		hooks.ReloadConversations = func() {}
	}
	if hooks.Emit == nil {
		hooks.Emit = func(Event) {}
	}
	return &Reconciler{
		store:       store,
		typing:      typing,
		localUserID: localUserID,
		log:         logger,
		hooks:       hooks,
	}
}

// Apply routes one normalized event into the state. Unknown kinds are
// dropped with a log line; nothing propagates past this boundary.
func (r *Reconciler) Apply(ev proto.Event) {
	switch ev.Kind {
	case proto.EventMessage:
		r.applyMessage(ev.Message)
	case proto.EventTyping:
		r.applyTyping(ev.Typing)
	case proto.EventReadReceipt:
		r.applyReceipt(ev.Receipt)
	case proto.EventPresence:
		r.applyPresence(ev.Status)
	default:
		r.log.Warn().Str("topic", ev.Topic).Msg("dropping unclassified event")
	}
}

func (r *Reconciler) applyMessage(wire *proto.Message) {
	msg := messageFromWire(wire)
	convID := wire.ConversationID

	cur := r.store.GetByKey(r.hooks.CurrentKey())

	// First confirmed-id event for a freshly started direct chat upgrades
	// the open temporary conversation, but only when the event plausibly
	// belongs to it: an unrelated conversation's traffic must not hijack it.
	if cur != nil && cur.Temporary && convID != 0 && r.plausibleUpgrade(cur, &msg) {
		if promoted, ok := r.store.PromoteTemporary(cur.Key, convID); ok {
			cur = promoted
			r.hooks.Emit(Event{Kind: EventConversationSelected, ConversationKey: cur.Key, ConversationID: convID})
			r.hooks.OnConfirmed(convID)
		}
	}

	isCurrent := cur != nil && !cur.Temporary && convID != 0 && cur.ID == convID

	if isCurrent {
		if r.store.AppendMessage(cur.Key, msg) {
			r.hooks.Emit(Event{Kind: EventMessageAppended, ConversationKey: cur.Key, ConversationID: convID, Message: &msg})
		}
		if sid := msg.SenderID(); sid != 0 && sid != r.localUserID {
			r.hooks.MarkRead(convID)
		}
	}

	// A message from a user implies they stopped typing.
	if sid := msg.SenderID(); sid != 0 {
		if r.typing.Clear(convID, sid) && isCurrent {
			r.hooks.Emit(Event{Kind: EventTypingChanged, ConversationID: convID, TypingUsers: r.typing.Users(convID)})
		}
	}

	// Keep the list preview current whether or not the conversation is on
	// screen; an unknown conversation means the list is stale.
	if conv := r.store.Get(convID); conv != nil {
		if r.store.UpdatePreview(convID, msg.Content, msg.CreatedAt) {
			r.hooks.Emit(Event{Kind: EventConversationUpdated, ConversationID: convID, ConversationKey: conv.Key})
		}
	} else if convID != 0 {
		r.hooks.ReloadConversations()
	}

	// Notification side effect for messages landing elsewhere. Own echoes,
	// system messages and muted conversations stay silent.
	if !isCurrent && convID != 0 && !msg.System && msg.SenderID() != r.localUserID {
		if conv := r.store.Get(convID); conv == nil || !conv.Muted {
			r.hooks.Emit(Event{Kind: EventNotify, ConversationID: convID, Message: &msg})
		}
	}
}

// plausibleUpgrade gates the temporary-to-confirmed transition: the event
// must come from the local user's own send echo or from the temporary
// conversation's peer.
func (r *Reconciler) plausibleUpgrade(temp *Conversation, msg *Message) bool {
	sid := msg.SenderID()
	if sid == 0 {
		return false
	}
	return sid == r.localUserID || temp.HasParticipant(sid)
}

func (r *Reconciler) applyTyping(t *proto.Typing) {
	if t.UserID == r.localUserID {
		return
	}
	user := User{ID: t.UserID, Username: t.Username, FullName: t.FullName}
	if !r.typing.Set(t.ConversationID, user, t.Typing) {
		return
	}
	cur := r.store.GetByKey(r.hooks.CurrentKey())
	if cur != nil && cur.ID == t.ConversationID {
		r.hooks.Emit(Event{Kind: EventTypingChanged, ConversationID: t.ConversationID, TypingUsers: r.typing.Users(t.ConversationID)})
	}
}

func (r *Reconciler) applyReceipt(receipt *proto.ReadReceipt) {
	cur := r.store.GetByKey(r.hooks.CurrentKey())
	if cur == nil || cur.ID != receipt.ConversationID {
		return
	}
	r.store.MarkAllRead(cur.Key)
	reader := &User{ID: receipt.ReaderID, FullName: receipt.ReaderName, AvatarURL: receipt.ReaderAvatar}
	r.hooks.Emit(Event{Kind: EventRead, ConversationKey: cur.Key, ConversationID: cur.ID, Reader: reader})
}

func (r *Reconciler) applyPresence(p *proto.Presence) {
	online := p.Online()
	if p.UserID != 0 {
		r.store.SetPresence(p.UserID, online)
	} else {
		r.store.SetPresenceByName(p.Username, online)
	}
	r.hooks.Emit(Event{Kind: EventPresenceChanged, User: &User{ID: p.UserID, Username: p.Username, Online: online}})
}
