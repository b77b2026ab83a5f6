package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/proto"
	"github.com/arklim/chatsync/internal/transport"
)

// API is the REST collaborator the session pulls conversation summaries and
// message history from.
type API interface {
	ListConversations(ctx context.Context) ([]proto.Conversation, error)
	GetMessages(ctx context.Context, conversationID int64) ([]proto.Message, error)
}

// Session is the per-login synchronization context: it owns the conversation
// store, subscription registry, typing tracker and reconciler, and runs the
// single event loop that all of them are mutated on. Construct one per
// authenticated user; independent sessions share nothing.
type Session struct {
	user User
	tp   transport.Transport
	api  API
	log  *zerolog.Logger

	registry   *SubscriptionRegistry
	store      *ConversationStore
	typing     *TypingTracker
	reconciler *Reconciler

	currentKey           string
	loadingConversations bool

	commands chan command
	events   chan Event
	done     chan struct{}
	runCtx   context.Context
}

// NewSession wires a session for the given local user.
func NewSession(user User, tp transport.Transport, api API, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &Session{
		user:     user,
		tp:       tp,
		api:      api,
		log:      logger,
		store:    NewConversationStore(),
		typing:   NewTypingTracker(),
		registry: NewSubscriptionRegistry(tp, logger),
		commands: make(chan command, 256),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}

	s.reconciler = NewReconciler(s.store, s.typing, user.ID, logger, ReconcilerHooks{
		CurrentKey:          func() string { return s.currentKey },
		OnConfirmed:         s.onConversationConfirmed,
		MarkRead:            s.publishMarkRead,
		ReloadConversations: s.requestConversationReload,
		Emit:                s.emit,
	})
	return s
}

// Events is the notification stream for the UI layer. Slow consumers lose
// notifications rather than stalling the loop; state is always recoverable
// through the query methods.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Run connects the transport, subscribes the personal queues, loads the
// conversation list and then processes commands until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.runCtx = ctx

	s.tp.OnConnectionChange(func(connected bool) {
		s.post(command{kind: cmdConnectionChange, connected: connected})
	})

	if err := s.tp.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	defer s.tp.Disconnect()

	s.subscribeTopic(proto.PersonalMessagesQueue, true)
	s.subscribeTopic(proto.PersonalReceiptsQueue, true)
	s.fetchConversations(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.commands:
			s.handle(ctx, cmd)
		}
	}
}

// SelectConversation makes the given conversation active: previous
// non-persistent subscriptions are torn down first, then the new topics are
// established, history is fetched and a read receipt is sent.
func (s *Session) SelectConversation(conv Conversation) {
	s.post(command{kind: cmdSelectConversation, conversation: conv})
}

// StartConversation opens a chat with the given user, reusing an existing
// direct conversation when one exists and creating a temporary placeholder
// otherwise.
func (s *Session) StartConversation(peer User) {
	s.post(command{kind: cmdStartConversation, user: peer})
}

// SendMessage publishes a chat message into the active conversation.
// Optional mentions carry the ids of mentioned users.
func (s *Session) SendMessage(content string, mentions ...int64) error {
	errc := make(chan error, 1)
	if !s.post(command{kind: cmdSendMessage, content: content, mentions: mentions, errc: errc}) {
		return ErrSessionStopped
	}
	return s.await(errc)
}

// SendTyping publishes the local user's typing state for the active
// conversation. The caller owns the inactivity debounce and must send false
// when the user stops.
func (s *Session) SendTyping(typing bool) error {
	errc := make(chan error, 1)
	if !s.post(command{kind: cmdSendTyping, typing: typing, errc: errc}) {
		return ErrSessionStopped
	}
	return s.await(errc)
}

// MarkRead publishes a read receipt for a conversation.
func (s *Session) MarkRead(conversationID int64) {
	s.post(command{kind: cmdMarkRead, conversationID: conversationID})
}

// LoadConversations schedules a refresh of the conversation list.
func (s *Session) LoadConversations() {
	s.post(command{kind: cmdLoadConversations})
}

// SetMuted records a mute flag change for a conversation. The REST call that
// persists the change is the caller's business; this keeps local state and
// notification suppression in line with it.
func (s *Session) SetMuted(conversationID int64, muted bool) {
	s.post(command{kind: cmdSetMute, conversationID: conversationID, muted: muted})
}

// Conversations returns the current conversation list, newest activity
// first.
func (s *Session) Conversations() []Conversation {
	if v, ok := s.query(queryConversations); ok {
		return v.([]Conversation)
	}
	return nil
}

// Messages returns the active conversation's message list in creation-time
// order.
func (s *Session) Messages() []Message {
	if v, ok := s.query(queryMessages); ok {
		return v.([]Message)
	}
	return nil
}

// Current returns a copy of the active conversation, or nil.
func (s *Session) Current() *Conversation {
	if v, ok := s.query(queryCurrent); ok {
		if conv, valid := v.(Conversation); valid {
			return &conv
		}
	}
	return nil
}

// TypingUsers returns who is typing in the active conversation.
func (s *Session) TypingUsers() []User {
	if v, ok := s.query(queryTyping); ok {
		return v.([]User)
	}
	return nil
}

func (s *Session) post(cmd command) bool {
	select {
	case s.commands <- cmd:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) await(errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrSessionStopped
	}
}

func (s *Session) query(kind queryKind) (any, bool) {
	reply := make(chan any, 1)
	if !s.post(command{kind: cmdQuery, query: kind, reply: reply}) {
		return nil, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-s.done:
		return nil, false
	}
}

func (s *Session) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdSelectConversation:
		s.selectConversation(ctx, cmd.conversation)
	case cmdStartConversation:
		s.startConversation(ctx, cmd.user)
	case cmdSendMessage:
		cmd.errc <- s.sendMessage(cmd.content, cmd.mentions)
	case cmdSendTyping:
		cmd.errc <- s.sendTyping(cmd.typing)
	case cmdMarkRead:
		s.publishMarkRead(cmd.conversationID)
	case cmdLoadConversations:
		s.fetchConversations(ctx)
	case cmdSetMute:
		if s.store.SetMuted(cmd.conversationID, cmd.muted) {
			s.emit(Event{Kind: EventConversationUpdated, ConversationID: cmd.conversationID, ConversationKey: ConfirmedKey(cmd.conversationID)})
		}
	case cmdTransportEvent:
		s.reconciler.Apply(cmd.event)
	case cmdHistoryLoaded:
		s.historyLoaded(cmd)
	case cmdConversationsLoaded:
		s.conversationsLoaded(cmd)
	case cmdConnectionChange:
		s.connectionChanged(ctx, cmd.connected)
	case cmdQuery:
		s.answer(cmd)
	}
}

func (s *Session) answer(cmd command) {
	switch cmd.query {
	case queryConversations:
		cmd.reply <- s.store.List()
	case queryMessages:
		cmd.reply <- s.store.Messages(s.currentKey)
	case queryCurrent:
		if conv := s.store.GetByKey(s.currentKey); conv != nil {
			cmd.reply <- *conv
		} else {
			cmd.reply <- nil
		}
	case queryTyping:
		if conv := s.store.GetByKey(s.currentKey); conv != nil && conv.ID != 0 {
			cmd.reply <- s.typing.Users(conv.ID)
		} else {
			cmd.reply <- []User{}
		}
	}
}

func (s *Session) selectConversation(ctx context.Context, conv Conversation) {
	// Teardown happens before the new subscriptions exist so a stale handler
	// cannot touch the next conversation's state.
	if old := s.store.GetByKey(s.currentKey); old != nil && old.ID != 0 {
		s.typing.ClearConversation(old.ID)
	}
	s.registry.UnsubscribeNonPersistent()

	var stored *Conversation
	switch {
	case conv.Temporary:
		if existing := s.store.GetByKey(conv.Key); existing != nil {
			stored = existing
		} else {
			stored = s.store.AddTemporary(conv)
		}
	case conv.ID != 0:
		withKey := conv
		withKey.Key = ConfirmedKey(conv.ID)
		stored = s.store.Upsert(withKey)
	default:
		s.currentKey = ""
		s.emit(Event{Kind: EventConversationSelected})
		return
	}

	s.currentKey = stored.Key
	s.emit(Event{Kind: EventConversationSelected, ConversationKey: stored.Key, ConversationID: stored.ID})

	if stored.ID != 0 {
		s.subscribeConversationTopics(stored.ID)
		s.fetchHistory(ctx, stored.ID)
		s.publishMarkRead(stored.ID)
	}
}

func (s *Session) startConversation(ctx context.Context, peer User) {
	if existing := s.store.FindDirectWith(peer.ID); existing != nil {
		s.selectConversation(ctx, *existing)
		return
	}
	s.selectConversation(ctx, NewTemporaryConversation(peer))
}

func (s *Session) sendMessage(content string, mentions []int64) error {
	cur := s.store.GetByKey(s.currentKey)
	if cur == nil {
		return ErrNoConversation
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	req := proto.SendMessageRequest{Content: content, MentionedUserIDs: mentions}
	switch {
	case cur.ID != 0:
		req.ConversationID = cur.ID
	case cur.RecipientID != 0:
		req.RecipientID = cur.RecipientID
	default:
		return ErrNotConfirmed
	}
	if err := s.tp.Publish(proto.DestSendMessage, req); err != nil {
		s.emit(Event{Kind: EventError, ConversationKey: cur.Key, ConversationID: cur.ID, Error: coreError(ErrCodePublishFailed, "message not sent")})
		return err
	}
	return nil
}

func (s *Session) sendTyping(typing bool) error {
	cur := s.store.GetByKey(s.currentKey)
	if cur == nil {
		return ErrNoConversation
	}
	if cur.ID == 0 {
		return ErrNotConfirmed
	}
	return s.tp.Publish(proto.DestTyping, proto.TypingRequest{ConversationID: cur.ID, Typing: typing})
}

func (s *Session) publishMarkRead(conversationID int64) {
	if conversationID == 0 {
		return
	}
	if err := s.tp.Publish(proto.DestMarkRead, proto.MarkReadRequest{ConversationID: conversationID}); err != nil {
		s.log.Debug().Err(err).Int64("conversation_id", conversationID).Msg("mark read not sent")
	}
}

// onConversationConfirmed runs when the open temporary conversation received
// its server id: the confirmed topics are established and the list refreshed
// so the new conversation shows up.
func (s *Session) onConversationConfirmed(conversationID int64) {
	s.currentKey = ConfirmedKey(conversationID)
	s.subscribeConversationTopics(conversationID)
	s.requestConversationReload()
}

func (s *Session) subscribeConversationTopics(conversationID int64) {
	s.subscribeTopic(proto.ConversationTopic(conversationID), false)
	s.subscribeTopic(proto.TypingTopic(conversationID), false)
	s.subscribeTopic(proto.ReadTopic(conversationID), false)

	// Presence for the direct peer keeps the online dot honest while the
	// conversation is on screen.
	if conv := s.store.Get(conversationID); conv != nil && !conv.Group {
		for _, p := range conv.Participants {
			if p.ID != s.user.ID && p.Username != "" {
				s.subscribeTopic(proto.PresenceTopic(p.Username), false)
			}
		}
	}
}

func (s *Session) subscribeTopic(topic string, persistent bool) {
	handler := func(body []byte) {
		ev, err := proto.Normalize(topic, body)
		if err != nil {
			// One malformed payload must not take the subscription down.
			s.log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed event")
			return
		}
		s.post(command{kind: cmdTransportEvent, event: ev})
	}
	if err := s.registry.Subscribe(topic, handler, persistent); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("subscribe failed")
	}
}

// requestConversationReload is only invoked from loop context (reconciler
// hooks), so it may start the fetch directly.
func (s *Session) requestConversationReload() {
	s.fetchConversations(s.runCtx)
}

func (s *Session) fetchConversations(ctx context.Context) {
	if s.loadingConversations {
		return
	}
	s.loadingConversations = true
	go func() {
		list, err := s.api.ListConversations(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("load conversations")
			s.emit(Event{Kind: EventError, Error: coreError(ErrCodeFetchFailed, "could not load conversations")})
			s.post(command{kind: cmdConversationsLoaded})
			return
		}
		s.post(command{kind: cmdConversationsLoaded, conversations: list})
	}()
}

func (s *Session) fetchHistory(ctx context.Context, conversationID int64) {
	key := ConfirmedKey(conversationID)
	go func() {
		msgs, err := s.api.GetMessages(ctx, conversationID)
		if err != nil {
			s.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("load messages")
			s.emit(Event{Kind: EventError, ConversationID: conversationID, Error: coreError(ErrCodeFetchFailed, "could not load messages")})
			return
		}
		s.post(command{kind: cmdHistoryLoaded, conversationKey: key, conversationID: conversationID, history: msgs})
	}()
}

// historyLoaded merges a fetch result into the store. Live events may have
// raced ahead of the fetch; merging by id means a slow response can only add
// messages, never overwrite what already arrived.
func (s *Session) historyLoaded(cmd command) {
	if s.store.GetByKey(cmd.conversationKey) == nil {
		return
	}
	mapped := make([]Message, 0, len(cmd.history))
	for i := range cmd.history {
		mapped = append(mapped, messageFromWire(&cmd.history[i]))
	}
	s.store.MergeMessages(cmd.conversationKey, mapped)
	s.emit(Event{Kind: EventHistoryLoaded, ConversationKey: cmd.conversationKey, ConversationID: cmd.conversationID})
}

func (s *Session) conversationsLoaded(cmd command) {
	s.loadingConversations = false
	if cmd.conversations == nil {
		return
	}
	for i := range cmd.conversations {
		s.store.ApplySummary(conversationFromWire(&cmd.conversations[i]))
	}
	s.emit(Event{Kind: EventConversationsUpdated})
}

// connectionChanged reinstates subscriptions after a reconnect: persistent
// queues replay through the registry, and the active conversation's topics
// are re-established here along with a catch-up history fetch.
func (s *Session) connectionChanged(ctx context.Context, connected bool) {
	s.emit(Event{Kind: EventConnection, Connected: connected})
	if !connected {
		return
	}

	s.registry.ResubscribeAll()
	if cur := s.store.GetByKey(s.currentKey); cur != nil && cur.ID != 0 {
		s.subscribeConversationTopics(cur.ID)
		s.fetchHistory(ctx, cur.ID)
	}
	s.fetchConversations(ctx)
}

// emit hands an event to the consumer without ever blocking the loop.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug().Int("kind", int(ev.Kind)).Msg("event dropped: slow consumer")
	}
}
