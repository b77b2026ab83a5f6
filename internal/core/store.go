package core

import (
	"sort"
	"time"
)

// ConversationStore is the in-memory table of conversations and their
// message lists. It is owned by the session loop; callers outside the loop
// only see copies handed out through queries.
type ConversationStore struct {
	byKey    map[string]*Conversation
	messages map[string][]Message
}

// NewConversationStore returns an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byKey:    make(map[string]*Conversation),
		messages: make(map[string][]Message),
	}
}

// Get returns the conversation with the given confirmed id, or nil.
func (s *ConversationStore) Get(conversationID int64) *Conversation {
	if conversationID == 0 {
		return nil
	}
	return s.byKey[ConfirmedKey(conversationID)]
}

// GetByKey returns the conversation under the given local key, or nil.
func (s *ConversationStore) GetByKey(key string) *Conversation {
	if key == "" {
		return nil
	}
	return s.byKey[key]
}

// List returns conversation copies ordered by last activity, newest first.
func (s *ConversationStore) List() []Conversation {
	out := make([]Conversation, 0, len(s.byKey))
	for _, conv := range s.byKey {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].Key < out[j].Key
		}
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

// FindDirectWith returns the existing non-group conversation involving the
// given user, or nil.
func (s *ConversationStore) FindDirectWith(userID int64) *Conversation {
	for _, conv := range s.byKey {
		if !conv.Group && conv.HasParticipant(userID) {
			return conv
		}
	}
	return nil
}

// Upsert merges the given summary into the store and returns the stored
// record. Partial updates keep unrelated fields: only populated fields of
// incoming overwrite, and the preview pair moves forward in time only.
func (s *ConversationStore) Upsert(incoming Conversation) *Conversation {
	key := incoming.Key
	if key == "" && incoming.ID != 0 {
		key = ConfirmedKey(incoming.ID)
	}
	if key == "" {
		return nil
	}

	existing, ok := s.byKey[key]
	if !ok {
		stored := incoming
		stored.Key = key
		s.byKey[key] = &stored
		return &stored
	}

	if incoming.ID != 0 {
		existing.ID = incoming.ID
	}
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.AvatarURL != "" {
		existing.AvatarURL = incoming.AvatarURL
	}
	if incoming.Group {
		existing.Group = true
	}
	if incoming.AdminID != 0 {
		existing.AdminID = incoming.AdminID
	}
	if incoming.Participants != nil {
		existing.Participants = incoming.Participants
	}
	if incoming.ParticipantCount != 0 {
		existing.ParticipantCount = incoming.ParticipantCount
	}
	if incoming.RecipientID != 0 {
		existing.RecipientID = incoming.RecipientID
	}
	if incoming.LastMessage != "" || !incoming.LastMessageTime.IsZero() {
		s.applyPreview(existing, incoming.LastMessage, incoming.LastMessageTime)
	}
	return existing
}

// ApplySummary upserts a full backend summary. A full summary is
// authoritative for the flag fields that partial updates must leave alone.
func (s *ConversationStore) ApplySummary(incoming Conversation) *Conversation {
	conv := s.Upsert(incoming)
	if conv == nil {
		return nil
	}
	conv.Muted = incoming.Muted
	conv.Online = incoming.Online
	conv.UnreadCount = incoming.UnreadCount
	return conv
}

// AddTemporary inserts a temporary conversation under its uuid key.
func (s *ConversationStore) AddTemporary(conv Conversation) *Conversation {
	stored := conv
	s.byKey[conv.Key] = &stored
	return &stored
}

// PromoteTemporary rebinds a temporary conversation to its server-confirmed
// id, carrying every locally attached message over to the confirmed record.
// Promoting an already-confirmed conversation is a no-op; if a record for the
// confirmed id already exists, the temporary one is folded into it.
func (s *ConversationStore) PromoteTemporary(tempKey string, confirmedID int64) (*Conversation, bool) {
	conv, ok := s.byKey[tempKey]
	if !ok || confirmedID == 0 {
		return nil, false
	}
	if !conv.Temporary {
		if conv.ID == confirmedID {
			return conv, false
		}
		return nil, false
	}

	confirmedKey := ConfirmedKey(confirmedID)
	carried := s.messages[tempKey]
	delete(s.messages, tempKey)
	delete(s.byKey, tempKey)

	target, exists := s.byKey[confirmedKey]
	if !exists {
		promoted := *conv
		promoted.Key = confirmedKey
		promoted.ID = confirmedID
		promoted.Temporary = false
		s.byKey[confirmedKey] = &promoted
		target = &promoted
	}

	for i := range carried {
		msg := carried[i]
		msg.ConversationID = confirmedID
		s.AppendMessage(confirmedKey, msg)
	}
	return target, true
}

// UpdatePreview sets the denormalized last-message pair for list display.
// A timestamp older than the current preview loses: previews only move
// forward.
func (s *ConversationStore) UpdatePreview(conversationID int64, content string, at time.Time) bool {
	conv := s.Get(conversationID)
	if conv == nil {
		return false
	}
	return s.applyPreview(conv, content, at)
}

func (s *ConversationStore) applyPreview(conv *Conversation, content string, at time.Time) bool {
	if !at.IsZero() && at.Before(conv.LastMessageTime) {
		return false
	}
	conv.LastMessage = content
	if !at.IsZero() {
		conv.LastMessageTime = at
	}
	return true
}

// SetMuted flips notification suppression for a conversation.
func (s *ConversationStore) SetMuted(conversationID int64, muted bool) bool {
	conv := s.Get(conversationID)
	if conv == nil {
		return false
	}
	conv.Muted = muted
	return true
}

// SetPresence updates the online flag of a user everywhere they appear.
func (s *ConversationStore) SetPresence(userID int64, online bool) {
	for _, conv := range s.byKey {
		for i := range conv.Participants {
			if conv.Participants[i].ID == userID {
				conv.Participants[i].Online = online
				if !conv.Group {
					conv.Online = online
				}
			}
		}
	}
}

// SetPresenceByName is SetPresence for payloads that carry only a username.
func (s *ConversationStore) SetPresenceByName(username string, online bool) {
	if username == "" {
		return
	}
	for _, conv := range s.byKey {
		for i := range conv.Participants {
			if conv.Participants[i].Username == username {
				conv.Participants[i].Online = online
				if !conv.Group {
					conv.Online = online
				}
			}
		}
	}
}

// Messages returns a copy of the message list under the given key, ordered
// by creation time.
func (s *ConversationStore) Messages(key string) []Message {
	list := s.messages[key]
	out := make([]Message, len(list))
	copy(out, list)
	return out
}

// AppendMessage inserts a message into a conversation's list, keeping
// creation-time order. Re-delivery of an already-present id is a no-op and
// returns false.
func (s *ConversationStore) AppendMessage(key string, msg Message) bool {
	for _, existing := range s.messages[key] {
		if existing.ID != 0 && existing.ID == msg.ID {
			return false
		}
	}
	s.insertMessage(key, msg)
	return true
}

// MergeMessages folds a fetched history into whatever has already arrived
// live, deduplicating by id. It never removes or replaces present messages,
// so a stale fetch cannot clobber live events. Returns the number of
// messages actually added.
func (s *ConversationStore) MergeMessages(key string, msgs []Message) int {
	added := 0
	for _, msg := range msgs {
		if s.AppendMessage(key, msg) {
			added++
		}
	}
	return added
}

// MarkAllRead flags every message in the conversation as read.
func (s *ConversationStore) MarkAllRead(key string) {
	list := s.messages[key]
	for i := range list {
		list[i].Read = true
	}
}

func (s *ConversationStore) insertMessage(key string, msg Message) {
	list := s.messages[key]
	// Find the first entry created strictly after msg; ids arriving with
	// equal timestamps keep arrival order.
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].CreatedAt.After(msg.CreatedAt)
	})
	list = append(list, Message{})
	copy(list[idx+1:], list[idx:])
	list[idx] = msg
	s.messages[key] = list
}
