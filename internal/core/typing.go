package core

import "sort"

// TypingTracker holds last-known typing state per conversation. It owns no
// timers: the sending side is responsible for emitting typing=false after an
// inactivity window, and receipt of a message from a typing user clears the
// entry via the reconciler.
type TypingTracker struct {
	byConversation map[int64]map[int64]User
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{byConversation: make(map[int64]map[int64]User)}
}

// Set records a typing transition. Setting typing=true for an already-typing
// user is a no-op. Returns true when the state actually changed.
func (t *TypingTracker) Set(conversationID int64, user User, typing bool) bool {
	if !typing {
		return t.Clear(conversationID, user.ID)
	}

	users, ok := t.byConversation[conversationID]
	if !ok {
		users = make(map[int64]User)
		t.byConversation[conversationID] = users
	}
	if _, exists := users[user.ID]; exists {
		return false
	}
	users[user.ID] = user
	return true
}

// Users returns who is currently typing in a conversation, ordered by id.
func (t *TypingTracker) Users(conversationID int64) []User {
	users := t.byConversation[conversationID]
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear drops one user's typing entry. Returns true when an entry existed.
func (t *TypingTracker) Clear(conversationID, userID int64) bool {
	users, ok := t.byConversation[conversationID]
	if !ok {
		return false
	}
	if _, exists := users[userID]; !exists {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.byConversation, conversationID)
	}
	return true
}

// ClearConversation drops every typing entry for a conversation, used when
// the user navigates away.
func (t *TypingTracker) ClearConversation(conversationID int64) {
	delete(t.byConversation, conversationID)
}
