package core

import "testing"

func TestTypingSetAndClear(t *testing.T) {
	tracker := NewTypingTracker()

	if !tracker.Set(10, User{ID: 2, Username: "bob"}, true) {
		t.Fatal("first typing=true should change state")
	}
	if tracker.Set(10, User{ID: 2, Username: "bob"}, true) {
		t.Fatal("repeated typing=true must be a no-op")
	}
	if got := tracker.Users(10); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected typing set: %+v", got)
	}

	if !tracker.Set(10, User{ID: 2}, false) {
		t.Fatal("typing=false should clear the entry")
	}
	if got := tracker.Users(10); len(got) != 0 {
		t.Fatalf("expected empty typing set, got %+v", got)
	}
}

func TestTypingClearUnknownIsNoop(t *testing.T) {
	tracker := NewTypingTracker()
	if tracker.Clear(10, 2) {
		t.Fatal("clearing an absent entry must report no change")
	}
}

func TestTypingUsersOrderedById(t *testing.T) {
	tracker := NewTypingTracker()
	tracker.Set(10, User{ID: 5}, true)
	tracker.Set(10, User{ID: 1}, true)
	tracker.Set(10, User{ID: 3}, true)

	got := tracker.Users(10)
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 3 || got[2].ID != 5 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestTypingConversationsAreIndependent(t *testing.T) {
	tracker := NewTypingTracker()
	tracker.Set(10, User{ID: 2}, true)
	tracker.Set(11, User{ID: 2}, true)

	tracker.ClearConversation(10)
	if len(tracker.Users(10)) != 0 {
		t.Fatal("conversation 10 not cleared")
	}
	if len(tracker.Users(11)) != 1 {
		t.Fatal("conversation 11 should be untouched")
	}
}
