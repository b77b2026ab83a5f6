package proto

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the normalized event union.
type EventKind int

const (
	// EventUnknown marks a payload that could not be classified.
	EventUnknown EventKind = iota
	// EventMessage is an inbound chat message.
	EventMessage
	// EventTyping is a typing-indicator change.
	EventTyping
	// EventReadReceipt is a conversation-level read receipt.
	EventReadReceipt
	// EventPresence is a user online/offline transition.
	EventPresence
)

// Event is the single canonical shape handed to the reconciler. Exactly one
// payload pointer is non-nil, matching Kind.
type Event struct {
	Kind    EventKind
	Topic   string
	Message *Message
	Typing  *Typing
	Receipt *ReadReceipt
	Status  *Presence
}

// Normalize decodes a raw topic payload into the canonical event union.
// The conversation broadcast topic multiplexes two payload shapes (messages
// and read receipts); they are told apart by the readerId field, matching
// the backend's contract. A decode failure or unclassifiable payload returns
// an error so the caller can drop the event with a log line.
func Normalize(topic string, body []byte) (Event, error) {
	ev := Event{Topic: topic}

	switch ClassifyTopic(topic) {
	case ClassConversation, ClassPersonalMessages:
		// Peek at the discriminating field before committing to a shape.
		var probe struct {
			ReaderID int64 `json:"readerId"`
		}
		if err := json.Unmarshal(body, &probe); err != nil {
			return ev, fmt.Errorf("decode event on %s: %w", topic, err)
		}
		if probe.ReaderID != 0 {
			return decodeReceipt(ev, body)
		}
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return ev, fmt.Errorf("decode message on %s: %w", topic, err)
		}
		if msg.ID == 0 && msg.Content == "" {
			return ev, fmt.Errorf("message on %s has no id or content", topic)
		}
		ev.Kind = EventMessage
		ev.Message = &msg
		return ev, nil

	case ClassRead, ClassPersonalReceipts:
		return decodeReceipt(ev, body)

	case ClassTyping:
		var typing Typing
		if err := json.Unmarshal(body, &typing); err != nil {
			return ev, fmt.Errorf("decode typing on %s: %w", topic, err)
		}
		if typing.UserID == 0 {
			return ev, fmt.Errorf("typing event on %s has no user", topic)
		}
		ev.Kind = EventTyping
		ev.Typing = &typing
		return ev, nil

	case ClassPresence:
		var status Presence
		if err := json.Unmarshal(body, &status); err != nil {
			return ev, fmt.Errorf("decode presence on %s: %w", topic, err)
		}
		if status.Username == "" && status.UserID == 0 {
			return ev, fmt.Errorf("presence event on %s has no user", topic)
		}
		ev.Kind = EventPresence
		ev.Status = &status
		return ev, nil

	default:
		return ev, fmt.Errorf("unclassified topic %s", topic)
	}
}

func decodeReceipt(ev Event, body []byte) (Event, error) {
	var receipt ReadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return ev, fmt.Errorf("decode read receipt on %s: %w", ev.Topic, err)
	}
	if receipt.ConversationID == 0 {
		return ev, fmt.Errorf("read receipt on %s has no conversation", ev.Topic)
	}
	ev.Kind = EventReadReceipt
	ev.Receipt = &receipt
	return ev, nil
}
