package core

import "github.com/arklim/chatsync/internal/proto"

func userFromWire(u *proto.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Online:    u.Online,
	}
}

func messageFromWire(m *proto.Message) Message {
	sender := userFromWire(m.SenderRef())
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         sender,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt.Time,
		Read:           m.IsRead,
		// The backend marks system messages explicitly, but join/leave
		// notices also arrive with no sender at all.
		System: m.IsSystem || sender == nil,
	}
}

func conversationFromWire(c *proto.Conversation) Conversation {
	participants := make([]User, 0, len(c.Participants))
	for i := range c.Participants {
		participants = append(participants, *userFromWire(&c.Participants[i]))
	}
	return Conversation{
		Key:              ConfirmedKey(c.ID),
		ID:               c.ID,
		Name:             c.Name,
		AvatarURL:        c.AvatarURL,
		Group:            c.IsGroup,
		AdminID:          c.AdminID,
		Participants:     participants,
		ParticipantCount: c.ParticipantCount,
		LastMessage:      c.LastMessage,
		LastMessageTime:  c.LastMessageTime.Time,
		UnreadCount:      c.UnreadCount,
		Muted:            c.Muted,
		Online:           c.IsOnline,
	}
}
