package event

import (
	"chat-relay/domain"

	"github.com/samber/lo"
)

func toPresence(s domain.PresenceSnapshot) Presence {
	return Presence{
		Username:  s.ChangedUser.String(),
		Users:     lo.Map(s.AllUsers, func(n domain.DisplayName, _ int) string { return n.String() }),
		Timestamp: domain.ISOTimestamp(s.Timestamp),
	}
}

func NewUserJoined(s domain.PresenceSnapshot) UserJoined {
	return UserJoined{Presence: toPresence(s)}
}

func NewUserLeft(s domain.PresenceSnapshot) UserLeft {
	return UserLeft{Presence: toPresence(s)}
}

func NewChatMessage(m domain.ChatMessage) ChatMessage {
	return ChatMessage{
		ID:              m.ID,
		Username:        m.Sender.String(),
		Message:         m.Ciphertext,
		OriginalMessage: m.Plaintext,
		Timestamp:       domain.ISOTimestamp(m.Timestamp),
		Type:            string(m.Kind()),
	}
}

func NewFileUpload(f domain.FileNotice) FileUpload {
	return FileUpload{
		ID:           f.ID,
		Username:     f.Sender.String(),
		Filename:     f.StoredName,
		OriginalName: f.OriginalName,
		Size:         f.SizeBytes,
		URL:          f.URL,
		Timestamp:    domain.ISOTimestamp(f.Timestamp),
		Type:         string(f.Kind()),
	}
}
