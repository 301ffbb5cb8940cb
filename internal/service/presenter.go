package service

import (
	"fmt"
	"time"

	"chatflow/internal/domain"
	"chatflow/internal/security"
)

// Presence is the part of the presence registry the services consult.
type Presence interface {
	IsOnline(id domain.UserID) bool
	Send(id domain.UserID, ev domain.Event) bool
	ListOnline() []domain.UserID
}

// MessageResponse is a fully populated message as returned by the API and
// pushed over live connections.
type MessageResponse struct {
	ID          int64              `json:"id"`
	Sender      domain.Profile     `json:"sender"`
	Receiver    domain.Profile     `json:"receiver"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
	FileURL     *string            `json:"fileUrl,omitempty"`
	FileName    *string            `json:"fileName,omitempty"`
	IsRead      bool               `json:"isRead"`
	ReadAt      *time.Time         `json:"readAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// presenter turns stored rows into API shapes: it decrypts content and
// stamps live presence onto profiles.
type presenter struct {
	encryptor *security.Encryptor
	presence  Presence
}

func (p presenter) profile(u *domain.User) domain.Profile {
	prof := u.Profile()
	prof.IsOnline = p.presence.IsOnline(u.ID)
	if !prof.IsOnline && !u.LastSeen.IsZero() {
		seen := u.LastSeen
		prof.LastSeen = &seen
	}
	return prof
}

func (p presenter) message(m *domain.Message, sender, receiver domain.Profile) (*MessageResponse, error) {
	content, err := p.encryptor.Decrypt(m.Content)
	if err != nil {
		return nil, fmt.Errorf("decrypt message %d: %w", m.ID, err)
	}
	return &MessageResponse{
		ID:          m.ID,
		Sender:      sender,
		Receiver:    receiver,
		Content:     content,
		MessageType: m.Type,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		IsRead:      m.IsRead,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}, nil
}
