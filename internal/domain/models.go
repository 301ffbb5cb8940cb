package domain

import "time"

// DefaultAvatar is assigned to users registered without one.
const DefaultAvatar = "https://via.placeholder.com/150"

// User represents an application user.
type User struct {
	ID             UserID    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Avatar         string    `db:"avatar" json:"avatar"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Profile is the public subset of a user attached to messages and conversations.
type Profile struct {
	ID       UserID     `json:"id"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Message is a single direct message. Content is encrypted at rest.
type Message struct {
	ID         int64       `db:"id"`
	SenderID   UserID      `db:"sender_id"`
	ReceiverID UserID      `db:"receiver_id"`
	Content    string      `db:"content"`
	Type       MessageType `db:"message_type"`
	FileURL    *string     `db:"file_url"`
	FileName   *string     `db:"file_name"`
	IsRead     bool        `db:"is_read"`
	ReadAt     *time.Time  `db:"read_at"`
	CreatedAt  time.Time   `db:"created_at"`
}

// Pair returns the canonical conversation key of the message.
func (m *Message) Pair() (PairKey, error) {
	return NewPairKey(m.SenderID, m.ReceiverID)
}

// Conversation is the per-pair aggregate: last message plus unread counters.
type Conversation struct {
	Key           PairKey
	LastMessageID int64
	LastMessage   *Message
	Unread        UnreadCounters
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
