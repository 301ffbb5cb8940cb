package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id UserID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByIDs(ctx context.Context, ids []UserID) ([]*User, error)
	// Search matches usernames case-insensitively by substring.
	Search(ctx context.Context, query string, exclude UserID, limit int) ([]*User, error)
	SetOnlineStatus(ctx context.Context, id UserID, isOnline bool) error
}

// MessageRepository defines read operations over the message log.
type MessageRepository interface {
	// ListBetween returns every message exchanged by a and b, oldest first.
	ListBetween(ctx context.Context, a, b UserID) ([]*Message, error)
	CountUnread(ctx context.Context, receiver, sender UserID) (int, error)
}

// ConversationRepository owns the conversation aggregates and the writes
// that must move together with them.
type ConversationRepository interface {
	// AppendMessage inserts m and bumps its pair aggregate in one transaction.
	// The receiver's counter is incremented in storage, never read-modify-written.
	AppendMessage(ctx context.Context, m *Message) (*Conversation, error)
	Get(ctx context.Context, key PairKey) (*Conversation, error)
	ListForUser(ctx context.Context, id UserID) ([]*Conversation, error)
	// MarkRead flags every unread message from peer to reader and zeroes
	// reader's counter. Returns the number of messages flipped.
	MarkRead(ctx context.Context, reader, peer UserID, at time.Time) (int64, error)
}
