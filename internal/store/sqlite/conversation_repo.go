package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatflow/internal/domain"
)

const conversationSelect = `
	SELECT c.user_low, c.user_high, c.last_message_id, c.unread_low, c.unread_high, c.created_at, c.updated_at,
	       m.id, m.sender_id, m.receiver_id, m.content, m.message_type, m.file_url, m.file_name, m.is_read, m.read_at, m.created_at
	FROM conversations c
	JOIN messages m ON m.id = c.last_message_id
`

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) AppendMessage(ctx context.Context, m *domain.Message) (*domain.Conversation, error) {
	key, err := m.Pair()
	if err != nil {
		return nil, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, m); err != nil {
		return nil, err
	}

	incLow, incHigh := 0, 0
	if m.ReceiverID == key.Low {
		incLow = 1
	} else {
		incHigh = 1
	}
	// The counter is bumped inside the UPDATE so concurrent appends to the
	// same pair cannot lose an increment.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_low, user_high, last_message_id, unread_low, unread_high, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_low, user_high) DO UPDATE SET
			last_message_id = excluded.last_message_id,
			unread_low = conversations.unread_low + excluded.unread_low,
			unread_high = conversations.unread_high + excluded.unread_high,
			updated_at = excluded.updated_at
	`, int64(key.Low), int64(key.High), m.ID, incLow, incHigh, m.CreatedAt, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	conv, err := getConversation(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return conv, nil
}

func (r *ConversationRepo) Get(ctx context.Context, key domain.PairKey) (*domain.Conversation, error) {
	conv, err := getConversation(ctx, r.db, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return conv, err
}

// ListForUser orders by last_message_id, which moves exactly when
// updated_at does.
func (r *ConversationRepo) ListForUser(ctx context.Context, id domain.UserID) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, conversationSelect+`
		WHERE c.user_low = ? OR c.user_high = ?
		ORDER BY c.last_message_id DESC
	`, int64(id), int64(id))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) MarkRead(ctx context.Context, reader, peer domain.UserID, at time.Time) (int64, error) {
	key, err := domain.NewPairKey(reader, peer)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, read_at = ?
		WHERE receiver_id = ? AND sender_id = ? AND is_read = 0
	`, at, int64(reader), int64(peer))
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			unread_low = CASE WHEN user_low = ? THEN 0 ELSE unread_low END,
			unread_high = CASE WHEN user_high = ? THEN 0 ELSE unread_high END
		WHERE user_low = ? AND user_high = ?
	`, int64(reader), int64(reader), int64(key.Low), int64(key.High)); err != nil {
		return 0, fmt.Errorf("reset unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func getConversation(ctx context.Context, q querier, key domain.PairKey) (*domain.Conversation, error) {
	row := q.QueryRowContext(ctx, conversationSelect+`WHERE c.user_low = ? AND c.user_high = ?`,
		int64(key.Low), int64(key.High))
	c, err := scanConversationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func scanConversationRow(row rowScanner) (*domain.Conversation, error) {
	var (
		low, high     domain.UserID
		unLow, unHigh int
		c             domain.Conversation
		m             domain.Message
	)
	err := row.Scan(
		&low, &high, &c.LastMessageID, &unLow, &unHigh, &c.CreatedAt, &c.UpdatedAt,
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Type, &m.FileURL, &m.FileName, &m.IsRead, &m.ReadAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Key = domain.PairKey{Low: low, High: high}
	if c.Unread, err = domain.RestoreUnreadCounters(c.Key, unLow, unHigh); err != nil {
		return nil, err
	}
	c.LastMessage = &m
	return &c, nil
}
