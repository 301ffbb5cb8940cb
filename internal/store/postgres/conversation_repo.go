package postgres

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
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (user_low, user_high, last_message_id, unread_low, unread_high, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_low, user_high) DO UPDATE SET
			last_message_id = EXCLUDED.last_message_id,
			unread_low = conversations.unread_low + EXCLUDED.unread_low,
			unread_high = conversations.unread_high + EXCLUDED.unread_high,
			updated_at = EXCLUDED.updated_at
	`, int64(key.Low), int64(key.High), m.ID, incLow, incHigh, m.CreatedAt); err != nil {
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

func (r *ConversationRepo) ListForUser(ctx context.Context, id domain.UserID) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, conversationSelect+`
		WHERE c.user_low = $1 OR c.user_high = $1
		ORDER BY c.updated_at DESC, c.last_message_id DESC
	`, int64(id))
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

// MarkRead locks the conversation row first so a concurrent AppendMessage
// cannot slip an unread message in between the two updates.
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

	var locked int64
	err = tx.QueryRowContext(ctx, `
		SELECT user_low FROM conversations WHERE user_low = $1 AND user_high = $2 FOR UPDATE
	`, int64(key.Low), int64(key.High)).Scan(&locked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lock conversation: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $1
		WHERE receiver_id = $2 AND sender_id = $3 AND is_read = FALSE
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
			unread_low = CASE WHEN user_low = $1 THEN 0 ELSE unread_low END,
			unread_high = CASE WHEN user_high = $1 THEN 0 ELSE unread_high END
		WHERE user_low = $2 AND user_high = $3
	`, int64(reader), int64(key.Low), int64(key.High)); err != nil {
		return 0, fmt.Errorf("reset unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func getConversation(ctx context.Context, q querier, key domain.PairKey) (*domain.Conversation, error) {
	row := q.QueryRowContext(ctx, conversationSelect+`WHERE c.user_low = $1 AND c.user_high = $2`,
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

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
