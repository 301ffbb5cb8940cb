package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chatflow/internal/domain"
)

const messageColumns = `id, sender_id, receiver_id, content, message_type, file_url, file_name, is_read, read_at, created_at`

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) ListBetween(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`, int64(a), int64(b))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) CountUnread(ctx context.Context, receiver, sender domain.UserID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE
	`, int64(receiver), int64(sender)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func scanMessageRow(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.Type,
		&m.FileURL,
		&m.FileName,
		&m.IsRead,
		&m.ReadAt,
		&m.CreatedAt,
	)
	return m, err
}

func insertMessage(ctx context.Context, q querier, m *domain.Message) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, receiver_id, content, message_type, file_url, file_name, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, COALESCE($7::timestamptz, NOW()))
		RETURNING id, created_at
	`, int64(m.SenderID), int64(m.ReceiverID), m.Content, string(m.Type), m.FileURL, m.FileName, nullTime(m.CreatedAt),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.IsRead = false
	m.ReadAt = nil
	return nil
}
