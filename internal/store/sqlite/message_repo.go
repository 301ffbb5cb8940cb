package sqlite

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

// ListBetween orders by id: ids are assigned in commit order, which matches
// creation order and avoids ties between equal timestamps.
func (r *MessageRepo) ListBetween(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY id ASC
	`, int64(a), int64(b), int64(b), int64(a))
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
		SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND sender_id = ? AND is_read = 0
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
	res, err := q.ExecContext(ctx, `
		INSERT INTO messages (sender_id, receiver_id, content, message_type, file_url, file_name, is_read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?)
	`, int64(m.SenderID), int64(m.ReceiverID), m.Content, string(m.Type), m.FileURL, m.FileName, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.IsRead = false
	m.ReadAt = nil
	return nil
}
