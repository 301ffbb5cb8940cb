package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               BIGSERIAL    PRIMARY KEY,
			username         VARCHAR(20)  UNIQUE NOT NULL,
			email            VARCHAR(100) UNIQUE NOT NULL,
			hashed_password  VARCHAR(255) NOT NULL,
			avatar           TEXT         NOT NULL DEFAULT '',
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			is_online        BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen        TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGSERIAL    PRIMARY KEY,
			sender_id    BIGINT       NOT NULL REFERENCES users(id),
			receiver_id  BIGINT       NOT NULL REFERENCES users(id),
			content      TEXT         NOT NULL DEFAULT '',
			message_type VARCHAR(10)  NOT NULL DEFAULT 'text',
			file_url     TEXT,
			file_name    TEXT,
			is_read      BOOLEAN      NOT NULL DEFAULT FALSE,
			read_at      TIMESTAMPTZ,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// One row per unordered pair, keyed by (user_low, user_high).
		`CREATE TABLE IF NOT EXISTS conversations (
			user_low        BIGINT      NOT NULL REFERENCES users(id),
			user_high       BIGINT      NOT NULL REFERENCES users(id),
			last_message_id BIGINT      NOT NULL REFERENCES messages(id),
			unread_low      INTEGER     NOT NULL DEFAULT 0 CHECK (unread_low >= 0),
			unread_high     INTEGER     NOT NULL DEFAULT 0 CHECK (unread_high >= 0),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_low, user_high),
			CHECK (user_low < user_high)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users(LOWER(username))`,
		`CREATE INDEX IF NOT EXISTS idx_users_is_online ON users(is_online)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, sender_id) WHERE is_read = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(user_high)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// likePattern escapes LIKE wildcards in q and wraps it for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
