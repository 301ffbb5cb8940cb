// Package store selects a persistence backend and returns the repository set
// the services depend on.
package store

import (
	"database/sql"
	"fmt"

	"chatflow/internal/config"
	"chatflow/internal/domain"
	"chatflow/internal/store/postgres"
	"chatflow/internal/store/sqlite"
)

// Repositories groups the persistence contracts of one backend.
type Repositories struct {
	Users         domain.UserRepository
	Messages      domain.MessageRepository
	Conversations domain.ConversationRepository
}

// Open connects to the configured driver, runs migrations and builds the
// repositories. The caller owns the returned *sql.DB.
func Open(driver, dsn string) (*sql.DB, *Repositories, error) {
	switch driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, &Repositories{
			Users:         sqlite.NewUserRepo(db),
			Messages:      sqlite.NewMessageRepo(db),
			Conversations: sqlite.NewConversationRepo(db),
		}, nil
	case config.DriverPostgres:
		db, err := postgres.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, &Repositories{
			Users:         postgres.NewUserRepo(db),
			Messages:      postgres.NewMessageRepo(db),
			Conversations: postgres.NewConversationRepo(db),
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown db driver %q: %w", driver, domain.ErrInvalidInput)
	}
}
