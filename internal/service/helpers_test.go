package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
	"chatflow/internal/presence"
	"chatflow/internal/security"
	"chatflow/internal/service"
	"chatflow/internal/store/sqlite"
)

type env struct {
	users    *sqlite.UserRepo
	msgs     *sqlite.MessageRepo
	convs    *sqlite.ConversationRepo
	registry *presence.Registry
	router   *service.MessageService
	convSvc  *service.ConversationService
	userSvc  *service.UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	enc, err := security.NewEncryptor([]byte("test-encryption-key"), nil)
	require.NoError(t, err)

	e := &env{
		users:    sqlite.NewUserRepo(db),
		msgs:     sqlite.NewMessageRepo(db),
		convs:    sqlite.NewConversationRepo(db),
		registry: presence.NewRegistry(),
	}
	e.router = service.NewMessageService(e.users, e.msgs, e.convs, enc, e.registry, zerolog.Nop())
	e.convSvc = service.NewConversationService(e.convs, e.users, enc, e.registry)
	e.userSvc = service.NewUserService(e.users, e.registry)
	return e
}

func (e *env) user(t *testing.T, name string) domain.UserID {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", HashedPassword: "x"}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

// connect registers a mailbox for id and returns it.
func (e *env) connect(id domain.UserID) *presence.Mailbox {
	mb := presence.NewMailbox(id, 64)
	e.registry.Register(mb)
	return mb
}

func next(t *testing.T, mb *presence.Mailbox) domain.Event {
	t.Helper()
	select {
	case ev := <-mb.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return domain.Event{}
	}
}

func assertQuiet(t *testing.T, mb *presence.Mailbox) {
	t.Helper()
	select {
	case ev := <-mb.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

// requireUnreadConsistent checks the aggregate counters against the
// message log for both directions of the pair.
func requireUnreadConsistent(t *testing.T, e *env, a, b domain.UserID) {
	t.Helper()
	ctx := context.Background()
	key, err := domain.NewPairKey(a, b)
	require.NoError(t, err)
	conv, err := e.convs.Get(ctx, key)
	require.NoError(t, err)
	for _, pair := range [][2]domain.UserID{{a, b}, {b, a}} {
		n, err := e.msgs.CountUnread(ctx, pair[0], pair[1])
		require.NoError(t, err)
		got := 0
		if conv != nil {
			got = conv.Unread.For(pair[0])
		}
		require.Equal(t, n, got, "unread counter for %d", pair[0])
	}
}
