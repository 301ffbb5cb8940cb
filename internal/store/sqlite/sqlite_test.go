package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
	"chatflow/internal/store/sqlite"
)

type fixture struct {
	db    *sql.DB
	users *sqlite.UserRepo
	msgs  *sqlite.MessageRepo
	convs *sqlite.ConversationRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	require.NoError(t, sqlite.Migrate(db), "migrations must be idempotent")
	return &fixture{
		db:    db,
		users: sqlite.NewUserRepo(db),
		msgs:  sqlite.NewMessageRepo(db),
		convs: sqlite.NewConversationRepo(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", HashedPassword: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.user(t, "alice")
	f.user(t, "Alicia")
	f.user(t, "bob")
	f.user(t, "under_score")
	f.user(t, "Émile")

	assert.Equal(t, domain.DefaultAvatar, alice.Avatar)

	t.Run("Duplicate", func(t *testing.T) {
		err := f.users.Create(ctx, &domain.User{Username: "alice", Email: "other@example.com", HashedPassword: "x"})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("Lookups", func(t *testing.T) {
		got, err := f.users.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		missing, err := f.users.GetByID(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("SearchCaseInsensitiveExcludesSelf", func(t *testing.T) {
		got, err := f.users.Search(ctx, "ALI", alice.ID, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Alicia", got[0].Username)
	})

	t.Run("SearchFoldsNonASCII", func(t *testing.T) {
		for _, q := range []string{"émile", "ÉMILE", "Émi"} {
			got, err := f.users.Search(ctx, q, alice.ID, 10)
			require.NoError(t, err)
			require.Len(t, got, 1, q)
			assert.Equal(t, "Émile", got[0].Username)
		}
	})

	t.Run("SearchEscapesWildcards", func(t *testing.T) {
		got, err := f.users.Search(ctx, "_", alice.ID, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "under_score", got[0].Username)

		none, err := f.users.Search(ctx, "zzz", alice.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListByIDs", func(t *testing.T) {
		got, err := f.users.ListByIDs(ctx, []domain.UserID{alice.ID, 9999})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "alice", got[0].Username)
	})

	t.Run("OnlineStatus", func(t *testing.T) {
		require.NoError(t, f.users.SetOnlineStatus(ctx, alice.ID, true))
		got, err := f.users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOnline)
	})
}

func TestConversationAppendAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bobby")

	first := &domain.Message{SenderID: a.ID, ReceiverID: b.ID, Content: "hi", Type: domain.MessageText}
	conv, err := f.convs.AppendMessage(ctx, first)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, first.ID, conv.LastMessageID)
	assert.Equal(t, 1, conv.Unread.For(b.ID))
	assert.Equal(t, 0, conv.Unread.For(a.ID))

	reply := &domain.Message{SenderID: b.ID, ReceiverID: a.ID, Content: "yo", Type: domain.MessageText}
	_, err = f.convs.AppendMessage(ctx, reply)
	require.NoError(t, err)

	second := &domain.Message{SenderID: a.ID, ReceiverID: b.ID, Content: "again", Type: domain.MessageText}
	conv, err = f.convs.AppendMessage(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.Unread.For(b.ID))
	assert.Equal(t, 1, conv.Unread.For(a.ID))
	assert.Equal(t, second.ID, conv.LastMessage.ID)

	msgs, err := f.msgs.ListBetween(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{first.ID, reply.ID, second.ID}, []int64{msgs[0].ID, msgs[1].ID, msgs[2].ID})

	n, err := f.convs.MarkRead(ctx, b.ID, a.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	conv, err = f.convs.Get(ctx, conv.Key)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Unread.For(b.ID))
	assert.Equal(t, 1, conv.Unread.For(a.ID), "the peer's counter is untouched")

	unread, err := f.msgs.CountUnread(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	msgs, err = f.msgs.ListBetween(ctx, a.ID, b.ID)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ReceiverID == b.ID {
			assert.True(t, m.IsRead)
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.False(t, m.IsRead)
		}
	}
}

func TestConversationConcurrentAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bobby")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.convs.AppendMessage(ctx, &domain.Message{SenderID: a.ID, ReceiverID: b.ID, Content: "x", Type: domain.MessageText})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	key, _ := domain.NewPairKey(a.ID, b.ID)
	conv, err := f.convs.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, n, conv.Unread.For(b.ID))
}

func TestConversationListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bobby")
	c := f.user(t, "carol")

	_, err := f.convs.AppendMessage(ctx, &domain.Message{SenderID: a.ID, ReceiverID: b.ID, Content: "1", Type: domain.MessageText})
	require.NoError(t, err)
	_, err = f.convs.AppendMessage(ctx, &domain.Message{SenderID: c.ID, ReceiverID: a.ID, Content: "2", Type: domain.MessageText})
	require.NoError(t, err)

	convs, err := f.convs.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.True(t, convs[0].Key.Has(c.ID), "most recent first")
	assert.True(t, convs[1].Key.Has(b.ID))

	none, err := f.convs.ListForUser(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, none)

	missing, err := f.convs.Get(ctx, domain.PairKey{Low: b.ID, High: c.ID})
	require.NoError(t, err)
	assert.Nil(t, missing)
}
