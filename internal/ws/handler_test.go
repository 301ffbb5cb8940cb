package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
	"chatflow/internal/presence"
	"chatflow/internal/realtime"
	"chatflow/internal/security"
	"chatflow/internal/service"
	"chatflow/internal/store/sqlite"
	"chatflow/internal/ws"
)

const origin = "http://localhost:5173"

type harness struct {
	srv      *httptest.Server
	tokens   *security.TokenService
	users    *sqlite.UserRepo
	registry *presence.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	enc, err := security.NewEncryptor([]byte("ws-test-key"), nil)
	require.NoError(t, err)
	tokens := security.NewTokenService("secret", time.Hour)
	users := sqlite.NewUserRepo(db)
	registry := presence.NewRegistry()
	log := zerolog.Nop()

	auth := service.NewAuthService(users, tokens, security.NewPasswordHasher(4))
	userSvc := service.NewUserService(users, registry)
	router := service.NewMessageService(users, sqlite.NewMessageRepo(db), sqlite.NewConversationRepo(db), enc, registry, log)

	handler := ws.MakeHandler(
		realtime.NewManager(registry, auth, userSvc, log),
		realtime.NewDispatcher(router, realtime.NewRelay(registry), log),
		ws.Options{AllowedOrigins: []string{origin}, SendBuffer: 32, EventsPerSecond: 100, EventBurst: 100, PingInterval: time.Second},
		log,
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, tokens: tokens, users: users, registry: registry}
}

func (h *harness) user(t *testing.T, name string) (domain.UserID, string) {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", HashedPassword: "x"}
	require.NoError(t, h.users.Create(context.Background(), u))
	tok, err := h.tokens.CreateForUser(u.ID)
	require.NoError(t, err)
	return u.ID, tok
}

func (h *harness) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *harness) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	header.Set("Origin", origin)
	c, resp, err := websocket.DefaultDialer.Dial(h.url(), header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { c.Close() })
	return c
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + tok}}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func send(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "data": data}))
}

func TestHandshakeRejections(t *testing.T) {
	h := newHarness(t)
	_, tok := h.user(t, "alice")

	cases := []struct {
		name   string
		header http.Header
		status int
	}{
		{"NoToken", http.Header{"Origin": []string{origin}}, http.StatusUnauthorized},
		{"BadToken", http.Header{"Origin": []string{origin}, "Authorization": []string{"Bearer junk"}}, http.StatusUnauthorized},
		{"BadOrigin", http.Header{"Origin": []string{"http://evil.example"}, "Authorization": []string{"Bearer " + tok}}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(h.url(), tc.header)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Empty(t, h.registry.ListOnline())
}

func TestLiveSession(t *testing.T) {
	h := newHarness(t)
	aID, aTok := h.user(t, "alice")
	bID, bTok := h.user(t, "bobby")

	a := h.dial(t, bearer(aTok))
	f := read(t, a)
	assert.Equal(t, "online-users", f.Type)
	assert.JSONEq(t, `{"users":[`+aID.String()+`]}`, string(f.Data))

	// Subprotocol credentials, as browsers cannot set headers.
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{"bearer", bTok}
	b, resp, err := dialer.Dial(h.url(), http.Header{"Origin": []string{origin}})
	require.NoError(t, err)
	resp.Body.Close()
	defer b.Close()
	assert.Equal(t, "bearer", b.Subprotocol())

	f = read(t, b)
	assert.Equal(t, "online-users", f.Type)
	assert.JSONEq(t, `{"users":[`+aID.String()+`,`+bID.String()+`]}`, string(f.Data))

	f = read(t, a)
	assert.Equal(t, "user-online", f.Type)
	assert.JSONEq(t, `{"userId":`+bID.String()+`,"username":"bobby"}`, string(f.Data))

	send(t, a, "send-message", map[string]any{"receiverId": bID, "content": "hi", "messageType": "text"})
	f = read(t, b)
	require.Equal(t, "receive-message", f.Type)
	var msg service.MessageResponse
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, aID, msg.Sender.ID)
	assert.Equal(t, "alice", msg.Sender.Username)

	f = read(t, a)
	assert.Equal(t, "message-sent", f.Type)

	send(t, a, "typing", map[string]any{"receiverId": bID})
	f = read(t, b)
	assert.Equal(t, "user-typing", f.Type)
	assert.JSONEq(t, `{"userId":`+aID.String()+`,"username":"alice"}`, string(f.Data))

	send(t, b, "message-read", map[string]any{"senderId": aID, "messageIds": []int64{msg.ID}})
	f = read(t, a)
	assert.Equal(t, "messages-read", f.Type)

	send(t, a, "send-message", map[string]any{"receiverId": bID})
	f = read(t, a)
	assert.Equal(t, "error", f.Type)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	f = read(t, a)
	assert.Equal(t, "error", f.Type)

	require.NoError(t, b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	f = read(t, a)
	assert.Equal(t, "user-offline", f.Type)
	assert.JSONEq(t, `{"userId":`+bID.String()+`,"username":"bobby"}`, string(f.Data))
}

func TestReconnectSupersedesOldSocket(t *testing.T) {
	h := newHarness(t)
	aID, aTok := h.user(t, "alice")
	_, bTok := h.user(t, "bobby")

	b := h.dial(t, bearer(bTok))
	read(t, b)

	first := h.dial(t, bearer(aTok))
	read(t, first)
	assert.Equal(t, "user-online", read(t, b).Type)

	second := h.dial(t, bearer(aTok))
	read(t, second)
	assert.Equal(t, "user-online", read(t, b).Type)

	// The old socket is closed by the server.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	assert.Eventually(t, func() bool {
		hnd, ok := h.registry.Lookup(aID)
		return ok && hnd != nil
	}, time.Second, 10*time.Millisecond)

	// b must not hear user-offline for alice.
	require.NoError(t, b.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var f frame
	err := b.ReadJSON(&f)
	if err == nil {
		assert.NotEqual(t, "user-offline", f.Type)
	}
	assert.True(t, h.registry.IsOnline(aID))
}
