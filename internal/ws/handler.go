package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatflow/internal/domain"
	"chatflow/internal/realtime"
)

// Options tunes the websocket transport.
type Options struct {
	AllowedOrigins  []string
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	PingInterval    time.Duration
}

const closeTimeout = 5 * time.Second

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, wildcard := allowed["*"]; wildcard {
		return func(r *http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken looks at the Authorization header, the token cookie and
// finally a "bearer, <token>" subprotocol offer.
func extractToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value, nil
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint. The credential
// is resolved before the upgrade so a rejected client gets a plain 401.
// Once active, every inbound frame is decoded into a typed action and
// dispatched; failures go back to the sender as an error event.
func MakeHandler(
	lifecycle *realtime.Manager,
	dispatcher *realtime.Dispatcher,
	opts Options,
	log zerolog.Logger,
) http.HandlerFunc {
	log = log.With().Str("component", "ws").Logger()
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractToken(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		session := lifecycle.NewSession()
		user, err := session.Authenticate(r.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			log.Error().Err(err).Msg("resolve credential")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			session.Close(r.Context())
			return
		}

		conn := newConn(wsConn, user.ID, opts, log)
		if err := session.Activate(r.Context(), conn); err != nil {
			log.Error().Err(err).Msg("activate connection")
			wsConn.Close()
			return
		}
		go conn.writePump()

		conn.readPump(func(raw []byte) {
			action, err := realtime.DecodeAction(raw)
			if err == nil {
				err = dispatcher.Dispatch(r.Context(), user, action)
			}
			if err != nil {
				conn.reject(err)
			}
		})

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		session.Close(ctx)
	}
}
