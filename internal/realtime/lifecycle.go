// Package realtime drives live connections: the per-connection lifecycle,
// best-effort signal relay and typed dispatch of inbound actions.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"chatflow/internal/domain"
	"chatflow/internal/presence"
)

// State is a connection's position in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolver turns a connection-time credential into a user.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*domain.User, error)
}

// Directory mirrors presence into persistent storage.
type Directory interface {
	SetOnlineStatus(ctx context.Context, id domain.UserID, isOnline bool) error
}

// Manager admits connections into the registry and announces presence
// changes.
type Manager struct {
	registry *presence.Registry
	resolver Resolver
	users    Directory
	log      zerolog.Logger
}

func NewManager(registry *presence.Registry, resolver Resolver, users Directory, log zerolog.Logger) *Manager {
	return &Manager{
		registry: registry,
		resolver: resolver,
		users:    users,
		log:      log.With().Str("component", "lifecycle").Logger(),
	}
}

// Session is the lifecycle of one connection:
// Connecting -> Authenticated -> Active -> Closed. Closed is terminal.
type Session struct {
	m *Manager

	mu     sync.Mutex
	state  State
	user   *domain.User
	handle presence.Handle
}

func (m *Manager) NewSession() *Session {
	return &Session{m: m, state: StateConnecting}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User is nil until the session is authenticated.
func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Authenticate resolves credential. On failure the session is closed and
// the resolver's error is returned.
func (s *Session) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	s.mu.Lock()
	if s.state != StateConnecting {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("authenticate from %s: %w", st, domain.ErrInvalidTransition)
	}
	s.mu.Unlock()

	user, err := s.m.resolver.Resolve(ctx, credential)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return nil, fmt.Errorf("authenticate from %s: %w", s.state, domain.ErrInvalidTransition)
	}
	if err != nil {
		s.state = StateClosed
		s.m.log.Debug().Err(err).Msg("connection rejected")
		return nil, err
	}
	s.user = user
	s.state = StateAuthenticated
	return user, nil
}

// Activate registers h as the user's current handle. A superseded handle is
// closed. The new connection gets the online snapshot and everyone else
// gets user-online.
func (s *Session) Activate(ctx context.Context, h presence.Handle) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("activate from %s: %w", st, domain.ErrInvalidTransition)
	}
	if h.UserID() != s.user.ID {
		s.mu.Unlock()
		return fmt.Errorf("handle for user %d on session of %d: %w", h.UserID(), s.user.ID, domain.ErrInvalidInput)
	}
	s.handle = h
	s.state = StateActive
	user := s.user
	s.mu.Unlock()

	reg := s.m.registry
	if prev := reg.Register(h); prev != nil && prev != h {
		prev.Close()
		s.m.log.Info().Stringer("user_id", user.ID).Str("previous", prev.ID()).Msg("connection superseded")
	}
	h.Deliver(domain.Event{
		Type: domain.EventOnlineUsers,
		Data: domain.OnlineUsersPayload{Users: reg.ListOnline()},
	})
	reg.Broadcast(domain.Event{
		Type: domain.EventUserOnline,
		Data: domain.PresencePayload{UserID: user.ID, Username: user.Username},
	}, user.ID)

	if err := s.m.users.SetOnlineStatus(ctx, user.ID, true); err != nil {
		s.m.log.Error().Err(err).Stringer("user_id", user.ID).Msg("persist online status")
	}
	s.m.log.Info().Stringer("user_id", user.ID).Str("conn", h.ID()).Msg("connection active")
	return nil
}

// Close ends the session. Only an active session that still owns the
// registry entry announces user-offline; a superseded one leaves the newer
// connection alone. Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	prior := s.state
	s.state = StateClosed
	user, h := s.user, s.handle
	s.mu.Unlock()

	if prior != StateActive {
		return
	}
	h.Close()
	if !s.m.registry.Unregister(h) {
		s.m.log.Debug().Stringer("user_id", user.ID).Str("conn", h.ID()).Msg("superseded connection closed")
		return
	}
	s.m.registry.Broadcast(domain.Event{
		Type: domain.EventUserOffline,
		Data: domain.PresencePayload{UserID: user.ID, Username: user.Username},
	}, user.ID)

	if err := s.m.users.SetOnlineStatus(ctx, user.ID, false); err != nil {
		s.m.log.Error().Err(err).Stringer("user_id", user.ID).Msg("persist offline status")
	}
	s.m.log.Info().Stringer("user_id", user.ID).Str("conn", h.ID()).Msg("connection closed")
}
