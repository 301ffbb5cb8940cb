package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"chatflow/internal/domain"
)

// SearchLimit caps the number of users a search returns.
const SearchLimit = 10

// UserService provides user lookups for the API and the connection lifecycle.
type UserService struct {
	users    domain.UserRepository
	presence Presence
}

func NewUserService(users domain.UserRepository, presence Presence) *UserService {
	return &UserService{users: users, presence: presence}
}

func (s *UserService) profile(u *domain.User) domain.Profile {
	return presenter{presence: s.presence}.profile(u)
}

// Search matches usernames by case-insensitive substring, excluding caller.
// An empty query is rejected; a query without matches yields an empty list.
func (s *UserService) Search(ctx context.Context, caller domain.UserID, query string) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrInvalidInput)
	}
	users, err := s.users.Search(ctx, query, caller, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return lo.Map(users, func(u *domain.User, _ int) domain.Profile { return s.profile(u) }), nil
}

func (s *UserService) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return s.profile(u), nil
}

// Online returns the ids currently held by the presence registry.
func (s *UserService) Online() []domain.UserID {
	return s.presence.ListOnline()
}

// SetOnlineStatus updates the persisted presence mirror.
func (s *UserService) SetOnlineStatus(ctx context.Context, id domain.UserID, isOnline bool) error {
	return s.users.SetOnlineStatus(ctx, id, isOnline)
}
