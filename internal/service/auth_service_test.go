package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatflow/internal/domain"
	"chatflow/internal/security"
	"chatflow/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListByIDs(ctx context.Context, ids []domain.UserID) ([]*domain.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) Search(ctx context.Context, query string, exclude domain.UserID, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, query, exclude, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) SetOnlineStatus(ctx context.Context, userID domain.UserID, isOnline bool) error {
	args := m.Called(ctx, userID, isOnline)
	return args.Error(0)
}

func newAuth(repo *MockUserRepo) (*service.AuthService, *security.TokenService, *security.PasswordHasher) {
	tokens := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests
	return service.NewAuthService(repo, tokens, hasher), tokens, hasher
}

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, tokens, _ := newAuth(repo)

		repo.On("GetByUsername", mock.Anything, "newuser").Return(nil, nil)
		repo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser" && u.HashedPassword != "Password1!"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 7
		}).Return(nil)

		res, err := svc.Register(context.Background(), service.RegisterInput{
			Username: " newuser ",
			Email:    "New@Example.com",
			Password: "Password1!",
		})
		require.NoError(t, err)
		assert.Equal(t, "newuser", res.User.Username)
		assert.Equal(t, "new@example.com", res.User.Email)

		id, err := tokens.Parse(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.UserID(7), id)
		repo.AssertExpectations(t)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _, _ := newAuth(repo)

		repo.On("GetByUsername", mock.Anything, "existing").Return(&domain.User{Username: "existing"}, nil)

		res, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "existing",
			Email:    "e@example.com",
			Password: "Password1!",
		})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrConflict)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Invalid", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _, _ := newAuth(repo)

		_, err := svc.Register(context.Background(), service.RegisterInput{
			Username: "ab",
			Email:    "not-an-email",
			Password: "short",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		repo.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	repo := new(MockUserRepo)
	svc, _, hasher := newAuth(repo)

	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)
	user := &domain.User{ID: 3, Username: "alice", Email: "alice@example.com", HashedPassword: hashed, IsActive: true}
	repo.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)
	repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	t.Run("Success", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "Password1!"})
		require.NoError(t, err)
		assert.Equal(t, "bearer", res.TokenType)
		assert.NotEmpty(t, res.AccessToken)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.com", Password: "nope-nope"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.com", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestResolve(t *testing.T) {
	repo := new(MockUserRepo)
	svc, tokens, _ := newAuth(repo)

	active := &domain.User{ID: 1, Username: "alice", IsActive: true}
	inactive := &domain.User{ID: 2, Username: "bob"}
	repo.On("GetByID", mock.Anything, domain.UserID(1)).Return(active, nil)
	repo.On("GetByID", mock.Anything, domain.UserID(2)).Return(inactive, nil)
	repo.On("GetByID", mock.Anything, domain.UserID(3)).Return(nil, nil)
	repo.On("GetByID", mock.Anything, domain.UserID(4)).Return(nil, errors.New("db down"))

	tok := func(id domain.UserID) string {
		s, err := tokens.CreateForUser(id)
		require.NoError(t, err)
		return s
	}

	got, err := svc.Resolve(context.Background(), tok(1))
	require.NoError(t, err)
	assert.Equal(t, active, got)

	_, err = svc.Resolve(context.Background(), tok(2))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), tok(3))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), tok(4))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	repo := new(MockUserRepo)
	svc, _, _ := newAuth(repo)

	repo.On("SetOnlineStatus", mock.Anything, domain.UserID(5), false).Return(nil)
	require.NoError(t, svc.Logout(context.Background(), 5))
	repo.AssertExpectations(t)
}
