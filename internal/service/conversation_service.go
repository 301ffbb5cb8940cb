package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"chatflow/internal/domain"
	"chatflow/internal/security"
)

// ConversationResponse is one entry of a user's conversation list.
type ConversationResponse struct {
	ID          string           `json:"id"`
	OtherUser   domain.Profile   `json:"otherUser"`
	LastMessage *MessageResponse `json:"lastMessage"`
	UnreadCount int              `json:"unreadCount"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ConversationService struct {
	conversations domain.ConversationRepository
	users         domain.UserRepository
	view          presenter
}

func NewConversationService(
	conversations domain.ConversationRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	presence Presence,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		users:         users,
		view:          presenter{encryptor: encryptor, presence: presence},
	}
}

// List returns every conversation id takes part in, most recently updated
// first, with the other participant's profile and id's own unread count.
func (s *ConversationService) List(ctx context.Context, id domain.UserID) ([]*ConversationResponse, error) {
	convs, err := s.conversations.ListForUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(convs) == 0 {
		return []*ConversationResponse{}, nil
	}

	ids := lo.Uniq(append(lo.Map(convs, func(c *domain.Conversation, _ int) domain.UserID {
		return c.Key.Other(id)
	}), id))
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	profiles := lo.MapValues(lo.KeyBy(users, func(u *domain.User) domain.UserID { return u.ID }),
		func(u *domain.User, _ domain.UserID) domain.Profile { return s.view.profile(u) })

	out := make([]*ConversationResponse, 0, len(convs))
	for _, c := range convs {
		other, ok := profiles[c.Key.Other(id)]
		if !ok {
			continue
		}
		last, err := s.view.message(c.LastMessage, profiles[c.LastMessage.SenderID], profiles[c.LastMessage.ReceiverID])
		if err != nil {
			return nil, err
		}
		out = append(out, &ConversationResponse{
			ID:          c.Key.String(),
			OtherUser:   other,
			LastMessage: last,
			UnreadCount: c.Unread.For(id),
			UpdatedAt:   c.UpdatedAt,
		})
	}
	return out, nil
}
