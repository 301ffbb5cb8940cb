package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatflow/internal/domain"
	"chatflow/internal/metrics"
	"chatflow/internal/security"
)

// MessageService routes direct messages: it persists them together with the
// pair aggregate and then pushes them to whoever of the two is online.
type MessageService struct {
	users         domain.UserRepository
	messages      domain.MessageRepository
	conversations domain.ConversationRepository
	presence      Presence
	view          presenter
	locks         *pairLocks
	log           zerolog.Logger
	now           func() time.Time
}

func NewMessageService(
	users domain.UserRepository,
	messages domain.MessageRepository,
	conversations domain.ConversationRepository,
	encryptor *security.Encryptor,
	presence Presence,
	log zerolog.Logger,
) *MessageService {
	return &MessageService{
		users:         users,
		messages:      messages,
		conversations: conversations,
		presence:      presence,
		view:          presenter{encryptor: encryptor, presence: presence},
		locks:         newPairLocks(),
		log:           log.With().Str("component", "router").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SendInput is the payload of a send request, from REST or the live channel.
type SendInput struct {
	ReceiverID domain.UserID      `json:"receiverId" validate:"required,gt=0"`
	Content    string             `json:"content" validate:"max=5000"`
	Type       domain.MessageType `json:"messageType" validate:"omitempty,oneof=text image file"`
	FileURL    *string            `json:"fileUrl" validate:"omitempty,max=2048"`
	FileName   *string            `json:"fileName" validate:"omitempty,max=255"`
}

// UnmarshalJSON also accepts "type" for messageType and "fileRef" for
// fileUrl, the names older clients send.
func (in *SendInput) UnmarshalJSON(b []byte) error {
	type plain SendInput
	aux := struct {
		*plain
		TypeAlias domain.MessageType `json:"type"`
		FileRef   *string            `json:"fileRef"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if in.Type == "" {
		in.Type = aux.TypeAlias
	}
	if in.FileURL == nil {
		in.FileURL = aux.FileRef
	}
	return nil
}

func (in SendInput) hasFile() bool {
	return in.FileURL != nil && *in.FileURL != ""
}

// Send persists a message from sender and delivers it live. Validation runs
// before any write; once the message is stored, delivery problems never turn
// into an error.
func (s *MessageService) Send(ctx context.Context, sender domain.UserID, in SendInput) (*MessageResponse, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Content == "" && !in.hasFile() {
		return nil, fmt.Errorf("%w: message needs content or a file", domain.ErrInvalidInput)
	}
	key, err := domain.NewPairKey(sender, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = domain.MessageText
	}

	from, err := s.users.GetByID(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("get sender: %w", err)
	}
	if from == nil {
		return nil, fmt.Errorf("sender %d: %w", sender, domain.ErrNotFound)
	}
	to, err := s.users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("get receiver: %w", err)
	}
	if to == nil {
		return nil, fmt.Errorf("receiver %d: %w", in.ReceiverID, domain.ErrNotFound)
	}

	encrypted, err := s.view.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg := &domain.Message{
		SenderID:   sender,
		ReceiverID: in.ReceiverID,
		Content:    encrypted,
		Type:       in.Type,
		FileURL:    in.FileURL,
		FileName:   in.FileName,
	}

	// Holding the pair lock from stamp to enqueue keeps creation time, commit
	// order and live delivery order in agreement. Enqueueing never blocks.
	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock pair %s: %w", key, err)
	}
	defer unlock()
	msg.CreatedAt = s.now()

	if _, err := s.conversations.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesSent.Inc()

	resp, err := s.view.message(msg, s.view.profile(from), s.view.profile(to))
	if err != nil {
		return nil, err
	}

	delivered := s.presence.Send(in.ReceiverID, domain.Event{Type: domain.EventReceiveMessage, Data: resp})
	s.presence.Send(sender, domain.Event{Type: domain.EventMessageSent, Data: resp})

	s.log.Debug().
		Int64("message_id", msg.ID).
		Stringer("pair", key).
		Bool("delivered", delivered).
		Msg("message routed")
	return resp, nil
}

// Fetch returns the whole history between caller and peer, oldest first.
func (s *MessageService) Fetch(ctx context.Context, caller, peer domain.UserID) ([]*MessageResponse, error) {
	if _, err := domain.NewPairKey(caller, peer); err != nil {
		return nil, err
	}
	users, err := s.users.ListByIDs(ctx, []domain.UserID{caller, peer})
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	profiles := make(map[domain.UserID]domain.Profile, len(users))
	for _, u := range users {
		profiles[u.ID] = s.view.profile(u)
	}
	if _, ok := profiles[peer]; !ok {
		return nil, fmt.Errorf("user %d: %w", peer, domain.ErrNotFound)
	}

	msgs, err := s.messages.ListBetween(ctx, caller, peer)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		r, err := s.view.message(m, profiles[m.SenderID], profiles[m.ReceiverID])
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// MarkRead flags every unread message from peer to reader and zeroes the
// reader's counter. Returns how many messages changed.
func (s *MessageService) MarkRead(ctx context.Context, reader, peer domain.UserID) (int64, error) {
	key, err := domain.NewPairKey(reader, peer)
	if err != nil {
		return 0, err
	}
	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("lock pair %s: %w", key, err)
	}
	defer unlock()

	n, err := s.conversations.MarkRead(ctx, reader, peer, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}
