package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"chatflow/internal/domain"
	"chatflow/internal/service"
)

// Inbound action names.
const (
	ActionSendMessage = "send-message"
	ActionTyping      = "typing"
	ActionStopTyping  = "stop-typing"
	ActionMessageRead = "message-read"
)

// Action is one decoded inbound client action.
type Action interface {
	actionName() string
}

type SendMessage struct {
	service.SendInput
}

type Typing struct {
	ReceiverID domain.UserID `json:"receiverId"`
}

type StopTyping struct {
	ReceiverID domain.UserID `json:"receiverId"`
}

type MessageRead struct {
	SenderID   domain.UserID `json:"senderId"`
	MessageIDs []int64       `json:"messageIds"`
}

func (SendMessage) actionName() string { return ActionSendMessage }
func (Typing) actionName() string { return ActionTyping }
func (StopTyping) actionName() string { return ActionStopTyping }
func (MessageRead) actionName() string { return ActionMessageRead }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeAction parses a {"type": ..., "data": {...}} frame.
func DecodeAction(raw []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", domain.ErrInvalidInput, err)
	}

	var a Action
	switch env.Type {
	case ActionSendMessage:
		a = &SendMessage{}
	case ActionTyping:
		a = &Typing{}
	case ActionStopTyping:
		a = &StopTyping{}
	case ActionMessageRead:
		a = &MessageRead{}
	default:
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, env.Type)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", domain.ErrInvalidInput, env.Type)
	}
	if err := json.Unmarshal(env.Data, a); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", domain.ErrInvalidInput, env.Type, err)
	}
	return a, nil
}

// Sender is the message router as seen from the live channel.
type Sender interface {
	Send(ctx context.Context, sender domain.UserID, in service.SendInput) (*service.MessageResponse, error)
}

// Dispatcher executes decoded actions on behalf of an authenticated user.
type Dispatcher struct {
	router Sender
	relay  *Relay
	log    zerolog.Logger
}

func NewDispatcher(router Sender, relay *Relay, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		router: router,
		relay:  relay,
		log:    log.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch runs a against user. Only sends can fail; relayed signals are
// fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, user *domain.User, a Action) error {
	switch act := a.(type) {
	case *SendMessage:
		_, err := d.router.Send(ctx, user.ID, act.SendInput)
		return err
	case *Typing:
		if !act.ReceiverID.Valid() {
			return fmt.Errorf("%w: receiverId is required", domain.ErrInvalidInput)
		}
		d.relay.Typing(user, act.ReceiverID)
	case *StopTyping:
		if !act.ReceiverID.Valid() {
			return fmt.Errorf("%w: receiverId is required", domain.ErrInvalidInput)
		}
		d.relay.StopTyping(user, act.ReceiverID)
	case *MessageRead:
		if !act.SenderID.Valid() {
			return fmt.Errorf("%w: senderId is required", domain.ErrInvalidInput)
		}
		d.relay.ReadReceipt(user.ID, act.SenderID, act.MessageIDs)
	default:
		return fmt.Errorf("%w: unsupported action %T", domain.ErrInvalidInput, a)
	}
	d.log.Debug().Stringer("user_id", user.ID).Str("action", a.actionName()).Msg("relayed")
	return nil
}
