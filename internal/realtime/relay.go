package realtime

import (
	"chatflow/internal/domain"
	"chatflow/internal/presence"
)

// Relay forwards transient signals to a single recipient if online.
// Nothing is stored; an offline recipient never sees the signal.
type Relay struct {
	registry *presence.Registry
}

func NewRelay(registry *presence.Registry) *Relay {
	return &Relay{registry: registry}
}

func (r *Relay) Typing(from *domain.User, to domain.UserID) bool {
	return r.typing(domain.EventUserTyping, from, to)
}

func (r *Relay) StopTyping(from *domain.User, to domain.UserID) bool {
	return r.typing(domain.EventUserStopTyping, from, to)
}

func (r *Relay) typing(ev domain.EventType, from *domain.User, to domain.UserID) bool {
	if to == from.ID {
		return false
	}
	return r.registry.Send(to, domain.Event{
		Type: ev,
		Data: domain.TypingPayload{UserID: from.ID, Username: from.Username},
	})
}

// ReadReceipt tells sender that reader has seen messageIDs.
func (r *Relay) ReadReceipt(reader, sender domain.UserID, messageIDs []int64) bool {
	if reader == sender {
		return false
	}
	if messageIDs == nil {
		messageIDs = []int64{}
	}
	return r.registry.Send(sender, domain.Event{
		Type: domain.EventMessagesRead,
		Data: domain.ReadReceiptPayload{ReadBy: reader, MessageIDs: messageIDs},
	})
}
