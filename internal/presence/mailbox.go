package presence

import (
	"sync"

	"github.com/google/uuid"

	"chatflow/internal/domain"
	"chatflow/internal/metrics"
)

// Handle is a live connection bound to one user, as seen by the registry.
type Handle interface {
	ID() string
	UserID() domain.UserID
	// Deliver enqueues ev without blocking. It reports false when the handle
	// is closed or its buffer is full; the event is then lost.
	Deliver(ev domain.Event) bool
	Close()
}

// Mailbox is a buffered, non-blocking Handle. A transport drains Events()
// until Done() is closed.
type Mailbox struct {
	id     string
	userID domain.UserID
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

var _ Handle = (*Mailbox)(nil)

func NewMailbox(userID domain.UserID, buffer int) *Mailbox {
	if buffer <= 0 {
		buffer = 1
	}
	return &Mailbox{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan domain.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (m *Mailbox) ID() string { return m.id }

func (m *Mailbox) UserID() domain.UserID { return m.userID }

// Events is drained by the transport's writer.
func (m *Mailbox) Events() <-chan domain.Event { return m.events }

func (m *Mailbox) Done() <-chan struct{} { return m.done }

func (m *Mailbox) Deliver(ev domain.Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- ev:
		return true
	default:
		metrics.RecordLive(string(ev.Type), metrics.OutcomeDropped)
		return false
	}
}

// Close is idempotent. The events channel is never closed so a racing
// Deliver cannot panic.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Mailbox) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
