package ws

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatflow/internal/domain"
	"chatflow/internal/presence"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// Conn is one live websocket registered in the presence registry. The
// embedded mailbox is its send channel; writePump is the only writer.
type Conn struct {
	*presence.Mailbox

	ws           *websocket.Conn
	limiter      *rate.Limiter
	pingInterval time.Duration
	log          zerolog.Logger
}

func newConn(ws *websocket.Conn, userID domain.UserID, opts Options, log zerolog.Logger) *Conn {
	ping := opts.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	limit := rate.Inf
	if opts.EventsPerSecond > 0 {
		limit = rate.Limit(opts.EventsPerSecond)
	}
	burst := opts.EventBurst
	if burst <= 0 {
		burst = 1
	}
	mb := presence.NewMailbox(userID, opts.SendBuffer)
	return &Conn{
		Mailbox:      mb,
		ws:           ws,
		limiter:      rate.NewLimiter(limit, burst),
		pingInterval: ping,
		log:          log.With().Stringer("user_id", userID).Str("conn", mb.ID()).Logger(),
	}
}

func (c *Conn) pongWait() time.Duration {
	return c.pingInterval * 2
}

// writePump drains the mailbox into the socket and keeps the peer alive
// with pings. It closes the socket when the mailbox is closed or a write
// fails, which in turn ends readPump.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev := <-c.Events():
			if err := c.write(ev); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		case <-c.Done():
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Conn) write(ev domain.Event) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(ev)
}

// flush writes whatever is still buffered without waiting for more.
func (c *Conn) flush() {
	for {
		select {
		case ev := <-c.Events():
			if c.write(ev) != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump hands every text frame to handle until the socket fails.
func (c *Conn) readPump(handle func(raw []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait()))

		if !c.limiter.Allow() {
			c.Deliver(errorEvent("rate limit exceeded"))
			continue
		}
		handle(raw)
	}
}

// reject reports a failed action back to this connection only.
func (c *Conn) reject(err error) {
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnauthorized):
		msg = err.Error()
	default:
		c.log.Error().Err(err).Msg("action failed")
	}
	c.Deliver(errorEvent(msg))
}

func errorEvent(msg string) domain.Event {
	return domain.Event{Type: domain.EventError, Data: domain.ErrorPayload{Message: msg}}
}
