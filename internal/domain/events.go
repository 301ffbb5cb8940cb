package domain

// EventType names an event pushed over a live connection.
type EventType string

const (
	EventOnlineUsers    EventType = "online-users"
	EventUserOnline     EventType = "user-online"
	EventUserOffline    EventType = "user-offline"
	EventReceiveMessage EventType = "receive-message"
	EventMessageSent    EventType = "message-sent"
	EventUserTyping     EventType = "user-typing"
	EventUserStopTyping EventType = "user-stop-typing"
	EventMessagesRead   EventType = "messages-read"
	EventError          EventType = "error"
)

// Event is the outbound envelope written to a connection.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type OnlineUsersPayload struct {
	Users []UserID `json:"users"`
}

type PresencePayload struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username,omitempty"`
}

type TypingPayload struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ReadReceiptPayload struct {
	ReadBy     UserID  `json:"readBy"`
	MessageIDs []int64 `json:"messageIds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
