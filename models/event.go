package models

import (
	"time"
)

// Event types exchanged with websocket clients.
const (
	EventJoin     = "join"
	EventGetUsers = "getUsers"
	EventChat     = "chat"
	EventPrivate  = "privateMessage"
	EventSystem   = "system"
	EventUserList = "userList"
	EventAck      = "ack"
)

// Kind values tagged onto outbound payloads.
const (
	KindPrivate = "private"
	KindSystem  = "system"
)

// Ack status values.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
)

// Event is the single wire message shape, discriminated by Type. Inbound
// events carry the client's request fields; outbound events carry the
// server-stamped payload. Unused fields are omitted from the JSON.
type Event struct {
	Type      string    `json:"type"`
	Op        string    `json:"op,omitempty"`       // acked operation, on ack events
	Room      string    `json:"room,omitempty"`
	Sender    string    `json:"sender,omitempty"`   // chat sender display name
	Username  string    `json:"username,omitempty"` // join request display name
	From      string    `json:"from,omitempty"`     // private message sender
	To        string    `json:"to,omitempty"`       // private message recipient
	Message   string    `json:"message,omitempty"`
	Users     []string  `json:"users,omitempty"`
	Status    string    `json:"status,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Ack       bool      `json:"ack,omitempty"`       // sender requests a delivery ack
	Timestamp time.Time `json:"timestamp,omitempty"` // assigned server-side at ingress
}

// NewChat builds a stamped room broadcast.
func NewChat(sender, room, text string) *Event {
	return &Event{
		Type:      EventChat,
		Sender:    sender,
		Room:      room,
		Message:   text,
		Timestamp: time.Now().UTC(),
	}
}

// NewPrivate builds a stamped direct message.
func NewPrivate(from, to, text string) *Event {
	return &Event{
		Type:      EventPrivate,
		From:      from,
		To:        to,
		Message:   text,
		Kind:      KindPrivate,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystem builds a membership-change notice. Only the hub produces these.
func NewSystem(room, text string) *Event {
	return &Event{
		Type:    EventSystem,
		Room:    room,
		Message: text,
		Kind:    KindSystem,
	}
}

// NewUserList builds a presence snapshot for a room.
func NewUserList(room string, users []string) *Event {
	return &Event{
		Type:  EventUserList,
		Room:  room,
		Users: users,
	}
}

// Envelope wraps an event for internal fanout. Exclude names a connection
// whose write pump must drop the envelope instead of forwarding the event
// to its websocket.
type Envelope struct {
	Exclude string `json:"exclude,omitempty"`
	Event   *Event `json:"event"`
}
