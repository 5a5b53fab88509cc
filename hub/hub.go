// Package hub ties the connection registry to the fanout bus. It owns the
// session lifecycle (join, leave, disconnect), presence snapshots, and the
// routing of chat and private messages. System notices originate here and
// nowhere else.
package hub

import (
	"fmt"
	"log"
	"strings"

	"github.com/example/room-chat-server/models"
	"github.com/example/room-chat-server/natsbus"
	"github.com/example/room-chat-server/registry"
)

type Hub struct {
	reg *registry.Registry
	bus *natsbus.Bus
}

func New(reg *registry.Registry, bus *natsbus.Bus) *Hub {
	return &Hub{reg: reg, bus: bus}
}

// Register tracks a freshly connected, not-yet-joined connection.
func (h *Hub) Register(connID string) {
	h.reg.Register(connID)
}

// ClientCount reports how many connections are tracked.
func (h *Hub) ClientCount() int {
	return h.reg.Len()
}

// Join validates and records a connection's (room, name). It returns the
// member snapshot for the synchronous join ack and the room the connection
// previously occupied. It publishes nothing: the caller swaps its room
// subscription first and then calls AnnounceJoin, so the joiner is already
// listening when the presence snapshot goes out.
func (h *Hub) Join(connID, room, name string) (members []string, prevRoom string, err error) {
	prevRoom, err = h.reg.Join(connID, room, name)
	if err != nil {
		return nil, "", err
	}
	log.Printf("Connection %s (%s) joined room %s", connID, name, room)
	return h.reg.MembersOf(room), prevRoom, nil
}

// AnnounceJoin emits the membership-change traffic for a completed join:
// a departure notice and presence update to the previous room when the
// connection switched rooms, then a join notice and presence update to the
// new room. The join notice excludes the joiner itself.
func (h *Hub) AnnounceJoin(connID, room, name, prevRoom string) {
	if prevRoom != "" && prevRoom != room {
		h.publishRoom(prevRoom, models.NewSystem(prevRoom, fmt.Sprintf("%s left", name)), "")
		h.BroadcastPresence(prevRoom)
	}
	h.publishRoom(room, models.NewSystem(room, fmt.Sprintf("%s joined", name)), connID)
	h.BroadcastPresence(room)
}

// GetUsers answers the current presence snapshot for a room. It shares its
// query with BroadcastPresence so the poll path and the push path can never
// diverge.
func (h *Hub) GetUsers(room string) []string {
	return h.reg.MembersOf(room)
}

// BroadcastPresence publishes the user list to a room's members. Snapshots
// are idempotent; a room with no members gets nothing.
func (h *Hub) BroadcastPresence(room string) {
	users := h.reg.MembersOf(room)
	if len(users) == 0 {
		return
	}
	h.publishRoom(room, models.NewUserList(room, users), "")
}

// Chat stamps and fans out a room broadcast, sender included. An empty room
// falls back to a system-wide broadcast reaching every connection. Returns
// false when the text trims to nothing and the message was dropped.
func (h *Hub) Chat(room, sender, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	ev := models.NewChat(sender, room, text)
	if room == "" {
		h.publish(natsbus.GlobalSubject(), ev, "")
		return true
	}
	h.publishRoom(room, ev, "")
	return true
}

// Private routes a direct message. The recipient is resolved by display
// name across all rooms; when nobody owns the name the recipient side is
// dropped silently. The sender's own connection always receives the stamped
// copy, so the sender sees the message through the same path as everyone
// else. Empty sender, recipient, or text drops the whole message.
func (h *Hub) Private(senderConnID, from, to, text string) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" || strings.TrimSpace(text) == "" {
		return
	}
	ev := models.NewPrivate(from, to, text)
	if targetID, ok := h.reg.FindByName(to); ok && targetID != senderConnID {
		h.publish(natsbus.ClientSubject(targetID), ev, "")
	}
	h.publish(natsbus.ClientSubject(senderConnID), ev, "")
}

// Disconnect removes a connection. If it had joined a room, the remaining
// members get a departure notice and a fresh presence snapshot; a
// connection that never joined disconnects silently. Safe to call exactly
// once per connection, after its subscriptions are gone.
func (h *Hub) Disconnect(connID string) {
	room, name, ok := h.reg.Deregister(connID)
	if !ok {
		return
	}
	log.Printf("Connection %s (%s) left room %s", connID, name, room)
	h.publishRoom(room, models.NewSystem(room, fmt.Sprintf("%s left", name)), "")
	h.BroadcastPresence(room)
}

func (h *Hub) publishRoom(room string, ev *models.Event, exclude string) {
	h.publish(natsbus.RoomSubject(room), ev, exclude)
}

func (h *Hub) publish(subject string, ev *models.Event, exclude string) {
	if err := h.bus.Publish(subject, &models.Envelope{Exclude: exclude, Event: ev}); err != nil {
		log.Printf("Failed to publish %s event to %s: %v", ev.Type, subject, err)
	}
}
