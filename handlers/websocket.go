package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/example/room-chat-server/config"
	"github.com/example/room-chat-server/hub"
	"github.com/example/room-chat-server/models"
	"github.com/example/room-chat-server/natsbus"
	"github.com/nats-io/nats.go"
)

// Client binds one websocket connection to its fanout subscriptions. All
// outbound traffic funnels through MessageChan so the connection has a
// single writer.
type Client struct {
	Conn        *websocket.Conn
	Hub         *hub.Hub
	Bus         *natsbus.Bus
	ID          string
	MessageChan chan *models.Envelope // envelopes from NATS subscriptions and local acks
	DoneChan    chan struct{}         // closed when the read pump exits

	roomSub *nats.Subscription // current room subscription, swapped on join
}

func NewClient(conn *websocket.Conn, h *hub.Hub, bus *natsbus.Bus, id string) *Client {
	return &Client{
		Conn:        conn,
		Hub:         h,
		Bus:         bus,
		ID:          id,
		MessageChan: make(chan *models.Envelope, 256),
		DoneChan:    make(chan struct{}),
	}
}

// deliver queues an envelope for the write pump. It runs on NATS delivery
// goroutines as well as the read pump, so it must not block indefinitely.
func (c *Client) deliver(env *models.Envelope) {
	select {
	case c.MessageChan <- env:
	case <-time.After(1 * time.Second):
		log.Printf("Timeout queueing %s event for client %s", env.Event.Type, c.ID)
	case <-c.DoneChan:
	}
}

// ack queues an ack event addressed to this client only.
func (c *Client) ack(ev *models.Event) {
	ev.Type = models.EventAck
	c.deliver(&models.Envelope{Event: ev})
}

// HandleRead reads inbound events from the websocket and dispatches them.
// It exits on connection close or read error, signalling the writer.
func (c *Client) HandleRead() {
	defer func() {
		log.Printf("Reader closed for client %s", c.ID)
		close(c.DoneChan)
	}()
	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for %s: %v", c.ID, err)
			} else {
				log.Printf("WebSocket closed for %s: %v", c.ID, err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("Dropping malformed event from %s: %v", c.ID, err)
			continue
		}
		c.dispatch(&ev)
	}
}

// dispatch handles one inbound event. It runs on the read pump goroutine,
// which is the only goroutine touching roomSub.
func (c *Client) dispatch(ev *models.Event) {
	switch ev.Type {
	case models.EventJoin:
		c.handleJoin(ev.Room, ev.Username)

	case models.EventGetUsers:
		c.ack(&models.Event{Op: models.EventGetUsers, Room: ev.Room, Users: c.Hub.GetUsers(ev.Room)})

	case models.EventChat:
		if c.Hub.Chat(ev.Room, ev.Sender, ev.Message) && ev.Ack {
			c.ack(&models.Event{Op: models.EventChat, Status: models.StatusOK})
		}

	case models.EventPrivate:
		c.Hub.Private(c.ID, ev.From, ev.To, ev.Message)

	default:
		log.Printf("Unknown event type %q from client %s", ev.Type, c.ID)
	}
}

// handleJoin records the membership change, moves this connection's room
// subscription over before anything is announced, and answers with the
// member snapshot. The async presence broadcast that follows gives clients
// a second delivery path for the same list.
func (c *Client) handleJoin(room, username string) {
	members, prevRoom, err := c.Hub.Join(c.ID, room, username)
	if err != nil {
		log.Printf("Invalid join from client %s: %v", c.ID, err)
		c.ack(&models.Event{Op: models.EventJoin, Status: models.StatusInvalid})
		return
	}

	if c.roomSub != nil {
		if err := c.roomSub.Unsubscribe(); err != nil {
			log.Printf("Failed to unsubscribe client %s from previous room: %v", c.ID, err)
		}
		c.roomSub = nil
	}
	sub, err := c.Bus.Subscribe(natsbus.RoomSubject(room), c.deliver)
	if err != nil {
		log.Printf("Failed to subscribe client %s to room %s: %v", c.ID, room, err)
	} else {
		c.roomSub = sub
		if err := c.Bus.Flush(); err != nil {
			log.Printf("Flush failed for client %s: %v", c.ID, err)
		}
	}

	c.Hub.AnnounceJoin(c.ID, room, username, prevRoom)
	c.ack(&models.Event{Op: models.EventJoin, Room: room, Users: members})
}

// HandleWrite writes queued envelopes to the websocket and keeps the
// connection alive with pings. Envelopes excluding this connection are
// dropped here, after fanout.
func (c *Client) HandleWrite() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		log.Printf("Writer closed for client %s", c.ID)
	}()

	for {
		select {
		case env := <-c.MessageChan:
			if env.Exclude == c.ID {
				continue
			}
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteJSON(env.Event); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for %s: %v", c.ID, err)
				return
			}

		case <-c.DoneChan:
			return
		}
	}
}

// HandleWebSocket manages the lifecycle of one websocket connection.
func HandleWebSocket(conn *websocket.Conn, h *hub.Hub, bus *natsbus.Bus) {
	client := NewClient(conn, h, bus, uuid.NewString())
	h.Register(client.ID)
	log.Printf("Client %s connected", client.ID)

	// Every connection listens on its own subject (private messages; acks
	// are queued locally) and the global subject (room-less broadcasts).
	ownSub, err := bus.Subscribe(natsbus.ClientSubject(client.ID), client.deliver)
	if err != nil {
		log.Printf("Failed to subscribe client %s: %v", client.ID, err)
		conn.Close()
		return
	}
	globalSub, err := bus.Subscribe(natsbus.GlobalSubject(), client.deliver)
	if err != nil {
		log.Printf("Failed to subscribe client %s to global broadcasts: %v", client.ID, err)
		ownSub.Unsubscribe()
		conn.Close()
		return
	}

	defer func() {
		log.Printf("Cleaning up client %s", client.ID)
		ownSub.Unsubscribe()
		globalSub.Unsubscribe()
		if client.roomSub != nil {
			client.roomSub.Unsubscribe()
		}
		h.Disconnect(client.ID)
		conn.Close()
	}()

	go client.HandleWrite()

	// Blocks until the connection closes; its defer signals the writer.
	client.HandleRead()
}
