// Package natsbus carries fanout traffic over NATS core pub/sub. When no
// external server is configured it embeds one in-process, so the binary and
// the tests run self-contained.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/room-chat-server/config"
	"github.com/example/room-chat-server/models"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type Bus struct {
	nc  *nats.Conn
	srv *server.Server // non-nil only when running embedded
}

// New connects to the NATS server at url. An empty url starts an embedded
// server on a random localhost port and connects to that.
func New(url string) (*Bus, error) {
	var srv *server.Server
	if url == "" {
		s, err := server.NewServer(&server.Options{
			Host:   "127.0.0.1",
			Port:   -1,
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
		}
		go s.Start()
		if !s.ReadyForConnections(5 * time.Second) {
			s.Shutdown()
			return nil, fmt.Errorf("embedded NATS server did not become ready")
		}
		srv = s
		url = s.ClientURL()
		log.Printf("Embedded NATS server listening on %s", url)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		if srv != nil {
			srv.Shutdown()
		}
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Bus{nc: nc, srv: srv}, nil
}

// Close tears down the connection and, if embedded, the server.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
	if b.srv != nil {
		b.srv.Shutdown()
		b.srv.WaitForShutdown()
	}
}

// Publish marshals an envelope onto a subject. Sends are fire-and-forget;
// slow subscribers buffer independently and never block the publisher.
func (b *Bus) Publish(subject string, env *models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", subject, err)
	}
	return nil
}

// Subscribe invokes handler for every envelope arriving on subject. The
// handler runs on the NATS delivery goroutine; it must not block.
func (b *Bus) Subscribe(subject string, handler func(env *models.Envelope)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var env models.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("Error unmarshaling envelope from subject '%s': %v", msg.Subject, err)
			return
		}
		handler(&env)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject '%s': %w", subject, err)
	}
	return sub, nil
}

// Flush waits until the server has processed everything sent so far. Used
// by callers that need a subscription live before proceeding.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// subjectToken strips characters that NATS subjects reserve. Room names are
// free-form client input.
var subjectToken = strings.NewReplacer(" ", "_", ".", "_", "*", "_", ">", "_")

// RoomSubject names the subject carrying a room's broadcasts.
func RoomSubject(room string) string {
	return fmt.Sprintf("%s.room.%s", config.SubjectPrefix, subjectToken.Replace(room))
}

// ClientSubject names the subject carrying one connection's direct traffic.
func ClientSubject(connID string) string {
	return fmt.Sprintf("%s.client.%s", config.SubjectPrefix, connID)
}

// GlobalSubject carries broadcasts addressed to every connection.
func GlobalSubject() string {
	return fmt.Sprintf("%s.global", config.SubjectPrefix)
}
