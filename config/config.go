package config

import (
	"os"
	"time"
)

// Server settings. Values can be overridden through the environment so the
// same binary works in dev and behind a real NATS deployment.
var (
	// ServerAddr is the HTTP listen address.
	ServerAddr = envOr("SERVER_ADDR", ":5000")

	// NatsURL is the NATS server to connect to. An empty value starts an
	// in-process embedded server instead.
	NatsURL = os.Getenv("NATS_URL")
)

// SubjectPrefix roots every subject this server publishes on.
const SubjectPrefix = "chat"

// WebSocket timing and limits.
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
