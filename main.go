package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/example/room-chat-server/config"
	"github.com/example/room-chat-server/handlers"
	"github.com/example/room-chat-server/hub"
	"github.com/example/room-chat-server/natsbus"
	"github.com/example/room-chat-server/registry"
)

func main() {
	// --- Initialize fanout bus (embedded NATS unless NATS_URL is set) ---
	bus, err := natsbus.New(config.NatsURL)
	if err != nil {
		log.Fatalf("Failed to initialize NATS bus: %v", err)
	}
	defer bus.Close()
	log.Println("Fanout bus initialized")

	reg := registry.New()
	h := hub.New(reg, bus)

	// --- Initialize Fiber App ---
	app := fiber.New()
	app.Use(logger.New()) // Basic request logging

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Real-time chat server is running")
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "clients": h.ClientCount()})
	})

	// --- Setup WebSocket Route ---
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		handlers.HandleWebSocket(c, h, bus)
	}))

	// --- Start Server ---
	go func() {
		log.Printf("Starting server on %s", config.ServerAddr)
		if err := app.Listen(config.ServerAddr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down Fiber: %v", err)
	}

	// Bus connection is closed by defer in main

	log.Println("Server gracefully stopped")
}
