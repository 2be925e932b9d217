package api

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/example/airbridge/modules/broadcast"
	"github.com/example/airbridge/modules/collab"
	"github.com/example/airbridge/modules/files"
)

// APIModule exposes the HTTP and WebSocket surface: the /ws collaboration
// endpoint, the upload endpoint, health checks and static assets.
type APIModule struct {
	app    *fiber.App
	addr   string
	collab collab.CollabPort
	files  files.FilesPort
	hub    *broadcast.Hub
	redis  *redis.Client
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module          = (*APIModule)(nil)
	_ mono.DependentModule = (*APIModule)(nil)
)

// NewModule creates a new API module listening on addr.
func NewModule(addr string, logger types.Logger) *APIModule {
	return &APIModule{addr: addr, logger: logger}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the modules whose services this module calls.
func (m *APIModule) Dependencies() []string {
	return []string{"collab", "files"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "collab":
		m.collab = collab.NewCollabAdapter(container)
	case "files":
		m.files = files.NewFilesAdapter(container)
	}
}

// SetHub wires the broadcast hub used for fan-out delivery. Must be called
// before Start.
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Start initializes and starts the HTTP server.
func (m *APIModule) Start(ctx context.Context) error {
	if m.collab == nil || m.files == nil {
		return fmt.Errorf("API module dependencies not wired")
	}
	if m.hub == nil {
		return fmt.Errorf("API module requires a broadcast hub")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Airbridge",
		DisableStartupMessage: true,
		BodyLimit:             files.MaxFileSize + 1024*1024,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		m.setupRateLimiter(ctx, redisAddr)
	}

	m.setupRoutes()

	// Start server in goroutine with startup error detection.
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("API server started", "addr", m.addr)
	return nil
}

// setupRateLimiter enables Redis-backed request throttling. A Redis that is
// unreachable at startup disables the limiter rather than failing the boot.
func (m *APIModule) setupRateLimiter(ctx context.Context, redisAddr string) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		m.logger.Warn("Redis unreachable, rate limiting disabled",
			"addr", redisAddr, "error", err)
		client.Close()
		return
	}

	m.redis = client
	m.app.Use(newRateLimiter(client, m.logger).middleware())
	m.logger.Info("Rate limiting enabled",
		"redis", redisAddr, "limit", rateLimitMax, "window", rateLimitWindow)
}

// Stop gracefully shuts down the HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("Failed to close Redis client", "error", err)
		}
	}
	m.logger.Info("API server stopped")
	return nil
}

// errorHandler handles errors globally.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(ErrorResponse{Error: message})
}
