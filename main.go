package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/airbridge/modules/api"
	"github.com/example/airbridge/modules/broadcast"
	"github.com/example/airbridge/modules/collab"
	"github.com/example/airbridge/modules/files"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Airbridge - shared text, chat and file drops ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Create modules
	collabModule := collab.NewModule(logger)
	broadcastModule := broadcast.NewModule(logger)
	filesModule := files.NewModule(logger)
	apiModule := api.NewModule(":"+port, logger)

	// Inject broadcast hub into API module
	// (done manually because the hub is not exposed via ServiceContainer)
	apiModule.SetHub(broadcastModule.GetHub())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - collab: room coordinator (ServiceProviderModule + EventEmitterModule)
	// - broadcast: event consumer fanning frames out to WebSocket clients
	// - files: upload storage (ServiceProviderModule)
	// - api: driving adapter (Fiber HTTP/WebSocket server, depends on both)
	app.Register(collabModule)
	app.Register(broadcastModule)
	app.Register(filesModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health   - Health check")
	log.Println("  POST   /upload   - File upload (multipart, 5MB max)")
	log.Println("  GET    /         - Static assets from ./public")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Request types: create-room, join-room, sync-text,")
	log.Println("                 chat-message, set-username, file-share")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
