package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spoolscan/internal/config"
	"spoolscan/internal/server"
	"spoolscan/internal/server/middleware"
)

// Standalone CORS relay: forwards everything it receives to the upstream
// model API unchanged, for deployments that keep the analysis client-side.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	relay, err := server.NewRelay(cfg.RelayUpstream)
	if err != nil {
		log.Fatalf("Failed to init relay: %v", err)
	}

	srv := server.New(cfg.Port, middleware.CORS(relay))

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
