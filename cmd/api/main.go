package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"spoolscan/internal/analysis"
	"spoolscan/internal/config"
	"spoolscan/internal/history"
	"spoolscan/internal/imagestore"
	"spoolscan/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cache, err := lru.New[string, analysis.Record](256)
	if err != nil {
		log.Fatalf("Failed to init cache: %v", err)
	}

	svc := &analysis.Service{
		Model:  cfg.Model,
		Logger: log.Default(),
		Cache:  cache,
	}

	var hist *history.Store
	if cfg.HistoryDSN != "" {
		hist, err = history.Open(cfg.HistoryDSN)
		if err != nil {
			log.Printf("History disabled: %v", err)
		} else {
			svc.History = hist
			defer hist.Close()
		}
	}

	if cfg.Images.Enabled {
		switch {
		case cfg.Images.Endpoint != "":
			images, err := imagestore.New(imagestore.Config{
				Endpoint:  cfg.Images.Endpoint,
				Region:    cfg.Images.Region,
				AccessKey: cfg.Images.AccessKey,
				SecretKey: cfg.Images.SecretKey,
				Bucket:    cfg.Images.Bucket,
				UseSSL:    cfg.Images.UseSSL,
			})
			if err != nil {
				log.Printf("Image archive disabled: %v", err)
			} else {
				svc.Images = images
			}
		case cfg.Images.Dir != "":
			images, err := imagestore.NewDirStore(cfg.Images.Dir)
			if err != nil {
				log.Printf("Image archive disabled: %v", err)
			} else {
				svc.Images = images
			}
		}
	}

	relay, err := server.NewRelay(cfg.RelayUpstream)
	if err != nil {
		log.Fatalf("Failed to init relay: %v", err)
	}

	mux := server.NewMux(&server.AnalyzeHandler{Svc: svc, History: hist}, relay)
	srv := server.New(cfg.Port, mux)

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
