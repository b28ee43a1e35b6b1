package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"translate_broker/internal/config"
	"translate_broker/internal/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Background loops share one cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux, deps, err := httpapi.NewRouter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Subscription reconciliation runs for the life of the process.
	go deps.Synchronizer.Run(ctx)

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Translate broker listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the synchronizer and any in-flight payment poll.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := deps.Close(); err != nil {
		log.Printf("Failed to close dependencies: %v", err)
	}

	log.Println("Server exited")
}
