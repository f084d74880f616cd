package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"mlops-pipeline/cmd"
	"mlops-pipeline/internal/api"
	"mlops-pipeline/internal/messaging"
	"mlops-pipeline/internal/state"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type StatusConfig struct {
	StateDir      string `env:"TEMP_STATE_DIRECTORY,notEmpty,required"`
	LedgerDSN     string `env:"LEDGER_DSN"`
	EventsAMQPURL string `env:"EVENTS_AMQP_URL"`
	Port          int    `env:"STATUS_PORT" envDefault:"8090"`
	EventBuffer   int    `env:"STATUS_EVENT_BUFFER" envDefault:"100"`
}

func main() {
	log.Println("Starting status server...")

	cmd.LoadEnvFile()

	var cfg StatusConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	runLedger, err := cmd.NewLedger(cfg.LedgerDSN)
	if err != nil {
		log.Fatalf("Failed to open run ledger: %v", err)
	}
	if runLedger != nil {
		defer runLedger.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events *api.EventFeed
	if cfg.EventsAMQPURL != "" {
		receiver, err := messaging.NewRabbitMQReceiver(cfg.EventsAMQPURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer receiver.Close()

		events = api.NewEventFeed(cfg.EventBuffer)
		go events.Consume(ctx, receiver)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	statusHandler := api.NewStatusService(state.NewLocalStore(cfg.StateDir), runLedger, events)

	r.Route("/api/v1", func(r chi.Router) {
		statusHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("status server listening", "port", cfg.Port, "state_dir", cfg.StateDir, "ledger", runLedger != nil, "events", events != nil)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
