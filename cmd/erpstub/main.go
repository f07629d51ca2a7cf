// Command erpstub serves the ERP system notification endpoint for local
// development and end-to-end runs. Accepted notifications are kept in memory
// and listed at GET /notifications/.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/logger"
	"github.com/stroyteh/kanban-service/internal/notifier"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.ERP.ServiceToken == "" {
		return fmt.Errorf("ERP_SERVICE_TOKEN must be set")
	}
	receiver := notifier.NewReceiver(cfg.ERP.ServiceToken, log.Named("erpstub"))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Method(http.MethodPost, notifier.Path, receiver)
	r.Get("/notifications/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(receiver.Records())
	})

	log.Info("ERP stub listening", zap.String("addr", *addr), zap.String("path", notifier.Path))
	return http.ListenAndServe(*addr, r)
}
