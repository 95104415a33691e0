package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "threatlens/internal/adapters/http"
	pg "threatlens/internal/adapters/postgres"
	"threatlens/internal/bootstrap"
	"threatlens/internal/config"
	histsvc "threatlens/internal/services/history"
	scansvc "threatlens/internal/services/scanner"
	scanworker "threatlens/internal/workers/scanrunner"
)

func main() {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoDatabase) {
		log.Printf("warning: %v", err)
	} else if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	pipeline, err := bootstrap.Pipeline(cfg)
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}

	scanner := scansvc.New(db, db, cfg.AllowedTypes, cfg.MaxFileBytes)
	history := histsvc.New(db)
	processor := scanworker.PipelineProcessor{
		Scans:    db,
		Results:  db,
		Repo:     db,
		Pipeline: pipeline,
		Subject:  scansvc.SubjectFor,
	}

	srv := httpadapter.New(scanner, history, db, processor, cfg.MaxFileBytes)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background job workers
	if cfg.ScanWorkers > 0 {
		scanworker.Run(ctx, db, processor, cfg.ScanWorkers, 500*time.Millisecond)
		log.Printf("scan workers started: %d", cfg.ScanWorkers)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Printf("listening on %s (%s)", cfg.ListenAddr, cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(fmt.Errorf("server error: %w", err))
		}
	}
}
