package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dherrin84/mortscan/internal/api"
	"github.com/dherrin84/mortscan/internal/cache"
	"github.com/dherrin84/mortscan/internal/classify"
	"github.com/dherrin84/mortscan/internal/config"
	"github.com/dherrin84/mortscan/internal/extract"
	"github.com/dherrin84/mortscan/internal/history"
	"github.com/dherrin84/mortscan/internal/pipeline"
)

func main() {
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Section rules: built-in catalog unless a file overrides it.
	rules := classify.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := classify.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			log.Error("load rules file", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		rules = loaded
		log.Info("loaded section rules", "path", cfg.RulesFile, "rules", len(rules))
	}

	extractor := extract.New(extract.Options{
		MinTextItems:      cfg.MinTextItems,
		OCREnabled:        cfg.OCREnabled,
		OCRDPI:            cfg.OCRDPI,
		OCRLanguage:       cfg.OCRLanguage,
		FallbackPdftotext: cfg.FallbackPdftotext,
	}, log)

	results := cache.NewResults(cfg.ResultCacheTTL)
	stats := extract.NewStats(time.Hour)

	deps := pipeline.Deps{
		Extractor: extractor,
		Rules:     rules,
		Cache:     results,
		Stats:     stats,
	}

	var hist *history.Store
	if cfg.HistoryEnabled {
		h, err := history.Open(cfg.HistoryPath, log)
		if err != nil {
			log.Error("open history database", "path", cfg.HistoryPath, "error", err)
			os.Exit(1)
		}
		hist = h
		deps.Sink = hist
	}

	orch := pipeline.NewOrchestrator(cfg, deps, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, hist, results, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("starting mortscan",
		"addr", cfg.Addr(),
		"workers", cfg.WorkerCount,
		"ocr_available", cfg.OCREnabled && extract.OCRAvailable(),
		"history", cfg.HistoryEnabled,
	)
	if err := serveUntilSignal(httpServer, orch, hist, sigCh, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// serveUntilSignal serves HTTP until sigCh fires, then drains: HTTP
// first so no handler submits into a stopping pipeline, then the
// workers, then the history buffer. It returns when the drain has
// finished, not when the listener closes.
func serveUntilSignal(httpServer *http.Server, orch *pipeline.Orchestrator, hist *history.Store, sigCh <-chan os.Signal, log *slog.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		if hist != nil {
			hist.Close()
		}
	}()

	// Shutdown closes the listener right away, so ListenAndServe returns
	// while the drain above is still running.
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
