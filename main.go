package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"parenc/broker"
	"parenc/checkpoint"
	"parenc/command"
	"parenc/config"
	"parenc/ffprobe"
	"parenc/internal/logging"
	"parenc/manifest"
	"parenc/metrics"
)

func main() {
	// Step 1: Load configuration (CLI flags > env > config file > defaults)
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Handle dry-run mode
	if cfg.DryRun {
		cfg.PrintConfig()
		fmt.Println("\nConfiguration is valid. No encoding will be performed.")
		return
	}

	log := logging.New(cfg.LogLevel(), cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// run executes one pool run: load checkpoint, select remaining chunks, drive
// the broker, and report whether every chunk completed.
func run(cfg *config.Config, log *slog.Logger) error {
	if err := os.MkdirAll(cfg.Temp, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// The done-set lives next to the manifest in the temp directory.
	done, err := checkpoint.Load(filepath.Join(cfg.Temp, checkpoint.FileName))
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	chunks, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return fmt.Errorf("failed to load chunk manifest: %w", err)
	}

	remaining := manifest.FilterDone(chunks, done)
	if skipped := len(chunks) - len(remaining); skipped > 0 {
		log.Info("resuming previous run", "completed", skipped, "remaining", len(remaining))
	}

	stats := metrics.New()
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, stats, log)
	}

	encoder := command.NewFFmpeg(cfg.Video, cfg.Passes)

	b := broker.New(remaining, cfg, encoder, ffprobe.Counter{}, done, log).
		SetMetrics(stats).
		SetProgress(&logProgress{log: log})

	// Buffered: the advisory send must not block a failing worker.
	failure := make(chan struct{}, 1)
	b.EncodingLoop(failure)

	select {
	case <-failure:
		return fmt.Errorf("at least one chunk failed; rerun to retry the remaining work")
	default:
	}

	log.Info("all chunks complete", "chunks", len(remaining), "done", done.Len())
	return nil
}

// serveMetrics exposes the Prometheus endpoint in the background. Serving is
// best effort; an unusable address must not stop the encode run.
func serveMetrics(addr string, stats *metrics.Metrics, log *slog.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", stats.Handler())

	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, r); err != nil {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
}

// logProgress is the progress sink: the engine renders no bars itself, it
// only reports that the pool run finished at the configured detail level.
type logProgress struct {
	log *slog.Logger
}

func (p *logProgress) Finish() {
	p.log.Info("encode queue finished")
}

func (p *logProgress) FinishMulti() {
	p.log.Info("encode queue finished", "detail", "per-worker")
}
