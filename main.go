package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"timelapse/config"
	"timelapse/logging"
	"timelapse/metrics"
	"timelapse/pipeline"
	"timelapse/sink"
	"timelapse/source"
)

func main() {
	// Step 1: Load .env, then configuration (CLI flags > env > config file > defaults)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to read .env: %v\n", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Handle dry-run mode
	if cfg.DryRun {
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("                      DRY RUN MODE")
		fmt.Println("═══════════════════════════════════════════════════════════")
		cfg.PrintConfig()
		fmt.Println("\n✓ Configuration is valid. No encoding will be performed.")
		return
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Step 3: Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 4: Register signal handlers (Ctrl+C, SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\n⚠️  Interrupt received, cleaning up...")
		cancel()
	}()

	// Step 5: Run the pipeline
	if err := runPipeline(ctx, cfg, logger); err != nil {
		// Check if it was a cancellation
		if ctx.Err() == context.Canceled {
			fmt.Println("\n⚠️  Timelapse cancelled by user")
			os.Exit(130) // Standard exit code for SIGINT
		}
		fmt.Fprintf(os.Stderr, "\n❌ Pipeline error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Timelapse completed successfully!")
}

// runPipeline executes the complete timelapse workflow
func runPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	kind := sink.ResolveKind(sink.Kind(cfg.Encoder.Sink), cfg.Encoder.Binary)
	output := outputPath(cfg.Output, kind)

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  TIMELAPSE - PIPELINE START                    ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Printf("Input:  %s\n", cfg.Input)
	fmt.Printf("Output: %s\n", output)
	fmt.Printf("Window: last %d day(s)\n", cfg.Days)
	fmt.Println()

	// PHASE 1: Setup
	fmt.Println("⚙️  Phase 1: Setup")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Workers:    %d\n", cfg.Workers)
	fmt.Printf("  Lookahead:  %s\n", lookaheadLabel(cfg.EffectiveLookahead()))
	fmt.Printf("  Sink:       %s\n", kind)
	if kind == sink.KindMJPEG && sink.Kind(cfg.Encoder.Sink) == sink.KindAuto {
		fmt.Println("  ⚠️  ffmpeg not found, falling back to Motion JPEG")
	}

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, collector, logger)
		defer stop()
		fmt.Printf("  Metrics:    http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()

	// PHASE 2: Transform and encode
	fmt.Println("🎬 Phase 2: Transform and Encode")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	opts := pipeline.Options{
		InputDir:   cfg.Input,
		Output:     output,
		Days:       cfg.Days,
		FPS:        cfg.FPS,
		ScaleRatio: cfg.ResizeRatio,
		CRF:        cfg.Encoder.CRF,

		PoolSize:     cfg.Workers,
		Lookahead:    cfg.EffectiveLookahead(),
		PollInterval: cfg.PollInterval,
		Progress: func(percent float64) {
			fmt.Printf("  progress %.0f%%\n", percent)
		},
		ProgressPeriod: cfg.ProgressPeriod,

		SinkKind:        kind,
		FFmpegPath:      cfg.Encoder.Binary,
		Preset:          cfg.Encoder.Preset,
		FontPath:        cfg.FontPath,
		Filter:          cfg.Filter,
		MalformedPolicy: source.MalformedPolicy(cfg.MalformedNames),
		Verify:          cfg.Verify,

		Logger:  logger,
		Metrics: collector,
	}

	summary, err := pipeline.Execute(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ Encoded %d frames in %.2fs\n", summary.Frames, summary.Elapsed.Seconds())
	if summary.Probe != nil {
		fmt.Printf("  ✓ Verified %dx%d output\n", summary.Width, summary.Height)
	}

	// PHASE 3: Final Report
	outputSize := int64(0)
	if info, err := os.Stat(summary.Output); err == nil {
		outputSize = info.Size()
	}
	videoSeconds := float64(summary.Frames) / float64(cfg.FPS)

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("                     ✅ SUCCESS!")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Output:      %s\n", summary.Output)
	fmt.Printf("  Size:        %.2f MB\n", float64(outputSize)/(1024*1024))
	fmt.Printf("  Frames:      %d\n", summary.Frames)
	if summary.Width > 0 {
		fmt.Printf("  Resolution:  %dx%d\n", summary.Width, summary.Height)
	}
	fmt.Printf("  Duration:    %.2fs at %d fps\n", videoSeconds, cfg.FPS)
	fmt.Printf("  Total time:  %.2fs\n", summary.Elapsed.Seconds())
	fmt.Printf("  Peak buffer: %d frames\n", summary.BufferedPeak)
	fmt.Printf("  Run ID:      %s\n", summary.RunID)
	fmt.Println("═══════════════════════════════════════════════════════════")

	return nil
}

// outputPath gives MJPEG output the .avi extension its container needs.
func outputPath(path string, kind sink.Kind) string {
	if kind != sink.KindMJPEG || strings.EqualFold(filepath.Ext(path), ".avi") {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".avi"
}

func lookaheadLabel(n int) string {
	if n < 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", n)
}

// serveMetrics exposes the collector on addr until the returned stop
// function is called.
func serveMetrics(addr string, collector *metrics.Collector, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
