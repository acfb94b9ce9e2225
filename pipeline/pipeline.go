// Package pipeline turns a directory of timestamped photos into one video.
//
// Run lists the photos of the requested window, transforms them on a worker
// pool and feeds the frames, in capture order, to a single video sink.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"go.uber.org/zap"

	"timelapse/ffprobe"
	"timelapse/logging"
	"timelapse/metrics"
	"timelapse/models"
	"timelapse/orchestrator"
	"timelapse/sink"
	"timelapse/source"
	"timelapse/transform"
)

// Options configures one run.
type Options struct {
	InputDir string
	Output   string    // file path, ignored when Writer is set
	Writer   io.Writer // stream the container here instead of a file

	Days       int
	Now        time.Time      // end of the window, zero = time.Now()
	Location   *time.Location // zone of file name timestamps, nil = local
	FPS        int
	ScaleRatio int
	CRF        int

	PoolSize       int // 0 = NumCPU-1, at least 1
	Lookahead      int // 0 = 2x PoolSize, negative = unbounded
	PollInterval   time.Duration
	Progress       models.ProgressCallback
	ProgressPeriod time.Duration

	SinkKind        sink.Kind
	FFmpegPath      string
	Preset          string
	FontPath        string
	Filter          string
	MalformedPolicy source.MalformedPolicy
	Verify          bool

	Logger  *zap.Logger
	Metrics *metrics.Collector

	// Sink overrides the sink selected by SinkKind.
	Sink sink.Sink
}

// Summary describes a finished run.
type Summary struct {
	RunID        string
	Frames       int
	Output       string
	Sink         sink.Kind
	Width        int
	Height       int
	BufferedPeak int
	Elapsed      time.Duration
	Probe        *ffprobe.ProbeResult // set when the output was verified
}

// Run renders the timelapse described by opts.
func Run(ctx context.Context, opts Options) error {
	_, err := Execute(ctx, opts)
	return err
}

// Execute renders the timelapse described by opts and reports what it did.
func Execute(ctx context.Context, opts Options) (*Summary, error) {
	opts = withDefaults(opts)
	start := time.Now()

	runID := logging.NewRunID()
	logger := logging.WithRun(opts.Logger, runID)
	summary := &Summary{RunID: runID, Output: opts.Output}

	lister := source.NewLister(opts.InputDir).
		SetMalformedPolicy(opts.MalformedPolicy).
		SetLocation(opts.Location).
		SetLogger(logger)

	cutoff := source.Cutoff(opts.Now, opts.Days)
	descs, err := lister.List(cutoff)
	if err != nil {
		return summary, err
	}
	logger.Info("Selected photos",
		zap.String("dir", opts.InputDir),
		zap.Time("cutoff", cutoff),
		zap.Int("count", len(descs)),
		zap.Time("first", descs[0].Timestamp),
		zap.Time("last", descs[len(descs)-1].Timestamp))

	items, err := source.BuildWorkItems(descs, opts.ScaleRatio)
	if err != nil {
		return summary, err
	}

	filter, err := transform.ParseFilter(opts.Filter)
	if err != nil {
		return summary, err
	}
	transformer, err := transform.NewImageTransformer(opts.FontPath, filter)
	if err != nil {
		return summary, err
	}

	out, kind, err := openSink(ctx, opts, logger)
	if err != nil {
		return summary, err
	}
	summary.Sink = kind
	if opts.Writer != nil {
		summary.Output = ""
	}

	coord := orchestrator.NewCoordinator(transformer, opts.PoolSize).
		SetLookahead(opts.Lookahead).
		SetPollInterval(opts.PollInterval).
		SetProgressCallback(opts.Progress, opts.ProgressPeriod).
		SetLogger(logger).
		SetMetrics(opts.Metrics)

	runErr := coord.Run(ctx, items, out)
	if state := coord.State(); state != nil {
		summary.Frames = state.Cursor
		summary.BufferedPeak = state.BufferedPeak
	}
	summary.Elapsed = time.Since(start)
	if runErr != nil {
		return summary, runErr
	}

	summary.Width, summary.Height = frameSize(out)

	if opts.Verify {
		if err := verify(out, opts, summary, logger); err != nil {
			return summary, err
		}
	}

	summary.Elapsed = time.Since(start)
	logger.Info("Timelapse written",
		zap.String("output", summary.Output),
		zap.String("sink", string(kind)),
		zap.Int("frames", summary.Frames),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func withDefaults(opts Options) Options {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = max(runtime.NumCPU()-1, 1)
	}
	if opts.Lookahead == 0 {
		opts.Lookahead = 2 * opts.PoolSize
	}
	if opts.ScaleRatio == 0 {
		opts.ScaleRatio = 1
	}
	if opts.Filter == "" {
		opts.Filter = "hamming"
	}
	if opts.MalformedPolicy == "" {
		opts.MalformedPolicy = source.MalformedFail
	}
	if opts.SinkKind == "" {
		opts.SinkKind = sink.KindAuto
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func openSink(ctx context.Context, opts Options, logger *zap.Logger) (sink.Sink, sink.Kind, error) {
	if opts.Sink != nil {
		return opts.Sink, "", nil
	}

	sinkOpts := sink.Options{
		Kind:   opts.SinkKind,
		Binary: opts.FFmpegPath,
		FPS:    opts.FPS,
		CRF:    opts.CRF,
		Preset: opts.Preset,
		Logger: logger,
	}
	kind := sink.ResolveKind(opts.SinkKind, opts.FFmpegPath)
	sinkOpts.Kind = kind

	if opts.Writer != nil {
		out, err := sink.NewStream(ctx, sinkOpts, opts.Writer)
		return out, kind, err
	}
	out, err := sink.New(ctx, sinkOpts, opts.Output)
	return out, kind, err
}

// frameSize reports the size of the encoded stream when the sink knows it.
func frameSize(out sink.Sink) (int, int) {
	if s, ok := out.(interface{ EncodedSize() (int, int) }); ok {
		return s.EncodedSize()
	}
	if s, ok := out.(interface{ Size() (int, int) }); ok {
		return s.Size()
	}
	return 0, 0
}

// verify probes a finished ffmpeg output file.
func verify(out sink.Sink, opts Options, summary *Summary, logger *zap.Logger) error {
	if _, ok := out.(*sink.FFmpegSink); !ok || opts.Writer != nil {
		logger.Info("Skipping verification, output is not an ffmpeg file")
		return nil
	}

	want := ffprobe.Expectation{
		Width:  summary.Width,
		Height: summary.Height,
		Frames: summary.Frames,
	}
	result, err := ffprobe.VerifyOutput(opts.Output, want)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrSinkIO, err)
	}
	summary.Probe = result

	duration, _ := result.GetDuration()
	logger.Info("Output verified",
		zap.Int("width", want.Width),
		zap.Int("height", want.Height),
		zap.Int("frames", want.Frames),
		zap.Float64("duration_seconds", duration))
	return nil
}
