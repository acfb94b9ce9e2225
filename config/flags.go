package config

import (
	"flag"
	"fmt"
	"os"
)

// MergeFromFlags parses command-line flags and overrides config values.
// The photo directory may be given as the first positional argument or
// with -input; flags may appear on either side of it.
func (c *Config) MergeFromFlags() error {
	fs := flag.NewFlagSet("timelapse", flag.ContinueOnError)
	fs.Usage = printUsage

	input := fs.String("input", "", "Directory with photos (or first positional argument)")
	output := fs.String("output", "", "Output video file (default: from config)")

	// Config file override (handled by LoadConfig before this function is called)
	_ = fs.String("config", "", "Path to config file (default: search standard locations)")

	// Selection and rendering
	days := fs.Int("days", -1, "Process photos from the last N days (default: from config)")
	fps := fs.Int("fps", -1, "Output frame rate (default: from config)")
	resizeRatio := fs.Int("resize-ratio", -1, "Downscale ratio (default: from config)")
	font := fs.String("font", "", "TrueType/OpenType font for the overlay (default: Go Regular)")
	filter := fs.String("filter", "", "Resize filter (default: from config)")
	skipMalformed := fs.Bool("skip-malformed", false, "Skip files without a timestamp prefix instead of failing")

	// Execution settings
	workers := fs.Int("workers", -1, "Number of transform workers (0 = auto-detect, default: from config)")
	lookahead := fs.Int("lookahead", 0, "Items submitted beyond the workers (0 = 2x workers, -1 = unbounded)")
	progressPeriod := fs.Duration("progress-period", -1, "Minimum time between progress reports (default: from config)")

	// Encoder settings
	sinkKind := fs.String("sink", "", "Video sink: auto, ffmpeg, mjpeg (default: from config)")
	ffmpegPath := fs.String("ffmpeg", "", "Path to the ffmpeg binary (default: PATH lookup)")
	crf := fs.Int("crf", -1, "x264 CRF: 0-51, lower = better quality (default: from config)")
	preset := fs.String("preset", "", "x264 preset: ultrafast ... veryslow (default: from config)")

	// Behavioral flags
	verify := fs.Bool("verify", false, "Probe the output after encoding")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	dryRun := fs.Bool("dry-run", false, "Show configuration without encoding")

	args := os.Args[1:]
	if err := fs.Parse(args); err != nil {
		return err
	}
	positional := ""
	if fs.NArg() > 0 {
		positional = fs.Arg(0)
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return err
		}
		if fs.NArg() > 0 {
			return fmt.Errorf("unexpected arguments: %v", fs.Args())
		}
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	if positional != "" {
		c.Input = positional
	}
	if *input != "" {
		c.Input = *input
	}
	if *output != "" {
		c.Output = *output
	}

	// Only override if explicitly set, -1 means not set
	if *days >= 0 {
		c.Days = *days
	}
	if *fps >= 0 {
		c.FPS = *fps
	}
	if *resizeRatio >= 0 {
		c.ResizeRatio = *resizeRatio
	}
	if *font != "" {
		c.FontPath = *font
	}
	if *filter != "" {
		c.Filter = *filter
	}
	if *skipMalformed {
		c.MalformedNames = "skip"
	}

	if *workers >= 0 {
		c.Workers = *workers
	}
	if explicit["lookahead"] {
		c.Lookahead = *lookahead
	}
	if *progressPeriod >= 0 {
		c.ProgressPeriod = *progressPeriod
	}

	if *sinkKind != "" {
		c.Encoder.Sink = *sinkKind
	}
	if *ffmpegPath != "" {
		c.Encoder.Binary = *ffmpegPath
	}
	if *crf >= 0 {
		c.Encoder.CRF = *crf
	}
	if *preset != "" {
		c.Encoder.Preset = *preset
	}

	if *verify {
		c.Verify = true
	}
	if *metricsAddr != "" {
		c.MetricsAddr = *metricsAddr
	}
	if *verbose {
		c.Verbose = true
	}
	if *dryRun {
		c.DryRun = true
	}

	return nil
}

// printUsage prints help text
func printUsage() {
	fmt.Fprintf(os.Stderr, `timelapse - Render a timelapse video from timestamped photos

USAGE:
  timelapse [OPTIONS] DIR

  Photos are selected by the YYYYMMDD_HHMMSS prefix of their file names.

CONFIGURATION:
  -config string
        Path to config file (default: search ./timelapse.yaml, ~/.timelapse/config.yaml, /etc/timelapse/config.yaml)

SELECTION AND RENDERING:
  -input string
        Directory with photos (alternative to DIR)
  -days int
        Process photos from the last N days (default: 1)
  -resize-ratio int
        Downscale ratio (default: 4)
  -font string
        TrueType/OpenType font for the overlay (default: Go Regular)
  -filter string
        Resize filter: nearest, box, linear, lanczos, hamming, ... (default: hamming)
  --skip-malformed
        Skip files without a timestamp prefix instead of failing

EXECUTION SETTINGS:
  -workers int
        Number of transform workers (0 = CPU count - 1) (default: 0)
  -lookahead int
        Items submitted beyond the workers (0 = 2x workers, -1 = unbounded)
  -progress-period duration
        Minimum time between progress reports (default: 1s)

ENCODER SETTINGS:
  -output string
        Output video file (default: output.mp4)
  -fps int
        Output frame rate (default: 10)
  -sink string
        Video sink: auto, ffmpeg, mjpeg (default: auto)
  -ffmpeg string
        Path to the ffmpeg binary (default: PATH lookup)
  -crf int
        x264 CRF: 0-51, lower = better quality (default: 23)
  -preset string
        x264 preset: ultrafast, fast, medium, slow, veryslow (default: medium)

BEHAVIORAL FLAGS:
  --verify
        Probe the output after encoding
  -metrics-addr string
        Serve Prometheus metrics on this address, e.g. :9090
  --verbose
        Enable verbose logging
  --dry-run
        Show effective configuration without encoding

EXAMPLES:
  # Last day of photos at the defaults
  timelapse /srv/camera

  # One week, smaller frames, 25 fps
  timelapse -days 7 -resize-ratio 8 -fps 25 -output week.mp4 /srv/camera

  # No ffmpeg installed
  timelapse -sink mjpeg -output day.avi /srv/camera

  # Show effective configuration
  timelapse --dry-run /srv/camera

ENVIRONMENT:
  TIMELAPSE_PROG_PERIOD, TIMELAPSE_PESIZE_RATIO, TIMELAPSE_CODEC_OPT,
  TIMELAPSE_FPS, TIMELAPSE_NUM_PROCS, TIMELAPSE_DAYS, TIMELAPSE_OUTPUT,
  TIMELAPSE_LOOKAHEAD, TIMELAPSE_SINK, TIMELAPSE_FONT

  Priority: CLI flags > Environment > Config file > Defaults

`)
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig() {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("                 Effective Configuration                  ")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("Input:           %s\n", c.Input)
	fmt.Printf("Output:          %s\n", c.Output)
	fmt.Printf("Days:            %d\n", c.Days)
	fmt.Printf("Workers:         %d\n", c.Workers)
	fmt.Printf("Lookahead:       %s\n", formatLookahead(c.EffectiveLookahead()))
	fmt.Printf("Progress Period: %s\n", c.ProgressPeriod)

	fmt.Println("\nRendering:")
	fmt.Printf("  Resize Ratio:  %d\n", c.ResizeRatio)
	fmt.Printf("  Filter:        %s\n", c.Filter)
	if c.FontPath != "" {
		fmt.Printf("  Font:          %s\n", c.FontPath)
	} else {
		fmt.Printf("  Font:          Go Regular (bundled)\n")
	}
	fmt.Printf("  Malformed:     %s\n", c.MalformedNames)

	fmt.Println("\nEncoder:")
	fmt.Printf("  Sink:          %s\n", c.Encoder.Sink)
	fmt.Printf("  FPS:           %d\n", c.FPS)
	fmt.Printf("  CRF:           %d\n", c.Encoder.CRF)
	fmt.Printf("  Preset:        %s\n", c.Encoder.Preset)
	if c.Encoder.Binary != "" {
		fmt.Printf("  ffmpeg:        %s\n", c.Encoder.Binary)
	}

	fmt.Println("\nBehavioral Flags:")
	fmt.Printf("  Verify:        %v\n", c.Verify)
	if c.MetricsAddr != "" {
		fmt.Printf("  Metrics:       %s\n", c.MetricsAddr)
	}
	fmt.Printf("  Verbose:       %v\n", c.Verbose)
	fmt.Println("═══════════════════════════════════════════════════════════")
}

func formatLookahead(n int) string {
	if n < 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", n)
}
