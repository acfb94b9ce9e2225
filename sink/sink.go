// Package sink holds the sequential frame consumers that produce the final video.
package sink

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"timelapse/models"
)

// Sink consumes frames strictly in sequence order.
//
// Initialize is called once, with the dimensions of the first frame, before
// the first Accept. Finalize is called once after the last frame. Abort may
// be called instead of Finalize and must tolerate any state.
type Sink interface {
	Initialize(width, height int) error
	Accept(frame image.Image) error
	Finalize() error
	Abort()
}

// Kind names a sink implementation.
type Kind string

const (
	KindAuto   Kind = "auto"   // ffmpeg when available, MJPEG otherwise
	KindFFmpeg Kind = "ffmpeg" // H.264 in MP4 via an ffmpeg subprocess
	KindMJPEG  Kind = "mjpeg"  // Motion JPEG in AVI, no external tools
)

// KindValues returns the valid sink kind names.
func KindValues() []string {
	return []string{string(KindAuto), string(KindFFmpeg), string(KindMJPEG)}
}

// IsValidKind checks if kind names a sink implementation.
func IsValidKind(kind string) bool {
	for _, valid := range KindValues() {
		if kind == valid {
			return true
		}
	}
	return false
}

// Options configures a sink.
type Options struct {
	Kind   Kind
	Binary string // ffmpeg executable, "" for PATH lookup
	FPS    int
	CRF    int
	Preset string
	Logger *zap.Logger
}

// ResolveKind turns KindAuto into a concrete kind by looking for ffmpeg.
func ResolveKind(kind Kind, binary string) Kind {
	if kind != KindAuto {
		return kind
	}
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return KindMJPEG
	}
	return KindFFmpeg
}

// New creates a sink writing to outputPath.
func New(ctx context.Context, opts Options, outputPath string) (Sink, error) {
	switch ResolveKind(opts.Kind, opts.Binary) {
	case KindFFmpeg:
		return NewFFmpegSink(ctx, opts, outputPath), nil
	case KindMJPEG:
		return NewMJPEGSink(opts, outputPath), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q, must be one of: %s",
			opts.Kind, strings.Join(KindValues(), ", "))
	}
}

// NewStream creates a sink writing the container to w. Only ffmpeg can
// stream, so MJPEG is rejected.
func NewStream(ctx context.Context, opts Options, w io.Writer) (Sink, error) {
	kind := ResolveKind(opts.Kind, opts.Binary)
	if kind != KindFFmpeg {
		return nil, fmt.Errorf("sink %q cannot write to a stream, ffmpeg is required", kind)
	}
	return NewFFmpegStreamSink(ctx, opts, w), nil
}

// geometry enforces the single-initialization and fixed-size contract shared
// by all sinks.
type geometry struct {
	width       int
	height      int
	initialized bool
	accepted    int
}

func (g *geometry) init(width, height int) error {
	if g.initialized {
		return fmt.Errorf("sink already initialized at %dx%d", g.width, g.height)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	g.width, g.height = width, height
	g.initialized = true
	return nil
}

func (g *geometry) check(frame image.Image) error {
	if !g.initialized {
		return fmt.Errorf("sink not initialized")
	}
	if frame == nil {
		return fmt.Errorf("nil frame %d", g.accepted)
	}
	b := frame.Bounds()
	if b.Dx() != g.width || b.Dy() != g.height {
		return fmt.Errorf("%w: frame %d is %dx%d, expected %dx%d",
			models.ErrGeometryMismatch, g.accepted, b.Dx(), b.Dy(), g.width, g.height)
	}
	return nil
}

// Size returns the initialized frame size.
func (g *geometry) Size() (int, int) {
	return g.width, g.height
}

// Accepted returns the number of frames accepted so far.
func (g *geometry) Accepted() int {
	return g.accepted
}
