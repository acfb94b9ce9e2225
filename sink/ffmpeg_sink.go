package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"timelapse/command"
	"timelapse/command/video"
	"timelapse/ffmpeg"
	"timelapse/models"
)

// FFmpegSink pipes raw RGBA frames into an ffmpeg subprocess that encodes
// them as H.264. The process starts lazily in Initialize.
type FFmpegSink struct {
	geometry

	ctx    context.Context
	opts   Options
	output string
	stream io.Writer
	logger *zap.Logger

	builder    *video.RawVideoBuilder
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	parser     *ffmpeg.ProgressParser
	stats      *models.EncodingProgress
	stderrDone chan struct{}
	closed     bool
}

// NewFFmpegSink creates a sink that writes an MP4 file at outputPath.
func NewFFmpegSink(ctx context.Context, opts Options, outputPath string) *FFmpegSink {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegSink{
		ctx:    ctx,
		opts:   opts,
		output: outputPath,
		logger: logger,
		parser: ffmpeg.NewProgressParser(),
		stats:  models.NewEncodingProgress(0),
	}
}

// NewFFmpegStreamSink creates a sink that writes fragmented MP4 to w.
func NewFFmpegStreamSink(ctx context.Context, opts Options, w io.Writer) *FFmpegSink {
	s := NewFFmpegSink(ctx, opts, video.PipeOutput)
	s.stream = w
	return s
}

// Initialize starts ffmpeg for frames of width x height.
func (s *FFmpegSink) Initialize(width, height int) error {
	if err := s.geometry.init(width, height); err != nil {
		return err
	}

	s.builder = video.NewRawVideoBuilder(width, height, s.output).
		SetBinary(s.opts.Binary).
		SetCRF(s.opts.CRF)
	if s.opts.FPS > 0 {
		s.builder.SetFrameRate(s.opts.FPS)
	}
	if s.opts.Preset != "" {
		s.builder.SetPreset(s.opts.Preset)
	}

	cmd, err := s.builder.Command(s.ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrSinkIO, err)
	}
	if s.stream != nil {
		cmd.Stdout = s.stream
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to get stdin pipe: %v", models.ErrSinkIO, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to get stderr pipe: %v", models.ErrSinkIO, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start ffmpeg: %v", models.ErrSinkIO, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stats.State = models.ProgressStateStarting
	s.stderrDone = make(chan struct{})

	go func() {
		defer close(s.stderrDone)
		err := s.parser.StreamProgress(stderr, s.stats, func(p *models.EncodingProgress) {
			s.logger.Debug("Encoder stats", zap.String("stats", p.FormatSummary()))
		})
		if err != nil {
			s.logger.Warn("Failed to read encoder output", zap.Error(err))
		}
	}()

	logCommand(s.logger, s.builder)
	return nil
}

// Accept writes one frame to the encoder.
func (s *FFmpegSink) Accept(frame image.Image) error {
	if err := s.geometry.check(frame); err != nil {
		return err
	}

	img, ok := frame.(*image.NRGBA)
	if !ok {
		img = imaging.Clone(frame)
	}

	if err := writeRows(s.stdin, img); err != nil {
		return fmt.Errorf("%w: writing frame %d: %v%s", models.ErrSinkIO, s.accepted, err, s.diagnostics())
	}
	s.accepted++
	return nil
}

// Finalize closes the encoder input and waits for ffmpeg to finish the file.
func (s *FFmpegSink) Finalize() error {
	if !s.initialized || s.cmd == nil {
		return fmt.Errorf("%w: no frames were written", models.ErrSinkIO)
	}
	if s.closed {
		return fmt.Errorf("%w: sink already closed", models.ErrSinkIO)
	}
	s.closed = true

	if err := s.stdin.Close(); err != nil {
		return fmt.Errorf("%w: closing encoder input: %v", models.ErrSinkIO, err)
	}
	<-s.stderrDone

	if err := s.cmd.Wait(); err != nil {
		s.stats.State = models.ProgressStateFailed
		return fmt.Errorf("%w: ffmpeg failed: %v%s", models.ErrSinkIO, err, s.diagnostics())
	}

	s.stats.State = models.ProgressStateCompleted
	s.logger.Debug("Encoder finished",
		zap.Int("frames", s.accepted),
		zap.String("stats", s.stats.FormatSummary()))
	return nil
}

// Abort stops ffmpeg and removes the partial output file.
func (s *FFmpegSink) Abort() {
	if s.closed {
		return
	}
	s.closed = true

	if s.cmd != nil {
		_ = s.stdin.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.stderrDone
		_ = s.cmd.Wait()
		s.stats.State = models.ProgressStateCancelled
	}

	if s.stream == nil && s.output != "" {
		if err := os.Remove(s.output); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove partial output", zap.String("output", s.output), zap.Error(err))
		}
	}
}

// EncodedSize returns the dimensions of the encoded stream, which may be
// padded to even sizes.
func (s *FFmpegSink) EncodedSize() (int, int) {
	if s.builder == nil {
		return s.width, s.height
	}
	return s.builder.EncodedSize()
}

// Stats returns the encoder statistics. Only safe to read after Finalize
// or Abort returned.
func (s *FFmpegSink) Stats() *models.EncodingProgress {
	return s.stats
}

func (s *FFmpegSink) diagnostics() string {
	if s.stderrDone != nil {
		select {
		case <-s.stderrDone:
			if tail := s.parser.ErrorTail(); tail != "" {
				return "\nffmpeg output:\n" + tail
			}
		default:
		}
	}
	return ""
}

func logCommand(logger *zap.Logger, cmd command.Command) {
	preview, err := cmd.DryRun()
	if err != nil {
		return
	}
	logger.Debug("Started encoder",
		zap.String("task", string(cmd.GetTaskType())),
		zap.String("input", cmd.GetInputPath()),
		zap.String("output", cmd.GetOutputPath()),
		zap.String("command", preview))
}

// writeRows writes the visible pixels of img, row by row when the buffer
// stride carries padding.
func writeRows(w io.Writer, img *image.NRGBA) error {
	b := img.Bounds()
	rowLen := b.Dx() * 4

	if img.Stride == rowLen {
		start := img.PixOffset(b.Min.X, b.Min.Y)
		_, err := w.Write(img.Pix[start : start+rowLen*b.Dy()])
		return err
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		if _, err := w.Write(img.Pix[start : start+rowLen]); err != nil {
			return err
		}
	}
	return nil
}
