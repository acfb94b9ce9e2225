package sink

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"github.com/icza/mjpeg"
	"go.uber.org/zap"

	"timelapse/models"
)

// MJPEGSink writes frames as Motion JPEG into an AVI file. It needs no
// external tools and serves as the fallback when ffmpeg is missing.
type MJPEGSink struct {
	geometry

	opts    Options
	output  string
	logger  *zap.Logger
	quality int

	writer mjpeg.AviWriter
	buf    bytes.Buffer
	closed bool
}

// NewMJPEGSink creates a sink writing an AVI file at outputPath.
func NewMJPEGSink(opts Options, outputPath string) *MJPEGSink {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MJPEGSink{
		opts:    opts,
		output:  outputPath,
		logger:  logger,
		quality: JPEGQuality(opts.CRF),
	}
}

// JPEGQuality maps an x264 CRF onto a JPEG quality so both sinks honor the
// same knob. CRF 0 maps to 100, every CRF step costs two quality points.
func JPEGQuality(crf int) int {
	q := 100 - 2*crf
	if q < 10 {
		return 10
	}
	if q > 100 {
		return 100
	}
	return q
}

// Initialize creates the AVI file for frames of width x height.
func (s *MJPEGSink) Initialize(width, height int) error {
	if err := s.geometry.init(width, height); err != nil {
		return err
	}

	fps := s.opts.FPS
	if fps <= 0 {
		fps = 10
	}

	w, err := mjpeg.New(s.output, int32(width), int32(height), int32(fps))
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", models.ErrSinkIO, s.output, err)
	}
	s.writer = w

	s.logger.Debug("Started MJPEG writer",
		zap.String("output", s.output),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("fps", fps),
		zap.Int("quality", s.quality))
	return nil
}

// Accept encodes one frame as JPEG and appends it to the file.
func (s *MJPEGSink) Accept(frame image.Image) error {
	if err := s.geometry.check(frame); err != nil {
		return err
	}

	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, frame, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("%w: encoding frame %d: %v", models.ErrSinkIO, s.accepted, err)
	}
	if err := s.writer.AddFrame(s.buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing frame %d: %v", models.ErrSinkIO, s.accepted, err)
	}
	s.accepted++
	return nil
}

// Finalize writes the AVI index and closes the file.
func (s *MJPEGSink) Finalize() error {
	if s.writer == nil {
		return fmt.Errorf("%w: no frames were written", models.ErrSinkIO)
	}
	if s.closed {
		return fmt.Errorf("%w: sink already closed", models.ErrSinkIO)
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", models.ErrSinkIO, s.output, err)
	}
	s.logger.Debug("MJPEG writer finished", zap.Int("frames", s.accepted))
	return nil
}

// Abort closes the writer and removes the partial file.
func (s *MJPEGSink) Abort() {
	if s.closed {
		return
	}
	s.closed = true

	if s.writer != nil {
		_ = s.writer.Close()
	}
	if err := os.Remove(s.output); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove partial output", zap.String("output", s.output), zap.Error(err))
	}
}
