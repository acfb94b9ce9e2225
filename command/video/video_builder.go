package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"timelapse/command"
)

// Stdin and stdout targets understood by ffmpeg.
const (
	PipeInput  = "pipe:0"
	PipeOutput = "pipe:1"
)

// RawVideoBuilder builds an ffmpeg invocation that reads raw RGBA frames on
// stdin and encodes them into a single-stream video container.
type RawVideoBuilder struct {
	binary     string
	outputPath string

	// Input frame geometry
	width       int
	height      int
	inputFormat string

	// Encoding settings
	codec       string
	crf         int
	preset      string
	frameRate   int
	pixelFormat string

	// Container
	containerFormat string
	movFlags        string

	extraArgs []string
}

// NewRawVideoBuilder creates a builder for frames of width x height written
// to outputPath. Use PipeOutput to stream the container to stdout.
func NewRawVideoBuilder(width, height int, outputPath string) *RawVideoBuilder {
	b := &RawVideoBuilder{
		binary:      command.DefaultBinary,
		outputPath:  outputPath,
		width:       width,
		height:      height,
		inputFormat: "rgba",
		codec:       "libx264",
		crf:         23,
		preset:      "medium",
		frameRate:   10,
		pixelFormat: "yuv420p",
		movFlags:    "+faststart",
		extraArgs:   []string{},
	}
	if outputPath == PipeOutput {
		// A seekable moov atom is impossible on a pipe.
		b.containerFormat = "mp4"
		b.movFlags = "frag_keyframe+empty_moov"
	}
	return b
}

// SetBinary sets the ffmpeg executable path
func (b *RawVideoBuilder) SetBinary(binary string) *RawVideoBuilder {
	if binary != "" {
		b.binary = binary
	}
	return b
}

// SetInputPixelFormat sets the layout of the raw frames on stdin (e.g. "rgba", "rgb24")
func (b *RawVideoBuilder) SetInputPixelFormat(pixfmt string) *RawVideoBuilder {
	b.inputFormat = pixfmt
	return b
}

// SetCodec sets the video codec (e.g. "libx264", "libx265")
func (b *RawVideoBuilder) SetCodec(codec string) *RawVideoBuilder {
	b.codec = codec
	return b
}

// SetCRF sets the Constant Rate Factor (0-51, lower is better quality)
func (b *RawVideoBuilder) SetCRF(crf int) *RawVideoBuilder {
	b.crf = crf
	return b
}

// SetPreset sets the encoding preset (ultrafast ... veryslow)
func (b *RawVideoBuilder) SetPreset(preset string) *RawVideoBuilder {
	b.preset = preset
	return b
}

// SetFrameRate sets the input and output frame rate
func (b *RawVideoBuilder) SetFrameRate(fps int) *RawVideoBuilder {
	b.frameRate = fps
	return b
}

// SetPixelFormat sets the encoded pixel format (e.g. "yuv420p")
func (b *RawVideoBuilder) SetPixelFormat(pixfmt string) *RawVideoBuilder {
	b.pixelFormat = pixfmt
	return b
}

// SetContainerFormat forces the muxer (e.g. "mp4", "matroska")
func (b *RawVideoBuilder) SetContainerFormat(format string) *RawVideoBuilder {
	b.containerFormat = format
	return b
}

// AddExtraArgs adds custom ffmpeg output arguments
func (b *RawVideoBuilder) AddExtraArgs(args ...string) *RawVideoBuilder {
	b.extraArgs = append(b.extraArgs, args...)
	return b
}

// Validate checks that the builder can produce a runnable command.
func (b *RawVideoBuilder) Validate() error {
	var errors []string

	if b.width <= 0 || b.height <= 0 {
		errors = append(errors, fmt.Sprintf("frame size must be positive, got %dx%d", b.width, b.height))
	}
	if b.frameRate <= 0 {
		errors = append(errors, "frame rate must be positive")
	}
	if b.crf < 0 || b.crf > 51 {
		errors = append(errors, "CRF must be between 0 and 51")
	}
	if strings.TrimSpace(b.outputPath) == "" {
		errors = append(errors, "output path is required")
	}
	if b.codec == "" {
		errors = append(errors, "codec is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}
	return nil
}

// BuildArgs constructs the ffmpeg arguments for raw frame encoding
func (b *RawVideoBuilder) BuildArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:2",
	}

	// Raw frames on stdin
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", b.inputFormat,
		"-s", fmt.Sprintf("%dx%d", b.width, b.height),
		"-r", fmt.Sprintf("%d", b.frameRate),
		"-i", PipeInput,
	)

	if filter := b.buildFilterChain(); filter != "" {
		args = append(args, "-vf", filter)
	}

	args = append(args, "-c:v", b.codec)
	if b.preset != "" {
		args = append(args, "-preset", b.preset)
	}
	args = append(args, "-crf", fmt.Sprintf("%d", b.crf))
	if b.pixelFormat != "" {
		args = append(args, "-pix_fmt", b.pixelFormat)
	}

	if b.movFlags != "" {
		args = append(args, "-movflags", b.movFlags)
	}
	if b.containerFormat != "" {
		args = append(args, "-f", b.containerFormat)
	}

	args = append(args, b.extraArgs...)

	// Overwrite output
	args = append(args, "-y", b.outputPath)

	return args
}

// buildFilterChain pads odd frame sizes up to even ones, which 4:2:0
// chroma subsampling requires. The padding is black and never crops.
func (b *RawVideoBuilder) buildFilterChain() string {
	if w, h := EncodedSize(b.width, b.height, b.pixelFormat); w == b.width && h == b.height {
		return ""
	}
	return "pad=ceil(iw/2)*2:ceil(ih/2)*2"
}

// EncodedSize returns the stream dimensions ffmpeg will produce for frames
// of width x height encoded as pixfmt.
func EncodedSize(width, height int, pixfmt string) (int, int) {
	if !strings.HasSuffix(pixfmt, "420p") {
		return width, height
	}
	return width + width%2, height + height%2
}

// EncodedSize returns the stream dimensions of the built command.
func (b *RawVideoBuilder) EncodedSize() (int, int) {
	return EncodedSize(b.width, b.height, b.pixelFormat)
}

// Command returns an exec.Cmd for the built arguments, bound to ctx.
func (b *RawVideoBuilder) Command(ctx context.Context) (*exec.Cmd, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder command: %w", err)
	}
	return exec.CommandContext(ctx, b.binary, b.BuildArgs()...), nil
}

// DryRun returns the command that would be executed without running it
func (b *RawVideoBuilder) DryRun() (string, error) {
	if err := b.Validate(); err != nil {
		return "", fmt.Errorf("invalid encoder command: %w", err)
	}
	return b.binary + " " + strings.Join(b.BuildArgs(), " "), nil
}

// FrameSize returns the configured input frame size in bytes.
func (b *RawVideoBuilder) FrameSize() int {
	bpp := 4
	if b.inputFormat == "rgb24" || b.inputFormat == "bgr24" {
		bpp = 3
	}
	return b.width * b.height * bpp
}

// GetTaskType returns the task type identifier
func (b *RawVideoBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeEncode
}

// GetInputPath returns the input target
func (b *RawVideoBuilder) GetInputPath() string {
	return PipeInput
}

// GetOutputPath returns the output file path
func (b *RawVideoBuilder) GetOutputPath() string {
	return b.outputPath
}

var _ command.Command = (*RawVideoBuilder)(nil)
