// Package command provides the Command interface implemented by the ffmpeg
// invocation builders.
//
// Builders only assemble arguments; starting and feeding the process is left
// to the caller, since the encoder consumes frames over stdin.
package command

// TaskType identifies what a built command does.
type TaskType string

const (
	TaskTypeEncode TaskType = "encode" // Encode raw frames into a container
)

// DefaultBinary is the ffmpeg executable looked up in PATH.
const DefaultBinary = "ffmpeg"

// Command represents an ffmpeg command that can be built or previewed.
//
// Example usage:
//
//	cmd := video.NewRawVideoBuilder(1080, 1920, "out.mp4").
//		SetFrameRate(10).
//		SetCRF(23)
//
//	preview, _ := cmd.DryRun()
//	args := cmd.BuildArgs()
type Command interface {
	// BuildArgs constructs the ffmpeg arguments, without the binary name.
	BuildArgs() []string

	// DryRun returns the full command line as a string without executing it.
	// Returns an error if the command cannot be built from its parameters.
	DryRun() (string, error)

	// GetTaskType returns the kind of task, used for logging.
	GetTaskType() TaskType

	// GetInputPath returns the primary input ("pipe:0" for stdin).
	GetInputPath() string

	// GetOutputPath returns the output target ("pipe:1" for stdout).
	GetOutputPath() string
}
