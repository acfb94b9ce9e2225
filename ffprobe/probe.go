// Package ffprobe inspects finished timelapse videos.
package ffprobe

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Stream represents a media stream in the probed container.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	CodecLongName string `json:"codec_long_name"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	PixFmt        string `json:"pix_fmt,omitempty"`
	AvgFrameRate  string `json:"avg_frame_rate,omitempty"`
	NbFrames      string `json:"nb_frames,omitempty"`
	Duration      string `json:"duration,omitempty"`
}

// Format represents the container format information.
type Format struct {
	Filename       string `json:"filename"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

// ProbeResult holds the metadata of a probed file.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Expectation describes what a finished timelapse must look like.
type Expectation struct {
	Width  int
	Height int
	Frames int // 0 skips the frame count check
}

// GetDuration returns the duration of the media file in seconds.
func (pr *ProbeResult) GetDuration() (float64, error) {
	if pr.Format.Duration == "" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}

	duration, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", pr.Format.Duration, err)
	}

	return duration, nil
}

// GetVideoStreams returns all video streams from the media file.
func (pr *ProbeResult) GetVideoStreams() []Stream {
	var videoStreams []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == "video" {
			videoStreams = append(videoStreams, stream)
		}
	}
	return videoStreams
}

// FrameCount returns the number of frames reported for the stream, or -1
// when the container does not record it.
func (s Stream) FrameCount() int {
	n, err := strconv.Atoi(s.NbFrames)
	if err != nil {
		return -1
	}
	return n
}

// ParseProbeJSON decodes ffprobe's JSON output.
func ParseProbeJSON(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}

// Probe analyzes a media file with ffprobe and returns its streams and format.
//
// Example:
//
//	result, err := ffprobe.Probe("output.mp4")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Video streams: %d\n", len(result.GetVideoStreams()))
func Probe(path string) (*ProbeResult, error) {
	if path == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}

	output, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return ParseProbeJSON([]byte(output))
}

// Check compares a probe result with the expectation.
func (pr *ProbeResult) Check(want Expectation) error {
	streams := pr.GetVideoStreams()
	if len(streams) != 1 {
		return fmt.Errorf("expected 1 video stream, found %d", len(streams))
	}

	s := streams[0]
	if s.Width != want.Width || s.Height != want.Height {
		return fmt.Errorf("expected %dx%d video, found %dx%d", want.Width, want.Height, s.Width, s.Height)
	}

	if want.Frames > 0 {
		if n := s.FrameCount(); n >= 0 && n != want.Frames {
			return fmt.Errorf("expected %d frames, found %d", want.Frames, n)
		}
	}

	return nil
}

// VerifyOutput probes path and checks it against want.
func VerifyOutput(path string, want Expectation) (*ProbeResult, error) {
	result, err := Probe(path)
	if err != nil {
		return nil, err
	}
	if err := result.Check(want); err != nil {
		return result, fmt.Errorf("output verification failed for %s: %w", path, err)
	}
	return result, nil
}
