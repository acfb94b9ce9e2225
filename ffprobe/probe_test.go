package ffprobe

import (
	"os/exec"
	"strings"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_long_name": "H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10",
      "codec_type": "video",
      "width": 750,
      "height": 1000,
      "pix_fmt": "yuv420p",
      "avg_frame_rate": "10/1",
      "duration": "1.000000",
      "nb_frames": "10"
    }
  ],
  "format": {
    "filename": "output.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "format_long_name": "QuickTime / MOV",
    "duration": "1.000000",
    "size": "48213",
    "bit_rate": "385704"
  }
}`

func TestParseProbeJSON(t *testing.T) {
	result, err := ParseProbeJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}

	streams := result.GetVideoStreams()
	if len(streams) != 1 {
		t.Fatalf("Expected 1 video stream, got %d", len(streams))
	}
	if streams[0].Width != 750 || streams[0].Height != 1000 {
		t.Errorf("Expected 750x1000, got %dx%d", streams[0].Width, streams[0].Height)
	}
	if streams[0].FrameCount() != 10 {
		t.Errorf("Expected 10 frames, got %d", streams[0].FrameCount())
	}

	duration, err := result.GetDuration()
	if err != nil {
		t.Fatalf("GetDuration failed: %v", err)
	}
	if duration != 1.0 {
		t.Errorf("Expected duration 1.0, got %f", duration)
	}
}

func TestParseProbeJSON_Invalid(t *testing.T) {
	if _, err := ParseProbeJSON([]byte("{not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestGetDuration_Errors(t *testing.T) {
	tests := []struct {
		name     string
		duration string
	}{
		{"missing", ""},
		{"garbage", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &ProbeResult{Format: Format{Duration: tt.duration}}
			if _, err := pr.GetDuration(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestStream_FrameCount(t *testing.T) {
	if n := (Stream{NbFrames: "42"}).FrameCount(); n != 42 {
		t.Errorf("Expected 42, got %d", n)
	}
	if n := (Stream{}).FrameCount(); n != -1 {
		t.Errorf("Expected -1 for unknown count, got %d", n)
	}
}

func TestProbeResult_Check(t *testing.T) {
	result, err := ParseProbeJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		want          Expectation
		errorContains string
	}{
		{"matches", Expectation{Width: 750, Height: 1000, Frames: 10}, ""},
		{"frame count skipped", Expectation{Width: 750, Height: 1000}, ""},
		{"wrong size", Expectation{Width: 1000, Height: 750}, "expected 1000x750 video"},
		{"wrong frames", Expectation{Width: 750, Height: 1000, Frames: 11}, "expected 11 frames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := result.Check(tt.want)
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errorContains, err)
			}
		})
	}

	empty := &ProbeResult{}
	if err := empty.Check(Expectation{Width: 1, Height: 1}); err == nil {
		t.Error("Expected error when no video stream is present")
	}
}

func TestProbe_EmptyPath(t *testing.T) {
	_, err := Probe("")
	if err == nil {
		t.Fatal("Expected error for empty path")
	}
	if !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("Expected 'cannot be empty' error, got: %v", err)
	}
}

func TestProbe_NonExistentFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	_, err := Probe("/nonexistent/file.mp4")
	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "ffprobe failed") {
		t.Errorf("Expected ffprobe error, got: %v", err)
	}
}
