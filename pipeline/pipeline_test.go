package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"timelapse/metrics"
	"timelapse/models"
	"timelapse/sink"
	"timelapse/source"
)

var now = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

// shade returns the fill color of photo i.
func shade(i int) color.NRGBA {
	return color.NRGBA{R: uint8(30 + 40*i), G: 90, B: 160, A: 255}
}

// writePhotos saves n solid 40x20 PNGs taken one hour apart, ending one
// hour before now, plus one photo outside a one-day window.
func writePhotos(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()

	// Saved in reverse so listing order differs from capture order.
	for i := n - 1; i >= 0; i-- {
		ts := now.Add(-time.Duration(n-i) * time.Hour)
		savePhoto(t, dir, ts.Format("20060102_150405")+".png", shade(i))
	}
	savePhoto(t, dir, now.AddDate(0, 0, -2).Format("20060102_150405")+"_old.png", color.NRGBA{A: 255})

	if err := os.Mkdir(filepath.Join(dir, "thumbs"), 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	return dir
}

func savePhoto(t *testing.T, dir, name string, c color.NRGBA) {
	t.Helper()
	if err := imaging.Save(imaging.New(40, 20, c), filepath.Join(dir, name)); err != nil {
		t.Fatalf("Failed to save %s: %v", name, err)
	}
}

type recordingSink struct {
	mu        sync.Mutex
	width     int
	height    int
	inits     int
	frames    []image.Image
	finalized int
	aborted   int
}

func (s *recordingSink) Initialize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	s.width, s.height = width, height
	return nil
}

func (s *recordingSink) Accept(frame image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) Finalize() error {
	s.finalized++
	return nil
}

func (s *recordingSink) Abort() {
	s.aborted++
}

func baseOptions(dir string) Options {
	return Options{
		InputDir:       dir,
		Days:           1,
		Now:            now,
		Location:       time.UTC,
		FPS:            10,
		ScaleRatio:     2,
		CRF:            23,
		PoolSize:       3,
		ProgressPeriod: 0,
		PollInterval:   10 * time.Millisecond,
	}
}

func closeTo(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -2 && d <= 2
}

func TestRun_OrderedFrames(t *testing.T) {
	const n = 5
	dir := writePhotos(t, n)
	out := &recordingSink{}

	opts := baseOptions(dir)
	opts.Sink = out
	opts.Metrics = metrics.NewCollector()

	summary, err := Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if out.inits != 1 {
		t.Errorf("Expected one Initialize, got %d", out.inits)
	}
	// 40x20 halved to 20x10, then rotated to 10x20.
	if out.width != 10 || out.height != 20 {
		t.Errorf("Expected 10x20 frames, got %dx%d", out.width, out.height)
	}
	if out.finalized != 1 {
		t.Errorf("Expected Finalize once, got %d", out.finalized)
	}
	if len(out.frames) != n {
		t.Fatalf("Expected %d frames, got %d", n, len(out.frames))
	}

	for i, frame := range out.frames {
		got := color.NRGBAModel.Convert(frame.At(5, 10)).(color.NRGBA)
		want := shade(i)
		if !closeTo(got.R, want.R) || !closeTo(got.G, want.G) || !closeTo(got.B, want.B) {
			t.Errorf("Frame %d: expected color %v, got %v", i, want, got)
		}
	}

	if summary.Frames != n {
		t.Errorf("Expected summary frames %d, got %d", n, summary.Frames)
	}
	if summary.RunID == "" {
		t.Error("Expected a run id")
	}
}

func TestRun_EmptyWindow(t *testing.T) {
	dir := writePhotos(t, 3)
	out := &recordingSink{}

	opts := baseOptions(dir)
	opts.Now = now.AddDate(1, 0, 0)
	opts.Sink = out

	err := Run(context.Background(), opts)
	if !errors.Is(err, models.ErrNoMatchingInputs) {
		t.Fatalf("Expected ErrNoMatchingInputs, got %v", err)
	}
	if out.inits != 0 || out.finalized != 0 || len(out.frames) != 0 {
		t.Errorf("Expected sink to be untouched, got inits=%d finalized=%d frames=%d",
			out.inits, out.finalized, len(out.frames))
	}
}

func TestRun_EmptyWindowCreatesNoFile(t *testing.T) {
	dir := writePhotos(t, 2)
	output := filepath.Join(t.TempDir(), "out.avi")

	opts := baseOptions(dir)
	opts.Now = now.AddDate(1, 0, 0)
	opts.SinkKind = sink.KindMJPEG
	opts.Output = output

	if err := Run(context.Background(), opts); !errors.Is(err, models.ErrNoMatchingInputs) {
		t.Fatalf("Expected ErrNoMatchingInputs, got %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat returned %v", err)
	}
}

func TestRun_MalformedNames(t *testing.T) {
	tests := []struct {
		name      string
		policy    source.MalformedPolicy
		expectErr error
		frames    int
	}{
		{"fail", source.MalformedFail, models.ErrMalformedInputName, 0},
		{"skip", source.MalformedSkip, nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePhotos(t, 3)
			savePhoto(t, dir, "IMG_0001.png", color.NRGBA{A: 255})
			out := &recordingSink{}

			opts := baseOptions(dir)
			opts.MalformedPolicy = tt.policy
			opts.Sink = out

			err := Run(context.Background(), opts)
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("Expected %v, got %v", tt.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(out.frames) != tt.frames {
				t.Errorf("Expected %d frames, got %d", tt.frames, len(out.frames))
			}
		})
	}
}

func TestRun_CorruptPhotoFails(t *testing.T) {
	dir := writePhotos(t, 4)
	bad := now.Add(-30*time.Minute).Format("20060102_150405") + ".jpg"
	if err := os.WriteFile(filepath.Join(dir, bad), []byte("not an image"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt photo: %v", err)
	}
	out := &recordingSink{}

	opts := baseOptions(dir)
	opts.Sink = out

	err := Run(context.Background(), opts)
	if !errors.Is(err, models.ErrWorkerFailure) {
		t.Fatalf("Expected ErrWorkerFailure, got %v", err)
	}
	if out.aborted != 1 {
		t.Errorf("Expected one Abort, got %d", out.aborted)
	}
	if out.finalized != 0 {
		t.Errorf("Expected no Finalize, got %d", out.finalized)
	}
}

func TestRun_Progress(t *testing.T) {
	dir := writePhotos(t, 6)

	var values []float64
	opts := baseOptions(dir)
	opts.Sink = &recordingSink{}
	opts.Progress = func(p float64) {
		values = append(values, p)
	}

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(values) == 0 {
		t.Fatal("Expected progress callbacks")
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Errorf("Expected non-decreasing progress, got %v", values)
			break
		}
	}
	if last := values[len(values)-1]; last > 100 {
		t.Errorf("Expected progress at most 100, got %f", last)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := writePhotos(t, 3)
	out := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := baseOptions(dir)
	opts.Sink = out

	err := Run(ctx, opts)
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if out.finalized != 0 {
		t.Errorf("Expected no Finalize, got %d", out.finalized)
	}
}

func TestRun_MJPEGFile(t *testing.T) {
	dir := writePhotos(t, 4)
	output := filepath.Join(t.TempDir(), "day.avi")

	opts := baseOptions(dir)
	opts.SinkKind = sink.KindMJPEG
	opts.Output = output
	opts.Verify = true

	summary, err := Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if summary.Sink != sink.KindMJPEG {
		t.Errorf("Expected mjpeg sink, got %s", summary.Sink)
	}
	if summary.Width != 10 || summary.Height != 20 {
		t.Errorf("Expected 10x20, got %dx%d", summary.Width, summary.Height)
	}
	if summary.Probe != nil {
		t.Error("Expected MJPEG output to skip verification")
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Errorf("Expected AVI output, got prefix %q", data[:min(4, len(data))])
	}
}

func TestRun_MJPEGStreamRejected(t *testing.T) {
	dir := writePhotos(t, 2)

	opts := baseOptions(dir)
	opts.SinkKind = sink.KindMJPEG
	opts.Writer = &bytes.Buffer{}

	if err := Run(context.Background(), opts); err == nil {
		t.Fatal("Expected error for streaming MJPEG")
	}
}

func TestWithDefaults(t *testing.T) {
	opts := withDefaults(Options{PoolSize: 3})

	if opts.Lookahead != 6 {
		t.Errorf("Expected lookahead 6, got %d", opts.Lookahead)
	}
	if opts.Filter != "hamming" {
		t.Errorf("Expected hamming filter, got %s", opts.Filter)
	}
	if opts.MalformedPolicy != source.MalformedFail {
		t.Errorf("Expected fail policy, got %s", opts.MalformedPolicy)
	}
	if opts.SinkKind != sink.KindAuto {
		t.Errorf("Expected auto sink, got %s", opts.SinkKind)
	}
	if opts.Now.IsZero() {
		t.Error("Expected Now to be set")
	}

	opts = withDefaults(Options{Lookahead: -1})
	if opts.Lookahead != -1 {
		t.Errorf("Expected unbounded lookahead to be kept, got %d", opts.Lookahead)
	}
	if opts.PoolSize < 1 {
		t.Errorf("Expected at least one worker, got %d", opts.PoolSize)
	}
}

func ExampleRun() {
	err := Run(context.Background(), Options{
		InputDir:   "/srv/camera",
		Output:     "day.mp4",
		Days:       1,
		FPS:        10,
		ScaleRatio: 4,
		CRF:        23,
		Progress: func(p float64) {
			fmt.Printf("progress %.0f%%\n", p)
		},
		ProgressPeriod: time.Second,
	})
	if err != nil {
		fmt.Println(err)
	}
}
