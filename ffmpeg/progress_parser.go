// Package ffmpeg parses the statistics ffmpeg reports while encoding.
package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"timelapse/models"
)

// maxErrorLines bounds how much ffmpeg diagnostic output is retained.
const maxErrorLines = 20

// ProgressParser parses ffmpeg stderr output for encoding metrics
type ProgressParser struct {
	frameRegex   *regexp.Regexp
	fpsRegex     *regexp.Regexp
	sizeRegex    *regexp.Regexp
	timeRegex    *regexp.Regexp
	bitrateRegex *regexp.Regexp
	speedRegex   *regexp.Regexp

	errorLines []string
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	// Keys appear either one per line (-progress) or together on one
	// stats line (-stats), so every pattern accepts a leading space.
	return &ProgressParser{
		frameRegex:   regexp.MustCompile(`(?:^|\s)frame=\s*(\d+)`),
		fpsRegex:     regexp.MustCompile(`(?:^|\s)fps=\s*([0-9.]+)`),
		sizeRegex:    regexp.MustCompile(`(?:^|\s)(?:total_)?size=\s*([0-9]+)(kB)?`),
		timeRegex:    regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*([0-9:\.]+)`),
		bitrateRegex: regexp.MustCompile(`(?:^|\s)bitrate=\s*([0-9.]+)`),
		speedRegex:   regexp.MustCompile(`(?:^|\s)speed=\s*([0-9.]+)x?`),
	}
}

// ParseLine parses a single line of ffmpeg stderr output and updates the
// progress. It reports whether any field was updated.
func (pp *ProgressParser) ParseLine(line string, progress *models.EncodingProgress) bool {
	line = strings.TrimSpace(line)
	if line == "" || line == "progress=continue" || line == "progress=end" {
		return false
	}

	updated := false

	if matches := pp.frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frame, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			progress.Frame = frame
			progress.CalculateProgress(frame)
			updated = true
		}
	}

	if matches := pp.fpsRegex.FindStringSubmatch(line); len(matches) > 1 {
		if fps, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.FPS = fps
			updated = true
		}
	}

	if matches := pp.sizeRegex.FindStringSubmatch(line); len(matches) > 1 {
		if matches[2] == "kB" {
			progress.Size = matches[1] + "kB"
		} else if n, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			// -progress reports total_size in bytes
			progress.Size = fmt.Sprintf("%dkB", n/1024)
		}
		updated = true
	}

	if matches := pp.timeRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.CurrentTime = matches[1]
		updated = true
	}

	if matches := pp.bitrateRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Bitrate = matches[1] + "kbits/s"
		updated = true
	}

	if matches := pp.speedRegex.FindStringSubmatch(line); len(matches) > 1 {
		if speed, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.Speed = speed
			updated = true
		}
	}

	return updated
}

// StreamProgress reads ffmpeg stderr until EOF, updating progress and
// invoking callback after every parsed line. Lines that carry no statistics
// are kept as diagnostics, see ErrorTail.
func (pp *ProgressParser) StreamProgress(reader io.Reader, progress *models.EncodingProgress, callback models.EncoderStatsCallback) error {
	scanner := bufio.NewScanner(reader)

	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if pp.ParseLine(line, progress) {
			progress.State = models.ProgressStateEncoding
			if callback != nil {
				callback(progress)
			}
			continue
		}

		if isDiagnostic(line) {
			pp.errorLines = append(pp.errorLines, strings.TrimSpace(line))
			if len(pp.errorLines) > maxErrorLines {
				pp.errorLines = pp.errorLines[len(pp.errorLines)-maxErrorLines:]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	return nil
}

// ErrorTail returns the retained diagnostic lines joined by newlines.
func (pp *ProgressParser) ErrorTail() string {
	return strings.Join(pp.errorLines, "\n")
}

// isDiagnostic reports whether a line is ffmpeg prose rather than a
// key=value progress entry.
func isDiagnostic(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if key, _, ok := strings.Cut(line, "="); ok && !strings.ContainsAny(key, " \t") {
		return false
	}
	return true
}
