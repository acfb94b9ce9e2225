// Package timeutil provides the time layouts shared by the lister, the
// overlay renderer and the CLI summary.
package timeutil

import (
	"fmt"
	"time"
)

// Layouts used for photo file names and for the on-frame overlay.
const (
	FilenameLayout = "20060102_150405"
	OverlayLayout  = "2006/01/02 15:04:05"
)

// PrefixLen is the number of leading file name characters holding the timestamp.
const PrefixLen = len(FilenameLayout)

// ParseFilenamePrefix extracts the capture time from a photo file name.
//
// Only the first PrefixLen characters are considered, so
// "20240101_120000_cam1.jpg" and "20240101_120000.jpg" parse identically.
// The time is interpreted in loc (time.Local when nil).
func ParseFilenamePrefix(name string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(name) < PrefixLen {
		return time.Time{}, fmt.Errorf("name %q is shorter than the %d character timestamp prefix", name, PrefixLen)
	}
	ts, err := time.ParseInLocation(FilenameLayout, name[:PrefixLen], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("name %q: %w", name, err)
	}
	return ts, nil
}

// OverlayText builds the caption burned into each frame.
//
// Example:
//
//	OverlayText(7, t) // "007 2024/01/02 15:04:05"
func OverlayText(index int, ts time.Time) string {
	return fmt.Sprintf("%03d %s", index, ts.Format(OverlayLayout))
}

// FormatSeconds converts seconds to HH:MM:SS.MS format.
//
// Example:
//
//	FormatSeconds(0)      // "00:00:00.00"
//	FormatSeconds(90)     // "00:01:30.00"
//	FormatSeconds(30.53)  // "00:00:30.53"
func FormatSeconds(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, secs)
}
