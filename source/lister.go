// Package source lists timestamped photographs and selects the capture window.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"timelapse/internal/timeutil"
	"timelapse/models"
)

// MalformedPolicy decides what happens to files whose names do not start
// with a YYYYMMDD_HHMMSS timestamp.
type MalformedPolicy string

const (
	MalformedFail MalformedPolicy = "fail" // Abort listing
	MalformedSkip MalformedPolicy = "skip" // Log a warning and ignore the file
)

// MalformedPolicyValues returns the valid policy names.
func MalformedPolicyValues() []string {
	return []string{string(MalformedFail), string(MalformedSkip)}
}

// Lister enumerates candidate inputs in one directory.
type Lister struct {
	dir      string
	policy   MalformedPolicy
	location *time.Location
	logger   *zap.Logger
}

// NewLister creates a lister for dir with the strict malformed-name policy.
func NewLister(dir string) *Lister {
	return &Lister{
		dir:      dir,
		policy:   MalformedFail,
		location: time.Local,
		logger:   zap.NewNop(),
	}
}

// SetMalformedPolicy sets how unparseable names are handled.
func (l *Lister) SetMalformedPolicy(policy MalformedPolicy) *Lister {
	l.policy = policy
	return l
}

// SetLocation sets the zone file name timestamps are interpreted in.
func (l *Lister) SetLocation(loc *time.Location) *Lister {
	if loc != nil {
		l.location = loc
	}
	return l
}

// SetLogger sets the logger used for skipped files.
func (l *Lister) SetLogger(logger *zap.Logger) *Lister {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Cutoff returns the start of a window covering the last days before now.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// List returns the photos taken strictly after cutoff, ordered by timestamp.
//
// Ties keep directory listing order. The returned descriptors carry their
// final sequence index. An empty selection is ErrNoMatchingInputs.
func (l *Lister) List(cutoff time.Time) ([]models.InputDescriptor, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory %s: %w", l.dir, err)
	}

	all := make([]models.InputDescriptor, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ts, err := timeutil.ParseFilenamePrefix(entry.Name(), l.location)
		if err != nil {
			if l.policy == MalformedSkip {
				l.logger.Warn("Skipping file without timestamp prefix",
					zap.String("file", entry.Name()),
					zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedInputName, err)
		}

		all = append(all, models.InputDescriptor{
			Path:      filepath.Join(l.dir, entry.Name()),
			Timestamp: ts,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	selected := make([]models.InputDescriptor, 0, len(all))
	for _, d := range all {
		if cutoff.Before(d.Timestamp) {
			d.Index = len(selected)
			selected = append(selected, d)
		}
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("%w in %s after %s", models.ErrNoMatchingInputs, l.dir,
			cutoff.Format(timeutil.OverlayLayout))
	}

	l.logger.Debug("Listed photos",
		zap.String("dir", l.dir),
		zap.Int("candidates", len(all)),
		zap.Int("selected", len(selected)),
		zap.Time("cutoff", cutoff))

	return selected, nil
}

// BuildWorkItems pairs each descriptor with its transform parameters.
func BuildWorkItems(descs []models.InputDescriptor, scaleRatio int) ([]models.WorkItem, error) {
	items := make([]models.WorkItem, 0, len(descs))
	for _, d := range descs {
		item, err := models.NewWorkItem(d, scaleRatio, timeutil.OverlayText(d.Index, d.Timestamp))
		if err != nil {
			return nil, fmt.Errorf("photo %s: %w", d.Path, err)
		}
		items = append(items, item)
	}
	return items, nil
}
