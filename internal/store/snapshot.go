// Package store persists snapshot baselines on disk and classifies fresh
// captures against them, plus an optional sqlite run history.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/visreg/raster"
)

// Status classifies a capture against its baseline.
type Status string

const (
	StatusNew   Status = "new"
	StatusDiff  Status = "diff"
	StatusEqual Status = "equal"
)

// Outcome is the result of classifying one capture. Height is meaningful
// for new and diff only; for diff it is the max of old and new heights,
// used downstream for diff layout.
type Outcome struct {
	Description string `json:"description"`
	Viewport    string `json:"viewport"`
	Status      Status `json:"status"`
	Height      int    `json:"height,omitempty"`
}

// Store keeps one current and at most one previous PNG artifact per
// (description, viewport) key under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// CurrentPath returns the deterministic path of the current artifact for a key.
func (s *Store) CurrentPath(description, viewport string) string {
	return filepath.Join(s.dir, Slug(description)+"@"+Slug(viewport)+".png")
}

// PreviousPath returns the path of the superseded artifact for a key.
func (s *Store) PreviousPath(description, viewport string) string {
	return filepath.Join(s.dir, Slug(description)+"@"+Slug(viewport)+"_previous.png")
}

// Classify compares img against the stored baseline for the key and
// performs the persistence side effect. Order matters:
//
//  1. A stale previous artifact from an earlier run is deleted up front,
//     so at most one previous is ever live and it always represents the
//     artifact displaced by this run.
//  2. No current baseline: img becomes the baseline, outcome new.
//  3. Baseline equal byte-for-byte: outcome equal, no writes. This is the
//     common case and the cheapest path.
//  4. Baseline differs: current is renamed to previous, img becomes the
//     new current, outcome diff with height max(old, new).
func (s *Store) Classify(ctx context.Context, description, viewport string, img *raster.Image) (Outcome, error) {
	out := Outcome{Description: description, Viewport: viewport}
	curPath := s.CurrentPath(description, viewport)
	prevPath := s.PreviousPath(description, viewport)

	if err := os.Remove(prevPath); err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("store: remove stale previous: %w", err)
	}

	oldData, err := os.ReadFile(curPath)
	if os.IsNotExist(err) {
		if err := s.write(curPath, img); err != nil {
			return out, err
		}
		out.Status = StatusNew
		out.Height = img.Height
		s.logger.Debug("store: new baseline", "description", description, "viewport", viewport)
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("store: read current: %w", err)
	}

	old, err := raster.Decode(oldData)
	if err != nil {
		return out, fmt.Errorf("store: decode current: %w", err)
	}

	if old.Equal(img) {
		out.Status = StatusEqual
		return out, nil
	}

	if err := os.Rename(curPath, prevPath); err != nil {
		return out, fmt.Errorf("store: rotate current to previous: %w", err)
	}
	if err := s.write(curPath, img); err != nil {
		return out, err
	}
	out.Status = StatusDiff
	out.Height = max(old.Height, img.Height)
	s.logger.Debug("store: baseline changed",
		"description", description, "viewport", viewport, "height", out.Height)
	return out, nil
}

// LoadPair reads the previous/current artifact pair for a key, for
// out-of-band diff alignment. Previous may be nil if none exists.
func (s *Store) LoadPair(description, viewport string) (previous, current *raster.Image, err error) {
	curData, err := os.ReadFile(s.CurrentPath(description, viewport))
	if err != nil {
		return nil, nil, fmt.Errorf("store: read current: %w", err)
	}
	current, err = raster.Decode(curData)
	if err != nil {
		return nil, nil, err
	}

	prevData, err := os.ReadFile(s.PreviousPath(description, viewport))
	if os.IsNotExist(err) {
		return nil, current, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: read previous: %w", err)
	}
	previous, err = raster.Decode(prevData)
	if err != nil {
		return nil, nil, err
	}
	return previous, current, nil
}

func (s *Store) write(path string, img *raster.Image) error {
	data, err := raster.Encode(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: write artifact: %w", err)
	}
	return nil
}

// Slug maps a description or viewport name onto a deterministic,
// filename-safe token. Distinct inputs that collapse to the same slug would
// share a key, so the caller's descriptions should already be unique per
// viewport group.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '/', r == '\\', r == ':', r == '.':
			b.WriteByte('-')
		}
	}
	return b.String()
}
