// Package report builds the run-summary artifact and delivers results to
// output backends (stdout, webhook).
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/visreg/internal/store"
)

// Summary is the aggregated result of one run. It is written to
// summary.json in the snapshot directory, overwritten each run, and only
// for successful runs.
type Summary struct {
	RunID       string          `json:"runId"`
	GeneratedAt time.Time       `json:"generatedAt"`
	NewImages   []store.Outcome `json:"newImages"`
	DiffImages  []store.Outcome `json:"diffImages"`
}

// Clean reports whether the run found no new or changed images.
func (s *Summary) Clean() bool {
	return len(s.NewImages) == 0 && len(s.DiffImages) == 0
}

// SummaryPath returns the summary artifact path under dir.
func SummaryPath(dir string) string {
	return filepath.Join(dir, "summary.json")
}

// WriteSummary persists the summary atomically: temp file then rename, so
// a reader never observes a half-written artifact.
func WriteSummary(dir string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "summary-*.json")
	if err != nil {
		return fmt.Errorf("report: temp summary: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("report: write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("report: close summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), SummaryPath(dir)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("report: replace summary: %w", err)
	}
	return nil
}

// ReadSummary loads the latest summary artifact.
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(SummaryPath(dir))
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("report: parse summary: %w", err)
	}
	return &s, nil
}

// Sink delivers run summaries to an output backend.
type Sink interface {
	SendSummary(ctx context.Context, s Summary) error
	Close() error
}
