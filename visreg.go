// Package visreg is a visual-regression pipeline: it drives a headless
// Chrome to render named UI examples at one or more viewport sizes,
// captures a cropped screenshot per example, and classifies each against
// the stored baseline as new, diff, or equal.
//
// Rendering diffs is decoupled from capture: the align package reconciles
// a previous/current pair row-by-row later, on demand (see internal/serve).
package visreg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/visreg/internal/browser"
	"github.com/hazyhaar/visreg/internal/capture"
	"github.com/hazyhaar/visreg/internal/config"
	"github.com/hazyhaar/visreg/internal/report"
	"github.com/hazyhaar/visreg/internal/serve"
	"github.com/hazyhaar/visreg/internal/store"
)

// Runner sequences one full run: acquire session, verify the page loaded
// cleanly, enumerate examples, capture per viewport, persist the summary.
type Runner struct {
	cfg    *Config
	sinks  *report.Router
	logger *slog.Logger
}

// NewRunner creates a Runner. Sinks receive the summary of successful runs.
func NewRunner(cfg *Config, logger *slog.Logger, sinks ...Sink) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		sinks:  report.NewRouter(logger, sinks...),
		logger: logger,
	}
}

// Run executes the pipeline. The browser session is released on every exit
// path. On failure no summary artifact is written — snapshot artifacts
// already persisted for completed examples remain as the next baseline.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL: r.cfg.Harness.BrowserURL,
		Logger:    r.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, &SessionInitError{Err: err}
	}
	defer mgr.Close()

	sess, err := browser.Open(ctx, mgr, r.cfg.Harness.URL, browser.SessionConfig{
		Stealth:       r.cfg.Harness.Stealth,
		ScriptTimeout: r.cfg.Harness.ScriptTimeout,
		Logger:        r.logger,
	})
	if err != nil {
		return nil, &SessionInitError{Err: err}
	}
	defer sess.Close()

	return r.runSession(ctx, sess)
}

// harnessSession is the slice of browser.Session the coordinator needs;
// split out so the sequencing logic is testable without Chrome.
type harnessSession interface {
	InitializationErrors(ctx context.Context) ([]string, error)
	AllExamples(ctx context.Context) ([]browser.Example, error)
	capture.Driver
}

func (r *Runner) runSession(ctx context.Context, sess harnessSession) (*Summary, error) {
	initErrs, err := sess.InitializationErrors(ctx)
	if err != nil {
		return nil, &SessionInitError{Err: err}
	}
	if len(initErrs) > 0 {
		return nil, &PageScriptError{Errors: initErrs}
	}

	examples, err := sess.AllExamples(ctx)
	if err != nil {
		return nil, &SessionInitError{Err: err}
	}
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	groups, err := groupByViewport(examples, r.cfg.Viewports)
	if err != nil {
		return nil, err
	}

	st, err := store.New(r.cfg.Snapshots.Dir, r.logger)
	if err != nil {
		return nil, err
	}

	result, err := capture.New(sess, st, r.logger).Run(ctx, groups)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		NewImages:   result.NewImages,
		DiffImages:  result.DiffImages,
	}

	if err := report.WriteSummary(st.Dir(), summary); err != nil {
		return nil, err
	}
	r.recordHistory(ctx, summary)
	if err := r.sinks.SendSummary(ctx, *summary); err != nil {
		// Sinks are observational: a dead webhook does not fail a run
		// whose artifacts are already durable.
		r.logger.Warn("visreg: sink delivery failed", "error", err)
	}

	r.logger.Info("visreg: run complete",
		"run_id", summary.RunID,
		"new", len(summary.NewImages),
		"diff", len(summary.DiffImages))
	return summary, nil
}

func (r *Runner) recordHistory(ctx context.Context, summary *Summary) {
	if r.cfg.History.DB == "" {
		return
	}
	h, err := store.OpenHistory(r.cfg.History.DB, r.logger)
	if err != nil {
		r.logger.Error("visreg: open history failed", "error", err)
		return
	}
	defer h.Close()
	outcomes := append(append([]store.Outcome{}, summary.NewImages...), summary.DiffImages...)
	h.Record(ctx, summary.RunID, summary.GeneratedAt, outcomes)
}

// groupByViewport resolves every example into the configured viewports, in
// configuration order. An example with no viewport list defaults to the
// first configured viewport; naming an unknown viewport fails the run.
func groupByViewport(examples []browser.Example, viewports []config.Viewport) ([]capture.Group, error) {
	byName := make(map[string]int, len(viewports))
	for i, vp := range viewports {
		byName[vp.Name] = i
	}

	buckets := make([][]browser.Example, len(viewports))
	for _, ex := range examples {
		names := ex.Viewports
		if len(names) == 0 {
			names = []string{viewports[0].Name}
		}
		for _, name := range names {
			i, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("visreg: example %q names unknown viewport %q", ex.Description, name)
			}
			buckets[i] = append(buckets[i], ex)
		}
	}

	var groups []capture.Group
	for i, vp := range viewports {
		if len(buckets[i]) == 0 {
			continue
		}
		groups = append(groups, capture.Group{Viewport: vp, Examples: buckets[i]})
	}
	return groups, nil
}

// Serve runs the artifact viewer until ctx is cancelled. The sqlite driver
// must be imported by the caller when history is configured.
func Serve(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(cfg.Snapshots.Dir, logger)
	if err != nil {
		return err
	}

	var history *store.History
	if cfg.History.DB != "" {
		history, err = store.OpenHistory(cfg.History.DB, logger)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	srv := &http.Server{
		Addr:    cfg.Serve.Addr,
		Handler: serve.New(st, history, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("visreg: serving artifacts", "addr", cfg.Serve.Addr, "dir", st.Dir())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
