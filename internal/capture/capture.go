// Package capture iterates viewports and examples, drives the browser
// session to render and screenshot each example, and feeds captures to the
// snapshot store. Renders are strictly sequential — the session is one
// shared DOM with one viewport size — while classification and persistence
// overlap with the next example's browser round-trip.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/visreg/internal/browser"
	"github.com/hazyhaar/visreg/internal/config"
	"github.com/hazyhaar/visreg/internal/store"
	"github.com/hazyhaar/visreg/raster"
)

// Driver is the slice of the browser session the orchestrator needs.
// *browser.Session implements it.
type Driver interface {
	ResizeViewport(ctx context.Context, width, height int) error
	Render(ctx context.Context, description string) (raster.Box, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Classifier is the snapshot store surface. *store.Store implements it.
type Classifier interface {
	Classify(ctx context.Context, description, viewport string, img *raster.Image) (store.Outcome, error)
}

// Group is one viewport and the examples to render in it.
type Group struct {
	Viewport config.Viewport
	Examples []browser.Example
}

// Result aggregates the non-equal outcomes of a run in completion order.
// Equal outcomes are dropped, never recorded.
type Result struct {
	NewImages  []store.Outcome `json:"newImages"`
	DiffImages []store.Outcome `json:"diffImages"`
}

// Orchestrator owns the session exclusively for the run's duration.
type Orchestrator struct {
	driver     Driver
	classifier Classifier
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(driver Driver, classifier Classifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{driver: driver, classifier: classifier, logger: logger}
}

// Run processes groups in order. Within a group, examples render one at a
// time; each capture's classification runs on the errgroup so disk I/O
// overlaps the next render. All in-flight classifications join before the
// next group starts. Any render error aborts the run after the drain —
// artifacts already persisted for completed examples remain, by design, as
// the next run's baseline.
func (o *Orchestrator) Run(ctx context.Context, groups []Group) (*Result, error) {
	result := &Result{}
	var mu sync.Mutex

	for _, group := range groups {
		vp := group.Viewport
		o.logger.Info("capture: viewport pass",
			"viewport", vp.Name, "size", fmt.Sprintf("%dx%d", vp.Width, vp.Height),
			"examples", len(group.Examples))

		if err := o.driver.ResizeViewport(ctx, vp.Width, vp.Height); err != nil {
			return nil, fmt.Errorf("capture: resize %q: %w", vp.Name, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		var renderErr error

		for _, ex := range group.Examples {
			img, err := o.captureOne(ctx, ex.Description)
			if err != nil {
				renderErr = err
				break
			}

			description := ex.Description
			g.Go(func() error {
				out, err := o.classifier.Classify(gctx, description, vp.Name, img)
				if err != nil {
					return err
				}
				mu.Lock()
				switch out.Status {
				case store.StatusNew:
					result.NewImages = append(result.NewImages, out)
				case store.StatusDiff:
					result.DiffImages = append(result.DiffImages, out)
				}
				mu.Unlock()
				return nil
			})
		}

		// Join barrier: every classification for this viewport completes
		// before the next viewport (or the abort) proceeds.
		persistErr := g.Wait()
		if renderErr != nil {
			return nil, renderErr
		}
		if persistErr != nil {
			return nil, fmt.Errorf("capture: persist: %w", persistErr)
		}
	}

	return result, nil
}

// captureOne renders a single example and crops its screenshot. Never
// concurrent: one render at a time against the shared session.
func (o *Orchestrator) captureOne(ctx context.Context, description string) (*raster.Image, error) {
	box, err := o.driver.Render(ctx, description)
	if err != nil {
		return nil, err
	}

	png, err := o.driver.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %q: %w", description, err)
	}

	img, err := raster.Crop(png, box)
	if err != nil {
		return nil, fmt.Errorf("capture: crop %q: %w", description, err)
	}

	o.logger.Debug("capture: rendered",
		"description", description, "size", fmt.Sprintf("%dx%d", img.Width, img.Height))
	return img, nil
}
