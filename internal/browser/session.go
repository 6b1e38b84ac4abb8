package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/visreg/raster"
)

// Example is one named UI example enumerated from the harness page.
type Example struct {
	Description string
	// Viewports lists viewport names the example opts into. Empty means
	// the first configured viewport.
	Viewports []string
}

// RenderError reports an in-page failure to render a specific example. It
// is fatal for the whole run: a JavaScript error in the page under test
// invalidates all subsequent measurements for the session.
type RenderError struct {
	Description string
	Reason      string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %s", e.Description, e.Reason)
}

// SessionConfig configures an open harness session.
type SessionConfig struct {
	// Stealth applies bot-detection evasion when creating the page.
	Stealth bool
	// ScriptTimeout caps any single in-page script execution. Exceeding it
	// is a hard failure, not a retry.
	ScriptTimeout time.Duration
	Logger        *slog.Logger
}

// Session is an open harness page. It is a single shared mutable resource:
// one DOM, one viewport size, one active render at a time. Callers must
// not issue concurrent renders against it.
type Session struct {
	page          *rod.Page
	url           string
	scriptTimeout time.Duration
	logger        *slog.Logger
}

// Open creates a page, navigates to the harness URL, and waits for load.
func Open(ctx context.Context, mgr *Manager, url string, cfg SessionConfig) (*Session, error) {
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	return &Session{
		page:          page,
		url:           url,
		scriptTimeout: cfg.ScriptTimeout,
		logger:        cfg.Logger,
	}, nil
}

// InitializationErrors returns the JavaScript errors the harness recorded
// while loading the page under test. Any entry fails the run before capture.
func (s *Session) InitializationErrors(ctx context.Context) ([]string, error) {
	res, err := s.eval(ctx, `() => {
		if (!window.__visreg) throw new Error("window.__visreg harness not found");
		return window.__visreg.getErrors();
	}`)
	if err != nil {
		return nil, fmt.Errorf("browser: initialization errors: %w", err)
	}

	var errs []string
	for _, item := range res.Value.Arr() {
		errs = append(errs, item.Str())
	}
	return errs, nil
}

// AllExamples enumerates the examples the harness page exposes.
func (s *Session) AllExamples(ctx context.Context) ([]Example, error) {
	res, err := s.eval(ctx, `() => window.__visreg.getAllExamples()`)
	if err != nil {
		return nil, fmt.Errorf("browser: enumerate examples: %w", err)
	}

	var examples []Example
	for _, item := range res.Value.Arr() {
		ex := Example{Description: item.Get("description").Str()}
		vps := item.Get("options").Get("viewports")
		if !vps.Nil() {
			for _, vp := range vps.Arr() {
				ex.Viewports = append(ex.Viewports, vp.Str())
			}
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// ResizeViewport sets the page viewport via CDP device-metrics override.
func (s *Session) ResizeViewport(ctx context.Context, width, height int) error {
	err := s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("browser: resize viewport %dx%d: %w", width, height, err)
	}
	return nil
}

// Render invokes the in-page render for one example and returns its crop
// box. An error string reported by the harness becomes a *RenderError.
func (s *Session) Render(ctx context.Context, description string) (raster.Box, error) {
	res, err := s.eval(ctx, `desc => window.__visreg.renderExample(desc)`, description)
	if err != nil {
		return raster.Box{}, &RenderError{Description: description, Reason: err.Error()}
	}

	if msg := res.Value.Get("error").Str(); msg != "" {
		return raster.Box{}, &RenderError{Description: description, Reason: msg}
	}

	box := raster.Box{
		Width:  res.Value.Get("width").Int(),
		Height: res.Value.Get("height").Int(),
		Top:    res.Value.Get("top").Int(),
		Left:   res.Value.Get("left").Int(),
	}
	if box.Width <= 0 || box.Height <= 0 {
		return raster.Box{}, &RenderError{
			Description: description,
			Reason:      fmt.Sprintf("harness returned empty box %+v", box),
		}
	}
	return box, nil
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close closes the harness page. The browser itself is owned by Manager.
func (s *Session) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

// eval runs an in-page script under the session script timeout.
func (s *Session) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	evalCtx, cancel := context.WithTimeout(ctx, s.scriptTimeout)
	defer cancel()
	return s.page.Context(evalCtx).Eval(js, args...)
}
