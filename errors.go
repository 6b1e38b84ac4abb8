package visreg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/visreg/internal/browser"
)

// ErrNoExamples means the harness page exposed zero examples: nothing to do.
var ErrNoExamples = errors.New("visreg: no examples discovered")

// SessionInitError wraps a failure to start the browser or open the harness
// page. Fatal, before any capture.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("visreg: session init: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// PageScriptError means the harness page reported JavaScript errors on
// load. Fatal, before any capture: a broken page invalidates every
// measurement.
type PageScriptError struct {
	Errors []string
}

func (e *PageScriptError) Error() string {
	return fmt.Sprintf("visreg: page reported %d script error(s): %s",
		len(e.Errors), strings.Join(e.Errors, "; "))
}

// RenderError reports an in-page failure to render a specific example.
// Fatal for the whole run.
type RenderError = browser.RenderError
