package visreg

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/visreg/internal/report"
)

// Sink delivers run summaries to an output backend.
type Sink = report.Sink

// Summary is the aggregated result of one run.
type Summary = report.Summary

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return report.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return report.NewWebhook(url, report.WithWebhookLogger(logger))
}
