// Command visreg captures visual-regression snapshots.
//
// Usage:
//
//	visreg -config visreg.yaml            # full run from YAML config
//	visreg -harness http://host/h.html    # quick run with defaults
//	visreg -config visreg.yaml -serve     # serve artifacts instead of capturing
//
// Exit codes: 0 clean run, 1 failure, 2 run succeeded but found new or
// changed images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/visreg"
)

func main() {
	configPath := flag.String("config", "", "path to visreg.yaml config file")
	harnessURL := flag.String("harness", "", "harness URL for a quick run with default config")
	serveMode := flag.Bool("serve", false, "serve snapshot artifacts instead of capturing")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, logger, *configPath, *harnessURL, *serveMode)
	if err != nil {
		logger.Error("visreg: fatal", "error", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger, configPath, harnessURL string, serveMode bool) (int, error) {
	cfg, err := loadConfig(configPath, harnessURL)
	if err != nil {
		return 1, err
	}

	if serveMode {
		return 0, visreg.Serve(ctx, cfg, logger)
	}

	sinks := buildSinks(cfg, logger)
	runner := visreg.NewRunner(cfg, logger, sinks...)

	summary, err := runner.Run(ctx)
	if err != nil {
		var perr *visreg.PageScriptError
		if errors.As(err, &perr) {
			for _, msg := range perr.Errors {
				logger.Error("visreg: page script error", "message", msg)
			}
		}
		return 1, err
	}

	if !summary.Clean() {
		return 2, nil
	}
	return 0, nil
}

func loadConfig(configPath, harnessURL string) (*visreg.Config, error) {
	if configPath != "" {
		return visreg.LoadConfigFile(configPath)
	}
	if harnessURL != "" {
		cfg := &visreg.Config{Harness: visreg.HarnessConfig{URL: harnessURL}}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	fmt.Fprintln(os.Stderr, "usage: visreg -config <file> [-serve] | visreg -harness <url>")
	return nil, fmt.Errorf("no config or harness URL given")
}

func buildSinks(cfg *visreg.Config, logger *slog.Logger) []visreg.Sink {
	var sinks []visreg.Sink
	for _, sc := range cfg.Report.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, visreg.NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, visreg.NewWebhookSink(sc.URL, logger))
		default:
			logger.Warn("visreg: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, visreg.NewStdoutSink(nil))
	}
	return sinks
}
