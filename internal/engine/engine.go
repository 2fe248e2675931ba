// Package engine executes browser control commands. Two
// implementations exist: a chromedp-backed engine driving a real
// Chromium, and an in-process mock that renders synthetic pages for
// tests and headless development.
package engine

import (
	"context"

	"github.com/kibrowser/ki-browser/internal/config"
	"github.com/kibrowser/ki-browser/internal/input"
	"github.com/kibrowser/ki-browser/internal/ipc"
	"github.com/kibrowser/ki-browser/internal/tabs"
)

// Engine executes commands against a running browser.
type Engine interface {
	// Start brings the engine up. It must be called before Execute.
	Start(ctx context.Context) error

	// Shutdown closes all tabs and releases the browser.
	Shutdown(ctx context.Context) error

	// IsRunning reports whether Start has succeeded and Shutdown has
	// not yet been called.
	IsRunning() bool

	// Execute runs one command and returns its response. Failures are
	// reported in the response, not as transport errors.
	Execute(ctx context.Context, cmd ipc.Command) ipc.Response

	// Registry exposes tab state for read-side endpoints.
	Registry() *tabs.Registry
}

// InputSettings converts the input section of the application config
// into synthesizer knobs. Invalid profile names fall back to the
// defaults.
func InputSettings(cfg config.InputConfig) input.Config {
	timing := input.DefaultTimingConfig()
	if profile, err := input.ParseProfile(cfg.Profile); err == nil {
		timing.Profile = profile
	}

	path := input.DefaultPathConfig()
	if cfg.MinPathPoints > 0 {
		path.MinPoints = cfg.MinPathPoints
	}
	if cfg.MaxPathPoints >= path.MinPoints && cfg.MaxPathPoints > 0 {
		path.MaxPoints = cfg.MaxPathPoints
	}
	if cfg.JitterIntensity > 0 {
		path.JitterIntensity = cfg.JitterIntensity
	}

	return input.Config{Timing: timing, Path: path}
}
