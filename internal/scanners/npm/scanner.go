// Package npm asks the npm CLI which dependencies have newer releases.
package npm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	depExec "depcompliance/internal/exec"
	"depcompliance/internal/logging"
	"depcompliance/internal/model"
)

// SourceName identifies this source in reports.
const SourceName = "npm outdated"

// Outdated runs `npm outdated --json` in a project directory.
type Outdated struct {
	// RawDir, when set, receives a copy of the raw npm output.
	RawDir string

	logger *slog.Logger
	run    func(ctx context.Context, name string, args []string, dir string) (depExec.Result, error)
	lookup func(name string) bool
}

func NewOutdated(logger *slog.Logger) *Outdated {
	return &Outdated{
		logger: logging.OrDiscard(logger),
		run:    depExec.Run,
		lookup: depExec.Available,
	}
}

func (o *Outdated) Name() string { return SourceName }

// Outdated lists outdated dependencies of the project in dir. It needs a
// package.json and npm on PATH; without them it returns an error and the
// caller reports the stage as degraded.
func (o *Outdated) Outdated(ctx context.Context, dir string) ([]model.OutdatedEntry, error) {
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, model.ErrManifestNotFound)
	}
	if !o.lookup("npm") {
		return nil, fmt.Errorf("npm executable not found in PATH")
	}

	// npm outdated exits 1 whenever something is outdated, so only a
	// timeout or a missing binary is fatal here.
	res, err := o.run(ctx, "npm", []string{"outdated", "--json"}, dir)
	if res.TimedOut() || res.NotFound() {
		return nil, fmt.Errorf("npm outdated failed execution (code %d): %v", res.ExitCode, err)
	}

	if o.RawDir != "" {
		if err := os.MkdirAll(o.RawDir, 0755); err != nil {
			o.logger.Warn("failed to create raw output dir", "dir", o.RawDir, "error", err)
		} else {
			rawFile := filepath.Join(o.RawDir, fmt.Sprintf("npm-outdated-%s.json", sanitizePath(dir)))
			if err := os.WriteFile(rawFile, []byte(res.Stdout), 0644); err != nil {
				o.logger.Warn("failed to write raw output", "file", rawFile, "error", err)
			}
		}
	}

	if err != nil && strings.TrimSpace(res.Stdout) == "" {
		return nil, fmt.Errorf("npm outdated exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	entries, err := ParseOutdated(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	o.logger.Info("npm outdated complete", "outdated", len(entries), "duration", res.Duration)
	return entries, nil
}

func sanitizePath(path string) string {
	s := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			return '_'
		}
		return r
	}, path)
	return strings.Trim(s, "_")
}
