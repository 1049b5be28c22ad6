// Package resolve turns a project directory into a flat package list by
// trying an ordered chain of manifest strategies.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"depcompliance/internal/logging"
	"depcompliance/internal/model"
)

// Strategy names, in default priority order.
const (
	StrategyLockfile     = "lockfile"
	StrategyManifest     = "manifest"
	StrategyRequirements = "requirements"
	StrategyRecursive    = "recursive"
	StrategyEmpty        = "empty"
)

// StrategyFunc reads dir and returns the packages it could find. Returning
// an error wrapping model.ErrManifestNotFound means "nothing to read here".
type StrategyFunc func(ctx context.Context, dir string) ([]model.PackageRecord, error)

// Strategy is a named StrategyFunc.
type Strategy struct {
	Name string
	Run  StrategyFunc
}

// DefaultStrategies returns the built-in chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyLockfile, Run: ResolveLockfile},
		{Name: StrategyManifest, Run: ResolveManifest},
		{Name: StrategyRequirements, Run: ResolveRequirements},
		{Name: StrategyRecursive, Run: ResolveRecursive},
		{Name: StrategyEmpty, Run: resolveEmpty},
	}
}

// Result is the resolver output.
type Result struct {
	Packages []model.PackageRecord
	Strategy string
	Chain    []model.StrategyAttempt
}

// Resolver runs strategies in order until one yields packages.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New creates a resolver. With no strategies the default chain is used.
func New(logger *slog.Logger, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies, logger: logging.OrDiscard(logger)}
}

// Resolve never fails: a strategy error is recorded and the next strategy
// runs. If every strategy comes back empty the result carries the "empty" tag.
func (r *Resolver) Resolve(ctx context.Context, dir string) Result {
	res := Result{Strategy: StrategyEmpty, Packages: []model.PackageRecord{}}

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			res.Chain = append(res.Chain, model.StrategyAttempt{
				Name: s.Name, Status: model.StrategySkipped, Error: err.Error(),
			})
			break
		}

		pkgs, err := runStrategy(ctx, s, dir)
		attempt := model.StrategyAttempt{Name: s.Name, Packages: len(pkgs)}

		switch {
		case errors.Is(err, model.ErrManifestNotFound):
			attempt.Status = model.StrategyNotFound
			r.logger.Debug("manifest not found", "strategy", s.Name, "dir", dir)
		case err != nil:
			attempt.Status = model.StrategyFailed
			attempt.Error = err.Error()
			attempt.Packages = 0
			r.logger.Warn("strategy failed", "strategy", s.Name, "error", err)
		case len(pkgs) == 0:
			attempt.Status = model.StrategyEmpty
		default:
			attempt.Status = model.StrategySucceeded
		}
		res.Chain = append(res.Chain, attempt)

		if attempt.Status == model.StrategySucceeded {
			res.Packages = pkgs
			res.Strategy = s.Name
			r.logger.Info("dependencies resolved", "strategy", s.Name, "packages", len(pkgs))
			return res
		}
		if s.Name == StrategyEmpty {
			// The fallback counts as the producing strategy even with zero packages.
			res.Chain[len(res.Chain)-1].Status = model.StrategySucceeded
			break
		}
	}

	r.logger.Info("no dependencies resolved", "dir", dir)
	return res
}

func runStrategy(ctx context.Context, s Strategy, dir string) (pkgs []model.PackageRecord, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pkgs = nil
			err = fmt.Errorf("%w: strategy %s panicked: %v", model.ErrManifestParse, s.Name, rec)
		}
	}()
	return s.Run(ctx, dir)
}

func resolveEmpty(context.Context, string) ([]model.PackageRecord, error) {
	return nil, nil
}

// ProjectInfo returns the project name and declared license from the
// top-level package.json, falling back to the directory name and NOASSERTION.
func ProjectInfo(dir string) (string, model.RawLicense) {
	name := filepath.Base(filepath.Clean(dir))
	if abs, err := filepath.Abs(dir); err == nil {
		name = filepath.Base(abs)
	}

	pkg, err := ReadPackageJSON(filepath.Join(dir, "package.json"))
	if err != nil {
		return name, model.RawLicense{}
	}
	if pkg.Name != "" {
		name = pkg.Name
	}
	return name, pkg.DeclaredLicense()
}
