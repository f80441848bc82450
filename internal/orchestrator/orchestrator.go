// Package orchestrator drives the full pipeline (C7, spec.md §4.7): for each
// repository pair, load metadata, build graphs, mark, and analyze
// counterparts; then run a single batched patcher pass over every pair's
// patch tasks; then assemble the combined output directory; then hand off to
// the external image builder.
package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/combirepo/combirepo/internal/assembler"
	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/config"
	"github.com/combirepo/combirepo/internal/counterpart"
	"github.com/combirepo/combirepo/internal/depgraph"
	"github.com/combirepo/combirepo/internal/executil"
	"github.com/combirepo/combirepo/internal/imagebuilder"
	"github.com/combirepo/combirepo/internal/marking"
	"github.com/combirepo/combirepo/internal/metadata"
	"github.com/combirepo/combirepo/internal/patcher"
	"github.com/combirepo/combirepo/internal/rpmpkg"
)

// pairState holds one repository pair's intermediate C1-C4 artifacts.
type pairState struct {
	pair     config.RepositoryPair
	original *depgraph.Graph
	marked   *depgraph.Graph
	result   counterpart.Result
}

// Run drives the full pipeline for cfg, returning the produced image paths.
func Run(ctx context.Context, cfg config.Config, log *combilog.Loggers) ([]string, error) {
	runner := executil.NewOSRunner()

	var pairs []pairState
	var originalGraphs []*depgraph.Graph

	for _, rp := range cfg.Repositories {
		origPkgs, err := metadata.Load(rp.URLOriginal, cfg.Architecture)
		if err != nil {
			return nil, err
		}
		markedPkgs, err := metadata.Load(rp.URLMarked, cfg.Architecture)
		if err != nil {
			return nil, err
		}

		scope := allNames(origPkgs)
		oFwd, oBwd, oConflicts, err := depgraph.Build(origPkgs, cfg.Preferables, cfg.Strategy, scope)
		if err != nil {
			return nil, err
		}
		mFwd, mBwd, mConflicts, err := depgraph.Build(markedPkgs, cfg.Preferables, cfg.Strategy, allNames(markedPkgs))
		if err != nil {
			return nil, err
		}

		if err := reportConflicts(oConflicts, cfg.AbortOnCriticalConflicts, log, rp.Alias); err != nil {
			return nil, err
		}
		if err := reportConflicts(mConflicts, cfg.AbortOnCriticalConflicts, log, rp.Alias); err != nil {
			return nil, err
		}

		if err := marking.PostCheck(cfg.Directives, []*depgraph.Graph{oFwd, mFwd}); err != nil {
			return nil, err
		}

		markFwd, markBwd := oFwd, oBwd
		if cfg.Greedy {
			markFwd, markBwd = mFwd, mBwd
		}
		m, err := marking.Mark(markFwd, markBwd, cfg.Directives, cfg.Greedy, log)
		if err != nil {
			return nil, err
		}

		result, err := counterpart.Analyze(oFwd, mFwd, m, counterpart.AnalyzeConfig{
			Mirror:              cfg.Mirror,
			SkipVersionMismatch: cfg.SkipVersionMismatch,
		})
		if err != nil {
			return nil, err
		}
		logDiagnostics(log, rp.Alias, result.Diagnostics)

		pairs = append(pairs, pairState{pair: rp, original: oFwd, marked: mFwd, result: result})
		originalGraphs = append(originalGraphs, oFwd)
		_ = oBwd
		_ = mBwd
	}

	var allPatchTasks []counterpart.PatchTask
	for _, ps := range pairs {
		allPatchTasks = append(allPatchTasks, ps.result.PatchTasks...)
	}

	p, err := patcher.New(patcher.Config{
		JobsNumber: cfg.JobsNumber,
		CacheDir:   cfg.CacheDir,
		DropCache:  cfg.DropPatchingCache,
		Disabled:   cfg.DisableRPMPatching,
		ChrootBase: filepath.Join(cfg.CacheDir, "chroots"),
		Runner:     runner,
	}, log)
	if err != nil {
		return nil, err
	}

	outcome, err := p.Run(ctx, allPatchTasks)
	if err != nil {
		return nil, err
	}

	asm := assembler.New(assembler.Config{OutputDir: cfg.OutputDir, UseSymlinks: true}, log)
	for _, ps := range pairs {
		if err := asm.PlaceCopyTasks(ps.result.CopyTasks); err != nil {
			return nil, err
		}
		if err := assembler.CopyAuxiliaryMetadata(ps.pair.URLOriginal, cfg.OutputDir); err != nil {
			return nil, err
		}
	}
	if err := asm.PlaceResolvedPatches(outcome.ResolvedPaths); err != nil {
		return nil, err
	}

	if cfg.Kickstart == "" {
		return nil, nil
	}

	builder := imagebuilder.Builder{Runner: runner}
	res, err := builder.Build(ctx, imagebuilder.Request{
		KickstartPath: cfg.Kickstart,
		Architecture:  cfg.Architecture,
		OutputDir:     cfg.OutputDir,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building image")
	}
	return res.ImagePaths, nil
}

func allNames(pkgs []rpmpkg.Package) []string {
	names := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	return names
}

func reportConflicts(conflicts []depgraph.Conflict, abort bool, log *combilog.Loggers, alias string) error {
	for _, c := range conflicts {
		if c.Critical {
			if log != nil {
				log.Warnf("[%s] critical file-list conflict on %q: %v", alias, c.Symbol, c.Packages)
			}
			if abort {
				return errors.Errorf("critical file-list conflict on %q between %v", c.Symbol, c.Packages)
			}
		} else if log != nil {
			log.Debugf("[%s] file-list conflict on %q: %v", alias, c.Symbol, c.Packages)
		}
	}
	return nil
}

func logDiagnostics(log *combilog.Loggers, alias string, d counterpart.Diagnostics) {
	if log == nil {
		return
	}
	for _, name := range d.SkippedMismatches {
		log.Warnf("[%s] %q skipped from marked set due to version mismatch", alias, name)
	}
	for name, symbols := range d.UnpropagatedRequirements {
		log.Debugf("[%s] %q has marked-only requirements not present in the original: %v", alias, name, symbols)
	}
}
