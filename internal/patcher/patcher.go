package patcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"golang.org/x/sync/errgroup"

	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/counterpart"
	"github.com/combirepo/combirepo/internal/executil"
	"github.com/combirepo/combirepo/internal/rpmerrs"
)

// Config carries the patcher's run-level settings (spec.md §4.5, §5).
type Config struct {
	JobsNumber  int
	CacheDir    string
	DropCache   bool
	Disabled    bool // disable_rpm_patching: idle mode
	ChrootBase  string
	Runner      executil.Runner
}

// Patcher drives the RPM patcher over a batched list of patch tasks
// collected across every repository pair (spec.md §4.7: "a single C5 pass
// over all tasks").
type Patcher struct {
	cfg   Config
	cache *TaskCache
	log   *combilog.Loggers
}

// New opens the patcher's on-disk cache and returns a ready Patcher.
func New(cfg Config, log *combilog.Loggers) (*Patcher, error) {
	cache, err := NewTaskCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	if cfg.DropCache {
		if err := cache.DropAll(); err != nil {
			return nil, err
		}
	}
	return &Patcher{cfg: cfg, cache: cache, log: log}, nil
}

// Outcome maps each task's destination path to the RPM that should be
// written there.
type Outcome struct {
	ResolvedPaths map[string]string // DestinationPath -> resolved source RPM path
}

// Run executes every task in tasks, short-circuiting cache hits to a copy
// and rebuilding the rest inside cloned chroots, per spec.md §4.5.
//
// In idle mode (Config.Disabled), every task degrades to a plain copy from
// its SourcePath, bypassing caching and chroot setup entirely.
func (p *Patcher) Run(ctx context.Context, tasks []counterpart.PatchTask) (Outcome, error) {
	out := Outcome{ResolvedPaths: map[string]string{}}
	if len(tasks) == 0 {
		return out, nil
	}

	if p.cfg.Disabled {
		for _, t := range tasks {
			out.ResolvedPaths[t.DestinationPath] = t.SourcePath
		}
		return out, nil
	}

	var pending []counterpart.PatchTask
	for _, t := range tasks {
		fp := Fingerprint(t)
		if cached, ok, err := p.cache.Lookup(fp); err != nil {
			return Outcome{}, err
		} else if ok {
			out.ResolvedPaths[t.DestinationPath] = cached
			continue
		}
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return out, nil
	}

	sort.Slice(pending, func(i, j int) bool {
		return sourceSize(pending[i].SourcePath) < sourceSize(pending[j].SourcePath)
	})

	n := p.cfg.JobsNumber
	if n < 1 {
		n = 1
	}
	clones := distributeRoundRobin(pending, n)

	mounts := executil.NewMountStack(p.cfg.Runner)
	cctx, cancel := constext.Cons(ctx, context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(cctx)
	results := make([][]rebuiltRPM, len(clones))
	for i, clone := range clones {
		i, clone := i, clone
		if len(clone) == 0 {
			continue
		}
		g.Go(func() error {
			cloneDir := filepath.Join(p.cfg.ChrootBase, "clone-"+itoa(i))
			rebuilt, err := p.runClone(gctx, cloneDir, clone, mounts)
			if err != nil {
				return err
			}
			results[i] = rebuilt
			return nil
		})
	}

	runErr := g.Wait()
	if errs := mounts.ReleaseAll(context.Background()); len(errs) > 0 && p.log != nil {
		for _, e := range errs {
			p.log.Warnf("releasing mount during patcher teardown: %v", e)
		}
	}
	if runErr != nil {
		return Outcome{}, runErr
	}

	for i, clone := range clones {
		rebuilt := results[i]
		byPkg := map[string]string{}
		for _, r := range rebuilt {
			byPkg[r.PackageName] = r.Path
		}
		for _, t := range clone {
			path, ok := byPkg[t.PackageName]
			if !ok {
				return Outcome{}, &rpmerrs.PatcherError{Task: t.PackageName, Log: "no rebuilt RPM reported for task"}
			}
			stored, err := p.cache.Store(Fingerprint(t), path)
			if err != nil {
				return Outcome{}, err
			}
			out.ResolvedPaths[t.DestinationPath] = stored
		}
	}

	return out, nil
}

type rebuiltRPM struct {
	PackageName string
	Path        string
}

// runClone creates one clone directory's results directory and mount points
// (no prepared chroot is copied into cloneDir), mounts pseudo-filesystems,
// generates and runs its Makefile, and collects the rebuilt RPMs by parsing
// each task's own invocation log (spec.md §4.5, §6).
func (p *Patcher) runClone(ctx context.Context, cloneDir string, tasks []counterpart.PatchTask, mounts *executil.MountStack) ([]rebuiltRPM, error) {
	resultsDir := filepath.Join(cloneDir, "results")
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating clone results directory %q", resultsDir)
	}

	for _, pseudo := range []string{"/sys", "/proc", "/dev", "/dev/pts", "/dev/null", "/dev/mqueue", "/dev/shm"} {
		target := filepath.Join(cloneDir, pseudo)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, errors.Wrapf(err, "preparing mount point %q", target)
		}
		if err := mounts.Bind(ctx, pseudo, target); err != nil {
			return nil, errors.Wrapf(err, "mounting %q into clone", pseudo)
		}
	}

	makefileContent := GenerateMakefile(tasks, resultsDir)
	if err := os.WriteFile(filepath.Join(cloneDir, "Makefile"), []byte(makefileContent), 0o644); err != nil {
		return nil, errors.Wrap(err, "writing clone Makefile")
	}
	for name, content := range GenerateSpecPatchScripts(tasks) {
		if err := os.WriteFile(filepath.Join(cloneDir, name), []byte(content), 0o644); err != nil {
			return nil, errors.Wrapf(err, "writing spec patch script %q", name)
		}
	}

	res, err := p.cfg.Runner.Run(ctx, cloneDir, "chroot", cloneDir, "make", "-C", "/", "-f", "Makefile")
	if err != nil || res.ExitCode != 0 {
		return nil, &rpmerrs.PatcherError{Task: cloneDir, Log: string(res.Stderr) + string(res.Stdout)}
	}

	return collectResults(resultsDir, tasks)
}

// collectResults resolves each task's actual rebuilt RPM path by parsing its
// own invocation log for the header-rewrite tool's "result: " line (spec.md
// §6), rather than inferring an assignment from directory listing order —
// make does not guarantee targets run in task-list order, so a positional
// match against a shared results directory can silently swap two tasks'
// outputs.
func collectResults(resultsDir string, tasks []counterpart.PatchTask) ([]rebuiltRPM, error) {
	out := make([]rebuiltRPM, 0, len(tasks))
	for i, t := range tasks {
		path, err := parseResultLine(logPath(resultsDir, i))
		if err != nil {
			return nil, errors.Wrapf(err, "resolving rebuilt RPM for task %q", t.PackageName)
		}
		out = append(out, rebuiltRPM{PackageName: t.PackageName, Path: path})
	}
	return out, nil
}

// parseResultLine reads the header-rewrite tool's log at path and returns the
// path named by its "result: <path>" line (spec.md §6).
func parseResultLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading header-rewrite log %q", path)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "result: "); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", errors.Errorf("header-rewrite log %q has no %q line", path, "result: ")
}

func distributeRoundRobin(tasks []counterpart.PatchTask, n int) [][]counterpart.PatchTask {
	clones := make([][]counterpart.PatchTask, n)
	for i, t := range tasks {
		clones[i%n] = append(clones[i%n], t)
	}
	return clones
}

func sourceSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
