// Command combirepo assembles a combined RPM repository by selecting, for
// each package, whichever of an "original" or a sanitizer-rebuilt "marked"
// repository it should be drawn from, patching RPM headers where needed so
// the two sides stay dependency-consistent, and optionally handing the
// result to an image builder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/config"
	"github.com/combirepo/combirepo/internal/orchestrator"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("combirepo", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configFile  = fs.String("config", "", "path to a TOML config file; values it sets override the matching flags")
		originalURL = fs.String("original", "", "original repository URL (repeatable pairing with -marked via -config for multiple pairs)")
		markedURL   = fs.String("marked", "", "marked (sanitizer-rebuilt) repository URL")
		arch        = fs.String("architecture", "", "target architecture")
		kickstart   = fs.String("kickstart", "", "kickstart file path; if set, hands off to the image builder after assembly")
		outputDir   = fs.String("output-dir", "", "combined repository output directory")
		cacheDir    = fs.String("cache-dir", "", "patcher cache directory")
		jobs        = fs.Int("jobs", 1, "number of parallel patching clones")
		strategy    = fs.String("strategy", "", "dedup/have-choice extremum strategy: small, big, or empty to fail on ambiguity")
		mirror      = fs.Bool("mirror", false, "fall back to the original package when no marked counterpart exists")
		greedy      = fs.Bool("greedy", false, "mark every package in the marked repository (incompatible with selection directives)")
		skipMismatch = fs.Bool("skip-version-mismatch", false, "drop version-mismatched packages from the marked set instead of failing")
		noPatch     = fs.Bool("disable-rpm-patching", false, "bypass the RPM patcher entirely, copying marked packages verbatim")
		dropCache   = fs.Bool("drop-patching-cache", false, "clear the on-disk patch task cache before running")
		abortOnConflicts = fs.Bool("abort-on-critical-conflicts", false, "abort on critical in-scope file-list conflicts instead of warning")
		verbose     = fs.Bool("v", false, "enable verbose logging")
	)

	var forward, backward, single, excluded, service, preferables stringList
	fs.Var(&forward, "forward", "mark this package and everything it (transitively) requires")
	fs.Var(&backward, "backward", "mark this package and everything that (transitively) requires it")
	fs.Var(&single, "single", "mark this package alone")
	fs.Var(&excluded, "exclude", "remove this package from the marked set")
	fs.Var(&service, "service", "mark this package alone (service directive)")
	fs.Var(&preferables, "preferable", "prefer this package (short or full name) when a symbol has multiple providers")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	outLogger := log.New(stdout, "", 0)
	errLogger := log.New(stderr, "", 0)
	loggers := combilog.New(stdout, stderr, *verbose)

	cfg := config.Config{
		Directives: config.Directives{
			Forward:  forward,
			Backward: backward,
			Single:   single,
			Excluded: excluded,
			Service:  service,
		},
		Preferables:              preferables,
		Strategy:                 config.Strategy(*strategy),
		Architecture:              *arch,
		Kickstart:                 *kickstart,
		OutputDir:                 *outputDir,
		CacheDir:                  *cacheDir,
		JobsNumber:                *jobs,
		Mirror:                    *mirror,
		Greedy:                    *greedy,
		SkipVersionMismatch:       *skipMismatch,
		DisableRPMPatching:        *noPatch,
		DropPatchingCache:         *dropCache,
		AbortOnCriticalConflicts:  *abortOnConflicts,
		DebugMode:                 *verbose,
	}

	if *originalURL != "" || *markedURL != "" {
		cfg.Repositories = append(cfg.Repositories, config.RepositoryPair{
			Alias:       "default",
			URLOriginal: *originalURL,
			URLMarked:   *markedURL,
		})
	}

	if *configFile != "" {
		merged, err := config.LoadFile(*configFile, cfg)
		if err != nil {
			errLogger.Println(err)
			return 1
		}
		cfg = merged
	}

	if len(cfg.Repositories) == 0 {
		errLogger.Println("combirepo: no repository pairs configured; pass -original/-marked or -config")
		return 1
	}

	images, err := orchestrator.Run(context.Background(), cfg, loggers)
	if err != nil {
		errLogger.Println(err)
		return 1
	}

	for _, img := range images {
		outLogger.Println(img)
	}
	if len(images) == 0 {
		outLogger.Println(fmt.Sprintf("combined repository assembled in %s", cfg.OutputDir))
	}
	return 0
}
