// Package config defines the immutable run-configuration value threaded
// through every component constructor, replacing the global mutable flags
// (debug_mode, jobs count, cache enable) the source tool carries (Design
// Notes, spec.md §9).
package config

import (
	"io/ioutil"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Strategy selects the have-choice/vertex-dedup extremum rule (spec.md
// §4.2).
type Strategy string

// Strategy values. StrategyUnset means "fail on ambiguity".
const (
	StrategyUnset Strategy = ""
	StrategySmall Strategy = "small"
	StrategyBig   Strategy = "big"
)

// RepositoryPair is one {alias, kickstart_name, url_original, url_marked}
// input triple (spec.md §3).
type RepositoryPair struct {
	Alias         string `toml:"alias"`
	KickstartName string `toml:"kickstart_name"`
	URLOriginal   string `toml:"url_original"`
	URLMarked     string `toml:"url_marked"`
}

// Directives is the marking engine's five selection lists (spec.md §4.3).
type Directives struct {
	Forward  []string
	Backward []string
	Single   []string
	Excluded []string
	Service  []string
}

// Config is the single immutable run configuration. It is built once (from
// flags and, optionally, a TOML file) and never mutated afterward; every
// component constructor takes the pieces it needs from it by value.
type Config struct {
	Repositories []RepositoryPair

	Directives  Directives
	Preferables []string
	Strategy    Strategy

	Architecture string
	Kickstart    string
	OutputDir    string
	CacheDir     string
	JobsNumber   int

	Mirror             bool
	Greedy             bool
	SkipVersionMismatch bool
	DisableRPMPatching bool
	DropPatchingCache  bool

	// AbortOnCriticalConflicts makes the historically non-aborting critical
	// file-list conflict audit (spec.md §4.2, §9 Design Notes) configurable,
	// per the open question in spec.md §9: the non-abort behavior is
	// preserved by default but now explicit rather than implicit.
	AbortOnCriticalConflicts bool

	DebugMode bool

	PreliminaryImageDir string
	EmulatorBinary       string
	EmulatorPackage      string
}

// fileConfig is the TOML-decodable subset of Config that a config file may
// set; LoadFile applies the fields it sets over the base Config it is given.
type fileConfig struct {
	Repositories []RepositoryPair `toml:"repository"`

	Forward  []string `toml:"forward"`
	Backward []string `toml:"backward"`
	Single   []string `toml:"single"`
	Excluded []string `toml:"exclude"`
	Service  []string `toml:"service"`

	Preferables []string `toml:"preferable"`
	Strategy    string   `toml:"strategy"`

	Architecture string `toml:"architecture"`
	Kickstart    string `toml:"kickstart"`
	OutputDir    string `toml:"output_dir"`
	CacheDir     string `toml:"cache_dir"`
	JobsNumber   int    `toml:"jobs_number"`

	Mirror              bool `toml:"mirror"`
	Greedy              bool `toml:"greedy"`
	SkipVersionMismatch bool `toml:"skip_version_mismatch"`
	DisableRPMPatching  bool `toml:"disable_rpm_patching"`
	DropPatchingCache   bool `toml:"drop_patching_cache"`

	PreliminaryImageDir string `toml:"preliminary_image_dir"`
	EmulatorBinary      string `toml:"emulator_binary"`
	EmulatorPackage     string `toml:"emulator_package"`
}

// LoadFile merges a TOML config file into base, returning the merged
// Config. Only fields present in the file are applied: a field the file sets
// replaces base's value (boolean fields are OR-ed with base's), and every
// field the file leaves unset keeps base's value. cmd/combirepo passes the
// flag values as base, so a value set in the file wins over the same flag.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return base, errors.Wrapf(err, "reading config file %q", path)
	}

	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return base, errors.Wrapf(err, "parsing config file %q", path)
	}

	out := base
	if len(fc.Repositories) > 0 {
		out.Repositories = fc.Repositories
	}
	pick := func(file, base []string) []string {
		if len(file) > 0 {
			return file
		}
		return base
	}
	out.Directives = Directives{
		Forward:  pick(fc.Forward, base.Directives.Forward),
		Backward: pick(fc.Backward, base.Directives.Backward),
		Single:   pick(fc.Single, base.Directives.Single),
		Excluded: pick(fc.Excluded, base.Directives.Excluded),
		Service:  pick(fc.Service, base.Directives.Service),
	}
	if len(fc.Preferables) > 0 {
		out.Preferables = fc.Preferables
	}
	if fc.Strategy != "" {
		out.Strategy = Strategy(fc.Strategy)
	}
	if fc.Architecture != "" {
		out.Architecture = fc.Architecture
	}
	if fc.Kickstart != "" {
		out.Kickstart = fc.Kickstart
	}
	if fc.OutputDir != "" {
		out.OutputDir = fc.OutputDir
	}
	if fc.CacheDir != "" {
		out.CacheDir = fc.CacheDir
	}
	if fc.JobsNumber > 0 {
		out.JobsNumber = fc.JobsNumber
	}
	out.Mirror = out.Mirror || fc.Mirror
	out.Greedy = out.Greedy || fc.Greedy
	out.SkipVersionMismatch = out.SkipVersionMismatch || fc.SkipVersionMismatch
	out.DisableRPMPatching = out.DisableRPMPatching || fc.DisableRPMPatching
	out.DropPatchingCache = out.DropPatchingCache || fc.DropPatchingCache
	if fc.PreliminaryImageDir != "" {
		out.PreliminaryImageDir = fc.PreliminaryImageDir
	}
	if fc.EmulatorBinary != "" {
		out.EmulatorBinary = fc.EmulatorBinary
	}
	if fc.EmulatorPackage != "" {
		out.EmulatorPackage = fc.EmulatorPackage
	}
	return out, nil
}
