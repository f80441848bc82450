// Package counterpart implements the counterpart analyzer (C4, spec.md
// §4.4): given original and marked graphs plus the marked-package set M, it
// decides per package whether a direct link suffices or a patch is
// required.
package counterpart

import (
	"sort"

	"github.com/combirepo/combirepo/internal/depgraph"
	"github.com/combirepo/combirepo/internal/rpmerrs"
	"github.com/combirepo/combirepo/internal/rpmpkg"
)

// RequirementUpdateKind distinguishes an added requirement from a changed
// one (spec.md §3, Patch task).
type RequirementUpdateKind int

// RequirementUpdateKind values.
const (
	UpdateAdd RequirementUpdateKind = iota
	UpdateChange
)

// RequirementUpdate is one requirement-list edit a patch task carries.
type RequirementUpdate struct {
	Kind RequirementUpdateKind
	Req  rpmpkg.Requirement
}

// PatchTask asks the RPM patcher to rewrite an RPM's headers to match the
// original's release and/or requirement list (spec.md §3, §4.5).
type PatchTask struct {
	PackageName     string
	SourcePath      string
	DestinationPath string
	RequiredRelease string
	Updates         []RequirementUpdate
}

// CopySource distinguishes which side a plain copy/symlink task draws from.
type CopySource int

// CopySource values.
const (
	CopyFromMarked CopySource = iota
	CopyFromOriginal
)

// CopyTask asks the combined repository assembler to symlink or copy a file
// verbatim (spec.md §4.4 steps 2, 6, 7, 8).
type CopyTask struct {
	PackageName     string
	SourcePath      string
	DestinationPath string
	Source          CopySource
}

// Diagnostics records non-fatal observations the analyzer makes while
// walking M, for logging.
type Diagnostics struct {
	SkippedMismatches       []string // names removed from M by skip_mismatch
	UnpropagatedRequirements map[string][]string // name -> marked-only requirement symbols
}

// Result is everything the analyzer produces for one repository pair.
type Result struct {
	PatchTasks  []PatchTask
	CopyTasks   []CopyTask
	MarkedSet   map[string]struct{} // M, possibly shrunk by skip_mismatch
	Diagnostics Diagnostics
}

// AnalyzeConfig carries the run's mirror/skip-mismatch mode flags.
type AnalyzeConfig struct {
	Mirror            bool
	SkipVersionMismatch bool
}

// Analyze implements spec.md §4.4 steps 1-8 for one repository pair.
func Analyze(original, marked *depgraph.Graph, m map[string]struct{}, cfg AnalyzeConfig) (Result, error) {
	res := Result{
		MarkedSet:   map[string]struct{}{},
		Diagnostics: Diagnostics{UnpropagatedRequirements: map[string][]string{}},
	}
	for k := range m {
		res.MarkedSet[k] = struct{}{}
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oIdx, oOK := original.NameIndex[name]
		kIdx, kOK := marked.NameIndex[name]

		if !kOK {
			// Step 1/7: missing marked counterpart, defer to mirror policy.
			if !oOK {
				continue
			}
			if !cfg.Mirror {
				return Result{}, &rpmerrs.MirrorRequiredError{Name: name}
			}
			o := original.Vertices[oIdx]
			res.CopyTasks = append(res.CopyTasks, CopyTask{
				PackageName: name, SourcePath: o.Location, DestinationPath: o.Basename(), Source: CopyFromOriginal,
			})
			continue
		}

		k := marked.Vertices[kIdx]
		if !oOK {
			// Step 2: no original counterpart, direct copy from marked.
			res.CopyTasks = append(res.CopyTasks, CopyTask{
				PackageName: name, SourcePath: k.Location, DestinationPath: k.Basename(), Source: CopyFromMarked,
			})
			continue
		}

		o := original.Vertices[oIdx]
		if o.Version != k.Version {
			if !cfg.SkipVersionMismatch {
				return Result{}, &rpmerrs.VersionMismatchError{Name: name, OriginalVer: o.Version, MarkedVer: k.Version}
			}
			delete(res.MarkedSet, name)
			res.Diagnostics.SkippedMismatches = append(res.Diagnostics.SkippedMismatches, name)
			continue
		}

		updates, unpropagated := requirementsDelta(o.Requires, k.Requires)
		if len(unpropagated) > 0 {
			res.Diagnostics.UnpropagatedRequirements[name] = unpropagated
		}

		if o.Release != k.Release || len(updates) > 0 {
			res.PatchTasks = append(res.PatchTasks, PatchTask{
				PackageName:     name,
				SourcePath:      k.Location,
				DestinationPath: o.Basename(),
				RequiredRelease: o.Release,
				Updates:         updates,
			})
			continue
		}

		res.CopyTasks = append(res.CopyTasks, CopyTask{
			PackageName: name, SourcePath: k.Location, DestinationPath: o.Basename(), Source: CopyFromMarked,
		})
	}

	// Step 8: every original-graph name not in M is a copy from original.
	for name, oIdx := range original.NameIndex {
		if _, inM := res.MarkedSet[name]; inM {
			continue
		}
		o := original.Vertices[oIdx]
		res.CopyTasks = append(res.CopyTasks, CopyTask{
			PackageName: name, SourcePath: o.Location, DestinationPath: o.Basename(), Source: CopyFromOriginal,
		})
	}

	return res, nil
}

// requirementsDelta computes the keyed-by-symbol delta between original and
// marked requirement lists (spec.md §4.4 step 4).
func requirementsDelta(originalReqs, markedReqs []rpmpkg.Requirement) ([]RequirementUpdate, []string) {
	markedBySymbol := map[string]rpmpkg.Requirement{}
	for _, r := range markedReqs {
		markedBySymbol[r.Symbol] = r
	}
	originalSymbols := map[string]struct{}{}

	var updates []RequirementUpdate
	for _, o := range originalReqs {
		originalSymbols[o.Symbol] = struct{}{}
		mr, ok := markedBySymbol[o.Symbol]
		switch {
		case !ok:
			updates = append(updates, RequirementUpdate{Kind: UpdateAdd, Req: o})
		case !o.Equal(mr):
			updates = append(updates, RequirementUpdate{Kind: UpdateChange, Req: o})
		}
	}

	var unpropagated []string
	for _, m := range markedReqs {
		if _, ok := originalSymbols[m.Symbol]; !ok {
			unpropagated = append(unpropagated, m.Symbol)
		}
	}
	sort.Strings(unpropagated)

	return updates, unpropagated
}
