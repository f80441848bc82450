// Package rpmerrs defines the typed error kinds of spec.md §7. Each type
// renders a descriptive message; the types that carry candidate lists
// (DuplicatePackageError, HaveChoiceError, UnknownPackageError) list them
// one per line, in the style of the teacher's disjointConstraintFailure and
// noVersionError (errors.go).
package rpmerrs

import (
	"bytes"
	"fmt"
)

// MetadataError reports an unreadable or malformed repository index.
type MetadataError struct {
	URL   string
	Cause error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata error for repository %q: %v", e.URL, e.Cause)
}

func (e *MetadataError) Unwrap() error { return e.Cause }

// LocationNotFoundError reports a package listed in the index with no
// corresponding file on disk.
type LocationNotFoundError struct {
	PackageName string
	Location    string
}

func (e *LocationNotFoundError) Error() string {
	return fmt.Sprintf("package %q lists location %q but no such file exists", e.PackageName, e.Location)
}

// DuplicatePackageError reports two records with the same name and no
// strategy to disambiguate them.
type DuplicatePackageError struct {
	Name      string
	FullNames []string
}

func (e *DuplicatePackageError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "duplicate package %q with no dedup strategy set; candidates:", e.Name)
	for _, fn := range e.FullNames {
		fmt.Fprintf(&buf, "\n\t%s", fn)
	}
	return buf.String()
}

// IncomparableVersionsError reports a version-token arity mismatch under the
// configured comparator.
type IncomparableVersionsError struct {
	A, B string
}

func (e *IncomparableVersionsError) Error() string {
	return fmt.Sprintf("cannot compare versions %q and %q: differing token arity", e.A, e.B)
}

// HaveChoiceCandidate is one provider offered for a symbol during
// have-choice resolution, annotated with how it would need to be
// disambiguated.
type HaveChoiceCandidate struct {
	FullName     string
	ShortName    string
	NeedsFullRef bool // true if full-name preference is required to pick this one unambiguously
}

// HaveChoiceError reports an unresolvable multi-provider choice for a
// required symbol.
type HaveChoiceError struct {
	Symbol     string
	Candidates []HaveChoiceCandidate
}

func (e *HaveChoiceError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "symbol %q is provided by multiple packages; disambiguate with --preferable:", e.Symbol)
	for _, c := range e.Candidates {
		ref := c.ShortName
		if c.NeedsFullRef {
			ref = c.FullName
		}
		fmt.Fprintf(&buf, "\n\t%s", ref)
	}
	return buf.String()
}

// UnknownPackageError reports a directive naming a package absent from
// every repository's graph, with fuzzy-match hints.
type UnknownPackageError struct {
	Name  string
	Hints []string
}

func (e *UnknownPackageError) Error() string {
	if len(e.Hints) == 0 {
		return fmt.Sprintf("unknown package %q", e.Name)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "unknown package %q; did you mean:", e.Name)
	for _, h := range e.Hints {
		fmt.Fprintf(&buf, "\n\t%s", h)
	}
	return buf.String()
}

// VersionMismatchError reports counterpart packages that differ in version.
type VersionMismatchError struct {
	Name                      string
	OriginalVer, MarkedVer    string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("package %q: original version %q does not match marked version %q", e.Name, e.OriginalVer, e.MarkedVer)
}

// MirrorRequiredError reports a missing marked counterpart with mirror mode
// disabled.
type MirrorRequiredError struct {
	Name string
}

func (e *MirrorRequiredError) Error() string {
	return fmt.Sprintf("package %q has no marked counterpart and --mirror is not set", e.Name)
}

// MissingBootstrapCapabilityError reports a minimal-toolchain capability
// with no provider in the original repositories.
type MissingBootstrapCapabilityError struct {
	Capability string
}

func (e *MissingBootstrapCapabilityError) Error() string {
	return fmt.Sprintf("no package in the original repositories provides the bootstrap capability %q", e.Capability)
}

// GreedyModeConflictError reports greedy mode combined with non-empty
// selection directives.
type GreedyModeConflictError struct {
	NonEmptyLists []string
}

func (e *GreedyModeConflictError) Error() string {
	return fmt.Sprintf("greedy mode cannot be combined with selection directives: %v", e.NonEmptyLists)
}

// PatcherError reports a failed rewriter/driver process, with the cloned
// output log attached.
type PatcherError struct {
	Task string
	Log  string
}

func (e *PatcherError) Error() string {
	return fmt.Sprintf("patching task %q failed:\n%s", e.Task, e.Log)
}
