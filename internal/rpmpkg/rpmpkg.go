// Package rpmpkg holds the immutable package record and requirement types
// that flow unchanged through the metadata loader, graph builder, marking
// engine, and counterpart analyzer (spec.md §3).
package rpmpkg

import "fmt"

// Relation is the comparison operator of a requirement's version bound.
type Relation int

// Relation values, ordered to match the canonical requirement string forms
// the RPM patcher emits (spec.md §4.5).
const (
	RelationNone Relation = iota
	RelationEQ
	RelationGE
	RelationLE
	RelationGT
	RelationLT
)

// String renders the canonical operator spelling used in "Requires:" lines.
func (r Relation) String() string {
	switch r {
	case RelationEQ:
		return "="
	case RelationGE:
		return ">="
	case RelationLE:
		return "<="
	case RelationGT:
		return ">"
	case RelationLT:
		return "<"
	default:
		return ""
	}
}

// EVR is an epoch/version/release triple attached to a bounded requirement.
type EVR struct {
	Epoch   string
	Version string
	Release string
}

// String renders "version-release", the form combirepo's canonical
// requirement strings use (epoch is tracked but not rendered, matching the
// source tool's spec line rewriting, spec.md §4.5).
func (e EVR) String() string {
	if e.Release == "" {
		return e.Version
	}
	return e.Version + "-" + e.Release
}

// Requirement is one entry of a package's Requires list: a symbol, an
// optional relation, and the EVR it is bounded against when Relation is not
// RelationNone.
type Requirement struct {
	Symbol   string
	Relation Relation
	EVR      EVR
}

// String renders the canonical requirement line body, e.g. "libc" or
// "libc >= 2.17-1" (spec.md §4.5's canonical requirement string).
func (r Requirement) String() string {
	if r.Relation == RelationNone {
		return r.Symbol
	}
	return fmt.Sprintf("%s %s %s", r.Symbol, r.Relation, r.EVR)
}

// Equal reports whether two requirements carry the same symbol, relation and
// EVR — the comparison the counterpart analyzer's requirements delta uses to
// decide "coordinates differ" (spec.md §4.4 step 4).
func (r Requirement) Equal(o Requirement) bool {
	return r.Symbol == o.Symbol && r.Relation == o.Relation && r.EVR == o.EVR
}

// Package is an immutable package record as produced by the metadata loader.
// Package records are never mutated after construction (spec.md §3
// Lifecycle).
type Package struct {
	Name         string
	Version      string
	Release      string
	Architecture string
	Location     string
	Provides     map[string]struct{}
	Requires     []Requirement
	FileList     map[string]struct{}
}

// FullName is the "name-version-release" form used for preferable full-name
// matching in have-choice resolution (spec.md §4.2).
func (p Package) FullName() string {
	return p.Name + "-" + p.Version + "-" + p.Release
}

// Basename returns the on-disk RPM filename this package would use,
// "name-version-release.arch.rpm", the filename consistency contract the
// combined repository assembler enforces (spec.md §4.6).
func (p Package) Basename() string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", p.Name, p.Version, p.Release, p.Architecture)
}

// ProvidesSymbol reports whether p declares s among its Provides or installs
// it as a file path — the "files act as implicit provides" rule (spec.md
// §4.2).
func (p Package) ProvidesSymbol(s string) bool {
	if _, ok := p.Provides[s]; ok {
		return true
	}
	_, ok := p.FileList[s]
	return ok
}
