// Package depgraph builds the forward/backward dependency graphs of
// spec.md §4.2 (C2): deterministic have-choice resolution, unprovided-symbol
// and file-conflict reporting. Finding the providers of a required symbol
// scans every raw package record (once per distinct symbol, then cached), so
// runtime is not linear in total requirements plus provides: it grows with
// the number of distinct required symbols times the number of records.
//
// Vertex dedup and have-choice's strategy fallback share one extremum rule
// (spec.md's "small"/"big" comparison over concatenated version+release
// tokens). The source text presents "vertex stage" and "have-choice
// resolution" as separate passages, but example S4 (two raw records sharing
// a package name, disambiguated only by --preferable at have-choice time)
// only makes sense if a package name can have more than one raw record in
// flight until the moment a vertex is actually committed. This package
// therefore unifies both into a single commit step (see DESIGN.md): a
// vertex is only materialized when some resolution path — direct scope
// reference or have-choice pick — names a specific package record, and two
// different records committed under the same name are reconciled with the
// very same extremum rule have-choice falls back to.
package depgraph

import (
	"sort"
	"strings"

	"github.com/combirepo/combirepo/internal/config"
	"github.com/combirepo/combirepo/internal/rpmerrs"
	"github.com/combirepo/combirepo/internal/rpmpkg"
	"github.com/combirepo/combirepo/internal/rpmver"
)

// Graph is one directed dependency graph: vertices are package records,
// edges point from a requirer to its resolved provider. Forward and
// backward graphs share vertex indices but never pointers (spec.md §3
// Ownership, §9 Design Notes).
type Graph struct {
	Vertices        []rpmpkg.Package
	NameIndex       map[string]int
	Edges           map[int][]int
	SymbolProviders map[string]string
	Provided        map[string]struct{}
	Unprovided      map[string]struct{}
}

func newGraph() *Graph {
	return &Graph{
		NameIndex:       map[string]int{},
		Edges:           map[int][]int{},
		SymbolProviders: map[string]string{},
		Provided:        map[string]struct{}{},
		Unprovided:      map[string]struct{}{},
	}
}

// Conflict is a file path installed by more than one package, per spec.md
// §4.2's conflict audit. Only file lists are audited, not declared Provides.
type Conflict struct {
	Symbol   string
	Packages []string
	Critical bool
}

// DefaultComparator is the pluggable extremum comparator used by both vertex dedup
// and have-choice's strategy fallback (rpmver.Comparator).
var DefaultComparator rpmver.Comparator = rpmver.Lexicographic{}

// Build constructs the forward and backward dependency graphs for packages,
// resolving have-choice ambiguity with preferables/strategy, and closing
// scope transitively over discovered providers (spec.md §4.2).
func Build(packages []rpmpkg.Package, preferables []string, strategy config.Strategy, scope []string) (forward, backward *Graph, conflicts []Conflict, err error) {
	b := &builder{
		raw:         packages,
		preferables: makeSet(preferables),
		strategy:    strategy,
		cmp:         DefaultComparator,
		fwd:         newGraph(),
		providerOf:  map[string]string{},
		winners:     map[string]rpmpkg.Package{},
	}
	b.indexRaw()

	scopeSet := makeSet(scope)
	queue := append([]string(nil), scope...)
	queued := makeSet(scope)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		pkg, ok, derr := b.commitName(name)
		if derr != nil {
			return nil, nil, nil, derr
		}
		if !ok {
			// Name unknown to this repository: the marking engine's
			// post-check (spec.md §4.3) is responsible for reporting
			// unknown directive names; the graph builder silently omits
			// them from scope closure.
			continue
		}

		vIdx := b.fwd.NameIndex[pkg.Name]
		for _, req := range pkg.Requires {
			if strings.HasPrefix(req.Symbol, "rpmlib") {
				continue
			}

			providerName, perr := b.resolveProvider(req.Symbol)
			if perr != nil {
				return nil, nil, nil, perr
			}
			if providerName == "" {
				b.fwd.Unprovided[req.Symbol] = struct{}{}
				continue
			}
			b.fwd.Provided[req.Symbol] = struct{}{}
			b.fwd.SymbolProviders[req.Symbol] = providerName

			provPkg, ok, derr := b.commitName(providerName)
			if derr != nil {
				return nil, nil, nil, derr
			}
			if !ok {
				continue
			}
			pIdx := b.fwd.NameIndex[provPkg.Name]
			b.fwd.Edges[vIdx] = append(b.fwd.Edges[vIdx], pIdx)

			if !queued[providerName] {
				queued[providerName] = struct{}{}
				queue = append(queue, providerName)
			}
		}
	}

	fillSymbolProviders(b.fwd)

	bwd := reverse(b.fwd)
	conflicts = auditConflicts(b.fwd, scopeSet)

	return b.fwd, bwd, conflicts, nil
}

type builder struct {
	raw         []rpmpkg.Package
	byName      map[string][]rpmpkg.Package // raw records grouped by name, pre-commit
	preferables map[string]struct{}
	strategy    config.Strategy
	cmp         rpmver.Comparator

	fwd        *Graph
	providerOf map[string]string         // symbol -> already-resolved provider name cache
	winners    map[string]rpmpkg.Package // name -> record already picked by have-choice resolution
}

func (b *builder) indexRaw() {
	b.byName = map[string][]rpmpkg.Package{}
	for _, p := range b.raw {
		b.byName[p.Name] = append(b.byName[p.Name], p)
	}
}

// commitName resolves name to a single canonical package record and ensures
// it exists as a vertex. ok is false if name is not present in this
// repository at all.
//
// If have-choice resolution already picked a specific record for this name
// (recorded in b.winners — spec.md example S4: two same-named records
// disambiguated by --preferable, not by --strategy), that exact record is
// committed directly. Only a name reached without going through have-choice
// falls back to deduping its raw records via extremeOf/strategy.
func (b *builder) commitName(name string) (rpmpkg.Package, bool, error) {
	if idx, ok := b.fwd.NameIndex[name]; ok {
		return b.fwd.Vertices[idx], true, nil
	}

	if winner, ok := b.winners[name]; ok {
		idx := len(b.fwd.Vertices)
		b.fwd.Vertices = append(b.fwd.Vertices, winner)
		b.fwd.NameIndex[name] = idx
		return winner, true, nil
	}

	group, ok := b.byName[name]
	if !ok || len(group) == 0 {
		return rpmpkg.Package{}, false, nil
	}

	winner, err := extremeOf(group, b.strategy, b.cmp)
	if err != nil {
		if _, ok := err.(*rpmver.ErrIncomparable); ok {
			return rpmpkg.Package{}, false, &rpmerrs.IncomparableVersionsError{A: group[0].Version, B: group[len(group)-1].Version}
		}
		fullNames := make([]string, len(group))
		for i, p := range group {
			fullNames[i] = p.FullName()
		}
		return rpmpkg.Package{}, false, &rpmerrs.DuplicatePackageError{Name: name, FullNames: fullNames}
	}

	idx := len(b.fwd.Vertices)
	b.fwd.Vertices = append(b.fwd.Vertices, winner)
	b.fwd.NameIndex[name] = idx
	return winner, true, nil
}

// extremeOf picks the single winner of a same-named candidate group. If the
// group has one member, it is returned outright. Otherwise strategy must be
// set, applying the "small"/"big" lexicographic-token extremum rule over
// Concat(version, release); an unset strategy is a DuplicatePackageError
// (surfaced by the caller).
func extremeOf(group []rpmpkg.Package, strategy config.Strategy, cmp rpmver.Comparator) (rpmpkg.Package, error) {
	if len(group) == 1 {
		return group[0], nil
	}
	if strategy == config.StrategyUnset {
		return rpmpkg.Package{}, errNoStrategy
	}

	best := group[0]
	for _, cand := range group[1:] {
		c, err := cmp.Compare(
			rpmver.Concat(rpmver.Split(best.Version), rpmver.Split(best.Release)),
			rpmver.Concat(rpmver.Split(cand.Version), rpmver.Split(cand.Release)),
		)
		if err != nil {
			return rpmpkg.Package{}, err
		}
		switch strategy {
		case config.StrategyBig:
			if c < 0 {
				best = cand
			}
		case config.StrategySmall:
			if c > 0 {
				best = cand
			}
		}
	}
	return best, nil
}

var errNoStrategy = &noStrategyError{}

type noStrategyError struct{}

func (*noStrategyError) Error() string { return "no dedup strategy configured" }

// resolveProvider implements have-choice resolution (spec.md §4.2) for a
// single required symbol, returning the winning provider's package name (or
// "" if unprovided).
func (b *builder) resolveProvider(symbol string) (string, error) {
	if name, ok := b.providerOf[symbol]; ok {
		return name, nil
	}

	candidates := b.candidatesFor(symbol)
	if len(candidates) == 0 {
		return "", nil
	}
	if len(candidates) == 1 {
		b.providerOf[symbol] = candidates[0].Name
		b.recordWinner(candidates[0])
		return candidates[0].Name, nil
	}

	var fullMatches, shortMatches []rpmpkg.Package
	for _, c := range candidates {
		if _, ok := b.preferables[c.FullName()]; ok {
			fullMatches = append(fullMatches, c)
		}
		if _, ok := b.preferables[c.Name]; ok {
			shortMatches = append(shortMatches, c)
		}
	}

	var winner rpmpkg.Package
	switch {
	case len(fullMatches) == 1:
		winner = fullMatches[0]
	case len(shortMatches) == 1:
		winner = shortMatches[0]
	case b.strategy != config.StrategyUnset && sameName(candidates):
		w, err := extremeOf(candidates, b.strategy, b.cmp)
		if err != nil {
			return "", err
		}
		winner = w
	default:
		return "", haveChoiceErr(symbol, candidates, b.preferables)
	}

	b.providerOf[symbol] = winner.Name
	b.recordWinner(winner)
	return winner.Name, nil
}

// recordWinner remembers the exact record have-choice resolution picked for
// winner.Name, so a later commitName for that name commits this record
// directly instead of re-deriving one from scratch over every same-named raw
// record (spec.md example S4).
func (b *builder) recordWinner(winner rpmpkg.Package) {
	if _, ok := b.fwd.NameIndex[winner.Name]; ok {
		return
	}
	b.winners[winner.Name] = winner
}

func sameName(candidates []rpmpkg.Package) bool {
	for _, c := range candidates[1:] {
		if c.Name != candidates[0].Name {
			return false
		}
	}
	return true
}

func haveChoiceErr(symbol string, candidates []rpmpkg.Package, preferables map[string]struct{}) error {
	var hcs []rpmerrs.HaveChoiceCandidate
	for _, c := range candidates {
		hcs = append(hcs, rpmerrs.HaveChoiceCandidate{
			FullName:     c.FullName(),
			ShortName:    c.Name,
			NeedsFullRef: !sameName(candidates),
		})
	}
	return &rpmerrs.HaveChoiceError{Symbol: symbol, Candidates: hcs}
}

// candidatesFor returns every raw package record that provides symbol,
// either via declared Provides or via an installed file path.
func (b *builder) candidatesFor(symbol string) []rpmpkg.Package {
	var out []rpmpkg.Package
	for _, p := range b.raw {
		if p.ProvidesSymbol(symbol) {
			out = append(out, p)
		}
	}
	return out
}

func fillSymbolProviders(g *Graph) {
	for _, v := range g.Vertices {
		for s := range v.Provides {
			if _, ok := g.SymbolProviders[s]; !ok {
				g.SymbolProviders[s] = v.Name
			}
		}
		for f := range v.FileList {
			if _, ok := g.SymbolProviders[f]; !ok {
				g.SymbolProviders[f] = v.Name
			}
		}
	}
}

func reverse(fwd *Graph) *Graph {
	bwd := newGraph()
	bwd.Vertices = fwd.Vertices
	for k, v := range fwd.NameIndex {
		bwd.NameIndex[k] = v
	}
	for k, v := range fwd.SymbolProviders {
		bwd.SymbolProviders[k] = v
	}
	for k := range fwd.Provided {
		bwd.Provided[k] = struct{}{}
	}
	for k := range fwd.Unprovided {
		bwd.Unprovided[k] = struct{}{}
	}
	for from, tos := range fwd.Edges {
		for _, to := range tos {
			bwd.Edges[to] = append(bwd.Edges[to], from)
		}
	}
	return bwd
}

func auditConflicts(g *Graph, scope map[string]struct{}) []Conflict {
	bySymbol := map[string]map[string]struct{}{}
	for _, v := range g.Vertices {
		for f := range v.FileList {
			if bySymbol[f] == nil {
				bySymbol[f] = map[string]struct{}{}
			}
			bySymbol[f][v.Name] = struct{}{}
		}
	}

	var out []Conflict
	for symbol, names := range bySymbol {
		if len(names) < 2 {
			continue
		}
		list := make([]string, 0, len(names))
		inScope := 0
		for n := range names {
			list = append(list, n)
			if _, ok := scope[n]; ok {
				inScope++
			}
		}
		sort.Strings(list)
		out = append(out, Conflict{Symbol: symbol, Packages: list, Critical: inScope >= 2})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func makeSet(ss []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
