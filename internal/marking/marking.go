// Package marking implements the marking engine (C3, spec.md §4.3):
// computing the marked-package set from user directives over the forward
// and backward dependency graphs.
package marking

import (
	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/config"
	"github.com/combirepo/combirepo/internal/depgraph"
	"github.com/combirepo/combirepo/internal/rpmerrs"
)

// Mark computes M, the set of package names to draw from the marked side,
// per spec.md §4.3's set formula, or (in greedy mode) as every name present
// in the marked graph, which callers pass as fwd in greedy mode.
func Mark(fwd, bwd *depgraph.Graph, directives config.Directives, greedy bool, log *combilog.Loggers) (map[string]struct{}, error) {
	if greedy {
		if nonEmpty := nonEmptyLists(directives); len(nonEmpty) > 0 {
			return nil, &rpmerrs.GreedyModeConflictError{NonEmptyLists: nonEmpty}
		}
		m := make(map[string]struct{}, len(fwd.Vertices))
		for _, v := range fwd.Vertices {
			m[v.Name] = struct{}{}
		}
		return m, nil
	}

	m := make(map[string]struct{})
	for _, name := range directives.Forward {
		addReachable(m, fwd, name, log)
	}
	for _, name := range directives.Backward {
		addReachable(m, bwd, name, log)
	}
	for _, name := range directives.Single {
		if _, ok := fwd.NameIndex[name]; ok {
			m[name] = struct{}{}
		}
	}
	for _, name := range directives.Service {
		if _, ok := fwd.NameIndex[name]; ok {
			m[name] = struct{}{}
		}
	}
	for _, name := range directives.Excluded {
		delete(m, name)
	}

	return m, nil
}

// addReachable breadth-first-traverses g from name (inclusive) and adds
// every visited vertex name to m. A name absent from g contributes nothing,
// with a debug notice rather than an error (spec.md §4.3).
func addReachable(m map[string]struct{}, g *depgraph.Graph, name string, log *combilog.Loggers) {
	startIdx, ok := g.NameIndex[name]
	if !ok {
		if log != nil {
			log.Debugf("directive names %q, not present in this repository's graph", name)
		}
		return
	}

	visited := map[int]struct{}{startIdx: {}}
	queue := []int{startIdx}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		m[g.Vertices[idx].Name] = struct{}{}
		for _, next := range g.Edges[idx] {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
}

func nonEmptyLists(d config.Directives) []string {
	var out []string
	if len(d.Forward) > 0 {
		out = append(out, "forward")
	}
	if len(d.Backward) > 0 {
		out = append(out, "backward")
	}
	if len(d.Single) > 0 {
		out = append(out, "single")
	}
	if len(d.Excluded) > 0 {
		out = append(out, "excluded")
	}
	if len(d.Service) > 0 {
		out = append(out, "service")
	}
	return out
}

// PostCheck verifies that every forward/backward/single/excluded directive
// name is present in at least one of the supplied graphs, returning an
// UnknownPackageError with fuzzy-match hints (spec.md §4.3) for the first
// one that is not.
func PostCheck(directives config.Directives, graphs []*depgraph.Graph) error {
	all := allNames(directives)
	known := map[string]struct{}{}
	for _, g := range graphs {
		for name := range g.NameIndex {
			known[name] = struct{}{}
		}
	}

	for _, name := range all {
		if _, ok := known[name]; ok {
			continue
		}
		return &rpmerrs.UnknownPackageError{Name: name, Hints: fuzzyHints(name, known)}
	}
	return nil
}

func allNames(d config.Directives) []string {
	var out []string
	out = append(out, d.Forward...)
	out = append(out, d.Backward...)
	out = append(out, d.Single...)
	out = append(out, d.Excluded...)
	return out
}
