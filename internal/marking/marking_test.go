package marking

import (
	"testing"

	"github.com/combirepo/combirepo/internal/config"
	"github.com/combirepo/combirepo/internal/depgraph"
	"github.com/combirepo/combirepo/internal/rpmpkg"
)

// chain builds a forward graph app -> mid -> leaf and its reverse.
func chain(t *testing.T) (*depgraph.Graph, *depgraph.Graph) {
	t.Helper()
	packages := []rpmpkg.Package{
		{Name: "app", Version: "1", Release: "1", Requires: []rpmpkg.Requirement{{Symbol: "mid"}}, Provides: map[string]struct{}{"app": {}}, FileList: map[string]struct{}{}},
		{Name: "mid", Version: "1", Release: "1", Requires: []rpmpkg.Requirement{{Symbol: "leaf"}}, Provides: map[string]struct{}{"mid": {}}, FileList: map[string]struct{}{}},
		{Name: "leaf", Version: "1", Release: "1", Provides: map[string]struct{}{"leaf": {}}, FileList: map[string]struct{}{}},
	}
	fwd, bwd, _, err := depgraph.Build(packages, nil, config.StrategyUnset, []string{"app"})
	if err != nil {
		t.Fatalf("Build: unexpected error %v", err)
	}
	return fwd, bwd
}

func TestMarkForwardReachesDependencies(t *testing.T) {
	fwd, bwd := chain(t)
	m, err := Mark(fwd, bwd, config.Directives{Forward: []string{"app"}}, false, nil)
	if err != nil {
		t.Fatalf("Mark: unexpected error %v", err)
	}
	for _, name := range []string{"app", "mid", "leaf"} {
		if _, ok := m[name]; !ok {
			t.Errorf("expected %q marked via forward closure", name)
		}
	}
}

func TestMarkBackwardReachesDependents(t *testing.T) {
	fwd, bwd := chain(t)
	m, err := Mark(fwd, bwd, config.Directives{Backward: []string{"leaf"}}, false, nil)
	if err != nil {
		t.Fatalf("Mark: unexpected error %v", err)
	}
	for _, name := range []string{"leaf", "mid", "app"} {
		if _, ok := m[name]; !ok {
			t.Errorf("expected %q marked via backward closure", name)
		}
	}
}

func TestMarkExcludedRemovesFromSet(t *testing.T) {
	fwd, bwd := chain(t)
	m, err := Mark(fwd, bwd, config.Directives{Forward: []string{"app"}, Excluded: []string{"leaf"}}, false, nil)
	if err != nil {
		t.Fatalf("Mark: unexpected error %v", err)
	}
	if _, ok := m["leaf"]; ok {
		t.Error("expected leaf excluded from marked set")
	}
	if _, ok := m["app"]; !ok {
		t.Error("expected app to remain marked")
	}
}

func TestMarkGreedyMarksEverything(t *testing.T) {
	fwd, bwd := chain(t)
	m, err := Mark(fwd, bwd, config.Directives{}, true, nil)
	if err != nil {
		t.Fatalf("Mark: unexpected error %v", err)
	}
	if len(m) != 3 {
		t.Errorf("expected greedy mode to mark all 3 packages, got %d", len(m))
	}
}

func TestMarkGreedyConflictsWithDirectives(t *testing.T) {
	fwd, bwd := chain(t)
	_, err := Mark(fwd, bwd, config.Directives{Single: []string{"app"}}, true, nil)
	if err == nil {
		t.Fatal("expected GreedyModeConflictError when directives are non-empty")
	}
}

func TestPostCheckUnknownPackageHasHints(t *testing.T) {
	fwd, _ := chain(t)
	err := PostCheck(config.Directives{Forward: []string{"ap"}}, []*depgraph.Graph{fwd})
	if err == nil {
		t.Fatal("expected UnknownPackageError for misspelled name")
	}
}

func TestPostCheckKnownPackagePasses(t *testing.T) {
	fwd, _ := chain(t)
	if err := PostCheck(config.Directives{Forward: []string{"app"}}, []*depgraph.Graph{fwd}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
