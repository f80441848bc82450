package patcher

import (
	"strings"

	"github.com/combirepo/combirepo/internal/depgraph"
	"github.com/combirepo/combirepo/internal/rpmerrs"
)

// minimalCapabilities is the toolchain the preliminary image must provide
// (spec.md §4.5): a user-management utility, directory creation, a
// pattern-matching text tool, archive copy, a make driver, an RPM build
// tool, a stream editor, and a text search tool.
var minimalCapabilities = []string{
	"useradd", "mkdir", "grep", "cpio", "make", "rpmbuild", "sed", "grep",
}

// bootstrapExcludeTokens identifies foreign/bootstrap-arch candidates that
// must never be picked for the preliminary image's own toolchain (spec.md
// §4.5).
var bootstrapExcludeTokens = []string{"mic-bootstrap", "x86", "x64"}

// ResolveBootstrapPackages finds, for each minimal capability, a provider
// package name from originals' symbol_providers, excluding foreign/bootstrap
// candidates. It fails MissingBootstrapCapabilityError if any capability has
// no acceptable provider.
func ResolveBootstrapPackages(originals []*depgraph.Graph) ([]string, error) {
	seen := map[string]struct{}{}
	var names []string

	for _, capability := range uniqueCapabilities() {
		provider, err := findProvider(originals, capability)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[provider]; !ok {
			seen[provider] = struct{}{}
			names = append(names, provider)
		}
	}
	return names, nil
}

func uniqueCapabilities() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range minimalCapabilities {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func findProvider(originals []*depgraph.Graph, capability string) (string, error) {
	for _, g := range originals {
		name, ok := g.SymbolProviders[capability]
		if !ok {
			continue
		}
		if isExcludedBootstrapCandidate(name) {
			continue
		}
		return name, nil
	}
	return "", &rpmerrs.MissingBootstrapCapabilityError{Capability: capability}
}

func isExcludedBootstrapCandidate(name string) bool {
	for _, tok := range bootstrapExcludeTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}
