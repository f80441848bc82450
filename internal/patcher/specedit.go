package patcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/combirepo/combirepo/internal/counterpart"
	"github.com/combirepo/combirepo/internal/rpmpkg"
)

// relationOp maps a requirement relation to the canonical operator used in
// "Requires:" lines (spec.md §4.5: EQ/GE/LE map to "=", ">=", "<=").
func relationOp(r rpmpkg.Relation) string {
	switch r {
	case rpmpkg.RelationEQ:
		return "="
	case rpmpkg.RelationGE:
		return ">="
	case rpmpkg.RelationLE:
		return "<="
	default:
		return ""
	}
}

// CanonicalRequirementLine renders "<symbol>[ <op> <version>[-<release>]]",
// the canonical requirement string spec.md §4.5 specifies.
func CanonicalRequirementLine(req rpmpkg.Requirement) string {
	op := relationOp(req.Relation)
	if op == "" {
		return req.Symbol
	}
	ver := req.EVR.Version
	if req.EVR.Release != "" {
		ver += "-" + req.EVR.Release
	}
	return fmt.Sprintf("%s %s %s", req.Symbol, op, ver)
}

var requiresLineRE = regexp.MustCompile(`(?m)^Requires:\s*(\S+).*$`)
var buildIDLineRE = regexp.MustCompile(`(?m)^.*\.build-id.*$\n?`)
var bundleWantsLineRE = regexp.MustCompile(`(?m)^.*basic\.target\.wants.*$\n?`)
var posttransPLineRE = regexp.MustCompile(`(?m)^%posttrans\s+-p\b`)
var releaseTokenRE = regexp.MustCompile(`[0-9.+_a-z]+`)

// RewriteSpec applies the header-rewrite edits of spec.md §4.5 to the text
// of an RPM spec file, given the patch task's requirement updates and
// required release.
func RewriteSpec(spec string, task counterpart.PatchTask) string {
	out := spec

	for _, u := range task.Updates {
		line := CanonicalRequirementLine(u.Req)
		switch u.Kind {
		case counterpart.UpdateChange:
			out = replaceRequiresLine(out, u.Req.Symbol, line)
		case counterpart.UpdateAdd:
			out = insertRequiresLine(out, line)
		}
	}

	out = buildIDLineRE.ReplaceAllString(out, "")
	out = bundleWantsLineRE.ReplaceAllString(out, "")
	out = posttransPLineRE.ReplaceAllString(out, "%posttrans")
	out = rewriteEmbeddedReleaseTokens(out, task.RequiredRelease)

	return out
}

// replaceRequiresLine replaces the first "Requires: <symbol> ..." line for
// symbol with newLine.
func replaceRequiresLine(spec, symbol, newLine string) string {
	lines := strings.Split(spec, "\n")
	for i, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "Requires:") {
			continue
		}
		fields := strings.Fields(l)
		if len(fields) < 2 || fields[1] != symbol {
			continue
		}
		lines[i] = "Requires: " + newLine
		break
	}
	return strings.Join(lines, "\n")
}

// insertRequiresLine inserts a new "Requires:" line immediately before the
// first existing Requires: line (spec.md §4.5).
func insertRequiresLine(spec, newLine string) string {
	idx := requiresLineRE.FindStringIndex(spec)
	if idx == nil {
		return spec + "\nRequires: " + newLine + "\n"
	}
	return spec[:idx[0]] + "Requires: " + newLine + "\n" + spec[idx[0]:]
}

// rewriteEmbeddedReleaseTokens rewrites release tokens embedded in
// subpackage version relations (e.g. "= %{version}-<release>") to
// requiredRelease, matching against the fixed token pattern
// "[0-9.+_a-z]+" (spec.md §4.5).
func rewriteEmbeddedReleaseTokens(spec, requiredRelease string) string {
	if requiredRelease == "" {
		return spec
	}
	lines := strings.Split(spec, "\n")
	for i, l := range lines {
		if !strings.Contains(l, "%{version}-") {
			continue
		}
		idx := strings.Index(l, "%{version}-")
		rest := l[idx+len("%{version}-"):]
		loc := releaseTokenRE.FindStringIndex(rest)
		if loc == nil {
			continue
		}
		lines[i] = l[:idx+len("%{version}-")] + requiredRelease + rest[loc[1]:]
	}
	return strings.Join(lines, "\n")
}
