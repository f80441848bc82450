package patcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/combirepo/combirepo/internal/counterpart"
)

// GenerateMakefile builds a dependency-free Makefile whose top-level rule
// has one target per task, each invoking the RPM header-rewrite tool with
// the task's release override and a sed-style spec patch script (spec.md
// §4.5). resultsDir is the clone's results directory, used as each target's
// output location.
//
// Each target's output is redirected to its own log file under resultsDir,
// rather than left to share the target's stdout with every other target in
// the same `make` run — collectResults parses each task's own log for the
// header-rewrite tool's "result: " line (spec.md §6) to learn its actual
// rebuilt RPM path, rather than guessing from directory listing order.
func GenerateMakefile(tasks []counterpart.PatchTask, resultsDir string) string {
	var b strings.Builder
	var targets []string
	for i := range tasks {
		targets = append(targets, targetName(i))
	}
	fmt.Fprintf(&b, "all: %s\n\n", strings.Join(targets, " "))

	for i, t := range tasks {
		fmt.Fprintf(&b, "%s:\n", targetName(i))
		fmt.Fprintf(&b, "\trpm-header-rewrite --release %q --patch-script %q %q %q > %q 2>&1\n\n",
			t.RequiredRelease, specPatchScriptPath(i), t.SourcePath, resultsDir, logPath(resultsDir, i))
	}
	return b.String()
}

func targetName(i int) string {
	return fmt.Sprintf("task-%d", i)
}

func specPatchScriptPath(i int) string {
	return fmt.Sprintf("task-%d.sed", i)
}

func logPath(resultsDir string, i int) string {
	return filepath.Join(resultsDir, fmt.Sprintf("task-%d.log", i))
}

// sedEscape escapes s for use as a sed replacement-side string (backslash,
// delimiter, and ampersand all carry special meaning there).
func sedEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "/", `\/`, "&", `\&`)
	return r.Replace(s)
}

// GenerateSpecPatchScripts renders one sed-style patch script per task,
// derived from RewriteSpec's line-level edits, for the header-rewrite tool
// to apply inside the chroot.
func GenerateSpecPatchScripts(tasks []counterpart.PatchTask) map[string]string {
	scripts := make(map[string]string, len(tasks))
	for i, t := range tasks {
		var b strings.Builder
		for _, u := range t.Updates {
			line := CanonicalRequirementLine(u.Req)
			switch u.Kind {
			case counterpart.UpdateChange:
				fmt.Fprintf(&b, "/^Requires:[[:space:]]*%s\\b/c\\Requires: %s\n", u.Req.Symbol, line)
			case counterpart.UpdateAdd:
				fmt.Fprintf(&b, "0,/^Requires:/{/^Requires:/i\\Requires: %s\n}\n", line)
			}
		}
		b.WriteString("/\\.build-id/d\n")
		b.WriteString("/basic\\.target\\.wants/d\n")
		b.WriteString("s/^%posttrans -p/%posttrans/\n")
		if t.RequiredRelease != "" {
			fmt.Fprintf(&b, "s/%%{version}-[0-9.+_a-z]\\{1,\\}/%%{version}-%s/g\n", sedEscape(t.RequiredRelease))
		}
		scripts[specPatchScriptPath(i)] = b.String()
	}
	return scripts
}
