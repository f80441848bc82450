package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/config"
)

const repomdXML = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <location href="repodata/primary.xml"/>
  </data>
</repomd>`

func primaryXML(version, release string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="1">
  <package type="rpm">
    <name>foo</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="` + version + `" rel="` + release + `"/>
    <location href="foo-` + version + `-` + release + `.x86_64.rpm"/>
    <format>
      <rpm:provides xmlns:rpm="http://linux.duke.edu/metadata/rpm">
        <rpm:entry name="foo"/>
      </rpm:provides>
    </format>
  </package>
</metadata>`
}

func writeRepo(t *testing.T, version, release string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "repodata"), 0o755); err != nil {
		t.Fatalf("creating repodata dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "repodata", "repomd.xml"), []byte(repomdXML), 0o644); err != nil {
		t.Fatalf("writing repomd.xml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "repodata", "primary.xml"), []byte(primaryXML(version, release)), 0o644); err != nil {
		t.Fatalf("writing primary.xml: %v", err)
	}
	rpmName := "foo-" + version + "-" + release + ".x86_64.rpm"
	if err := os.WriteFile(filepath.Join(dir, rpmName), []byte("rpm-bytes-"+release), 0o644); err != nil {
		t.Fatalf("writing fixture rpm: %v", err)
	}
	return dir
}

// TestRunAssemblesDirectCopyInIdleMode exercises the full C1-C6 pipeline with
// greedy marking and idle-mode patching (no chroot/make invocation), since
// the orchestrator always drives a real OSRunner and this is the only path
// exercisable without forking real subprocesses.
func TestRunAssemblesDirectCopyInIdleMode(t *testing.T) {
	originalDir := writeRepo(t, "1.0", "1")
	markedDir := writeRepo(t, "1.0", "1")
	outputDir := filepath.Join(t.TempDir(), "out")

	cfg := config.Config{
		Repositories: []config.RepositoryPair{
			{Alias: "main", URLOriginal: originalDir, URLMarked: markedDir},
		},
		Architecture:       "x86_64",
		OutputDir:          outputDir,
		CacheDir:           t.TempDir(),
		JobsNumber:         1,
		Greedy:             true,
		DisableRPMPatching: true,
	}

	var logOut, logErr osBuf
	log := combilog.New(&logOut, &logErr, false)

	images, err := Run(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("Run: unexpected error %v", err)
	}
	if len(images) != 0 {
		t.Errorf("expected no produced images without a kickstart, got %v", images)
	}

	placed := filepath.Join(outputDir, "foo-1.0-1.x86_64.rpm")
	if _, err := os.Stat(placed); err != nil {
		t.Errorf("expected combined repository to contain %q: %v", placed, err)
	}
}

// TestRunProducesPatchTaskOnReleaseMismatch ensures a release delta between
// the original and marked counterpart routes through the idle-mode patcher
// as a direct copy from the marked source (idle mode degrades every patch
// task to a copy, per spec.md's "disable_rpm_patching" policy).
func TestRunProducesPatchTaskOnReleaseMismatch(t *testing.T) {
	originalDir := writeRepo(t, "1.0", "1")
	markedDir := writeRepo(t, "1.0", "2")
	outputDir := filepath.Join(t.TempDir(), "out")

	cfg := config.Config{
		Repositories: []config.RepositoryPair{
			{Alias: "main", URLOriginal: originalDir, URLMarked: markedDir},
		},
		Architecture:       "x86_64",
		OutputDir:          outputDir,
		CacheDir:           t.TempDir(),
		JobsNumber:         1,
		Greedy:             true,
		DisableRPMPatching: true,
	}

	if _, err := Run(context.Background(), cfg, combilog.New(&osBuf{}, &osBuf{}, false)); err != nil {
		t.Fatalf("Run: unexpected error %v", err)
	}

	placed := filepath.Join(outputDir, "foo-1.0-1.x86_64.rpm")
	data, err := os.ReadFile(placed)
	if err != nil {
		t.Fatalf("expected resolved patch output at %q: %v", placed, err)
	}
	if string(data) != "rpm-bytes-2" {
		t.Errorf("expected idle-mode patch to copy the marked source bytes, got %q", data)
	}
}

// osBuf is a minimal io.Writer so these tests don't need to pull in
// bytes.Buffer for throwaway log sinks.
type osBuf struct{ data []byte }

func (b *osBuf) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
