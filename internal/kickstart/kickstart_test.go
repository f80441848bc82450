package kickstart

import (
	"strings"
	"testing"
)

const sampleKickstart = `
# sample kickstart
repo --name=main --baseurl=http://example.invalid/repo
part --label=rootfs /

%packages
@core
bash
coreutils
%end
`

func TestParseExtractsRepos(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleKickstart))
	if err != nil {
		t.Fatalf("Parse: unexpected error %v", err)
	}
	if len(f.Repos) != 1 {
		t.Fatalf("expected 1 repo, got %d", len(f.Repos))
	}
	if f.Repos[0].Name != "main" || f.Repos[0].BaseURL != "http://example.invalid/repo" {
		t.Errorf("unexpected repo: %+v", f.Repos[0])
	}
}

func TestParseExtractsPackagesAndGroups(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleKickstart))
	if err != nil {
		t.Fatalf("Parse: unexpected error %v", err)
	}
	if len(f.Groups) != 1 || f.Groups[0] != "core" {
		t.Errorf("expected group \"core\", got %v", f.Groups)
	}
	want := []string{"bash", "coreutils"}
	if len(f.Packages) != len(want) {
		t.Fatalf("expected %d packages, got %d: %v", len(want), len(f.Packages), f.Packages)
	}
	for i, w := range want {
		if f.Packages[i] != w {
			t.Errorf("Packages[%d] = %q, want %q", i, f.Packages[i], w)
		}
	}
}

func TestParseExtractsPartitions(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleKickstart))
	if err != nil {
		t.Fatalf("Parse: unexpected error %v", err)
	}
	if len(f.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(f.Partitions))
	}
	if f.Partitions[0].Label != "rootfs" || f.Partitions[0].MountPoint != "/" {
		t.Errorf("unexpected partition: %+v", f.Partitions[0])
	}
}

func TestParseRepoLineMissingNameErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("repo --baseurl=http://example.invalid/repo\n"))
	if err == nil {
		t.Fatal("expected an error for a repo line missing --name")
	}
}

func TestPackageNamesReturnsCopy(t *testing.T) {
	f := File{Packages: []string{"a", "b"}}
	names := f.PackageNames()
	names[0] = "mutated"
	if f.Packages[0] != "a" {
		t.Error("expected PackageNames to return an independent copy")
	}
}
