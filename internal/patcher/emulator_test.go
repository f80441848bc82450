package patcher

import (
	"context"
	"testing"

	"github.com/combirepo/combirepo/internal/executil"
)

func TestNeedsEmulation(t *testing.T) {
	cases := []struct {
		host, target string
		want         bool
	}{
		{"x86_64", "x86_64", false},
		{"x86_64", "aarch64", true},
		{"aarch64", "arm64", false},
		{"armv7l", "armv7hl", false},
		{"x86_64", "armv7l", true},
	}
	for _, c := range cases {
		if got := NeedsEmulation(c.host, c.target); got != c.want {
			t.Errorf("NeedsEmulation(%q, %q) = %v, want %v", c.host, c.target, got, c.want)
		}
	}
}

func TestBuildRegistrationLineUsesHandlerFlag(t *testing.T) {
	sig := elfSignatures["aarch64"]
	line := buildRegistrationLine("aarch64", sig, "/emulators/qemu-aarch64", FlagPlainEmulator)
	if line[0] != ':' {
		t.Fatalf("expected registration line to start with ':', got %q", line)
	}
	if got := line[len(line)-2:]; got != "OC" {
		t.Errorf("expected registration line to end with handler flag OC, got %q", got)
	}
}

func TestEmulatorCandidateExcludesBootstrap(t *testing.T) {
	if EmulatorCandidate("/chroot", "/chroot/bootstrap/usr/bin/qemu") {
		t.Error("expected a candidate under bootstrap/ to be excluded")
	}
	if !EmulatorCandidate("/chroot", "/chroot/usr/bin/qemu-aarch64") {
		t.Error("expected a candidate outside bootstrap/ to be accepted")
	}
}

func TestSelectRunnableEmulatorPicksFirstSuccess(t *testing.T) {
	stub := &executil.StubRunner{
		Results: []executil.StubResult{
			{Err: errTestFailure()},
			{Result: executil.Result{ExitCode: 0}},
		},
	}
	got, err := SelectRunnableEmulator(context.Background(), stub, "/chroot", []string{
		"/chroot/usr/bin/qemu-broken", "/chroot/usr/bin/qemu-aarch64",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/chroot/usr/bin/qemu-aarch64" {
		t.Errorf("expected the second, working candidate to be picked, got %q", got)
	}
}

func errTestFailure() error {
	return &testError{"candidate failed to run"}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
