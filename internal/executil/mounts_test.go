package executil

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMountStackReleasesInReverseOrder(t *testing.T) {
	stub := &StubRunner{}
	s := NewMountStack(stub)

	if err := s.Bind(context.Background(), "/sys", "/clone/sys"); err != nil {
		t.Fatalf("Bind: unexpected error %v", err)
	}
	if err := s.Bind(context.Background(), "/proc", "/clone/proc"); err != nil {
		t.Fatalf("Bind: unexpected error %v", err)
	}

	errs := s.ReleaseAll(context.Background())
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	var umountCalls []StubCall
	for _, c := range stub.Calls {
		if c.Name == "umount" {
			umountCalls = append(umountCalls, c)
		}
	}
	if len(umountCalls) != 2 {
		t.Fatalf("expected 2 umount calls, got %d", len(umountCalls))
	}
	if umountCalls[0].Args[0] != "/clone/proc" || umountCalls[1].Args[0] != "/clone/sys" {
		t.Errorf("expected reverse-order unmount, got %+v", umountCalls)
	}
}

func TestMountStackReleaseAllCollectsErrors(t *testing.T) {
	stub := &StubRunner{
		Results: []StubResult{
			{}, {},
			{Err: errors.New("umount failed")},
			{},
		},
	}
	s := NewMountStack(stub)
	_ = s.Bind(context.Background(), "/sys", "/clone/sys")
	_ = s.Bind(context.Background(), "/proc", "/clone/proc")

	errs := s.ReleaseAll(context.Background())
	if len(errs) != 1 {
		t.Fatalf("expected exactly one collected error, got %d: %v", len(errs), errs)
	}
	if len(s.mounts) != 0 {
		t.Error("expected mount stack cleared even after a failed unmount")
	}
}

// TestMountStackBindIsSafeForConcurrentUse guards against the patcher
// sharing one MountStack across concurrent clone-driver goroutines (spec.md
// §4.5): every Bind call must land in s.mounts, none lost to an unsynchronized
// append race.
func TestMountStackBindIsSafeForConcurrentUse(t *testing.T) {
	stub := &StubRunner{}
	s := NewMountStack(stub)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = s.Bind(context.Background(), "/sys", "/clone/sys")
		}(i)
	}
	wg.Wait()

	if len(s.mounts) != n {
		t.Errorf("expected %d recorded mounts after concurrent Bind calls, got %d", n, len(s.mounts))
	}

	errs := s.ReleaseAll(context.Background())
	if len(errs) != 0 {
		t.Errorf("expected no errors releasing, got %v", errs)
	}
	if len(s.mounts) != 0 {
		t.Error("expected mount stack cleared after ReleaseAll")
	}
}
