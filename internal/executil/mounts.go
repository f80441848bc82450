package executil

import (
	"context"
	"sync"
)

// MountStack tracks mounts acquired during a patcher run so every exit path
// — success, failure, or signal — releases them in reverse order (spec.md
// §5, Resource Acquisition Discipline).
//
// A single MountStack is shared across every clone-driver goroutine in a
// patcher run (spec.md §4.5's concurrent clones all mount their own pseudo-
// filesystems through the same stack), so mu guards mounts against
// concurrent Bind and ReleaseAll calls.
type MountStack struct {
	runner Runner

	mu     sync.Mutex
	mounts []mountEntry
}

type mountEntry struct {
	source, target string
}

// NewMountStack returns an empty stack driven by runner (normally "mount"/
// "umount" via OSRunner, a StubRunner in tests).
func NewMountStack(runner Runner) *MountStack {
	return &MountStack{runner: runner}
}

// Bind bind-mounts source at target inside a chroot and records it for
// later release.
func (s *MountStack) Bind(ctx context.Context, source, target string) error {
	if _, err := s.runner.Run(ctx, "", "mount", "--bind", source, target); err != nil {
		return err
	}
	s.mu.Lock()
	s.mounts = append(s.mounts, mountEntry{source: source, target: target})
	s.mu.Unlock()
	return nil
}

// ReleaseAll unmounts every recorded mount in reverse acquisition order,
// collecting (not stopping on) individual failures so a best-effort teardown
// always runs to completion.
func (s *MountStack) ReleaseAll(ctx context.Context) []error {
	s.mu.Lock()
	mounts := s.mounts
	s.mounts = nil
	s.mu.Unlock()

	var errs []error
	for i := len(mounts) - 1; i >= 0; i-- {
		m := mounts[i]
		if _, err := s.runner.Run(ctx, "", "umount", m.target); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
