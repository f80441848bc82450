package rpmver

import "testing"

func TestSemverComparatorOrdersParsableVersions(t *testing.T) {
	got, err := (SemverComparator{}).Compare(Split("1.2.3"), Split("1.10.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got >= 0 {
		t.Errorf("Compare(1.2.3, 1.10.0) = %d, want negative", got)
	}
}

func TestSemverComparatorFallsBackOnUnparsable(t *testing.T) {
	got, err := (SemverComparator{}).Compare(Split("a.b.c"), Split("a.b.d"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got >= 0 {
		t.Errorf("fallback Compare(a.b.c, a.b.d) = %d, want negative", got)
	}
}
