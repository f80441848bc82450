package rpmver

import "github.com/Masterminds/semver"

// SemverComparator adapts github.com/Masterminds/semver as a Comparator for
// repositories whose version+release tokens happen to parse as semver. It
// answers the Design Notes' open question about swapping in a correct
// comparator without touching callers of Comparator.
type SemverComparator struct{}

// Compare implements Comparator. Tokens are rejoined with '.' and parsed as
// semantic versions; a parse failure on either side falls back to
// Lexicographic so that non-semver repositories keep working.
func (SemverComparator) Compare(a, b Tokens) (int, error) {
	av, aerr := semver.NewVersion(a.Join())
	bv, berr := semver.NewVersion(b.Join())
	if aerr != nil || berr != nil {
		return Lexicographic{}.Compare(a, b)
	}
	return av.Compare(bv), nil
}
