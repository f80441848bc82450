package patcher

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/combirepo/combirepo/internal/counterpart"
)

// Fingerprint computes the content-addressed cache key for a patch task:
// the canonical serialisation of (package_name, source_path,
// required_release, sorted(requirement_updates)), per spec.md §4.5.
// Grounded on the teacher's HashInputs (hash.go): sort the variable-length
// part first, then feed a stable field order into sha256.
func Fingerprint(t counterpart.PatchTask) string {
	updates := append([]counterpart.RequirementUpdate(nil), t.Updates...)
	sort.Slice(updates, func(i, j int) bool {
		if updates[i].Req.Symbol != updates[j].Req.Symbol {
			return updates[i].Req.Symbol < updates[j].Req.Symbol
		}
		return updates[i].Kind < updates[j].Kind
	})

	h := sha256.New()
	h.Write([]byte(t.PackageName))
	h.Write([]byte{0})
	h.Write([]byte(t.SourcePath))
	h.Write([]byte{0})
	h.Write([]byte(t.RequiredRelease))
	for _, u := range updates {
		h.Write([]byte{0, byte(u.Kind)})
		h.Write([]byte(u.Req.Symbol))
		h.Write([]byte{byte(u.Req.Relation)})
		h.Write([]byte(u.Req.EVR.Epoch))
		h.Write([]byte(u.Req.EVR.Version))
		h.Write([]byte(u.Req.EVR.Release))
	}
	return hex.EncodeToString(h.Sum(nil))
}
