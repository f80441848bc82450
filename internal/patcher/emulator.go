package patcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/combirepo/combirepo/internal/executil"
)

// archSynonyms groups architecture spellings the host/target comparison
// treats as identical (spec.md §4.5).
var archSynonyms = map[string][]string{
	"aarch64": {"arm64", "aarch64"},
	"arm64":   {"arm64", "aarch64"},
	"x86_64":  {"x86_64", "x86"},
	"x86":     {"x86_64", "x86"},
}

// isArmFamily reports whether arch belongs to the "arm*" synonym family
// (spec.md §4.5 lists "arm*" as its own synonym group, covering 32-bit ARM
// variants like armv7l that don't share aarch64's 64-bit synonyms).
func isArmFamily(arch string) bool {
	return strings.HasPrefix(arch, "arm") && !strings.HasPrefix(arch, "arm64")
}

// NeedsEmulation reports whether targetArch differs from hostArch once
// synonyms are applied.
func NeedsEmulation(hostArch, targetArch string) bool {
	if hostArch == targetArch {
		return false
	}
	if isArmFamily(hostArch) && isArmFamily(targetArch) {
		return false
	}
	return !sameSynonymGroup(hostArch, targetArch)
}

func sameSynonymGroup(a, b string) bool {
	for _, syn := range archSynonyms[a] {
		if syn == b {
			return true
		}
	}
	return false
}

// HandlerFlag is the binfmt_misc registration flag: "OC" for a plain
// emulator binary, "P" for a "-binfmt" wrapper (spec.md §4.5).
type HandlerFlag string

// HandlerFlag values.
const (
	FlagPlainEmulator HandlerFlag = "OC"
	FlagBinfmtWrapper HandlerFlag = "P"
)

// ELFSignature is the fixed magic/mask pair identifying a target
// architecture's ELF files, used to register a binfmt_misc handler.
type ELFSignature struct {
	Magic []byte
	Mask  []byte
}

// elfSignatures are the architecture ELF e_machine identification bytes
// combirepo knows how to register a handler for. Magic/mask values are the
// fixed constants spec.md §4.5 describes deriving from "ELF identifiers and
// machine-type fields".
var elfSignatures = map[string]ELFSignature{
	"aarch64": {
		Magic: []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0xb7, 0},
		Mask:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe, 0xff, 0xff, 0xff},
	},
	"armv7l": {
		Magic: []byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 40, 0},
		Mask:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe, 0xff, 0xff, 0xff},
	},
	"x86_64": {
		Magic: []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0x3e, 0},
		Mask:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe, 0xff, 0xff, 0xff},
	},
}

// BinfmtHandle is the scoped singleton handle of Design Notes §9: acquiring
// it disables pre-existing binary-format handlers on the host and registers
// a new one for the target architecture's emulator; releasing it unregisters
// that new handler. The handlers disabled on acquisition are not re-enabled
// by Release. It replaces the process-wide global registration the
// source tool performs with an explicit acquire/release pair.
type BinfmtHandle struct {
	runner       executil.Runner
	arch         string
	chrootRelPath string
	flag         HandlerFlag
	registered   bool
}

// AcquireBinfmtHandle disables every existing binfmt_misc handler on the
// host and registers one mapping targetArch's ELF signature to
// emulatorChrootPath (chroot-relative), using flag to select "OC" vs "P"
// semantics (spec.md §4.5).
func AcquireBinfmtHandle(ctx context.Context, runner executil.Runner, targetArch, emulatorChrootPath string, flag HandlerFlag) (*BinfmtHandle, error) {
	sig, ok := elfSignatures[targetArch]
	if !ok {
		return nil, errors.Errorf("no known ELF signature for architecture %q", targetArch)
	}

	if _, err := runner.Run(ctx, "", "sh", "-c", "for h in /proc/sys/fs/binfmt_misc/*; do [ -e \"$h\" ] && echo -1 > \"$h\" 2>/dev/null || true; done"); err != nil {
		return nil, errors.Wrap(err, "disabling existing binfmt handlers")
	}

	regLine := buildRegistrationLine(targetArch, sig, emulatorChrootPath, flag)
	if _, err := runner.Run(ctx, "", "sh", "-c", "echo '"+regLine+"' > /proc/sys/fs/binfmt_misc/register"); err != nil {
		return nil, errors.Wrap(err, "registering binfmt handler")
	}

	return &BinfmtHandle{runner: runner, arch: targetArch, chrootRelPath: emulatorChrootPath, flag: flag, registered: true}, nil
}

func buildRegistrationLine(name string, sig ELFSignature, chrootPath string, flag HandlerFlag) string {
	return ":" + name + ":M::" + hexEscape(sig.Magic) + ":" + hexEscape(sig.Mask) + ":" + chrootPath + ":" + string(flag)
}

func hexEscape(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteString("\\x")
		const hexDigits = "0123456789abcdef"
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0xf])
	}
	return sb.String()
}

// Release unregisters this handle's binfmt entry.
func (h *BinfmtHandle) Release(ctx context.Context) error {
	if !h.registered {
		return nil
	}
	h.registered = false
	_, err := h.runner.Run(ctx, "", "sh", "-c", "echo -1 > /proc/sys/fs/binfmt_misc/"+h.arch+" 2>/dev/null || true")
	return errors.Wrap(err, "releasing binfmt handler")
}

// EmulatorCandidate reports whether candidatePath, a host path inside
// chrootPath, is an acceptable emulator candidate: anything under a
// "bootstrap" subtree is rejected (spec.md §4.5 step 2).
func EmulatorCandidate(chrootPath, candidatePath string) bool {
	rel, err := filepath.Rel(chrootPath, candidatePath)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "bootstrap" {
			return false
		}
	}
	return true
}

// SelectRunnableEmulator runs "<candidate> --help" inside the chroot for
// each candidate in order and returns the first that does not fail with an
// OS-level load error (spec.md §4.5 step 2). Paths under "bootstrap" are
// excluded before this is ever called (see EmulatorCandidate).
func SelectRunnableEmulator(ctx context.Context, runner executil.Runner, chrootPath string, candidates []string) (string, error) {
	for _, c := range candidates {
		if !EmulatorCandidate(chrootPath, c) {
			continue
		}
		rel, _ := filepath.Rel(chrootPath, c)
		if _, err := runner.Run(ctx, chrootPath, "chroot", chrootPath, filepath.Join("/", rel), "--help"); err == nil {
			return c, nil
		}
	}
	return "", errors.New("no candidate emulator could be executed inside the chroot")
}
