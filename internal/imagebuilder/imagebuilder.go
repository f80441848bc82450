// Package imagebuilder defines the narrow external-process contract
// combirepo hands off to once the combined repository is assembled: invoke
// an external image-building tool over a kickstart file and inspect its
// output directory for produced images (spec.md §4, external interface).
package imagebuilder

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/combirepo/combirepo/internal/executil"
)

// Request is one invocation of the external image builder.
type Request struct {
	KickstartPath string
	Architecture  string
	OutputDir     string
	Options       []string
}

// Result is what the image builder produced.
type Result struct {
	ImagePaths []string
}

// Builder drives an external image-building executable.
type Builder struct {
	Runner  executil.Runner
	Command string // defaults to "mic" if empty
}

// Build invokes the external image builder and returns the *.img files it
// left in req.OutputDir.
func (b *Builder) Build(ctx context.Context, req Request) (Result, error) {
	cmd := b.Command
	if cmd == "" {
		cmd = "mic"
	}

	args := []string{"create", "fs", req.KickstartPath, "-A", req.Architecture, "-d", req.OutputDir}
	args = append(args, req.Options...)

	res, err := b.Runner.Run(ctx, "", cmd, args...)
	if err != nil {
		return Result{}, errors.Wrap(err, "invoking image builder")
	}
	if res.ExitCode != 0 {
		return Result{}, errors.Errorf("image builder exited %d:\n%s", res.ExitCode, string(res.Stderr))
	}

	images, err := findImages(req.OutputDir)
	if err != nil {
		return Result{}, err
	}
	return Result{ImagePaths: images}, nil
}

func findImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image builder output directory %q", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".img") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
