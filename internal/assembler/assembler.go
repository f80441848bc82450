// Package assembler implements the combined repository assembler (C6,
// spec.md §4.6): given the counterpart analyzer's copy tasks and the
// patcher's resolved paths, it populates the output directory with symlinks
// or copies, preserving each package's original basename.
package assembler

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"

	"github.com/combirepo/combirepo/internal/combilog"
	"github.com/combirepo/combirepo/internal/counterpart"
)

// Config carries the assembler's run-level settings.
type Config struct {
	OutputDir string
	// UseSymlinks selects symlinking over copying for same-filesystem
	// sources (spec.md §4.6); copying is always used as the fallback when
	// symlinking fails (e.g. cross-filesystem).
	UseSymlinks bool
}

// Assembler populates an output directory from a repository pair's copy and
// patch-resolved tasks.
type Assembler struct {
	cfg Config
	log *combilog.Loggers
}

// New returns a ready Assembler.
func New(cfg Config, log *combilog.Loggers) *Assembler {
	return &Assembler{cfg: cfg, log: log}
}

// PlaceCopyTasks places every plain copy/symlink task's source at its
// destination basename inside the output directory.
func (a *Assembler) PlaceCopyTasks(tasks []counterpart.CopyTask) error {
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %q", a.cfg.OutputDir)
	}
	for _, t := range tasks {
		dest := filepath.Join(a.cfg.OutputDir, t.DestinationPath)
		if err := a.place(t.SourcePath, dest); err != nil {
			return errors.Wrapf(err, "placing package %q", t.PackageName)
		}
	}
	return nil
}

// PlaceResolvedPatches places every patch task's rebuilt (or idle-mode
// passthrough) RPM, keyed by destination path, into the output directory.
func (a *Assembler) PlaceResolvedPatches(resolved map[string]string) error {
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %q", a.cfg.OutputDir)
	}
	for destName, sourcePath := range resolved {
		dest := filepath.Join(a.cfg.OutputDir, destName)
		if err := a.place(sourcePath, dest); err != nil {
			return errors.Wrapf(err, "placing resolved patch output %q", destName)
		}
	}
	return nil
}

// place links or copies src to dest, always falling back to a copy when
// symlinking is disabled or fails.
func (a *Assembler) place(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	_ = os.Remove(dest)

	if a.cfg.UseSymlinks {
		if err := os.Symlink(src, dest); err == nil {
			return nil
		} else if a.log != nil {
			a.log.Debugf("symlinking %q to %q failed, falling back to copy: %v", src, dest, err)
		}
	}

	_, err := shutil.Copy(src, dest, false)
	return err
}

// CopyAuxiliaryMetadata copies repodata-adjacent files (comps/group and
// patterns XML) from the original repository directory into the output
// directory unchanged, walking the tree with godirwalk the way
// metadata.indexLocations does (spec.md §4.6).
func CopyAuxiliaryMetadata(originalDir, outputDir string) error {
	repodataSrc := filepath.Join(originalDir, "repodata")
	if _, err := os.Stat(repodataSrc); os.IsNotExist(err) {
		return nil
	}

	repodataDst := filepath.Join(outputDir, "repodata")
	if err := os.MkdirAll(repodataDst, 0o755); err != nil {
		return errors.Wrapf(err, "creating %q", repodataDst)
	}

	return godirwalk.Walk(repodataSrc, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := filepath.Base(path)
			if !isAuxiliaryMetadataFile(name) {
				return nil
			}
			dst := filepath.Join(repodataDst, name)
			_, err := shutil.Copy(path, dst, false)
			return err
		},
		Unsorted: true,
	})
}

func isAuxiliaryMetadataFile(name string) bool {
	for _, suffix := range []string{"comps.xml", "comps.xml.gz", "patterns.xml", "patterns.xml.gz"} {
		if filepath.Ext(name) == filepath.Ext(suffix) && len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}
