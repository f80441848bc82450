// Package kickstart parses the subset of kickstart file syntax combirepo
// needs to read: repo declarations, the %packages section, and image
// partition labels (spec.md §4, image-builder handoff).
package kickstart

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Repo is one "repo --name=<alias> --baseurl=<url>" declaration.
type Repo struct {
	Name    string
	BaseURL string
}

// Partition is one "part --label=<name> /<mountpoint>" declaration.
type Partition struct {
	Label      string
	MountPoint string
}

// File is the parsed subset of a kickstart file combirepo acts on.
type File struct {
	Repos      []Repo
	Packages   []string
	Groups     []string
	Partitions []Partition
}

// Parse reads a kickstart file from r.
func Parse(r io.Reader) (File, error) {
	var f File
	sc := bufio.NewScanner(r)
	inPackages := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "%packages"):
			inPackages = true
			continue
		case line == "%end":
			inPackages = false
			continue
		case inPackages:
			if strings.HasPrefix(line, "@") {
				f.Groups = append(f.Groups, strings.TrimPrefix(line, "@"))
			} else {
				f.Packages = append(f.Packages, line)
			}
		case strings.HasPrefix(line, "repo "):
			repo, err := parseRepoLine(line)
			if err != nil {
				return File{}, err
			}
			f.Repos = append(f.Repos, repo)
		case strings.HasPrefix(line, "part "):
			f.Partitions = append(f.Partitions, parsePartLine(line))
		}
	}
	if err := sc.Err(); err != nil {
		return File{}, errors.Wrap(err, "scanning kickstart file")
	}
	return f, nil
}

func parseRepoLine(line string) (Repo, error) {
	fields := splitOptionFields(line)
	var repo Repo
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "--name="):
			repo.Name = unquote(strings.TrimPrefix(f, "--name="))
		case strings.HasPrefix(f, "--baseurl="):
			repo.BaseURL = unquote(strings.TrimPrefix(f, "--baseurl="))
		}
	}
	if repo.Name == "" {
		return Repo{}, errors.Errorf("kickstart repo line missing --name: %q", line)
	}
	return repo, nil
}

func parsePartLine(line string) Partition {
	fields := splitOptionFields(line)
	var p Partition
	for _, f := range fields {
		if strings.HasPrefix(f, "--label=") {
			p.Label = unquote(strings.TrimPrefix(f, "--label="))
		} else if strings.HasPrefix(f, "/") {
			p.MountPoint = f
		}
	}
	return p
}

func splitOptionFields(line string) []string {
	return strings.Fields(line)
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

// PackageNames returns every explicit (non-group) package name the
// kickstart's %packages section lists.
func (f File) PackageNames() []string {
	return append([]string(nil), f.Packages...)
}
