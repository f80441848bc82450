// Package metadata implements the metadata loader (C1, spec.md §4.1): reads
// an already-materialized repository index and returns its flat package
// list with provides/requires/file-list populated.
//
// XML parsing uses encoding/xml (stdlib); no third-party XML library appears
// anywhere in the retrieved example corpus (google-deps.dev's maven parser,
// the closest analog, is itself stdlib encoding/xml — see DESIGN.md).
package metadata

import (
	"compress/gzip"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/combirepo/combirepo/internal/rpmerrs"
	"github.com/combirepo/combirepo/internal/rpmpkg"
)

// repomd is the top-level repodata index: repodata/repomd.xml.
type repomd struct {
	XMLName xml.Name   `xml:"repomd"`
	Data    []repoData `xml:"data"`
}

type repoData struct {
	Type     string `xml:"type,attr"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
}

// primary is the primary.xml(.gz) package metadata document.
type primary struct {
	XMLName  xml.Name        `xml:"metadata"`
	Packages []primaryPkgXML `xml:"package"`
}

type primaryPkgXML struct {
	Name string `xml:"name"`
	Arch string `xml:"arch"`
	Version struct {
		Ver string `xml:"ver,attr"`
		Rel string `xml:"rel,attr"`
	} `xml:"version"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Format struct {
		Provides provideListXML `xml:"provides"`
		Requires requireListXML `xml:"requires"`
		Files    []fileEntryXML `xml:"file"`
	} `xml:"format"`
}

type provideListXML struct {
	Entries []entryXML `xml:"entry"`
}

type requireListXML struct {
	Entries []entryXML `xml:"entry"`
}

type entryXML struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type fileEntryXML struct {
	Path string `xml:",chardata"`
}

// Load reads the repository index rooted at dir for architecture arch and
// returns its flat package list (spec.md §4.1).
//
// dontuse-sentinel filenames, off-architecture packages (neither arch nor
// "noarch"), and debuginfo/debugsource packages are dropped.
func Load(dir, arch string) ([]rpmpkg.Package, error) {
	repomdPath := filepath.Join(dir, "repodata", "repomd.xml")
	primaryPath, err := findPrimaryLocation(repomdPath)
	if err != nil {
		return nil, &rpmerrs.MetadataError{URL: dir, Cause: err}
	}

	doc, err := parsePrimary(filepath.Join(dir, primaryPath))
	if err != nil {
		return nil, &rpmerrs.MetadataError{URL: dir, Cause: err}
	}

	index, err := indexLocations(dir)
	if err != nil {
		return nil, &rpmerrs.MetadataError{URL: dir, Cause: err}
	}

	var out []rpmpkg.Package
	for _, p := range doc.Packages {
		if strings.Contains(p.Location.Href, "dontuse") {
			continue
		}
		if p.Arch != arch && p.Arch != "noarch" {
			continue
		}
		if strings.Contains(p.Name, "debuginfo") || strings.Contains(p.Name, "debugsource") {
			continue
		}

		loc, ok := index[filepath.Base(p.Location.Href)]
		if !ok {
			loc = filepath.Join(dir, p.Location.Href)
			if _, statErr := os.Stat(loc); statErr != nil {
				return nil, &rpmerrs.LocationNotFoundError{PackageName: p.Name, Location: loc}
			}
		}

		out = append(out, toPackage(p, loc))
	}
	return out, nil
}

func findPrimaryLocation(repomdPath string) (string, error) {
	f, err := os.Open(repomdPath)
	if err != nil {
		return "", errors.Wrapf(err, "opening repomd index %q", repomdPath)
	}
	defer f.Close()

	var doc repomd
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return "", errors.Wrapf(err, "decoding repomd index %q", repomdPath)
	}
	for _, d := range doc.Data {
		if d.Type == "primary" {
			return d.Location.Href, nil
		}
	}
	return "", errors.Errorf("repomd index %q has no primary data entry", repomdPath)
}

func parsePrimary(path string) (*primary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening primary metadata %q", path)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing primary metadata %q", path)
		}
		defer gz.Close()
		dec = xml.NewDecoder(gz)
	}

	var doc primary
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "decoding primary metadata %q", path)
	}
	return &doc, nil
}

// indexLocations walks dir with godirwalk and returns a basename -> absolute
// path index, used to resolve a package's on-disk location even when the
// index's recorded href has drifted from the actual tree layout.
func indexLocations(dir string) (map[string]string, error) {
	index := map[string]string{}
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if strings.HasSuffix(path, ".rpm") {
				index[filepath.Base(path)] = path
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking repository tree %q", dir)
	}
	return index, nil
}

func toPackage(p primaryPkgXML, location string) rpmpkg.Package {
	provides := map[string]struct{}{}
	for _, e := range p.Format.Provides.Entries {
		provides[e.Name] = struct{}{}
	}

	files := map[string]struct{}{}
	for _, fe := range p.Format.Files {
		files[strings.TrimSpace(fe.Path)] = struct{}{}
	}

	requires := make([]rpmpkg.Requirement, 0, len(p.Format.Requires.Entries))
	for _, e := range p.Format.Requires.Entries {
		requires = append(requires, rpmpkg.Requirement{
			Symbol:   e.Name,
			Relation: relationFromFlags(e.Flags),
			EVR:      rpmpkg.EVR{Epoch: e.Epoch, Version: e.Ver, Release: e.Rel},
		})
	}

	return rpmpkg.Package{
		Name:         p.Name,
		Version:      p.Version.Ver,
		Release:      p.Version.Rel,
		Architecture: p.Arch,
		Location:     location,
		Provides:     provides,
		Requires:     requires,
		FileList:     files,
	}
}

func relationFromFlags(flags string) rpmpkg.Relation {
	switch flags {
	case "EQ":
		return rpmpkg.RelationEQ
	case "GE":
		return rpmpkg.RelationGE
	case "LE":
		return rpmpkg.RelationLE
	case "GT":
		return rpmpkg.RelationGT
	case "LT":
		return rpmpkg.RelationLT
	default:
		return rpmpkg.RelationNone
	}
}
