// Package parser reads IMS content packages holding QTI assessment items.
package parser

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
)

var ErrNoManifest = errors.New("imsmanifest.xml not found")

// Manifest lists the package's resources in document order.
type Manifest struct {
	Resources []ManifestResource
}

type ManifestResource struct {
	Identifier string
	Href       string
	Type       string
	Files      []string
}

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string    `xml:"identifier,attr"`
	Href       string    `xml:"href,attr"`
	Type       string    `xml:"type,attr"`
	Files      []imsFile `xml:"file"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}

// OpenZip exposes a zipped package as a file system.
func OpenZip(r io.ReaderAt, size int64) (fs.FS, error) {
	return zip.NewReader(r, size)
}

// ParseManifest reads the manifest at the package root and returns it with
// the hrefs of the item documents it references.
func ParseManifest(fsys fs.FS) (Manifest, []string, error) {
	var b []byte
	var err error
	for _, name := range []string{"imsmanifest.xml", "manifest.xml"} {
		b, err = fs.ReadFile(fsys, name)
		if err == nil {
			break
		}
	}
	if err != nil {
		return Manifest{}, nil, ErrNoManifest
	}

	var mf imsManifest
	if err := xml.Unmarshal(b, &mf); err != nil {
		return Manifest{}, nil, err
	}

	var out Manifest
	var items []string
	for _, r := range mf.Resources {
		res := ManifestResource{
			Identifier: r.Identifier,
			Href:       r.Href,
			Type:       r.Type,
		}
		for _, f := range r.Files {
			res.Files = append(res.Files, f.Href)
		}
		out.Resources = append(out.Resources, res)
		href := strings.ToLower(r.Href)
		if strings.HasSuffix(href, ".xml") && !strings.Contains(path.Base(href), "manifest") {
			items = append(items, r.Href)
		}
	}
	return out, items, nil
}
