package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// OPF is the parsed package document, reduced to what the reader needs.
type OPF struct {
	Title    string
	Author   string
	Language string
	Manifest map[string]ManifestItem // id -> item
	Spine    []SpineItem
	NCXPath  string
	NavPath  string // EPUB 3 nav document
	CoverID  string
}

// ManifestItem is one manifest entry; Href is container-absolute.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem is one reading-order entry.
type SpineItem struct {
	IDRef  string
	Linear bool
}

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title   []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator []struct {
		Name string `xml:",chardata"`
	} `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language []string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Meta     []struct {
		Name    string `xml:"name,attr"`
		Content string `xml:"content,attr"`
	} `xml:"meta"`
}

type opfManifest struct {
	Items []struct {
		ID         string `xml:"id,attr"`
		Href       string `xml:"href,attr"`
		MediaType  string `xml:"media-type,attr"`
		Properties string `xml:"properties,attr"`
	} `xml:"item"`
}

type opfSpine struct {
	Toc      string `xml:"toc,attr"`
	ItemRefs []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"itemref"`
}

// ParseOPF parses package document content. opfDir is the container
// directory holding the OPF; hrefs are resolved against it.
func ParseOPF(content []byte, opfDir string) (*OPF, error) {
	var pkg opfPackage
	if err := parseXML(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{Manifest: make(map[string]ManifestItem)}

	if len(pkg.Metadata.Title) > 0 {
		opf.Title = strings.TrimSpace(pkg.Metadata.Title[0])
	}
	if len(pkg.Metadata.Creator) > 0 {
		opf.Author = strings.TrimSpace(pkg.Metadata.Creator[0].Name)
	}
	if len(pkg.Metadata.Language) > 0 {
		opf.Language = pkg.Metadata.Language[0]
	}
	for _, m := range pkg.Metadata.Meta {
		if m.Name == "cover" && m.Content != "" {
			opf.CoverID = m.Content
			break
		}
	}

	for _, item := range pkg.Manifest.Items {
		mi := ManifestItem{
			ID:        item.ID,
			Href:      joinHref(opfDir, item.Href),
			MediaType: item.MediaType,
		}
		if item.Properties != "" {
			mi.Properties = strings.Fields(item.Properties)
		}
		for _, prop := range mi.Properties {
			if prop == "nav" {
				opf.NavPath = mi.Href
			}
		}
		opf.Manifest[item.ID] = mi
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := opf.Manifest[ref.IDRef]
		if !ok || !isContentDoc(item.MediaType) {
			continue
		}
		opf.Spine = append(opf.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		})
	}

	if pkg.Spine.Toc != "" {
		if ncx, ok := opf.Manifest[pkg.Spine.Toc]; ok {
			opf.NCXPath = ncx.Href
		}
	}
	return opf, nil
}

// CoverHref finds the cover image: EPUB 3 cover-image property first,
// then the EPUB 2 meta name="cover" reference.
func (opf *OPF) CoverHref() (string, bool) {
	for _, item := range opf.Manifest {
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				return item.Href, true
			}
		}
	}
	if opf.CoverID != "" {
		if item, ok := opf.Manifest[opf.CoverID]; ok {
			return item.Href, true
		}
	}
	return "", false
}

func isContentDoc(mediaType string) bool {
	return strings.Contains(mediaType, "html") || strings.Contains(mediaType, "xhtml")
}

func joinHref(base, href string) string {
	if base == "" || base == "." {
		return normalizePath(href)
	}
	return normalizePath(path.Join(base, href))
}

// parseXML unmarshals with a tolerant charset policy: book XML declares
// encodings the stdlib decoder rejects even when the bytes are UTF-8.
func parseXML(content []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec.Decode(v)
}
