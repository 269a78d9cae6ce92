// Package epub reads EPUB containers for the reflow pipeline.
//
// A Book owns every resource: spine sections and manifest items are
// addressed by index, and sections reference resources through the
// book handle rather than back-pointers. Section content is streamed,
// never loaded whole.
package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/sumireader/sumi/internal/errs"
)

var (
	ErrMimetypeNotFound  = errors.New("mimetype file not found")
	ErrInvalidMimetype   = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrContainerNotFound = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound   = errors.New("OPF path not found in container.xml")
)

// Book is an open EPUB container.
type Book struct {
	zr      *zip.ReadCloser
	files   map[string]*zip.File
	opfPath string
	opf     *OPF
}

// Open opens and validates an EPUB file and parses its package
// document. The spine is available afterwards; section content is read
// on demand.
func Open(bookPath string) (*Book, error) {
	zr, err := zip.OpenReader(bookPath)
	if err != nil {
		return nil, errs.E(errs.ParseFailed, "epub.Open", err)
	}

	b := &Book{zr: zr, files: make(map[string]*zip.File)}
	for _, f := range zr.File {
		b.files[normalizePath(f.Name)] = f
	}

	if err := b.validateMimetype(); err != nil {
		zr.Close()
		return nil, errs.E(errs.InvalidFormat, "epub.Open", err)
	}
	if err := b.parseContainer(); err != nil {
		zr.Close()
		return nil, errs.E(errs.ParseFailed, "epub.Open", err)
	}

	opfData, err := b.ReadFile(b.opfPath)
	if err != nil {
		zr.Close()
		return nil, errs.E(errs.ParseFailed, "epub.Open", err)
	}
	opf, err := ParseOPF(opfData, path.Dir(b.opfPath))
	if err != nil {
		zr.Close()
		return nil, errs.E(errs.ParseFailed, "epub.Open", err)
	}
	b.opf = opf
	return b, nil
}

// Close releases the container.
func (b *Book) Close() error {
	return b.zr.Close()
}

// OPF returns the parsed package document.
func (b *Book) OPF() *OPF { return b.opf }

// SpineCount returns the number of spine sections.
func (b *Book) SpineCount() int { return len(b.opf.Spine) }

// SectionHref returns the href of spine section i.
func (b *Book) SectionHref(i int) (string, error) {
	if i < 0 || i >= len(b.opf.Spine) {
		return "", fmt.Errorf("spine index %d out of range (have %d)", i, len(b.opf.Spine))
	}
	item, ok := b.opf.Manifest[b.opf.Spine[i].IDRef]
	if !ok {
		return "", fmt.Errorf("spine item %q not in manifest", b.opf.Spine[i].IDRef)
	}
	return item.Href, nil
}

// OpenSection returns a streaming reader over spine section i.
func (b *Book) OpenSection(i int) (io.ReadCloser, error) {
	href, err := b.SectionHref(i)
	if err != nil {
		return nil, err
	}
	f, ok := b.files[normalizePath(href)]
	if !ok {
		return nil, fmt.Errorf("section file not found: %s", href)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open section %s: %w", href, err)
	}
	return rc, nil
}

// ReadFile reads a whole file from the container by path.
func (b *Book) ReadFile(p string) ([]byte, error) {
	f, ok := b.files[normalizePath(p)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", p, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Has reports whether the container holds the path.
func (b *Book) Has(p string) bool {
	_, ok := b.files[normalizePath(p)]
	return ok
}

// ResolveHref resolves a relative href against the file it appears in.
func ResolveHref(fromFile, href string) string {
	href = strings.SplitN(href, "#", 2)[0]
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return normalizePath(href)
	}
	return normalizePath(path.Join(path.Dir(fromFile), href))
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

func (b *Book) validateMimetype() error {
	if _, ok := b.files["mimetype"]; !ok {
		return ErrMimetypeNotFound
	}
	// EPUB requires the mimetype entry to be stored uncompressed, but
	// real books violate this; the content check is what matters.
	content, err := b.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if strings.TrimSpace(string(content)) != "application/epub+zip" {
		return ErrInvalidMimetype
	}
	return nil
}

func (b *Book) parseContainer() error {
	content, err := b.ReadFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}
	var c container
	if err := parseXML(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			b.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}
	if len(c.Rootfiles.Rootfile) > 0 {
		b.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}
	return ErrOPFPathNotFound
}

func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return path.Clean(p)
}
