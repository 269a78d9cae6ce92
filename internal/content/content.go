// Package content provides the uniform handle over the supported book
// formats. The format set is a closed variant: the reflow pipeline and
// the reader specialize on the type directly instead of going through
// an interface on the hot path.
package content

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/epub"
	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/reflow"
	"github.com/sumireader/sumi/internal/storage"
	"github.com/sumireader/sumi/internal/xtc"
)

// Type tags the content variant.
type Type uint8

const (
	TypeNone Type = iota
	TypeEpub
	TypeXtc
	TypeTxt
	TypeMarkdown
)

func (t Type) String() string {
	switch t {
	case TypeEpub:
		return "epub"
	case TypeXtc:
		return "xtc"
	case TypeTxt:
		return "txt"
	case TypeMarkdown:
		return "markdown"
	default:
		return "none"
	}
}

// cachePrefix names the per-book cache directory family.
func (t Type) cachePrefix() string {
	switch t {
	case TypeEpub:
		return "epub"
	case TypeXtc:
		return "xtc"
	default:
		return "txt"
	}
}

// Hint is the authoring-time content hint steering reader defaults.
type Hint uint8

const (
	HintGeneric Hint = iota
	HintBook
	HintScannedBook
	HintComicLTR
	HintComicRTL
	HintWebtoon
	HintNewspaper
	HintClipped
)

// DetectType classifies a book file by extension, case-insensitive.
func DetectType(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return TypeEpub
	case ".xtc", ".xtch", ".xtg", ".xth":
		return TypeXtc
	case ".txt":
		return TypeTxt
	case ".md", ".markdown":
		return TypeMarkdown
	default:
		return TypeNone
	}
}

// Supported reports whether the file name has a supported extension.
func Supported(name string) bool {
	return DetectType(name) != TypeNone
}

// Metadata is what the shell needs to present a book.
type Metadata struct {
	Title           string
	Author          string
	CoverPath       string
	CachePath       string
	TotalPages      uint32 // spine count / absolute pages / byte size
	CurrentPage     uint32
	ProgressPercent uint8
	Type            Type
	Hint            Hint
}

// TocEntry is one flat table-of-contents row. PageIndex is the spine
// index for EPUB and the absolute page for XTC.
type TocEntry struct {
	Title     string
	PageIndex uint32
	Depth     uint8
}

// Handle is the open-book variant. At most one handle is open at a
// time; Close releases everything deterministically.
type Handle struct {
	typ      Type
	path     string
	cacheDir string
	meta     Metadata

	epubBook   *epub.Book
	epubImages *epub.ImageCache
	epubToc    []TocEntry
	xtcBook    *xtc.Book
}

// Open opens a book and populates its metadata. Only enough of the file
// is parsed to fill the metadata; content is streamed later.
func Open(store *storage.Store, bookPath string) (*Handle, error) {
	typ := DetectType(bookPath)
	if typ == TypeNone {
		return nil, errs.E(errs.InvalidFormat, "content.Open",
			fmt.Errorf("unsupported extension: %s", filepath.Ext(bookPath)))
	}
	abs := bookPath
	if !filepath.IsAbs(abs) {
		abs = store.Abs(bookPath)
	}
	if !storage.Exists(abs) {
		return nil, errs.E(errs.FileNotFound, "content.Open", fmt.Errorf("no such book: %s", abs))
	}

	h := &Handle{
		typ:      typ,
		path:     abs,
		cacheDir: store.CacheDirFor(abs, typ.cachePrefix()),
	}
	if err := storage.MkdirAll(h.cacheDir); err != nil {
		return nil, err
	}

	h.meta = Metadata{
		Title:     strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
		CachePath: h.cacheDir,
		Type:      typ,
		Hint:      HintGeneric,
	}

	var err error
	switch typ {
	case TypeEpub:
		err = h.openEpub()
	case TypeXtc:
		err = h.openXtc()
	case TypeTxt, TypeMarkdown:
		err = h.openText()
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) openEpub() error {
	book, err := epub.Open(h.path)
	if err != nil {
		return err
	}
	h.epubBook = book
	opf := book.OPF()
	if opf.Title != "" {
		h.meta.Title = opf.Title
	}
	h.meta.Author = opf.Author
	h.meta.TotalPages = uint32(book.SpineCount())
	h.meta.Hint = HintBook

	for _, e := range book.TOC() {
		spine := book.SpineIndexFor(e.Href)
		if spine < 0 {
			continue
		}
		h.epubToc = append(h.epubToc, TocEntry{
			Title:     e.Title,
			PageIndex: uint32(spine),
			Depth:     e.Depth,
		})
	}
	return nil
}

func (h *Handle) openXtc() error {
	book, err := xtc.Open(h.path)
	if err != nil {
		return err
	}
	h.xtcBook = book
	if book.Title() != "" {
		h.meta.Title = book.Title()
	}
	h.meta.Author = book.Author()
	h.meta.TotalPages = book.PageCount()
	if book.Grayscale() {
		h.meta.Hint = HintScannedBook
	}
	return nil
}

func (h *Handle) openText() error {
	info, err := os.Stat(h.path)
	if err != nil {
		return errs.E(errs.IOError, "content.Open", err)
	}
	h.meta.TotalPages = uint32(info.Size())
	return nil
}

// Close releases all underlying resources.
func (h *Handle) Close() error {
	var err error
	if h.epubBook != nil {
		err = h.epubBook.Close()
		h.epubBook = nil
	}
	if h.xtcBook != nil {
		if cerr := h.xtcBook.Close(); err == nil {
			err = cerr
		}
		h.xtcBook = nil
	}
	h.typ = TypeNone
	return err
}

// Type returns the variant tag.
func (h *Handle) Type() Type { return h.typ }

// Path returns the absolute book path.
func (h *Handle) Path() string { return h.path }

// CacheDir returns the per-book cache directory.
func (h *Handle) CacheDir() string { return h.cacheDir }

// Metadata returns the populated book metadata.
func (h *Handle) Metadata() Metadata { return h.meta }

// SetProgress updates the transient progress fields of the metadata.
func (h *Handle) SetProgress(current, total uint32) {
	h.meta.CurrentPage = current
	if total > 0 {
		h.meta.ProgressPercent = uint8(current * 100 / total)
	}
}

// PageCount is format-appropriate: spine sections for EPUB, absolute
// pages for XTC, 1 for text formats (pagination is a reader concern).
func (h *Handle) PageCount() uint32 {
	switch h.typ {
	case TypeEpub:
		return uint32(h.epubBook.SpineCount())
	case TypeXtc:
		return h.xtcBook.PageCount()
	case TypeTxt, TypeMarkdown:
		return 1
	default:
		return 0
	}
}

// Xtc exposes the underlying XTC book to the page renderer.
func (h *Handle) Xtc() *xtc.Book { return h.xtcBook }

// Epub exposes the underlying EPUB book.
func (h *Handle) Epub() *epub.Book { return h.epubBook }

// TocCount returns the number of flat TOC entries.
func (h *Handle) TocCount() int {
	switch h.typ {
	case TypeEpub:
		return len(h.epubToc)
	case TypeXtc:
		return len(h.xtcBook.Chapters())
	default:
		return 0
	}
}

// TocEntry returns entry i. XTC chapters are flat (depth 0); EPUB
// preserves nav nesting depth.
func (h *Handle) TocEntry(i int) (TocEntry, error) {
	if i < 0 || i >= h.TocCount() {
		return TocEntry{}, errs.E(errs.InvalidState, "content.TocEntry",
			fmt.Errorf("toc index %d out of range", i))
	}
	switch h.typ {
	case TypeEpub:
		return h.epubToc[i], nil
	case TypeXtc:
		ch := h.xtcBook.Chapters()[i]
		return TocEntry{Title: ch.Name, PageIndex: ch.StartPage}, nil
	}
	return TocEntry{}, errs.E(errs.InvalidOperation, "content.TocEntry", nil)
}

// NewPaginator builds the streaming pagination pipeline for one section
// of a reflowable book. The returned closer releases the section
// reader; XTC books have no paginator.
func (h *Handle) NewPaginator(section int, cfg config.RenderConfig, m fonts.Measurer) (*reflow.Layout, io.Closer, error) {
	switch h.typ {
	case TypeEpub:
		rc, err := h.epubBook.OpenSection(section)
		if err != nil {
			return nil, nil, errs.E(errs.ParseFailed, "content.NewPaginator", err)
		}
		if h.epubImages == nil {
			h.epubImages = epub.NewImageCache(h.epubBook, h.cacheDir, cfg.TextWidth(), cfg.TextHeight())
		}
		var resolve reflow.ImageResolver
		if cfg.ShowImages {
			resolve = h.epubImages.Resolver(section)
		}
		parser := reflow.NewHTMLParser(rc, resolve)
		return reflow.NewLayout(parser, m, cfg), rc, nil
	case TypeTxt, TypeMarkdown:
		f, err := os.Open(h.path)
		if err != nil {
			return nil, nil, errs.E(errs.IOError, "content.NewPaginator", err)
		}
		var parser reflow.Parser
		if h.typ == TypeMarkdown {
			parser = reflow.NewMarkdownParser(f)
		} else {
			parser = reflow.NewTxtParser(f)
		}
		return reflow.NewLayout(parser, m, cfg), f, nil
	default:
		return nil, nil, errs.E(errs.InvalidOperation, "content.NewPaginator",
			fmt.Errorf("%s content has no paginator", h.typ))
	}
}

// CacheFileFor returns the page-cache path for a section under the
// current config: per-spine-section files for EPUB, one per font id for
// text formats.
func (h *Handle) CacheFileFor(section int, cfg config.RenderConfig) string {
	if h.typ == TypeEpub {
		return filepath.Join(h.cacheDir, "sections", fmt.Sprintf("%d.bin", section))
	}
	return filepath.Join(h.cacheDir, fmt.Sprintf("pages_%s.bin", cfg.FontID))
}
