package pagecache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/storage"
)

// Cache file layout, little-endian:
//
//	u32 magic "SUMI"
//	u8  version
//	u32 config fingerprint
//	u32 page count
//	u8  partial flag
//	u32 offset[pageCount]   byte offsets into the data section
//	page records
const (
	Magic   = 0x494D5553 // "SUMI"
	Version = 1
)

// extendMargin is how close to the tail of a partial cache a page may be
// before NeedsExtension reports true.
const extendMargin = 2

// Anchor maps a named in-document location to a page index.
type Anchor struct {
	ID   string
	Page uint16
}

// Paginator produces page records in document order. NextPage returns
// io.EOF after the last page. TakeAnchors drains the anchors resolved
// since the previous call; their page indices are paginator-local and
// are rebased by the cache.
type Paginator interface {
	NextPage() (*Page, error)
	TakeAnchors() []Anchor
}

// Cache is one on-disk pagination index.
type Cache struct {
	path        string
	fingerprint uint32
	partial     bool
	index       []uint32
	dataStart   int64
	loaded      bool
}

// New points a cache at its file path. Nothing is read until Load.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache file path.
func (c *Cache) Path() string { return c.path }

// AnchorsPath returns the sidecar path.
func (c *Cache) AnchorsPath() string { return c.path + ".anchors" }

// PageCount returns the number of cached pages.
func (c *Cache) PageCount() int { return len(c.index) }

// IsPartial reports whether pagination stopped mid-document.
func (c *Cache) IsPartial() bool { return c.partial }

// Loaded reports whether Load or Create has populated the cache.
func (c *Cache) Loaded() bool { return c.loaded }

// NeedsExtension reports whether pageNum is close enough to the tail of
// a partial cache that more pages should be paginated.
func (c *Cache) NeedsExtension(pageNum int) bool {
	return c.partial && pageNum >= len(c.index)-extendMargin
}

// Load opens and validates the cache file against the current config.
// Any mismatch (missing file, bad magic, version, fingerprint) leaves
// the cache empty and returns false. Book contents are not parsed.
func (c *Cache) Load(cfg config.RenderConfig) bool {
	c.reset()
	f, err := os.Open(c.path)
	if err != nil {
		return false
	}
	defer f.Close()

	fingerprint := cfg.Fingerprint()
	hdr, err := readHeader(f)
	if err != nil {
		return false
	}
	if hdr.fingerprint != fingerprint {
		return false
	}

	index := make([]uint32, hdr.pageCount)
	if err := binary.Read(f, binary.LittleEndian, index); err != nil {
		return false
	}

	c.fingerprint = fingerprint
	c.partial = hdr.partial
	c.index = index
	c.dataStart = headerSize(int(hdr.pageCount))
	c.loaded = true
	return true
}

// Create paginates from a clean state, pulling pages from the paginator
// until end of document (partial=false), chunk pages are written
// (partial=true), or shouldAbort returns true (consistent partial
// state). chunk <= 0 means no limit.
func (c *Cache) Create(p Paginator, cfg config.RenderConfig, chunk int, shouldAbort func() bool) error {
	c.reset()
	c.fingerprint = cfg.Fingerprint()
	c.partial = true
	c.loaded = true
	return c.appendPages(p, nil, chunk, shouldAbort)
}

// Extend appends up to chunk more pages onto a partial cache. The
// paginator must be aligned with the cache's last written page. If
// aborted before producing anything, the file is left unchanged.
func (c *Cache) Extend(p Paginator, chunk int, shouldAbort func() bool) error {
	if !c.loaded {
		return fmt.Errorf("extend on unloaded cache %s", c.path)
	}
	if !c.partial {
		return nil
	}
	existing, err := c.readDataSection()
	if err != nil {
		return fmt.Errorf("failed to read cache data: %w", err)
	}
	return c.appendPages(p, existing, chunk, shouldAbort)
}

// Clear deletes the cache file and sidecar and empties the cache.
func (c *Cache) Clear() error {
	c.reset()
	if err := storage.Remove(c.AnchorsPath()); err != nil {
		return err
	}
	return storage.Remove(c.path)
}

// LoadPage reads page i via the offset index. Returns an error on I/O
// failure or out-of-range.
func (c *Cache) LoadPage(i int) (*Page, error) {
	if !c.loaded || i < 0 || i >= len(c.index) {
		return nil, fmt.Errorf("page %d out of range (have %d)", i, len(c.index))
	}
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(c.dataStart+int64(c.index[i]), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to page %d: %w", i, err)
	}
	return decodePage(f)
}

func (c *Cache) reset() {
	c.fingerprint = 0
	c.partial = false
	c.index = nil
	c.dataStart = 0
	c.loaded = false
}

// appendPages pulls pages, appends their records to existing data, and
// commits the file once the pull loop ends. newIndexBase carries over
// previously written offsets.
func (c *Cache) appendPages(p Paginator, existing []byte, chunk int, shouldAbort func() bool) error {
	data := bytes.NewBuffer(existing)
	index := append([]uint32(nil), c.index...)
	basePages := len(index)
	produced := 0
	sawEnd := false

	var anchors []Anchor
	for {
		if chunk > 0 && produced >= chunk {
			break
		}
		if shouldAbort != nil && shouldAbort() {
			break
		}
		page, err := p.NextPage()
		if errors.Is(err, io.EOF) {
			sawEnd = true
			break
		}
		if err != nil {
			// Commit what we have before reporting; the partial cache
			// stays usable.
			if produced > 0 {
				if werr := c.commit(index, data.Bytes(), true); werr != nil {
					return werr
				}
				c.mergeAnchors(anchors)
			}
			return fmt.Errorf("pagination failed after %d pages: %w", basePages+produced, err)
		}
		index = append(index, uint32(data.Len()))
		if err := page.encode(data); err != nil {
			return fmt.Errorf("failed to encode page %d: %w", basePages+produced, err)
		}
		for _, a := range p.TakeAnchors() {
			anchors = append(anchors, a)
		}
		produced++
	}

	// Aborted before producing anything new: leave the file untouched.
	if produced == 0 && !sawEnd {
		return nil
	}

	if err := c.commit(index, data.Bytes(), !sawEnd); err != nil {
		return err
	}
	// Anchors may resolve with the end-of-document flush.
	if sawEnd {
		anchors = append(anchors, p.TakeAnchors()...)
	}
	return c.mergeAnchors(anchors)
}

// commit writes header + index + data atomically and updates the
// in-memory view.
func (c *Cache) commit(index []uint32, data []byte, partial bool) error {
	buf := &bytes.Buffer{}
	fields := []any{
		uint32(Magic), uint8(Version), c.fingerprint,
		uint32(len(index)), boolByte(partial),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("failed to encode cache header: %w", err)
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, index); err != nil {
		return fmt.Errorf("failed to encode page index: %w", err)
	}
	buf.Write(data)

	if err := storage.WriteFileAtomic(c.path, buf.Bytes()); err != nil {
		return err
	}
	c.index = index
	c.partial = partial
	c.dataStart = headerSize(len(index))
	c.loaded = true
	return nil
}

// mergeAnchors folds newly resolved anchors into the sidecar. Anchor
// page indices are absolute because the paginator's page counter runs
// across create and extend calls.
func (c *Cache) mergeAnchors(anchors []Anchor) error {
	if len(anchors) == 0 {
		return nil
	}
	m, _ := LoadAnchors(c.AnchorsPath())
	if m == nil {
		m = AnchorMap{}
	}
	for _, a := range anchors {
		m[a.ID] = a.Page
	}
	return m.Save(c.AnchorsPath())
}

func (c *Cache) readDataSection() ([]byte, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.Seek(c.dataStart, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

type header struct {
	fingerprint uint32
	pageCount   uint32
	partial     bool
}

func readHeader(r io.Reader) (header, error) {
	var (
		magic       uint32
		version     uint8
		fingerprint uint32
		pageCount   uint32
		partial     uint8
	)
	fields := []any{&magic, &version, &fingerprint, &pageCount, &partial}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return header{}, err
		}
	}
	if magic != Magic {
		return header{}, fmt.Errorf("bad cache magic %08x", magic)
	}
	if version != Version {
		return header{}, fmt.Errorf("unsupported cache version %d", version)
	}
	return header{fingerprint: fingerprint, pageCount: pageCount, partial: partial != 0}, nil
}

func headerSize(pages int) int64 {
	return int64(4+1+4+4+1) + int64(4*pages)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
