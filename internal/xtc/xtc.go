// Package xtc reads the pre-paginated XTC book container: pages
// authored off-device as 1-bit bitmaps sized to the panel, or 2-bit
// grayscale stored as two independent bit planes (XTCH).
//
// Layout, little-endian:
//
//	u32 magic "XTC1"
//	u8  version
//	u8  flags        bit0: 2-bit grayscale
//	u16 width, u16 height
//	u32 page count
//	[64]byte title, [48]byte author   NUL padded
//	u16 chapter count
//	chapters: { [32]byte name, u32 startPage }
//	u32 pageOffset[pageCount]         absolute file offsets
//	page data: stride*height bytes per plane, one or two planes
package xtc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sumireader/sumi/internal/errs"
)

const (
	Magic   = 0x31435458 // "XTC1"
	Version = 1

	flagGrayscale = 0x01

	titleLen   = 64
	authorLen  = 48
	chapterLen = 32
)

// Chapter is one flat chapter mark.
type Chapter struct {
	Name      string
	StartPage uint32
}

// Book is an open XTC container.
type Book struct {
	f         *os.File
	width     uint16
	height    uint16
	grayscale bool
	pageCount uint32
	title     string
	author    string
	chapters  []Chapter
	offsets   []uint32
}

// Open parses the container header and page index.
func Open(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.E(errs.FileNotFound, "xtc.Open", err)
		}
		return nil, errs.E(errs.IOError, "xtc.Open", err)
	}

	b := &Book{f: f}
	if err := b.parseHeader(); err != nil {
		f.Close()
		return nil, errs.E(errs.ParseFailed, "xtc.Open", err)
	}
	return b, nil
}

// Close releases the file handle.
func (b *Book) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

func (b *Book) Title() string       { return b.title }
func (b *Book) Author() string      { return b.author }
func (b *Book) PageCount() uint32   { return b.pageCount }
func (b *Book) Width() uint16       { return b.width }
func (b *Book) Height() uint16      { return b.height }
func (b *Book) Grayscale() bool     { return b.grayscale }
func (b *Book) Chapters() []Chapter { return b.chapters }

// PlaneSize returns the byte size of one bit plane.
func (b *Book) PlaneSize() int {
	return int(b.width+7) / 8 * int(b.height)
}

// ReadPage reads the plane data of page i. plane2 is nil for 1-bit
// books; for grayscale books it is the second bit plane.
func (b *Book) ReadPage(i uint32) (plane1, plane2 []byte, err error) {
	if i >= b.pageCount {
		return nil, nil, fmt.Errorf("page %d out of range (have %d)", i, b.pageCount)
	}
	size := b.PlaneSize()
	total := size
	if b.grayscale {
		total *= 2
	}
	buf := make([]byte, total)
	if _, err := b.f.ReadAt(buf, int64(b.offsets[i])); err != nil {
		return nil, nil, fmt.Errorf("failed to read page %d: %w", i, err)
	}
	if b.grayscale {
		return buf[:size], buf[size:], nil
	}
	return buf, nil, nil
}

func (b *Book) parseHeader() error {
	r := newHeaderReader(b.f)

	var (
		magic     uint32
		version   uint8
		flags     uint8
		title     [titleLen]byte
		author    [authorLen]byte
		chapCount uint16
	)
	r.read(&magic)
	r.read(&version)
	r.read(&flags)
	r.read(&b.width)
	r.read(&b.height)
	r.read(&b.pageCount)
	r.read(&title)
	r.read(&author)
	r.read(&chapCount)
	if r.err != nil {
		return fmt.Errorf("truncated header: %w", r.err)
	}
	if magic != Magic {
		return fmt.Errorf("bad magic %08x", magic)
	}
	if version != Version {
		return fmt.Errorf("unsupported version %d", version)
	}
	if b.width == 0 || b.height == 0 {
		return fmt.Errorf("bad dimensions %dx%d", b.width, b.height)
	}
	b.grayscale = flags&flagGrayscale != 0
	b.title = cString(title[:])
	b.author = cString(author[:])

	b.chapters = make([]Chapter, 0, chapCount)
	for i := 0; i < int(chapCount); i++ {
		var name [chapterLen]byte
		var start uint32
		r.read(&name)
		r.read(&start)
		if r.err != nil {
			return fmt.Errorf("truncated chapter table: %w", r.err)
		}
		b.chapters = append(b.chapters, Chapter{Name: cString(name[:]), StartPage: start})
	}

	// The page count comes from the file; bound it by what the file
	// could actually hold (4 index bytes plus one plane per page) before
	// sizing the offset table.
	fi, err := b.f.Stat()
	if err != nil {
		return fmt.Errorf("stat failed: %w", err)
	}
	if int64(b.pageCount)*int64(4+b.PlaneSize()) > fi.Size() {
		return fmt.Errorf("page count %d does not fit a %d byte file", b.pageCount, fi.Size())
	}

	b.offsets = make([]uint32, b.pageCount)
	r.read(b.offsets)
	if r.err != nil {
		return fmt.Errorf("truncated page index: %w", r.err)
	}
	return nil
}

type headerReader struct {
	r   io.Reader
	err error
}

func newHeaderReader(r io.Reader) *headerReader {
	return &headerReader{r: r}
}

func (h *headerReader) read(v any) {
	if h.err != nil {
		return
	}
	h.err = binary.Read(h.r, binary.LittleEndian, v)
}

func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}
