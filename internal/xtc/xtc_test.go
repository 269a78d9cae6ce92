package xtc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBook(t *testing.T, opts WriteOptions, pages [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xtc")
	if err := Write(path, opts, pages); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	return path
}

func testPages(n, planeSize int) [][]byte {
	pages := make([][]byte, n)
	for i := range pages {
		p := make([]byte, planeSize)
		for j := range p {
			p[j] = byte(i)
		}
		pages[i] = p
	}
	return pages
}

func TestMonochromeRoundTrip(t *testing.T) {
	opts := WriteOptions{
		Title:  "Scanned Pages",
		Author: "Nobody",
		Width:  24,
		Height: 8,
		Chapters: []Chapter{
			{Name: "Front matter", StartPage: 0},
			{Name: "Chapter 1", StartPage: 3},
		},
	}
	planeSize := 3 * 8
	path := writeBook(t, opts, testPages(5, planeSize))

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer b.Close()

	if b.Title() != "Scanned Pages" || b.Author() != "Nobody" {
		t.Fatalf("metadata = %q / %q", b.Title(), b.Author())
	}
	if b.Width() != 24 || b.Height() != 8 || b.Grayscale() {
		t.Fatalf("geometry = %dx%d gray=%v", b.Width(), b.Height(), b.Grayscale())
	}
	if b.PageCount() != 5 {
		t.Fatalf("PageCount = %d, want 5", b.PageCount())
	}
	if b.PlaneSize() != planeSize {
		t.Fatalf("PlaneSize = %d, want %d", b.PlaneSize(), planeSize)
	}

	chapters := b.Chapters()
	if len(chapters) != 2 || chapters[1].Name != "Chapter 1" || chapters[1].StartPage != 3 {
		t.Fatalf("chapters = %+v", chapters)
	}

	for i := uint32(0); i < 5; i++ {
		p1, p2, err := b.ReadPage(i)
		if err != nil {
			t.Fatalf("ReadPage(%d) returned error: %v", i, err)
		}
		if p2 != nil {
			t.Fatalf("monochrome page %d has a second plane", i)
		}
		if len(p1) != planeSize || p1[0] != byte(i) {
			t.Fatalf("page %d data = len %d first byte %d", i, len(p1), p1[0])
		}
	}
}

func TestGrayscaleRoundTrip(t *testing.T) {
	opts := WriteOptions{Width: 16, Height: 4, Grayscale: true}
	planeSize := 2 * 4
	pages := [][]byte{make([]byte, planeSize*2)}
	// Low plane 0xAA, high plane 0x55.
	for j := 0; j < planeSize; j++ {
		pages[0][j] = 0xAA
		pages[0][planeSize+j] = 0x55
	}
	path := writeBook(t, opts, pages)

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer b.Close()

	if !b.Grayscale() {
		t.Fatalf("grayscale flag lost")
	}
	p1, p2, err := b.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage returned error: %v", err)
	}
	if p2 == nil {
		t.Fatalf("grayscale page missing its second plane")
	}
	if p1[0] != 0xAA || p2[0] != 0x55 {
		t.Fatalf("planes = %02x / %02x, want aa / 55", p1[0], p2[0])
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	path := writeBook(t, WriteOptions{Width: 8, Height: 2}, testPages(1, 2))
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer b.Close()

	if _, _, err := b.ReadPage(1); err == nil {
		t.Fatalf("ReadPage past the end succeeded")
	}
}

func TestWriteRejectsWrongPageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xtc")
	err := Write(path, WriteOptions{Width: 8, Height: 2}, [][]byte{make([]byte, 5)})
	if err == nil {
		t.Fatalf("Write accepted a mis-sized page")
	}
}

func TestOpenRejectsBadFile(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		if _, err := Open(filepath.Join(t.TempDir(), "none.xtc")); err == nil {
			t.Fatalf("Open on missing file succeeded")
		}
	})
	t.Run("bad magic", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.xtc")
		if err := os.WriteFile(path, make([]byte, 256), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Open(path); err == nil {
			t.Fatalf("Open on junk succeeded")
		}
	})
	t.Run("truncated header", func(t *testing.T) {
		good := writeBook(t, WriteOptions{Width: 8, Height: 2}, testPages(1, 2))
		data, err := os.ReadFile(good)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		path := filepath.Join(t.TempDir(), "short.xtc")
		if err := os.WriteFile(path, data[:10], 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Open(path); err == nil {
			t.Fatalf("Open on truncated header succeeded")
		}
	})
}

func TestLongMetadataTruncated(t *testing.T) {
	opts := WriteOptions{Title: strings.Repeat("x", 200), Width: 8, Height: 2}
	path := writeBook(t, opts, testPages(1, 2))

	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer b.Close()
	if len(b.Title()) != titleLen-1 {
		t.Fatalf("title length = %d, want %d", len(b.Title()), titleLen-1)
	}
}

func TestOpenRejectsOversizedPageCount(t *testing.T) {
	opts := WriteOptions{Title: "Tiny", Width: 8, Height: 4}
	path := writeBook(t, opts, testPages(2, 4))

	// Corrupt the page count field (offset 10, little-endian u32) to a
	// value the file cannot possibly hold.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[10], data[11], data[12], data[13] = 0xFF, 0xFF, 0xFF, 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatalf("oversized page count accepted")
	}
}
