package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/storage"
	"github.com/sumireader/sumi/internal/xtc"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"book.epub", TypeEpub},
		{"BOOK.EPUB", TypeEpub},
		{"scan.xtc", TypeXtc},
		{"scan.xtch", TypeXtc},
		{"scan.xtg", TypeXtc},
		{"scan.xth", TypeXtc},
		{"notes.txt", TypeTxt},
		{"readme.md", TypeMarkdown},
		{"readme.markdown", TypeMarkdown},
		{"/books/deep/path/a.ePub", TypeEpub},
		{"archive.zip", TypeNone},
		{"noextension", TypeNone},
	}
	for _, tt := range tests {
		if got := DetectType(tt.path); got != tt.want {
			t.Fatalf("DetectType(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported("a.epub") || !Supported("b.txt") {
		t.Fatalf("supported formats rejected")
	}
	if Supported("c.pdf") {
		t.Fatalf("pdf accepted")
	}
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open returned error: %v", err)
	}
	return s
}

func TestOpenTextBook(t *testing.T) {
	store := testStore(t)
	body := "Chapter one.\n\nIt was a dark and stormy night.\n"
	if err := os.WriteFile(store.Abs("story.txt"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := Open(store, "story.txt")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer h.Close()

	if h.Type() != TypeTxt {
		t.Fatalf("type = %v", h.Type())
	}
	meta := h.Metadata()
	if meta.Title != "story" {
		t.Fatalf("title = %q, want the file stem", meta.Title)
	}
	if meta.TotalPages != uint32(len(body)) {
		t.Fatalf("total = %d, want the byte size %d", meta.TotalPages, len(body))
	}
	if h.PageCount() != 1 {
		t.Fatalf("PageCount = %d, want 1 for reflowable text", h.PageCount())
	}
	if !strings.Contains(h.CacheDir(), "txt_") {
		t.Fatalf("cache dir = %q, want the txt_ family", h.CacheDir())
	}
	if !storage.Exists(h.CacheDir()) {
		t.Fatalf("cache dir was not created")
	}
	if h.TocCount() != 0 {
		t.Fatalf("plain text grew a TOC")
	}
}

func TestOpenXtcBook(t *testing.T) {
	store := testStore(t)
	path := store.Abs("scan.xtc")
	err := xtc.Write(path, xtc.WriteOptions{
		Title:    "A Scan",
		Width:    8,
		Height:   2,
		Chapters: []xtc.Chapter{{Name: "Start", StartPage: 0}},
	}, [][]byte{make([]byte, 2), make([]byte, 2)})
	if err != nil {
		t.Fatalf("xtc.Write returned error: %v", err)
	}

	h, err := Open(store, "scan.xtc")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer h.Close()

	meta := h.Metadata()
	if meta.Title != "A Scan" {
		t.Fatalf("title = %q, want the container title", meta.Title)
	}
	if h.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", h.PageCount())
	}
	if h.Xtc() == nil {
		t.Fatalf("xtc accessor returned nil")
	}
	if h.TocCount() != 1 {
		t.Fatalf("TocCount = %d, want 1", h.TocCount())
	}
	e, err := h.TocEntry(0)
	if err != nil || e.Title != "Start" {
		t.Fatalf("TocEntry(0) = %+v, %v", e, err)
	}
	if _, err := h.TocEntry(5); err == nil {
		t.Fatalf("out-of-range TOC entry succeeded")
	}
}

func TestOpenErrors(t *testing.T) {
	store := testStore(t)

	_, err := Open(store, "slides.pdf")
	if !errs.Is(err, errs.InvalidFormat) {
		t.Fatalf("unsupported extension = %v, want invalid format", err)
	}

	_, err = Open(store, "ghost.txt")
	if !errs.Is(err, errs.FileNotFound) {
		t.Fatalf("missing book = %v, want file not found", err)
	}
}

func TestSetProgress(t *testing.T) {
	store := testStore(t)
	if err := os.WriteFile(store.Abs("a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := Open(store, "a.txt")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer h.Close()

	h.SetProgress(25, 100)
	meta := h.Metadata()
	if meta.CurrentPage != 25 || meta.ProgressPercent != 25 {
		t.Fatalf("progress = %d / %d%%", meta.CurrentPage, meta.ProgressPercent)
	}
}

func TestCacheFileForTextKeyedByFont(t *testing.T) {
	store := testStore(t)
	if err := os.WriteFile(store.Abs("a.md"), []byte("# hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := Open(store, "a.md")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer h.Close()

	serif := h.CacheFileFor(0, configWithFont("serif"))
	sans := h.CacheFileFor(0, configWithFont("sans"))
	if serif == sans {
		t.Fatalf("font change did not move the text cache file")
	}
	if filepath.Dir(serif) != h.CacheDir() {
		t.Fatalf("cache file %q outside the cache dir", serif)
	}
}

func configWithFont(id string) config.RenderConfig {
	return config.RenderConfig{FontID: id, ViewportW: 480, ViewportH: 800}
}
