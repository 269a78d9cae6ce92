package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumireader/sumi/internal/storage"
)

func TestProgressRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.bin")

	want := Progress{SpineIndex: 7, SectionPage: 42, FlatPage: 1234}
	if err := SaveProgress(path, want); err != nil {
		t.Fatalf("SaveProgress returned error: %v", err)
	}
	if got := LoadProgress(path); got != want {
		t.Fatalf("LoadProgress = %+v, want %+v", got, want)
	}
}

func TestProgressMissingFile(t *testing.T) {
	got := LoadProgress(filepath.Join(t.TempDir(), "nope.bin"))
	if got != (Progress{}) {
		t.Fatalf("missing file = %+v, want zero position", got)
	}
}

func TestProgressMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := LoadProgress(path); got != (Progress{}) {
		t.Fatalf("short file = %+v, want zero position", got)
	}
}

func TestProgressClamp(t *testing.T) {
	p := Progress{SpineIndex: 9, SectionPage: 3}
	if got := p.Clamp(10); got != p {
		t.Fatalf("in-range position clamped: %+v", got)
	}
	if got := p.Clamp(5); got != (Progress{}) {
		t.Fatalf("out-of-range position = %+v, want zero", got)
	}
	// Zero spine count means the count is unknown; keep the position.
	if got := p.Clamp(0); got != p {
		t.Fatalf("unknown spine count clamped: %+v", got)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.bin")

	idx := OpenIndex(path)
	idx.Update("/books/a.epub", 12, 300, 1)
	idx.Update("/books/b.txt", 1, 9, 0)
	if err := idx.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reopened := OpenIndex(path)
	if reopened.Len() != 2 {
		t.Fatalf("reopened index has %d entries, want 2", reopened.Len())
	}
	e, ok := reopened.Lookup("/books/a.epub")
	if !ok {
		t.Fatalf("a.epub missing after reload")
	}
	if e.CurrentPage != 12 || e.TotalPages != 300 || e.Hint != 1 {
		t.Fatalf("entry = %+v", e)
	}
	if _, ok := reopened.Lookup("/books/unseen.epub"); ok {
		t.Fatalf("lookup invented an entry")
	}
}

func TestIndexUpdateMovesToTail(t *testing.T) {
	idx := OpenIndex(filepath.Join(t.TempDir(), "library.bin"))
	idx.Update("/books/a.epub", 1, 10, 0)
	idx.Update("/books/b.epub", 1, 10, 0)
	idx.Update("/books/c.epub", 1, 10, 0)

	// Touching a again makes it the most recent, so b is now the
	// eviction candidate.
	idx.Update("/books/a.epub", 2, 10, 0)
	if idx.entries[0].PathHash != storage.PathHash("/books/b.epub") {
		t.Fatalf("head is not the least recent entry")
	}
	if idx.entries[len(idx.entries)-1].PathHash != storage.PathHash("/books/a.epub") {
		t.Fatalf("updated entry did not move to the tail")
	}
	if e, _ := idx.Lookup("/books/a.epub"); e.CurrentPage != 2 {
		t.Fatalf("update lost the new position: %+v", e)
	}
}

func TestIndexEvictsOldestAtCapacity(t *testing.T) {
	idx := OpenIndex(filepath.Join(t.TempDir(), "library.bin"))
	for i := 0; i < indexCapacity; i++ {
		idx.Update(fmt.Sprintf("/books/%03d.epub", i), 1, 10, 0)
	}
	if idx.Len() != indexCapacity {
		t.Fatalf("index has %d entries, want %d", idx.Len(), indexCapacity)
	}

	// Refresh the oldest so it survives the next eviction.
	idx.Update("/books/000.epub", 5, 10, 0)
	idx.Update("/books/new.epub", 1, 10, 0)

	if idx.Len() != indexCapacity {
		t.Fatalf("capacity exceeded: %d entries", idx.Len())
	}
	if _, ok := idx.Lookup("/books/000.epub"); !ok {
		t.Fatalf("recently touched entry was evicted")
	}
	if _, ok := idx.Lookup("/books/001.epub"); ok {
		t.Fatalf("least recent entry survived eviction")
	}
	if _, ok := idx.Lookup("/books/new.epub"); !ok {
		t.Fatalf("new entry missing after eviction")
	}
}

func TestIndexDiscardsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.bin")
	if err := os.WriteFile(path, []byte{99, 1, 0, 1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	idx := OpenIndex(path)
	if idx.Len() != 0 {
		t.Fatalf("bad version accepted: %d entries", idx.Len())
	}
}

func TestIndexRemove(t *testing.T) {
	idx := OpenIndex(filepath.Join(t.TempDir(), "library.bin"))
	idx.Update("/books/a.epub", 1, 10, 0)
	idx.Remove("/books/a.epub")
	if _, ok := idx.Lookup("/books/a.epub"); ok {
		t.Fatalf("removed entry still found")
	}
}

func TestRecentsTouchOrder(t *testing.T) {
	r := OpenRecents(filepath.Join(t.TempDir(), "recent.bin"))
	r.Touch(RecentBook{Path: "/books/a.epub", Title: "A"})
	r.Touch(RecentBook{Path: "/books/b.epub", Title: "B"})
	r.Touch(RecentBook{Path: "/books/a.epub", Title: "A", ProgressPercent: 50})

	books := r.Books()
	if len(books) != 2 {
		t.Fatalf("got %d books, want 2 (re-touch must not duplicate)", len(books))
	}
	if books[0].Path != "/books/a.epub" || books[1].Path != "/books/b.epub" {
		t.Fatalf("order = %s, %s; want a then b", books[0].Path, books[1].Path)
	}
	if books[0].ProgressPercent != 50 {
		t.Fatalf("re-touch lost the new progress: %+v", books[0])
	}
}

func TestRecentsCapacity(t *testing.T) {
	r := OpenRecents(filepath.Join(t.TempDir(), "recent.bin"))
	for i := 0; i < recentCapacity+3; i++ {
		r.Touch(RecentBook{Path: fmt.Sprintf("/books/%02d.epub", i)})
	}
	books := r.Books()
	if len(books) != recentCapacity {
		t.Fatalf("got %d books, want %d", len(books), recentCapacity)
	}
	if books[0].Path != "/books/12.epub" {
		t.Fatalf("newest book = %s", books[0].Path)
	}
	for _, b := range books {
		if b.Path == "/books/00.epub" {
			t.Fatalf("oldest book survived past capacity")
		}
	}
}

func TestRecentsOverlongPathSkipped(t *testing.T) {
	r := OpenRecents(filepath.Join(t.TempDir(), "recent.bin"))
	long := "/books/" + strings.Repeat("x", recentPathLen) + ".epub"
	r.Touch(RecentBook{Path: long})
	if len(r.Books()) != 0 {
		t.Fatalf("overlong path was tracked")
	}
}

func TestRecentsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.bin")

	r := OpenRecents(path)
	r.Touch(RecentBook{
		Path:            "/books/novel.epub",
		Title:           "A Long Novel",
		Author:          "Somebody",
		LastAccess:      1700000000,
		ProgressPercent: 33,
	})
	r.Touch(RecentBook{Path: "/books/short.txt", Title: "Notes"})
	if err := r.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reopened := OpenRecents(path)
	books := reopened.Books()
	if len(books) != 2 {
		t.Fatalf("reloaded %d books, want 2", len(books))
	}
	if books[0].Path != "/books/short.txt" {
		t.Fatalf("order lost across reload: %s first", books[0].Path)
	}
	got := books[1]
	if got.Title != "A Long Novel" || got.Author != "Somebody" ||
		got.LastAccess != 1700000000 || got.ProgressPercent != 33 {
		t.Fatalf("reloaded book = %+v", got)
	}
}

func TestRecentsTruncatesLongTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recent.bin")

	r := OpenRecents(path)
	r.Touch(RecentBook{Path: "/books/a.epub", Title: strings.Repeat("T", 100)})
	if err := r.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	books := OpenRecents(path).Books()
	if len(books) != 1 {
		t.Fatalf("reloaded %d books, want 1", len(books))
	}
	if len(books[0].Title) != recentTitleLen-1 {
		t.Fatalf("title length = %d, want %d", len(books[0].Title), recentTitleLen-1)
	}
}
