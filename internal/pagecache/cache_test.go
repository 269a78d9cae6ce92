package pagecache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sumireader/sumi/internal/config"
)

// fakePaginator deals out a fixed page sequence, like a layout over a
// document of known length.
type fakePaginator struct {
	pages   []*Page
	anchors map[int][]Anchor
	pos     int
	pending []Anchor
}

func (f *fakePaginator) NextPage() (*Page, error) {
	if f.pos >= len(f.pages) {
		return nil, io.EOF
	}
	p := f.pages[f.pos]
	f.pending = append(f.pending, f.anchors[f.pos]...)
	f.pos++
	return p, nil
}

func (f *fakePaginator) TakeAnchors() []Anchor {
	out := f.pending
	f.pending = nil
	return out
}

func makePages(n int) []*Page {
	pages := make([]*Page, n)
	for i := range pages {
		pages[i] = &Page{Ops: []Op{
			{Kind: OpText, X: 10, Y: int16(20 * i), W: 100, H: 16, Text: fmt.Sprintf("page %d", i)},
			{Kind: OpRule, X: 10, Y: int16(20*i + 18), W: 200},
		}}
	}
	return pages
}

func testConfig() config.RenderConfig {
	return config.RenderConfig{
		FontID: "serif", FontSize: 2, LineSpacing: 12,
		MarginX: 24, MarginY: 20, ViewportW: 480, ViewportH: 800,
	}
}

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pages.bin")
}

func TestCreateCompleteAndReload(t *testing.T) {
	cfg := testConfig()
	path := cachePath(t)

	c := New(path)
	if err := c.Create(&fakePaginator{pages: makePages(3)}, cfg, 0, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.PageCount() != 3 {
		t.Fatalf("PageCount = %d, want 3", c.PageCount())
	}
	if c.IsPartial() {
		t.Fatalf("cache is partial after end of document")
	}

	for i := 0; i < 3; i++ {
		page, err := c.LoadPage(i)
		if err != nil {
			t.Fatalf("LoadPage(%d) returned error: %v", i, err)
		}
		want := fmt.Sprintf("page %d", i)
		if page.Ops[0].Text != want {
			t.Fatalf("page %d text = %q, want %q", i, page.Ops[0].Text, want)
		}
	}
	if _, err := c.LoadPage(3); err == nil {
		t.Fatalf("LoadPage(3) succeeded past the end")
	}

	// A second open is a pure cache hit: no paginator involved.
	reopened := New(path)
	if !reopened.Load(cfg) {
		t.Fatalf("Load failed on a complete cache")
	}
	if reopened.PageCount() != 3 || reopened.IsPartial() {
		t.Fatalf("reloaded cache = %d pages partial=%v, want 3 complete",
			reopened.PageCount(), reopened.IsPartial())
	}
	page, err := reopened.LoadPage(2)
	if err != nil || page.Ops[0].Text != "page 2" {
		t.Fatalf("LoadPage(2) after reload = %v, %v", page, err)
	}
}

func TestExtendIdempotence(t *testing.T) {
	cfg := testConfig()
	path := cachePath(t)

	pag := &fakePaginator{pages: makePages(3)}
	c := New(path)
	if err := c.Create(pag, cfg, 1, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.PageCount() != 1 || !c.IsPartial() {
		t.Fatalf("after chunk=1 create: %d pages partial=%v, want 1 partial",
			c.PageCount(), c.IsPartial())
	}

	prev := c.PageCount()
	for i := 0; i < 5; i++ {
		if err := c.Extend(pag, 1, nil); err != nil {
			t.Fatalf("Extend %d returned error: %v", i, err)
		}
		if c.PageCount() < prev {
			t.Fatalf("page count shrank from %d to %d", prev, c.PageCount())
		}
		if c.PageCount() > 3 {
			t.Fatalf("page count %d exceeds document length", c.PageCount())
		}
		prev = c.PageCount()
	}
	if c.PageCount() != 3 || c.IsPartial() {
		t.Fatalf("after extends: %d pages partial=%v, want 3 complete",
			c.PageCount(), c.IsPartial())
	}
}

func TestCreateVsExtendByteIdentity(t *testing.T) {
	cfg := testConfig()
	oneShot := cachePath(t)
	chunked := filepath.Join(filepath.Dir(oneShot), "chunked.bin")

	a := New(oneShot)
	if err := a.Create(&fakePaginator{pages: makePages(7)}, cfg, 0, nil); err != nil {
		t.Fatalf("one-shot Create returned error: %v", err)
	}

	pag := &fakePaginator{pages: makePages(7)}
	b := New(chunked)
	if err := b.Create(pag, cfg, 2, nil); err != nil {
		t.Fatalf("chunked Create returned error: %v", err)
	}
	for b.IsPartial() {
		before := b.PageCount()
		if err := b.Extend(pag, 2, nil); err != nil {
			t.Fatalf("Extend returned error: %v", err)
		}
		if b.PageCount() == before && b.IsPartial() {
			t.Fatalf("extend stalled at %d pages", before)
		}
	}

	fa, err := os.ReadFile(oneShot)
	if err != nil {
		t.Fatalf("read one-shot cache: %v", err)
	}
	fb, err := os.ReadFile(chunked)
	if err != nil {
		t.Fatalf("read chunked cache: %v", err)
	}
	if len(fa) != len(fb) {
		t.Fatalf("file sizes differ: %d vs %d", len(fa), len(fb))
	}
	for i := range fa {
		if fa[i] != fb[i] {
			t.Fatalf("files differ at byte %d: %02x vs %02x", i, fa[i], fb[i])
		}
	}
}

func TestFingerprintInvalidation(t *testing.T) {
	small := testConfig()
	large := small
	large.FontSize = 4

	path := cachePath(t)
	c := New(path)
	if err := c.Create(&fakePaginator{pages: makePages(2)}, small, 0, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	stale := New(path)
	if stale.Load(large) {
		t.Fatalf("Load succeeded across a font size change")
	}
	if stale.PageCount() != 0 {
		t.Fatalf("failed Load left %d pages visible", stale.PageCount())
	}

	// Re-create under the new config; the file now matches it.
	if err := stale.Create(&fakePaginator{pages: makePages(2)}, large, 0, nil); err != nil {
		t.Fatalf("re-create returned error: %v", err)
	}
	fresh := New(path)
	if !fresh.Load(large) {
		t.Fatalf("Load failed under the config that wrote the cache")
	}
	if fresh.Load(small) {
		t.Fatalf("old config still accepted after re-create")
	}
}

func TestAbortLeavesConsistentPartial(t *testing.T) {
	cfg := testConfig()
	path := cachePath(t)

	calls := 0
	abortAfter5 := func() bool {
		calls++
		return calls > 5
	}
	c := New(path)
	if err := c.Create(&fakePaginator{pages: makePages(500)}, cfg, 0, abortAfter5); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.PageCount() != 5 || !c.IsPartial() {
		t.Fatalf("aborted create: %d pages partial=%v, want 5 partial",
			c.PageCount(), c.IsPartial())
	}

	reopened := New(path)
	if !reopened.Load(cfg) {
		t.Fatalf("header unreadable after abort")
	}
	if reopened.PageCount() != 5 || !reopened.IsPartial() {
		t.Fatalf("reloaded aborted cache: %d pages partial=%v",
			reopened.PageCount(), reopened.IsPartial())
	}
	if _, err := reopened.LoadPage(4); err != nil {
		t.Fatalf("LoadPage(4) on aborted cache: %v", err)
	}
}

func TestAbortBeforeProgressLeavesFileUntouched(t *testing.T) {
	cfg := testConfig()
	path := cachePath(t)

	pag := &fakePaginator{pages: makePages(4)}
	c := New(path)
	if err := c.Create(pag, cfg, 2, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}

	if err := c.Extend(pag, 2, func() bool { return true }); err != nil {
		t.Fatalf("aborted Extend returned error: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("no-progress extend rewrote the file")
	}
}

func TestNeedsExtension(t *testing.T) {
	cfg := testConfig()
	c := New(cachePath(t))
	pag := &fakePaginator{pages: makePages(10)}
	if err := c.Create(pag, cfg, 4, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if c.NeedsExtension(0) {
		t.Fatalf("page 0 should not need extension with 4 pages cached")
	}
	if !c.NeedsExtension(3) {
		t.Fatalf("last cached page should request extension")
	}
	if !c.NeedsExtension(7) {
		t.Fatalf("page past the tail should request extension")
	}

	for c.IsPartial() {
		if err := c.Extend(pag, 4, nil); err != nil {
			t.Fatalf("Extend returned error: %v", err)
		}
	}
	if c.NeedsExtension(9) {
		t.Fatalf("complete cache should never request extension")
	}
}

func TestAnchorsRoundTrip(t *testing.T) {
	cfg := testConfig()
	path := cachePath(t)

	pages := makePages(3)
	pages[1].Ops = append([]Op{{Kind: OpAnchor, Text: "chapter-2"}}, pages[1].Ops...)
	pag := &fakePaginator{
		pages:   pages,
		anchors: map[int][]Anchor{1: {{ID: "chapter-2", Page: 1}}},
	}
	c := New(path)
	if err := c.Create(pag, cfg, 0, nil); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	m, err := LoadAnchors(c.AnchorsPath())
	if err != nil {
		t.Fatalf("LoadAnchors returned error: %v", err)
	}
	idx, ok := m["chapter-2"]
	if !ok {
		t.Fatalf("anchor chapter-2 missing from sidecar")
	}
	page, err := c.LoadPage(int(idx))
	if err != nil {
		t.Fatalf("LoadPage(%d) returned error: %v", idx, err)
	}
	if id, ok := page.FirstAnchor(); !ok || id != "chapter-2" {
		t.Fatalf("page %d first anchor = %q, %v; want chapter-2", idx, id, ok)
	}
}

func TestEmptyDocument(t *testing.T) {
	cfg := testConfig()
	c := New(cachePath(t))
	if err := c.Create(&fakePaginator{}, cfg, 0, nil); err != nil {
		t.Fatalf("Create on empty document returned error: %v", err)
	}
	if c.PageCount() != 0 || c.IsPartial() {
		t.Fatalf("empty document: %d pages partial=%v, want 0 complete",
			c.PageCount(), c.IsPartial())
	}
	reopened := New(c.Path())
	if !reopened.Load(cfg) {
		t.Fatalf("Load failed on empty complete cache")
	}
}
