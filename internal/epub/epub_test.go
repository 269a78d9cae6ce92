package epub

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

const testOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>An Author</dc:creator>
    <dc:language>en</dc:language>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="cover-img"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/">
  <navMap>
    <navPoint id="n1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="chapter1.xhtml"/>
      <navPoint id="n1a">
        <navLabel><text>Part A</text></navLabel>
        <content src="chapter1.xhtml#part-a"/>
      </navPoint>
    </navPoint>
    <navPoint id="n2">
      <navLabel><text>Chapter Two</text></navLabel>
      <content src="chapter2.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

// writeEpub assembles a container from name -> content pairs, in order.
func writeEpub(t *testing.T, files [][2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, entry := range files {
		w, err := zw.Create(entry[0])
		if err != nil {
			t.Fatalf("zip create %s: %v", entry[0], err)
		}
		if _, err := w.Write([]byte(entry[1])); err != nil {
			t.Fatalf("zip write %s: %v", entry[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func testBookFiles() [][2]string {
	return [][2]string{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`},
		{"OEBPS/content.opf", testOPF},
		{"OEBPS/toc.ncx", testNCX},
		{"OEBPS/chapter1.xhtml", "<html><body><p>First chapter.</p></body></html>"},
		{"OEBPS/chapter2.xhtml", "<html><body><p>Second chapter.</p></body></html>"},
		{"OEBPS/images/cover.jpg", "not really a jpeg"},
	}
}

func openTestBook(t *testing.T) *Book {
	t.Helper()
	b, err := Open(writeEpub(t, testBookFiles()))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestOpenParsesMetadata(t *testing.T) {
	b := openTestBook(t)

	opf := b.OPF()
	if opf.Title != "Test Book" || opf.Author != "An Author" || opf.Language != "en" {
		t.Fatalf("metadata = %q / %q / %q", opf.Title, opf.Author, opf.Language)
	}
	// The image itemref is dropped: only content documents reach the spine.
	if b.SpineCount() != 2 {
		t.Fatalf("SpineCount = %d, want 2", b.SpineCount())
	}
	href, err := b.SectionHref(0)
	if err != nil || href != "OEBPS/chapter1.xhtml" {
		t.Fatalf("SectionHref(0) = %q, %v", href, err)
	}
	if _, err := b.SectionHref(2); err == nil {
		t.Fatalf("SectionHref past the spine succeeded")
	}
}

func TestOpenSectionStreams(t *testing.T) {
	b := openTestBook(t)

	rc, err := b.OpenSection(1)
	if err != nil {
		t.Fatalf("OpenSection returned error: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read section: %v", err)
	}
	if string(data) != "<html><body><p>Second chapter.</p></body></html>" {
		t.Fatalf("section content = %q", data)
	}
}

func TestOpenRejectsBadMimetype(t *testing.T) {
	files := testBookFiles()
	files[0][1] = "application/zip"
	if _, err := Open(writeEpub(t, files)); err == nil {
		t.Fatalf("wrong mimetype accepted")
	}

	if _, err := Open(writeEpub(t, files[1:])); err == nil {
		t.Fatalf("missing mimetype accepted")
	}
}

func TestOpenRejectsMissingContainer(t *testing.T) {
	files := testBookFiles()
	files = append(files[:1], files[2:]...)
	if _, err := Open(writeEpub(t, files)); err == nil {
		t.Fatalf("missing container.xml accepted")
	}
}

func TestTOCFromNCX(t *testing.T) {
	b := openTestBook(t)

	entries := b.TOC()
	if len(entries) != 3 {
		t.Fatalf("TOC has %d entries: %v", len(entries), entries)
	}
	if entries[0].Title != "Chapter One" || entries[0].Href != "OEBPS/chapter1.xhtml" || entries[0].Depth != 0 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].Title != "Part A" || entries[1].Depth != 1 || entries[1].Fragment != "part-a" {
		t.Fatalf("entry 1 = %+v", entries[1])
	}
	if entries[2].Title != "Chapter Two" || entries[2].Depth != 0 {
		t.Fatalf("entry 2 = %+v", entries[2])
	}
}

func TestSpineIndexFor(t *testing.T) {
	b := openTestBook(t)

	if got := b.SpineIndexFor("OEBPS/chapter2.xhtml"); got != 1 {
		t.Fatalf("SpineIndexFor(chapter2) = %d, want 1", got)
	}
	if got := b.SpineIndexFor("OEBPS/nope.xhtml"); got != -1 {
		t.Fatalf("SpineIndexFor(missing) = %d, want -1", got)
	}
}

func TestCoverHref(t *testing.T) {
	b := openTestBook(t)

	href, ok := b.OPF().CoverHref()
	if !ok || href != "OEBPS/images/cover.jpg" {
		t.Fatalf("CoverHref = %q, %v", href, ok)
	}
}

func TestCoverHrefFromProperty(t *testing.T) {
	opf, err := ParseOPF([]byte(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>V3</dc:title>
  </metadata>
  <manifest>
    <item id="c" href="cover.png" media-type="image/png" properties="cover-image"/>
  </manifest>
  <spine/>
</package>`), "OEBPS")
	if err != nil {
		t.Fatalf("ParseOPF returned error: %v", err)
	}
	href, ok := opf.CoverHref()
	if !ok || href != "OEBPS/cover.png" {
		t.Fatalf("CoverHref = %q, %v", href, ok)
	}
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		from, href, want string
	}{
		{"OEBPS/toc.ncx", "chapter1.xhtml", "OEBPS/chapter1.xhtml"},
		{"OEBPS/toc.ncx", "chapter1.xhtml#sec", "OEBPS/chapter1.xhtml"},
		{"OEBPS/text/ch.xhtml", "../images/a.png", "OEBPS/images/a.png"},
		{"toc.ncx", "/abs/path.xhtml", "abs/path.xhtml"},
		{"toc.ncx", "#frag-only", ""},
	}
	for _, tt := range tests {
		if got := ResolveHref(tt.from, tt.href); got != tt.want {
			t.Fatalf("ResolveHref(%q, %q) = %q, want %q", tt.from, tt.href, got, tt.want)
		}
	}
}

func TestHas(t *testing.T) {
	b := openTestBook(t)
	if !b.Has("OEBPS/images/cover.jpg") {
		t.Fatalf("Has missed an existing file")
	}
	if b.Has("OEBPS/ghost.png") {
		t.Fatalf("Has invented a file")
	}
}
