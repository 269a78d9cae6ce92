package epub

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TocEntry is one flat table-of-contents row. Href is
// container-absolute, Fragment is the #anchor within it.
type TocEntry struct {
	Title    string
	Href     string
	Fragment string
	Depth    uint8
}

// TOC extracts the flat table of contents: the EPUB 3 nav document
// when present, otherwise the NCX. Nesting depth is preserved.
func (b *Book) TOC() []TocEntry {
	if b.opf.NavPath != "" {
		if entries := b.tocFromNav(); len(entries) > 0 {
			return entries
		}
	}
	if b.opf.NCXPath != "" {
		if entries := b.tocFromNCX(); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

// SpineIndexFor maps a TOC href to its spine section index, or -1.
func (b *Book) SpineIndexFor(href string) int {
	for i := range b.opf.Spine {
		sh, err := b.SectionHref(i)
		if err == nil && sh == href {
			return i
		}
	}
	return -1
}

func (b *Book) tocFromNav() []TocEntry {
	data, err := b.ReadFile(b.opf.NavPath)
	if err != nil {
		log.Printf("warning: failed to read nav document: %v", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		log.Printf("warning: failed to parse nav document: %v", err)
		return nil
	}

	nav := doc.Find(`nav[epub\:type="toc"]`).First()
	if nav.Length() == 0 {
		nav = doc.Find("nav").First()
	}
	if nav.Length() == 0 {
		return nil
	}

	var entries []TocEntry
	var walk func(s *goquery.Selection, depth uint8)
	walk = func(s *goquery.Selection, depth uint8) {
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			a := li.ChildrenFiltered("a").First()
			if a.Length() > 0 {
				href, _ := a.Attr("href")
				title := strings.TrimSpace(a.Text())
				if title != "" && href != "" {
					entries = append(entries, b.tocEntry(title, b.opf.NavPath, href, depth))
				}
			}
			li.ChildrenFiltered("ol, ul").Each(func(_ int, list *goquery.Selection) {
				walk(list, depth+1)
			})
		})
	}
	nav.ChildrenFiltered("ol, ul").Each(func(_ int, list *goquery.Selection) {
		walk(list, 0)
	})
	return entries
}

// ncx structures for the EPUB 2 fallback.
type ncx struct {
	NavMap struct {
		NavPoints []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

func (b *Book) tocFromNCX() []TocEntry {
	data, err := b.ReadFile(b.opf.NCXPath)
	if err != nil {
		log.Printf("warning: failed to read NCX: %v", err)
		return nil
	}
	var doc ncx
	if err := parseXML(data, &doc); err != nil {
		log.Printf("warning: failed to parse NCX: %v", err)
		return nil
	}

	var entries []TocEntry
	var walk func(points []navPoint, depth uint8)
	walk = func(points []navPoint, depth uint8) {
		for _, np := range points {
			title := strings.TrimSpace(np.Label.Text)
			if title != "" && np.Content.Src != "" {
				entries = append(entries, b.tocEntry(title, b.opf.NCXPath, np.Content.Src, depth))
			}
			walk(np.Children, depth+1)
		}
	}
	walk(doc.NavMap.NavPoints, 0)
	return entries
}

func (b *Book) tocEntry(title, fromFile, href string, depth uint8) TocEntry {
	fragment := ""
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		fragment = href[idx+1:]
	}
	return TocEntry{
		Title:    title,
		Href:     ResolveHref(fromFile, href),
		Fragment: fragment,
		Depth:    depth,
	}
}

// String implements a debug form used by the inspect CLI.
func (e TocEntry) String() string {
	return fmt.Sprintf("%s%s -> %s#%s", strings.Repeat("  ", int(e.Depth)), e.Title, e.Href, e.Fragment)
}
