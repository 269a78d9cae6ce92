package reflow

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/sumireader/sumi/internal/fonts"
)

// ImageResolver maps an img src to a cached 1-bit bitmap and its
// display dimensions. Unresolvable images are skipped.
type ImageResolver func(src string) (path string, w, h uint16, ok bool)

// HTMLParser streams an XHTML spine section through the tokenizer with
// a bounded read buffer. Script and style subtrees are dropped,
// entities are decoded by the tokenizer, block boundaries become
// paragraph breaks, and id attributes become anchors.
type HTMLParser struct {
	z       *html.Tokenizer
	resolve ImageResolver

	pending  []Event
	bold     int
	italic   int
	heading  int
	skipTag  string // inside <script> or <style>
	paraText bool   // text emitted since the last paragraph break
	midWord  bool   // previous text token ended without whitespace
	eof      bool
}

// NewHTMLParser wraps a section reader. resolve may be nil when images
// are disabled.
func NewHTMLParser(r io.Reader, resolve ImageResolver) *HTMLParser {
	return &HTMLParser{
		z:       html.NewTokenizer(bufio.NewReaderSize(r, txtChunk)),
		resolve: resolve,
	}
}

func (p *HTMLParser) NextEvent() (Event, error) {
	for {
		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			return ev, nil
		}
		if p.eof {
			return Event{}, io.EOF
		}
		p.fill()
	}
}

func (p *HTMLParser) fill() {
	tt := p.z.Next()
	switch tt {
	case html.ErrorToken:
		// Malformed trailing markup is tolerated; anything the
		// tokenizer got through stands.
		p.breakPara()
		p.eof = true
	case html.TextToken:
		if p.skipTag != "" {
			return
		}
		raw := string(p.z.Text())
		text := strings.TrimSpace(raw)
		if text == "" {
			if raw != "" {
				p.midWord = false
			}
			return
		}
		// Inline tags split text tokens mid-word; glue the continuation
		// so "wor<i>ds</i>" stays one word.
		p.pending = append(p.pending, Event{
			Kind:     EvText,
			Text:     text,
			Style:    p.style(),
			Centered: p.heading > 0 && p.heading <= 2,
			Glue:     p.midWord && !startsWithSpace(raw),
		})
		p.midWord = !endsWithSpace(raw)
		p.paraText = true
	case html.StartTagToken, html.SelfClosingTagToken:
		name, attrs := p.tag()
		p.open(name, attrs, tt == html.SelfClosingTagToken)
	case html.EndTagToken:
		name, _ := p.tag()
		p.close(name)
	}
}

func (p *HTMLParser) tag() (string, map[string]string) {
	nameBytes, hasAttr := p.z.TagName()
	name := string(nameBytes)
	var attrs map[string]string
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = p.z.TagAttr()
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[string(k)] = string(v)
	}
	return name, attrs
}

func (p *HTMLParser) open(name string, attrs map[string]string, selfClosing bool) {
	if p.skipTag != "" {
		return
	}
	if id := attrs["id"]; id != "" {
		p.pending = append(p.pending, Event{Kind: EvAnchor, Name: id})
	}
	switch name {
	case "script", "style":
		if !selfClosing {
			p.skipTag = name
		}
	case "p", "div", "section", "li", "blockquote", "tr", "dt", "dd":
		p.breakPara()
	case "br":
		p.breakPara()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		p.breakPara()
		p.heading = int(name[1] - '0')
		p.bold++
	case "b", "strong":
		p.bold++
	case "i", "em":
		p.italic++
	case "hr":
		p.breakPara()
		p.pending = append(p.pending, Event{Kind: EvRule})
	case "img", "image":
		p.img(attrs)
	case "a":
		if anchor := attrs["name"]; anchor != "" {
			p.pending = append(p.pending, Event{Kind: EvAnchor, Name: anchor})
		}
	}
}

func (p *HTMLParser) close(name string) {
	if p.skipTag != "" {
		if name == p.skipTag {
			p.skipTag = ""
		}
		return
	}
	switch name {
	case "p", "div", "section", "li", "blockquote", "tr", "dt", "dd":
		p.breakPara()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		p.heading = 0
		if p.bold > 0 {
			p.bold--
		}
		p.breakPara()
	case "b", "strong":
		if p.bold > 0 {
			p.bold--
		}
	case "i", "em":
		if p.italic > 0 {
			p.italic--
		}
	}
}

func (p *HTMLParser) img(attrs map[string]string) {
	if p.resolve == nil {
		return
	}
	src := attrs["src"]
	if src == "" {
		src = attrs["href"] // SVG-wrapped <image href=...>
	}
	if src == "" {
		return
	}
	path, w, h, ok := p.resolve(src)
	if !ok {
		return
	}
	ev := Event{Image: path, Width: w, Height: h}
	// Images mixed with paragraph text flow inline; standalone images
	// are placed as blocks.
	if p.paraText {
		ev.Kind = EvInlineImage
	} else {
		ev.Kind = EvBlockImage
	}
	p.pending = append(p.pending, ev)
	p.midWord = false
}

func (p *HTMLParser) breakPara() {
	p.midWord = false
	if p.paraText {
		p.pending = append(p.pending, Event{Kind: EvParaBreak})
		p.paraText = false
	}
}

func startsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimLeftFunc(s, unicode.IsSpace) != s
}

func endsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimRightFunc(s, unicode.IsSpace) != s
}

func (p *HTMLParser) style() fonts.Style {
	switch {
	case p.bold > 0 && p.italic > 0:
		return fonts.BoldItalic
	case p.bold > 0:
		return fonts.Bold
	case p.italic > 0:
		return fonts.Italic
	default:
		return fonts.Regular
	}
}

var _ Parser = (*HTMLParser)(nil)
