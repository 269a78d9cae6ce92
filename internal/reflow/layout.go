package reflow

import (
	"fmt"
	"io"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/pagecache"
)

// Layout consumes parser events and produces page records. It implements
// pagecache.Paginator; the page counter runs across the whole document,
// so a single Layout can drive create and any number of extends.
type Layout struct {
	parser Parser
	m      fonts.Measurer
	cfg    config.RenderConfig
	hyph   *Hyphenator

	lineHeight  int
	paraSpacing int
	spaceWidth  int
	width       int // usable text width
	height      int // usable text height
	x0, y0      int // margins

	line      []word
	lineWidth int // natural width of the pending line

	y         int // cursor within the text area
	ops       []pagecache.Op
	pageIndex int

	ready   []*pagecache.Page
	anchors []pagecache.Anchor
	pending []string // anchor ids waiting for their first content
	eof     bool
}

// word is one pending line item: a text run or an inline image.
type word struct {
	text    string
	style   fonts.Style
	width   int
	image   string // inline image path; text is empty then
	imageH  uint16
	center  bool
	noSpace bool // glued to the previous word (inline markup split it)
}

// NewLayout builds the layout stage for one pagination run.
func NewLayout(parser Parser, m fonts.Measurer, cfg config.RenderConfig) *Layout {
	lh := m.LineHeight() * int(cfg.LineSpacing) / 10
	if lh <= 0 {
		lh = m.LineHeight()
	}
	return &Layout{
		parser:      parser,
		m:           m,
		cfg:         cfg,
		hyph:        NewHyphenator(cfg.Hyphenation),
		lineHeight:  lh,
		paraSpacing: lh / 2,
		spaceWidth:  m.WidthOf(" ", fonts.Regular),
		width:       cfg.TextWidth(),
		height:      cfg.TextHeight(),
		x0:          int(cfg.MarginX),
		y0:          int(cfg.MarginY),
	}
}

// NextPage returns the next completed page, or io.EOF after the last.
func (l *Layout) NextPage() (*pagecache.Page, error) {
	for len(l.ready) == 0 {
		if l.eof {
			return nil, io.EOF
		}
		ev, err := l.parser.NextEvent()
		if err == io.EOF {
			l.finish()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parser failed: %w", err)
		}
		if err := l.consume(ev); err != nil {
			return nil, err
		}
	}
	page := l.ready[0]
	l.ready = l.ready[1:]
	return page, nil
}

// TakeAnchors drains anchors resolved since the previous call.
func (l *Layout) TakeAnchors() []pagecache.Anchor {
	out := l.anchors
	l.anchors = nil
	return out
}

// SkipPages discards n pages, realigning the layout with a partial
// cache before an extend.
func (l *Layout) SkipPages(n int) error {
	for i := 0; i < n; i++ {
		if _, err := l.NextPage(); err != nil {
			return err
		}
	}
	l.anchors = nil
	return nil
}

func (l *Layout) consume(ev Event) error {
	switch ev.Kind {
	case EvText:
		l.addText(ev.Text, ev.Style, ev.Centered, ev.Glue)
	case EvParaBreak:
		l.endParagraph()
	case EvAnchor:
		l.pending = append(l.pending, ev.Name)
	case EvInlineImage:
		l.addInlineImage(ev)
	case EvBlockImage:
		l.addBlockImage(ev)
	case EvRule:
		l.addRule()
	}
	return nil
}

// addText splits a run on spaces and places each word. glue joins the
// first word to the tail of the pending line without a space.
func (l *Layout) addText(text string, style fonts.Style, centered, glue bool) {
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if start >= 0 {
				l.placeWord(text[start:i], style, centered, glue)
				glue = false
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		l.placeWord(text[start:], style, centered, glue)
	}
}

func (l *Layout) placeWord(text string, style fonts.Style, centered, glued bool) {
	w := l.m.WidthOf(text, style)
	if l.fits(w, glued) {
		l.appendWord(word{text: text, style: style, width: w, center: centered, noSpace: glued})
		return
	}

	// Try to fill the line with a hyphenated prefix.
	if rest, ok := l.hyphenateInto(text, style, centered, glued); ok {
		text = rest
		w = l.m.WidthOf(text, style)
	}

	l.breakLine(false)
	// A word wider than the whole line is force-split on rune
	// boundaries so pagination always makes progress.
	for w > l.width {
		prefix := l.runePrefixFitting(text, style, l.width)
		if prefix == 0 || prefix >= len(text) {
			break
		}
		pw := l.m.WidthOf(text[:prefix], style)
		l.appendWord(word{text: text[:prefix], style: style, width: pw, center: centered})
		l.breakLine(false)
		text = text[prefix:]
		w = l.m.WidthOf(text, style)
	}
	l.appendWord(word{text: text, style: style, width: w, center: centered})
}

// hyphenateInto places "prefix-" on the current line when a break point
// makes it fit; returns the remainder.
func (l *Layout) hyphenateInto(text string, style fonts.Style, centered, glued bool) (string, bool) {
	breaks := l.hyph.Breaks(text)
	for i := len(breaks) - 1; i >= 0; i-- {
		prefix := text[:breaks[i]] + "-"
		w := l.m.WidthOf(prefix, style)
		if l.fits(w, glued) {
			l.appendWord(word{text: prefix, style: style, width: w, center: centered, noSpace: glued})
			l.breakLine(false)
			return text[breaks[i]:], true
		}
	}
	return text, false
}

func (l *Layout) runePrefixFitting(text string, style fonts.Style, limit int) int {
	last := 0
	for i := range text {
		if i == 0 {
			continue
		}
		if l.m.WidthOf(text[:i], style) > limit {
			return last
		}
		last = i
	}
	return last
}

// fits reports whether one more item of width w fits the pending line.
func (l *Layout) fits(w int, glued bool) bool {
	if len(l.line) == 0 {
		return w <= l.width
	}
	if glued {
		return l.lineWidth+w <= l.width
	}
	return l.lineWidth+l.spaceWidth+w <= l.width
}

func (l *Layout) appendWord(w word) {
	if len(l.line) > 0 && !w.noSpace {
		l.lineWidth += l.spaceWidth
	}
	l.lineWidth += w.width
	l.line = append(l.line, w)
}

func (l *Layout) addInlineImage(ev Event) {
	if !l.cfg.ShowImages {
		return
	}
	// Inline images flow like a word scaled to the line height.
	h := uint16(l.lineHeight)
	w := int(ev.Width)
	if ev.Height > 0 {
		w = int(ev.Width) * int(h) / int(ev.Height)
	}
	if w <= 0 {
		w = int(h)
	}
	if !l.fits(w, false) {
		l.breakLine(false)
	}
	l.appendWord(word{image: ev.Image, width: w, imageH: h})
}

func (l *Layout) addBlockImage(ev Event) {
	if !l.cfg.ShowImages || ev.Width == 0 || ev.Height == 0 {
		return
	}
	l.breakLine(true)

	dispW := int(ev.Width)
	dispH := int(ev.Height)
	if dispW > l.width {
		dispH = dispH * l.width / dispW
		dispW = l.width
	}
	if dispH > l.height && !l.cfg.AllowTallImage {
		dispW = dispW * l.height / dispH
		dispH = l.height
	}
	if dispH > l.height {
		dispH = l.height
	}
	if l.y > 0 && l.y+dispH > l.height {
		l.flushPage()
	}
	l.bindAnchors()
	l.ops = append(l.ops, pagecache.Op{
		Kind: pagecache.OpImage,
		X:    int16(l.x0 + (l.width-dispW)/2),
		Y:    int16(l.y0 + l.y),
		W:    uint16(dispW),
		H:    uint16(dispH),
		Text: ev.Image,
	})
	l.y += dispH + l.paraSpacing
	if l.y >= l.height {
		l.flushPage()
	}
}

func (l *Layout) addRule() {
	l.breakLine(true)
	if l.y+l.lineHeight > l.height {
		l.flushPage()
	}
	l.bindAnchors()
	l.ops = append(l.ops, pagecache.Op{
		Kind: pagecache.OpRule,
		X:    int16(l.x0),
		Y:    int16(l.y0 + l.y + l.lineHeight/2),
		W:    uint16(l.width),
	})
	l.y += l.lineHeight
}

func (l *Layout) endParagraph() {
	l.breakLine(true)
	if l.y > 0 {
		l.y += l.paraSpacing
	}
}

// breakLine finalizes the pending line: resolves word x positions per
// the paragraph alignment and emits the ops. lastInPara suppresses
// justification stretch.
func (l *Layout) breakLine(lastInPara bool) {
	if len(l.line) == 0 {
		return
	}
	if l.y+l.lineHeight > l.height {
		l.flushPage()
	}

	align := l.cfg.Alignment
	if l.line[0].center {
		align = config.AlignCenter
	}

	x := l.x0
	extra := l.width - l.lineWidth
	gap := l.spaceWidth
	switch align {
	case config.AlignCenter:
		x += extra / 2
	case config.AlignRight:
		x += extra
	case config.AlignJustified:
		if !lastInPara && extra > 0 {
			gaps := 0
			for _, w := range l.line[1:] {
				if !w.noSpace {
					gaps++
				}
			}
			if gaps > 0 {
				gap += extra / gaps
			}
		}
	}

	l.bindAnchors()
	for i, w := range l.line {
		if i > 0 && !w.noSpace {
			x += gap
		}
		if w.image != "" {
			l.ops = append(l.ops, pagecache.Op{
				Kind: pagecache.OpImage,
				X:    int16(x),
				Y:    int16(l.y0 + l.y),
				W:    uint16(w.width),
				H:    w.imageH,
				Text: w.image,
			})
		} else {
			l.ops = append(l.ops, pagecache.Op{
				Kind:  pagecache.OpText,
				X:     int16(x),
				Y:     int16(l.y0 + l.y),
				Style: uint8(w.style),
				Text:  w.text,
			})
		}
		x += w.width
	}
	l.line = nil
	l.lineWidth = 0
	l.y += l.lineHeight
}

// bindAnchors attaches pending anchor ids to the current position.
func (l *Layout) bindAnchors() {
	for _, id := range l.pending {
		l.ops = append(l.ops, pagecache.Op{
			Kind: pagecache.OpAnchor,
			Y:    int16(l.y0 + l.y),
			Text: id,
		})
		l.anchors = append(l.anchors, pagecache.Anchor{ID: id, Page: uint16(l.pageIndex)})
	}
	l.pending = nil
}

func (l *Layout) flushPage() {
	l.ready = append(l.ready, &pagecache.Page{Ops: l.ops})
	l.ops = nil
	l.y = 0
	l.pageIndex++
}

// finish flushes the final line and page at end of document.
func (l *Layout) finish() {
	l.breakLine(true)
	if len(l.pending) > 0 {
		l.bindAnchors()
	}
	if len(l.ops) > 0 {
		l.flushPage()
	}
	l.eof = true
}

var _ pagecache.Paginator = (*Layout)(nil)
