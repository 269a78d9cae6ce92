// Package reflow turns book content into page records.
//
// One streaming parser per reflowable format emits a linear sequence of
// events; the layout engine consumes them, wraps lines to the viewport,
// and emits serialized pages. Parsers pull their source in bounded
// chunks and never hold the whole document in memory.
package reflow

import (
	"github.com/sumireader/sumi/internal/fonts"
)

// EventKind identifies one parser event.
type EventKind uint8

const (
	// EvText is a text run with font attributes.
	EvText EventKind = iota
	// EvParaBreak ends the current paragraph.
	EvParaBreak
	// EvAnchor marks a named location; it binds to the next placed
	// content.
	EvAnchor
	// EvInlineImage flows an image within the text.
	EvInlineImage
	// EvBlockImage places an image on its own lines.
	EvBlockImage
	// EvRule draws a horizontal rule.
	EvRule
)

// Event is one unit of parser output. Parsers return io.EOF from
// NextEvent when the document ends.
type Event struct {
	Kind     EventKind
	Text     string
	Style    fonts.Style
	Centered bool   // headings and figures center their lines
	Glue     bool   // text continues the previous run mid-word
	Name     string // anchor id
	Image    string // cached image path
	Width    uint16 // image display size
	Height   uint16
}

// Parser is the per-format streaming event source.
type Parser interface {
	NextEvent() (Event, error)
}
