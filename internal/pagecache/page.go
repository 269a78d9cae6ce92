// Package pagecache persists pagination results on SD.
//
// A cache file stores the serialized draw commands of every rendered
// page behind a random-access offset index, keyed by a fingerprint of
// the render configuration. Pagination can stop mid-document (partial
// cache) and be extended later; every write goes through a temp file
// and a rename so readers never observe a half-written cache.
package pagecache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// OpKind identifies one draw command inside a page record.
type OpKind uint8

const (
	// OpText draws a text run at (X, Y) with the font style in Style.
	OpText OpKind = iota
	// OpRule draws a horizontal rule of width W at (X, Y).
	OpRule
	// OpImage draws the cached 1-bit bitmap named by Text at (X, Y),
	// scaled to W x H.
	OpImage
	// OpFill fills the W x H rectangle at (X, Y); Style 0 is black,
	// 1 is white.
	OpFill
	// OpAnchor marks a named in-document location; no visual output.
	OpAnchor
)

// Op is one draw command. Text carries the run text, the anchor id, or
// the cached image path depending on Kind.
type Op struct {
	Kind  OpKind
	X, Y  int16
	W, H  uint16
	Style uint8
	Text  string
}

// Page is a position-independent record of one rendered page.
type Page struct {
	Ops []Op
}

// ContentHeight returns the vertical extent of the page's ops, used by
// scrollable landscape layouts.
func (p *Page) ContentHeight(lineHeight int) int {
	max := 0
	for _, op := range p.Ops {
		bottom := int(op.Y)
		switch op.Kind {
		case OpText:
			bottom += lineHeight
		case OpRule:
			bottom += 1
		case OpImage, OpFill:
			bottom += int(op.H)
		case OpAnchor:
			continue
		}
		if bottom > max {
			max = bottom
		}
	}
	return max
}

// FirstAnchor returns the id of the first anchor op, if any.
func (p *Page) FirstAnchor() (string, bool) {
	for _, op := range p.Ops {
		if op.Kind == OpAnchor {
			return op.Text, true
		}
	}
	return "", false
}

// encode serializes the page record. Little-endian throughout.
func (p *Page) encode(w io.Writer) error {
	if len(p.Ops) > math.MaxUint16 {
		return fmt.Errorf("page has too many ops: %d", len(p.Ops))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(p.Ops))); err != nil {
		return fmt.Errorf("failed to write op count: %w", err)
	}
	for _, op := range p.Ops {
		if len(op.Text) > math.MaxUint16 {
			return fmt.Errorf("op text too long: %d bytes", len(op.Text))
		}
		fields := []any{
			uint8(op.Kind), op.X, op.Y, op.W, op.H, op.Style,
			uint16(len(op.Text)),
		}
		for _, f := range fields {
			if err := binary.Write(w, binary.LittleEndian, f); err != nil {
				return fmt.Errorf("failed to write op: %w", err)
			}
		}
		if _, err := w.Write([]byte(op.Text)); err != nil {
			return fmt.Errorf("failed to write op text: %w", err)
		}
	}
	return nil
}

// decodePage reads one page record.
func decodePage(r io.Reader) (*Page, error) {
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read op count: %w", err)
	}
	page := &Page{Ops: make([]Op, 0, count)}
	for i := 0; i < int(count); i++ {
		var (
			kind    uint8
			op      Op
			textLen uint16
		)
		fields := []any{&kind, &op.X, &op.Y, &op.W, &op.H, &op.Style, &textLen}
		for _, f := range fields {
			if err := binary.Read(r, binary.LittleEndian, f); err != nil {
				return nil, fmt.Errorf("failed to read op %d: %w", i, err)
			}
		}
		op.Kind = OpKind(kind)
		if textLen > 0 {
			buf := make([]byte, textLen)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("failed to read op %d text: %w", i, err)
			}
			op.Text = string(buf)
		}
		page.Ops = append(page.Ops, op)
	}
	return page, nil
}

// Bytes returns the serialized record, mainly for tests.
func (p *Page) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := p.encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
