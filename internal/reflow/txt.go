package reflow

import (
	"bufio"
	"io"
	"strings"
)

// TxtParser streams a plain-text file as UTF-8 paragraphs split on
// blank lines. The source is pulled through a small fixed buffer; long
// lines are emitted in fragments that never split a word.
type TxtParser struct {
	r       *bufio.Reader
	carry   string // trailing partial word of an over-long line
	pending []Event
	started bool // text seen since the last paragraph break
	eof     bool
}

// txtChunk bounds the in-flight read size.
const txtChunk = 1024

// NewTxtParser wraps a reader positioned at the start of the document.
func NewTxtParser(r io.Reader) *TxtParser {
	return &TxtParser{r: bufio.NewReaderSize(r, txtChunk)}
}

func (p *TxtParser) NextEvent() (Event, error) {
	for {
		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			return ev, nil
		}
		if p.eof {
			return Event{}, io.EOF
		}
		if err := p.fill(); err != nil {
			return Event{}, err
		}
	}
}

func (p *TxtParser) fill() error {
	line, isPrefix, err := p.r.ReadLine()
	if err == io.EOF {
		p.eof = true
		if p.carry != "" {
			p.pending = append(p.pending, Event{Kind: EvText, Text: p.carry})
			p.carry = ""
			p.started = true
		}
		if p.started {
			p.pending = append(p.pending, Event{Kind: EvParaBreak})
		}
		return nil
	}
	if err != nil {
		return err
	}

	text := p.carry + string(line)
	p.carry = ""
	if isPrefix {
		// Hold back the trailing partial word so fragments never split
		// a word across events.
		if idx := strings.LastIndexByte(text, ' '); idx >= 0 {
			p.carry = text[idx+1:]
			text = text[:idx]
		} else {
			p.carry = text
			text = ""
		}
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && !isPrefix {
		if p.started {
			p.pending = append(p.pending, Event{Kind: EvParaBreak})
			p.started = false
		}
		return nil
	}
	if trimmed != "" {
		p.pending = append(p.pending, Event{Kind: EvText, Text: trimmed})
		p.started = true
	}
	return nil
}

var _ Parser = (*TxtParser)(nil)
