package reflow

import (
	"bufio"
	"io"
	"strings"

	"github.com/sumireader/sumi/internal/fonts"
)

// MarkdownParser streams a Markdown subset: headings, bold/italic/code
// spans, lists, block quotes, and horizontal rules. Inline HTML and
// tables are passed through as plain text.
type MarkdownParser struct {
	r       *bufio.Reader
	pending []Event
	started bool
	eof     bool
}

// NewMarkdownParser wraps a reader positioned at the start.
func NewMarkdownParser(r io.Reader) *MarkdownParser {
	return &MarkdownParser{r: bufio.NewReaderSize(r, txtChunk)}
}

func (p *MarkdownParser) NextEvent() (Event, error) {
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

func (p *MarkdownParser) fill() error {
	raw, err := p.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if err == io.EOF {
		p.eof = true
		if raw == "" {
			if p.started {
				p.pending = append(p.pending, Event{Kind: EvParaBreak})
			}
			return nil
		}
	}

	line := strings.TrimRight(raw, "\r\n")
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		if p.started {
			p.pending = append(p.pending, Event{Kind: EvParaBreak})
			p.started = false
		}
	case isRule(trimmed):
		p.endPara()
		p.pending = append(p.pending, Event{Kind: EvRule})
	case strings.HasPrefix(trimmed, "#"):
		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		title := strings.TrimSpace(trimmed[level:])
		p.endPara()
		p.pending = append(p.pending, Event{Kind: EvAnchor, Name: headingAnchor(title)})
		p.spans(title, fonts.Bold, level <= 2)
		p.pending = append(p.pending, Event{Kind: EvParaBreak})
		p.started = false
	case strings.HasPrefix(trimmed, ">"):
		p.spans(strings.TrimSpace(strings.TrimPrefix(trimmed, ">")), fonts.Italic, false)
		p.started = true
	case isListItem(trimmed):
		p.endPara()
		text, bullet := listItem(trimmed)
		p.spans(bullet+" "+text, fonts.Regular, false)
		p.pending = append(p.pending, Event{Kind: EvParaBreak})
		p.started = false
	default:
		p.spans(trimmed, fonts.Regular, false)
		p.started = true
	}

	if p.eof && p.started {
		p.pending = append(p.pending, Event{Kind: EvParaBreak})
		p.started = false
	}
	return nil
}

func (p *MarkdownParser) endPara() {
	if p.started {
		p.pending = append(p.pending, Event{Kind: EvParaBreak})
		p.started = false
	}
}

// spans splits a line on **bold**, *italic* and `code` markers and
// emits one text event per span. base is folded into the span style.
func (p *MarkdownParser) spans(text string, base fonts.Style, centered bool) {
	for len(text) > 0 {
		marker, start := nextMarker(text)
		if start < 0 {
			p.emitText(text, base, centered)
			return
		}
		if start > 0 {
			p.emitText(text[:start], base, centered)
		}
		rest := text[start+len(marker):]
		end := strings.Index(rest, marker)
		if end < 0 {
			// Unterminated span: keep the marker literally.
			p.emitText(text[start:], base, centered)
			return
		}
		p.emitText(rest[:end], spanStyle(marker, base), centered)
		text = rest[end+len(marker):]
	}
}

func (p *MarkdownParser) emitText(text string, style fonts.Style, centered bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	p.pending = append(p.pending, Event{Kind: EvText, Text: text, Style: style, Centered: centered})
}

func nextMarker(text string) (string, int) {
	best := -1
	marker := ""
	for _, m := range []string{"**", "*", "`"} {
		idx := strings.Index(text, m)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
			marker = m
		}
	}
	return marker, best
}

func spanStyle(marker string, base fonts.Style) fonts.Style {
	switch marker {
	case "**":
		if base == fonts.Italic {
			return fonts.BoldItalic
		}
		return fonts.Bold
	case "*":
		if base == fonts.Bold {
			return fonts.BoldItalic
		}
		return fonts.Italic
	default:
		return base
	}
}

func isRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	c := line[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != c && line[i] != ' ' {
			return false
		}
	}
	return true
}

func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && line[i] == '.' && line[i+1] == ' '
}

func listItem(line string) (text, bullet string) {
	switch {
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "+ "):
		return strings.TrimSpace(line[2:]), "•"
	default:
		idx := strings.IndexByte(line, '.')
		return strings.TrimSpace(line[idx+1:]), line[:idx+1]
	}
}

// headingAnchor derives a stable anchor id from a heading title, the
// usual lowercase-and-dashes form.
func headingAnchor(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('-')
		}
	}
	return b.String()
}

var _ Parser = (*MarkdownParser)(nil)
