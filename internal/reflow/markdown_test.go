package reflow

import (
	"strings"
	"testing"

	"github.com/sumireader/sumi/internal/fonts"
)

func mdEvents(t *testing.T, src string) []Event {
	t.Helper()
	return collectEvents(t, NewMarkdownParser(strings.NewReader(src)))
}

func TestMarkdownHeading(t *testing.T) {
	events := mdEvents(t, "## Chapter One\n\nBody text.\n")

	if len(events) < 4 {
		t.Fatalf("got %d events: %v", len(events), kinds(events))
	}
	if events[0].Kind != EvAnchor || events[0].Name != "chapter-one" {
		t.Fatalf("event 0 = %+v, want anchor chapter-one", events[0])
	}
	if events[1].Kind != EvText || events[1].Text != "Chapter One" {
		t.Fatalf("event 1 = %+v, want heading text", events[1])
	}
	if events[1].Style != fonts.Bold || !events[1].Centered {
		t.Fatalf("h2 style = %v centered = %v, want bold centered", events[1].Style, events[1].Centered)
	}
	if events[2].Kind != EvParaBreak {
		t.Fatalf("heading not followed by a paragraph break: %v", kinds(events))
	}
}

func TestMarkdownDeepHeadingNotCentered(t *testing.T) {
	events := mdEvents(t, "### Sub\n")
	if events[1].Centered {
		t.Fatalf("h3 should be left aligned")
	}
	if events[1].Style != fonts.Bold {
		t.Fatalf("h3 style = %v, want bold", events[1].Style)
	}
}

func TestMarkdownInlineSpans(t *testing.T) {
	events := mdEvents(t, "plain **bold** *slanted* end\n")

	var texts []string
	var styles []fonts.Style
	for _, ev := range events {
		if ev.Kind == EvText {
			texts = append(texts, strings.TrimSpace(ev.Text))
			styles = append(styles, ev.Style)
		}
	}
	wantTexts := []string{"plain", "bold", "slanted", "end"}
	wantStyles := []fonts.Style{fonts.Regular, fonts.Bold, fonts.Italic, fonts.Regular}
	if len(texts) != len(wantTexts) {
		t.Fatalf("texts = %q, want %q", texts, wantTexts)
	}
	for i := range wantTexts {
		if texts[i] != wantTexts[i] || styles[i] != wantStyles[i] {
			t.Fatalf("span %d = %q/%v, want %q/%v", i, texts[i], styles[i], wantTexts[i], wantStyles[i])
		}
	}
}

func TestMarkdownUnterminatedSpanKeptLiterally(t *testing.T) {
	events := mdEvents(t, "lonely **star\n")
	var joined string
	for _, ev := range events {
		if ev.Kind == EvText {
			joined += ev.Text
		}
	}
	if !strings.Contains(joined, "**star") {
		t.Fatalf("unterminated marker dropped: %q", joined)
	}
}

func TestMarkdownRule(t *testing.T) {
	events := mdEvents(t, "above\n\n---\n\nbelow\n")
	found := false
	for _, ev := range events {
		if ev.Kind == EvRule {
			found = true
		}
	}
	if !found {
		t.Fatalf("--- did not produce a rule: %v", kinds(events))
	}
}

func TestMarkdownLists(t *testing.T) {
	events := mdEvents(t, "- first\n- second\n3. third\n")

	var texts []string
	for _, ev := range events {
		if ev.Kind == EvText {
			texts = append(texts, ev.Text)
		}
	}
	want := []string{"• first", "• second", "3. third"}
	if len(texts) != len(want) {
		t.Fatalf("list items = %q, want %q", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("item %d = %q, want %q", i, texts[i], want[i])
		}
	}
	// Each item is its own paragraph.
	breaks := 0
	for _, ev := range events {
		if ev.Kind == EvParaBreak {
			breaks++
		}
	}
	if breaks != 3 {
		t.Fatalf("got %d breaks, want 3", breaks)
	}
}

func TestMarkdownBlockQuoteItalic(t *testing.T) {
	events := mdEvents(t, "> quoted words\n")
	if events[0].Kind != EvText || events[0].Style != fonts.Italic {
		t.Fatalf("quote event = %+v, want italic text", events[0])
	}
	if events[0].Text != "quoted words" {
		t.Fatalf("quote text = %q", events[0].Text)
	}
}

func TestHeadingAnchorForm(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"Part 2: The Return!", "part-2-the-return"},
		{"already-dashed", "already-dashed"},
	}
	for _, tt := range tests {
		if got := headingAnchor(tt.title); got != tt.want {
			t.Fatalf("headingAnchor(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
