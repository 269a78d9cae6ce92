package reader

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/input"
)

// Overlay rendering shares the reader framebuffer; overlays always
// refresh FAST since they are transient chrome.

func (s *State) tocInput(ev input.Event) Action {
	n := s.handle.TocCount()
	switch ev.Button {
	case input.Up:
		if s.tocSel > 0 {
			s.tocSel--
		}
	case input.Down:
		if s.tocSel < n-1 {
			s.tocSel++
		}
	case input.Right:
		s.tocSel += 10
		if s.tocSel >= n {
			s.tocSel = n - 1
		}
	case input.Left:
		s.tocSel -= 10
		if s.tocSel < 0 {
			s.tocSel = 0
		}
	case input.Center:
		if entry, err := s.handle.TocEntry(s.tocSel); err == nil {
			s.JumpTo(entry)
		}
		s.overlay = OverlayNone
	case input.Back:
		s.overlay = OverlayNone
	}
	return ActionRedraw
}

func (s *State) drawToc() {
	s.fb.Clear(true)
	lh := s.face.LineHeight() + 4
	rows := (s.fb.H - 40) / lh
	first := s.tocSel - s.tocSel%rows

	s.drawLine(20, 10, "Contents", fonts.Bold)
	for i := 0; i < rows; i++ {
		idx := first + i
		if idx >= s.handle.TocCount() {
			break
		}
		entry, err := s.handle.TocEntry(idx)
		if err != nil {
			break
		}
		y := 30 + i*lh
		style := fonts.Regular
		if idx == s.tocSel {
			s.drawLine(8, y, ">", fonts.Bold)
			style = fonts.Bold
		}
		indent := 20 + int(entry.Depth)*16
		s.drawLine(indent, y, entry.Title, style)
	}
}

// settingsRows are the adjustable rows of the in-reader settings
// overlay.
const (
	settingFontSize = iota
	settingRefresh
	settingCount
)

func (s *State) settingsInput(ev input.Event) Action {
	switch ev.Button {
	case input.Up:
		if s.settingsSel > 0 {
			s.settingsSel--
		}
	case input.Down:
		if s.settingsSel < settingCount-1 {
			s.settingsSel++
		}
	case input.Left:
		s.adjustSetting(-1)
	case input.Right:
		s.adjustSetting(1)
	case input.Center, input.Back:
		s.overlay = OverlayNone
	}
	return ActionRedraw
}

func (s *State) adjustSetting(delta int) {
	switch s.settingsSel {
	case settingFontSize:
		size := int(s.settings.FontSize) + delta
		if size < 0 || size > 4 {
			return
		}
		s.settings.FontSize = uint8(size)
		s.applyRenderSettings()
	case settingRefresh:
		cur := 0
		for i, c := range config.RefreshChoices {
			if c == s.settings.PagesPerRefresh {
				cur = i
			}
		}
		cur += delta
		if cur < 0 || cur >= len(config.RefreshChoices) {
			return
		}
		s.settings.PagesPerRefresh = config.RefreshChoices[cur]
		s.policy = NewRefreshPolicy(s.settings.PagesPerRefresh)
	}
}

// applyRenderSettings rebuilds the render config after a settings
// change. The fingerprint changes, so section caches re-create lazily.
func (s *State) applyRenderSettings() {
	s.ownCache()
	cfg := s.settings.Render(uint16(s.fb.W), uint16(s.fb.H))
	face, err := s.mgr.Acquire(cfg.FontID, cfg.FontSize)
	if err != nil {
		// Keep the old face; the setting shows but does not apply.
		return
	}
	s.mgr.Release(s.face)
	s.face = face
	s.cfg = cfg
	s.renderer = NewPageRenderer(s.fb, face)
	s.sectionPage = 0
	s.resetNeeded = true
	s.closeSection()
}

func (s *State) drawSettings() {
	s.fb.Clear(true)
	s.drawLine(20, 10, "Reader settings", fonts.Bold)

	rows := []string{
		fmt.Sprintf("Font size: %d", s.settings.FontSize),
		"Refresh every: " + refreshLabel(s.settings.PagesPerRefresh),
	}
	lh := s.face.LineHeight() + 8
	for i, row := range rows {
		y := 40 + i*lh
		style := fonts.Regular
		if i == s.settingsSel {
			s.drawLine(8, y, ">", fonts.Bold)
			style = fonts.Bold
		}
		s.drawLine(20, y, row, style)
	}
}

func refreshLabel(e config.RefreshEvery) string {
	if e == 0 {
		return "never"
	}
	return fmt.Sprintf("%d pages", e)
}

// drawLine renders one black text run at (x, top-of-line y).
func (s *State) drawLine(x, y int, text string, style fonts.Style) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  s.fb,
		Src:  image.Black,
		Face: s.face.StyleFace(style),
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + s.face.Ascent())},
	}
	d.DrawString(text)
}

// Settings returns the possibly adjusted session settings so the shell
// can persist them on exit.
func (s *State) Settings() config.Settings { return s.settings }
