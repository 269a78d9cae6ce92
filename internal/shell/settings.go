package shell

import (
	"fmt"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/input"
)

// Rows of the device settings screen.
const (
	rowFontSize = iota
	rowLineSpacing
	rowRefresh
	rowHyphenation
	rowShowImages
	rowFrontRotation
	rowSideInverted
	rowCount
)

type settingsState struct {
	sel int
}

func (s *settingsState) Enter(c *Core) error {
	s.sel = 0
	return nil
}

func (s *settingsState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type == input.Release {
		return
	}
	switch ev.Button {
	case input.Up:
		if s.sel > 0 {
			s.sel--
		}
	case input.Down:
		if s.sel < rowCount-1 {
			s.sel++
		}
	case input.Left:
		s.adjust(c, -1)
	case input.Right:
		s.adjust(c, 1)
	case input.Back, input.Center:
		c.SaveSettings()
		m.TransitionTo(StateHome)
		return
	case input.Power:
		c.SaveSettings()
		m.TransitionTo(StateSleep)
		return
	}
	m.RequestRender()
}

func (s *settingsState) adjust(c *Core, delta int) {
	st := &c.Settings
	switch s.sel {
	case rowFontSize:
		v := int(st.FontSize) + delta
		if v >= 0 && v <= 4 {
			st.FontSize = uint8(v)
		}
	case rowLineSpacing:
		v := int(st.LineSpacing) + delta
		if v >= 10 && v <= 20 {
			st.LineSpacing = uint8(v)
		}
	case rowRefresh:
		cur := 0
		for i, ch := range config.RefreshChoices {
			if ch == st.PagesPerRefresh {
				cur = i
			}
		}
		cur += delta
		if cur >= 0 && cur < len(config.RefreshChoices) {
			st.PagesPerRefresh = config.RefreshChoices[cur]
		}
	case rowHyphenation:
		st.Hyphenation = !st.Hyphenation
	case rowShowImages:
		st.ShowImages = !st.ShowImages
	case rowFrontRotation:
		st.FrontRotation = uint8((int(st.FrontRotation) + delta + 4) % 4)
	case rowSideInverted:
		st.SideInverted = !st.SideInverted
	}
}

func (s *settingsState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawLine(c, 20, 10, "Settings", fonts.Bold)

	st := c.Settings
	rows := []string{
		fmt.Sprintf("Font size: %d", st.FontSize),
		fmt.Sprintf("Line spacing: %d.%dx", st.LineSpacing/10, st.LineSpacing%10),
		"Refresh every: " + refreshLabel(st.PagesPerRefresh),
		"Hyphenation: " + onOff(st.Hyphenation),
		"Show images: " + onOff(st.ShowImages),
		fmt.Sprintf("Front buttons: %d deg", int(st.FrontRotation)*90),
		"Side buttons: " + direction(st.SideInverted),
	}
	lh := c.UIFace.LineHeight() + 10
	for i, row := range rows {
		y := 50 + i*lh
		style := fonts.Regular
		if i == s.sel {
			drawLine(c, 8, y, ">", fonts.Bold)
			style = fonts.Bold
		}
		drawLine(c, 24, y, row, style)
	}
	c.Refresh(display.Half)
	return nil
}

func (s *settingsState) Exit(c *Core) {
	c.SaveSettings()
}

func refreshLabel(e config.RefreshEvery) string {
	if e == 0 {
		return "never"
	}
	return fmt.Sprintf("%d pages", e)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func direction(inverted bool) string {
	if inverted {
		return "inverted"
	}
	return "normal"
}
