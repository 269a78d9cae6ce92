package shell

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/content"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/input"
	"github.com/sumireader/sumi/internal/reader"
	"github.com/sumireader/sumi/internal/storage"
)

// advancer is implemented by states that transition on their own after
// rendering, without user input.
type advancer interface {
	Next(c *Core) (StateID, bool)
}

// ---- startup ----

type startupState struct {
	next  StateID
	ready bool
}

func (s *startupState) Enter(c *Core) error {
	if c.Boot.CountBoot() {
		log.Printf("warning: boot loop detected, resetting settings")
		c.Settings = config.DefaultSettings()
		c.SaveSettings()
		c.Boot.ClearLoop()
	}

	s.next = StateHome
	if c.Boot.Valid() {
		mode, ret, book := c.Boot.Consume()
		switch {
		case mode == BootReader && book != "":
			c.PendingBook = book
			s.next = StateReader
		case ret != StateStartup:
			s.next = ret
		}
	}
	s.ready = true
	return nil
}

func (s *startupState) HandleInput(c *Core, m *Machine, ev input.Event) {}

func (s *startupState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawCentered(c, c.Fb.H/2-c.UIFace.LineHeight(), "Sumi", fonts.Bold)
	c.Refresh(display.Half)
	return nil
}

func (s *startupState) Next(c *Core) (StateID, bool) { return s.next, s.ready }

func (s *startupState) Exit(c *Core) {
	s.ready = false
	c.Boot.ClearLoop()
}

// ---- home ----

type homeState struct {
	sel int
}

func (s *homeState) Enter(c *Core) error {
	s.sel = 0
	return nil
}

func (s *homeState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type == input.Release {
		return
	}
	recents := c.Recents.Books()
	switch ev.Button {
	case input.Up:
		if s.sel > 0 {
			s.sel--
		}
	case input.Down:
		if s.sel < len(recents)-1 {
			s.sel++
		}
	case input.Center:
		if s.sel < len(recents) {
			c.PendingBook = recents[s.sel].Path
			m.TransitionTo(StateReader)
			return
		}
	case input.Right:
		m.TransitionTo(StateFileList)
		return
	case input.Left:
		m.TransitionTo(StateSettings)
		return
	case input.Back:
		m.TransitionTo(StatePluginList)
		return
	case input.Power:
		m.TransitionTo(StateSleep)
		return
	}
	m.RequestRender()
}

func (s *homeState) Render(c *Core) error {
	c.Fb.Clear(true)
	if !drawBmpFile(c, c.Theme.HomeArtPath(), 0, 0) {
		drawCentered(c, 24, "Sumi", fonts.Bold)
	}

	lh := c.UIFace.LineHeight() + 6
	y := c.Fb.H / 3
	recents := c.Recents.Books()
	if len(recents) == 0 {
		drawCentered(c, y, "No recent books", fonts.Italic)
	}
	for i, b := range recents {
		if i >= 5 {
			break
		}
		style := fonts.Regular
		if i == s.sel {
			drawLine(c, 8, y, ">", fonts.Bold)
			style = fonts.Bold
		}
		title := b.Title
		if title == "" {
			title = filepath.Base(b.Path)
		}
		drawLine(c, 24, y, title, style)
		drawProgressBar(c, c.Fb.W-80, y+4, 60, 8, int(b.ProgressPercent))
		y += lh
	}

	drawLine(c, 8, c.Fb.H-lh, "< settings    books >", fonts.Regular)
	c.Refresh(display.Half)
	return nil
}

func (s *homeState) Exit(c *Core) {}

// ---- file list ----

type fileListState struct {
	dir     string
	entries []string
	sel     int
}

func (s *fileListState) Enter(c *Core) error {
	s.dir = c.Store.Abs(c.BooksDir)
	entries, err := storage.ListBooks(s.dir, content.Supported)
	if err != nil {
		return errs.E(errs.SdCardNotFound, "shell.fileList", err)
	}
	s.entries = entries
	if s.sel >= len(entries) {
		s.sel = 0
	}
	return nil
}

func (s *fileListState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type == input.Release {
		return
	}
	switch ev.Button {
	case input.Up:
		if s.sel > 0 {
			s.sel--
		}
	case input.Down:
		if s.sel < len(s.entries)-1 {
			s.sel++
		}
	case input.Right:
		s.sel += 10
		if s.sel >= len(s.entries) {
			s.sel = len(s.entries) - 1
		}
		if s.sel < 0 {
			s.sel = 0
		}
	case input.Left:
		s.sel -= 10
		if s.sel < 0 {
			s.sel = 0
		}
	case input.Center:
		if s.sel < len(s.entries) {
			c.PendingBook = filepath.Join(s.dir, s.entries[s.sel])
			m.TransitionTo(StateReader)
			return
		}
	case input.Back:
		m.TransitionTo(StateHome)
		return
	case input.Power:
		m.TransitionTo(StateSleep)
		return
	}
	m.RequestRender()
}

func (s *fileListState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawLine(c, 20, 10, "Books", fonts.Bold)

	lh := c.UIFace.LineHeight() + 8
	rows := (c.Fb.H - 50) / lh
	first := s.sel - s.sel%rows
	if len(s.entries) == 0 {
		drawCentered(c, c.Fb.H/2, "No books found", fonts.Italic)
	}
	for i := 0; i < rows; i++ {
		idx := first + i
		if idx >= len(s.entries) {
			break
		}
		y := 40 + i*lh
		style := fonts.Regular
		if idx == s.sel {
			drawLine(c, 8, y, ">", fonts.Bold)
			style = fonts.Bold
		}
		name := s.entries[idx]
		drawLine(c, 24, y, name, style)
		if e, ok := c.Index.Lookup(filepath.Join(s.dir, name)); ok && e.TotalPages > 0 {
			pct := int(e.CurrentPage) * 100 / int(e.TotalPages)
			drawProgressBar(c, c.Fb.W-80, y+4, 60, 8, pct)
		}
	}
	c.Refresh(display.Half)
	return nil
}

func (s *fileListState) Exit(c *Core) {}

// ---- reader ----

type readerState struct {
	rs *reader.State
}

func (s *readerState) Enter(c *Core) error {
	if c.PendingBook == "" {
		return errs.E(errs.InvalidState, "shell.reader", fmt.Errorf("no book selected"))
	}
	rs, err := reader.Open(reader.Deps{
		Store:    c.Store,
		Fonts:    c.Fonts,
		Fb:       c.Fb,
		Driver:   c.Driver,
		Settings: c.Settings,
		Index:    c.Index,
		Recents:  c.Recents,
	}, c.PendingBook)
	if err != nil {
		log.Printf("warning: failed to open %s: %v", c.PendingBook, err)
		return fmt.Errorf("%s", errs.KindOf(err))
	}
	s.rs = rs
	return nil
}

func (s *readerState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Button == input.Power && ev.Type == input.Press {
		s.rs.SaveState()
		m.TransitionTo(StateSleep)
		return
	}
	switch s.rs.HandleInput(ev) {
	case reader.ActionExit:
		m.TransitionTo(StateFileList)
	case reader.ActionRedraw:
		m.RequestRender()
	}
}

func (s *readerState) Render(c *Core) error {
	return s.rs.Render()
}

func (s *readerState) Exit(c *Core) {
	if s.rs == nil {
		return
	}
	c.Settings = s.rs.Settings()
	s.rs.Close()
	s.rs = nil
	c.SaveSettings()
	c.PendingBook = ""
}

// ---- sleep ----

type sleepState struct{}

func (s *sleepState) Enter(c *Core) error {
	return nil
}

func (s *sleepState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type != input.Press {
		return
	}
	if ev.Button == input.Power {
		if err := c.Driver.Wake(); err != nil {
			log.Printf("warning: wake failed: %v", err)
		}
		m.TransitionTo(StateHome)
	}
}

func (s *sleepState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawCentered(c, c.Fb.H/2, "Sleeping", fonts.Italic)
	c.Refresh(display.Full)
	return c.Driver.Sleep()
}

func (s *sleepState) Exit(c *Core) {}

// ---- error ----

type errorState struct {
	message string
}

func (s *errorState) Enter(c *Core) error { return nil }

func (s *errorState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type != input.Press {
		return
	}
	// Any button returns to the file browser.
	m.TransitionTo(StateFileList)
}

func (s *errorState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawCentered(c, c.Fb.H/2-c.UIFace.LineHeight()*2, "Error", fonts.Bold)
	msg := s.message
	if msg == "" {
		msg = "something went wrong"
	}
	drawCentered(c, c.Fb.H/2, msg, fonts.Regular)
	drawCentered(c, c.Fb.H/2+c.UIFace.LineHeight()*2, "press any button", fonts.Italic)
	c.Refresh(display.Full)
	return nil
}

func (s *errorState) Exit(c *Core) {}

// ---- plugins (stubs; plugin execution is out of scope) ----

type pluginListState struct{}

func (s *pluginListState) Enter(c *Core) error { return nil }

func (s *pluginListState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type != input.Press {
		return
	}
	m.TransitionTo(StateHome)
}

func (s *pluginListState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawLine(c, 20, 10, "Plugins", fonts.Bold)
	drawCentered(c, c.Fb.H/2, "No plugins installed", fonts.Italic)
	c.Refresh(display.Half)
	return nil
}

func (s *pluginListState) Exit(c *Core) {}

type pluginHostState struct{}

func (s *pluginHostState) Enter(c *Core) error { return nil }

func (s *pluginHostState) HandleInput(c *Core, m *Machine, ev input.Event) {
	if ev.Type != input.Press {
		return
	}
	m.TransitionTo(StatePluginList)
}

func (s *pluginHostState) Render(c *Core) error {
	c.Fb.Clear(true)
	drawCentered(c, c.Fb.H/2, "No plugin running", fonts.Italic)
	c.Refresh(display.Half)
	return nil
}

func (s *pluginHostState) Exit(c *Core) {}
