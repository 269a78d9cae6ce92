// Package shell runs the device UI: a top-level state machine over
// startup, home, file browsing, reading, settings, sleep and errors,
// driven by the input queue and rendering through the display driver.
package shell

import (
	"log"
	"time"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/input"
	"github.com/sumireader/sumi/internal/library"
	"github.com/sumireader/sumi/internal/storage"
	"github.com/sumireader/sumi/internal/theme"
)

// Core is the process-wide state threaded into every shell state. It
// owns the hardware handles and the persisted collaborators; states
// never hold globals.
type Core struct {
	Store    *storage.Store
	Fb       *display.Framebuffer
	Driver   display.Driver
	Queue    *input.Queue
	Mapping  input.Mapping
	Settings config.Settings
	Fonts    *fonts.Manager
	Theme    *theme.Theme
	Index    *library.Index
	Recents  *library.Recents
	Boot     *BootBlock

	// UIFace is the chrome font shared by the non-reader screens.
	UIFace *fonts.Face

	// BooksDir is where the file browser looks, relative to the SD
	// root.
	BooksDir string

	// PendingBook is the path the reader state opens on enter.
	PendingBook string

	quit bool
}

// NewCore wires the core from an opened store and display. Settings,
// theme, fonts and library files are loaded here; a missing or corrupt
// file falls back to defaults.
func NewCore(store *storage.Store, fb *display.Framebuffer, drv display.Driver) (*Core, error) {
	c := &Core{
		Store:    store,
		Fb:       fb,
		Driver:   drv,
		Queue:    input.NewQueue(32),
		Settings: config.LoadSettings(store.SumiPath("settings.json")),
		Fonts:    fonts.NewManager(),
		Index:    library.OpenIndex(store.SumiPath("library.bin")),
		Recents:  library.OpenRecents(store.SumiPath("recent.bin")),
		Boot:     OpenBootBlock(store.SumiPath("boot.bin")),
		BooksDir: "",
	}
	c.Mapping = input.Mapping{
		FrontRotation: c.Settings.FrontRotation,
		SideInverted:  c.Settings.SideInverted,
	}

	th, err := theme.Load(store, c.Settings.ThemeName)
	if err != nil {
		log.Printf("warning: theme %q unavailable: %v", c.Settings.ThemeName, err)
		th, err = theme.Load(store, "default")
	}
	if err != nil {
		return nil, errs.E(errs.FileNotFound, "shell.NewCore", err)
	}
	c.Theme = th
	th.RegisterFonts(c.Fonts)

	c.UIFace, err = c.Fonts.Acquire(c.Settings.FontID, 1)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SaveSettings persists the current settings.
func (c *Core) SaveSettings() {
	if err := c.Settings.Save(c.Store.SumiPath("settings.json")); err != nil {
		log.Printf("warning: failed to save settings: %v", err)
	}
	c.Mapping = input.Mapping{
		FrontRotation: c.Settings.FrontRotation,
		SideInverted:  c.Settings.SideInverted,
	}
}

// Quit asks the main loop to stop after the current tick.
func (c *Core) Quit() { c.quit = true }

// Done reports whether Quit was requested.
func (c *Core) Done() bool { return c.quit }

// Refresh pushes the framebuffer to the panel.
func (c *Core) Refresh(mode display.Mode) {
	if err := c.Driver.Refresh(c.Fb, mode); err != nil {
		log.Printf("warning: refresh failed: %v", err)
	}
}

// MapButton maps a physical button through the user's orientation
// settings. Every input source goes through here so rotation and side
// inversion apply uniformly.
func (c *Core) MapButton(b input.Button) input.Button {
	return c.Mapping.ApplySide(c.Mapping.Apply(b))
}

// PushRaw maps a physical button and enqueues it.
func (c *Core) PushRaw(b input.Button, t input.EventType) {
	c.Queue.Push(input.Event{
		Button: c.MapButton(b),
		Type:   t,
		At:     time.Now(),
	})
}
