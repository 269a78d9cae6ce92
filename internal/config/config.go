// Package config holds the render configuration that determines
// pagination output, and the persisted device settings.
package config

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/sumireader/sumi/internal/storage"
)

// Alignment selects paragraph alignment.
type Alignment uint8

const (
	AlignJustified Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// RenderConfig is the tuple that uniquely determines pagination output
// for a book. Any field change invalidates the page cache.
type RenderConfig struct {
	FontID         string
	FontSize       uint8
	LineSpacing    uint8 // tenths: 10 = 1.0x, 15 = 1.5x
	MarginX        uint8
	MarginY        uint8
	Alignment      Alignment
	Hyphenation    bool
	ShowImages     bool
	ViewportW      uint16
	ViewportH      uint16
	AllowTallImage bool
}

// Fingerprint hashes the serialized config. Equal fingerprints mean a
// cache built under one config is valid under the other.
func (c RenderConfig) Fingerprint() uint32 {
	buf := &bytes.Buffer{}
	buf.WriteString(c.FontID)
	buf.WriteByte(0)
	flags := uint8(0)
	if c.Hyphenation {
		flags |= 0x01
	}
	if c.ShowImages {
		flags |= 0x02
	}
	if c.AllowTallImage {
		flags |= 0x04
	}
	fields := []any{
		c.FontSize, c.LineSpacing, c.MarginX, c.MarginY,
		uint8(c.Alignment), flags, c.ViewportW, c.ViewportH,
	}
	for _, f := range fields {
		binary.Write(buf, binary.LittleEndian, f)
	}
	return storage.Hash32(buf.Bytes())
}

// TextWidth returns the usable line width in pixels.
func (c RenderConfig) TextWidth() int {
	return int(c.ViewportW) - 2*int(c.MarginX)
}

// TextHeight returns the usable page height in pixels.
func (c RenderConfig) TextHeight() int {
	return int(c.ViewportH) - 2*int(c.MarginY)
}

// RefreshEvery is the "pages per half refresh" setting. Zero means never.
type RefreshEvery uint8

// Valid pagesPerRefresh choices.
var RefreshChoices = []RefreshEvery{0, 1, 5, 10, 15, 30}

// Settings is the persisted device configuration.
type Settings struct {
	FontID          string       `json:"font_id"`
	FontSize        uint8        `json:"font_size"`
	LineSpacing     uint8        `json:"line_spacing"`
	MarginX         uint8        `json:"margin_x"`
	MarginY         uint8        `json:"margin_y"`
	Alignment       Alignment    `json:"alignment"`
	Hyphenation     bool         `json:"hyphenation"`
	ShowImages      bool         `json:"show_images"`
	PagesPerRefresh RefreshEvery `json:"pages_per_refresh"`
	FrontRotation   uint8        `json:"front_rotation"` // quarter turns of the front button pad
	SideInverted    bool         `json:"side_inverted"`  // swap side page-turn buttons
	ThemeName       string       `json:"theme"`
	Landscape       bool         `json:"landscape"`
}

// DefaultSettings matches the factory configuration.
func DefaultSettings() Settings {
	return Settings{
		FontID:          "serif",
		FontSize:        2,
		LineSpacing:     12,
		MarginX:         24,
		MarginY:         20,
		Alignment:       AlignJustified,
		Hyphenation:     true,
		ShowImages:      true,
		PagesPerRefresh: 10,
		ThemeName:       "default",
	}
}

// Render builds the RenderConfig for the current settings and viewport.
func (s Settings) Render(viewportW, viewportH uint16) RenderConfig {
	return RenderConfig{
		FontID:      s.FontID,
		FontSize:    s.FontSize,
		LineSpacing: s.LineSpacing,
		MarginX:     s.MarginX,
		MarginY:     s.MarginY,
		Alignment:   s.Alignment,
		Hyphenation: s.Hyphenation,
		ShowImages:  s.ShowImages,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
	}
}

// LoadSettings reads settings from path, falling back to defaults when
// the file is missing or unreadable.
func LoadSettings(path string) Settings {
	s := DefaultSettings()
	data, err := storage.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings()
	}
	return s
}

// Save writes settings atomically.
func (s Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, data)
}
