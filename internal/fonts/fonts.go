// Package fonts loads OpenType faces from SD and measures text for the
// layout engine. Faces are lazy-loaded and ref-counted; the reader
// releases its faces on exit to free memory before the next state.
package fonts

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/sumireader/sumi/internal/errs"
)

// Style indexes the four face variants of a font set.
type Style uint8

const (
	Regular Style = iota
	Bold
	Italic
	BoldItalic
	styleCount
)

// Set names the on-SD files for the four styles of one font id.
// Missing styles fall back to Regular.
type Set struct {
	ID    string
	Paths [styleCount]string
}

// Measurer is what the layout engine needs from a font: pixel advance of
// a string per style, and the vertical metrics of the line grid.
type Measurer interface {
	WidthOf(text string, style Style) int
	LineHeight() int
	Ascent() int
}

// Face is a loaded font set at one size. It implements Measurer and
// exposes the underlying font.Face values for drawing.
type Face struct {
	set   Set
	size  float64
	faces [styleCount]font.Face

	lineHeight int
	ascent     int

	refs int
}

// StyleFace returns the font.Face for a style, falling back to Regular.
func (f *Face) StyleFace(style Style) font.Face {
	if style < styleCount && f.faces[style] != nil {
		return f.faces[style]
	}
	return f.faces[Regular]
}

func (f *Face) WidthOf(text string, style Style) int {
	return font.MeasureString(f.StyleFace(style), text).Ceil()
}

func (f *Face) LineHeight() int { return f.lineHeight }
func (f *Face) Ascent() int     { return f.ascent }

// Manager caches loaded faces keyed by (font id, point size).
type Manager struct {
	mu       sync.Mutex
	sets     map[string]Set
	prebuilt map[string]font.Face
	faces    map[string]*Face
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		sets:     make(map[string]Set),
		prebuilt: make(map[string]font.Face),
		faces:    make(map[string]*Face),
	}
}

// Register makes a font set available under its id.
func (m *Manager) Register(set Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.ID] = set
}

// RegisterFace installs an already-built face under an id. It serves
// every requested size and style; no font file is read.
func (m *Manager) RegisterFace(id string, face font.Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prebuilt[id] = face
}

// SizePoints converts the 0-4 font size setting to a point size.
func SizePoints(fontSize uint8) float64 {
	sizes := [...]float64{14, 16, 18, 21, 24}
	if int(fontSize) < len(sizes) {
		return sizes[fontSize]
	}
	return sizes[2]
}

// Acquire loads (or reuses) the face for a font id at the given setting
// size. Every Acquire must be paired with a Release.
func (m *Manager) Acquire(fontID string, fontSize uint8) (*Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := SizePoints(fontSize)
	key := fmt.Sprintf("%s@%g", fontID, size)
	if f, ok := m.faces[key]; ok {
		f.refs++
		return f, nil
	}

	if pf, ok := m.prebuilt[fontID]; ok {
		f := &Face{set: Set{ID: fontID}, size: size, refs: 1}
		for st := Regular; st < styleCount; st++ {
			f.faces[st] = pf
		}
		metrics := pf.Metrics()
		f.ascent = metrics.Ascent.Ceil()
		f.lineHeight = metrics.Height.Ceil()
		m.faces[key] = f
		return f, nil
	}

	set, ok := m.sets[fontID]
	if !ok {
		return nil, errs.E(errs.FileNotFound, "fonts.Acquire", fmt.Errorf("unknown font id %q", fontID))
	}

	f := &Face{set: set, size: size, refs: 1}
	for st := Regular; st < styleCount; st++ {
		path := set.Paths[st]
		if path == "" {
			continue
		}
		face, err := loadFace(path, size)
		if err != nil {
			if st == Regular {
				return nil, err
			}
			continue
		}
		f.faces[st] = face
	}
	if f.faces[Regular] == nil {
		return nil, errs.E(errs.FileNotFound, "fonts.Acquire", fmt.Errorf("font id %q has no regular face", fontID))
	}

	metrics := f.faces[Regular].Metrics()
	f.ascent = metrics.Ascent.Ceil()
	f.lineHeight = metrics.Height.Ceil()
	if f.lineHeight == 0 {
		f.lineHeight = metrics.Ascent.Ceil() + metrics.Descent.Ceil()
	}

	m.faces[key] = f
	return f, nil
}

// Release drops one reference; the face is unloaded when the last
// reference goes away.
func (m *Manager) Release(f *Face) {
	if f == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f.refs--
	if f.refs > 0 {
		return
	}
	key := fmt.Sprintf("%s@%g", f.set.ID, f.size)
	delete(m.faces, key)
	for _, face := range f.faces {
		if face != nil {
			face.Close()
		}
	}
}

func loadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.FileNotFound, "fonts.loadFace", err)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, errs.E(errs.ParseFailed, "fonts.loadFace", err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     144, // the panel is ~150 ppi
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errs.E(errs.ParseFailed, "fonts.loadFace", err)
	}
	return face, nil
}

// FixedMeasurer measures every rune at a constant advance. Used by tests
// and as the fallback when a theme names no usable font.
type FixedMeasurer struct {
	Advance int
	Line    int
}

func (f FixedMeasurer) WidthOf(text string, style Style) int {
	n := 0
	for range text {
		n++
	}
	return n * f.Advance
}

func (f FixedMeasurer) LineHeight() int { return f.Line }
func (f FixedMeasurer) Ascent() int     { return f.Line * 3 / 4 }

var _ Measurer = (*Face)(nil)
var _ Measurer = FixedMeasurer{}

// Baseline converts a top-of-line y to the baseline used by font.Drawer.
func Baseline(y int, m Measurer) fixed.Int26_6 {
	return fixed.I(y + m.Ascent())
}
