// Package display provides the 1-bit framebuffer and the e-ink driver
// contract. The framebuffer is owned by the UI goroutine; drivers only
// read it during Refresh.
package display

import (
	"image"
	"image/color"

	"github.com/sumireader/sumi/internal/errs"
)

// Panel dimensions in portrait orientation.
const (
	PanelWidth  = 480
	PanelHeight = 800
)

// Mode selects the e-ink refresh waveform.
type Mode uint8

const (
	// Fast is low-latency but accumulates ghosting.
	Fast Mode = iota
	// Half clears most ghosting without the full black flash.
	Half
	// Full flashes black-white and clears all ghosting.
	Full
)

func (m Mode) String() string {
	switch m {
	case Fast:
		return "fast"
	case Half:
		return "half"
	default:
		return "full"
	}
}

// Framebuffer is a packed 1-bit image, row-major, MSB first. Bit 1 is
// white (e-ink convention: set pixels are cleared paper).
type Framebuffer struct {
	W, H   int
	Stride int // bytes per row
	Pix    []byte
}

// NewFramebuffer allocates a white framebuffer.
func NewFramebuffer(w, h int) *Framebuffer {
	stride := (w + 7) / 8
	fb := &Framebuffer{W: w, H: h, Stride: stride, Pix: make([]byte, stride*h)}
	fb.Clear(true)
	return fb
}

// Clear fills the buffer with white or black.
func (fb *Framebuffer) Clear(white bool) {
	v := byte(0x00)
	if white {
		v = 0xFF
	}
	for i := range fb.Pix {
		fb.Pix[i] = v
	}
}

// SetPixel sets one pixel; out-of-bounds writes are dropped.
func (fb *Framebuffer) SetPixel(x, y int, white bool) {
	if x < 0 || y < 0 || x >= fb.W || y >= fb.H {
		return
	}
	idx := y*fb.Stride + x/8
	mask := byte(0x80 >> uint(x%8))
	if white {
		fb.Pix[idx] |= mask
	} else {
		fb.Pix[idx] &^= mask
	}
}

// Pixel reports whether the pixel at (x, y) is white.
func (fb *Framebuffer) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= fb.W || y >= fb.H {
		return true
	}
	return fb.Pix[y*fb.Stride+x/8]&(0x80>>uint(x%8)) != 0
}

// HLine draws a horizontal rule.
func (fb *Framebuffer) HLine(x, y, w int, white bool) {
	for i := 0; i < w; i++ {
		fb.SetPixel(x+i, y, white)
	}
}

// FillRect fills a rectangle.
func (fb *Framebuffer) FillRect(x, y, w, h int, white bool) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			fb.SetPixel(x+dx, y+dy, white)
		}
	}
}

// Blit1bpp copies a packed 1-bit source bitmap of size (w, h) with the
// given stride to (x, y).
func (fb *Framebuffer) Blit1bpp(src []byte, srcStride, x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		row := dy * srcStride
		for dx := 0; dx < w; dx++ {
			bit := src[row+dx/8]&(0x80>>uint(dx%8)) != 0
			fb.SetPixel(x+dx, y+dy, bit)
		}
	}
}

// image.Image + draw target implementation, so x/image font.Drawer can
// render glyphs directly onto the panel buffer.

func (fb *Framebuffer) ColorModel() color.Model { return color.GrayModel }

func (fb *Framebuffer) Bounds() image.Rectangle { return image.Rect(0, 0, fb.W, fb.H) }

func (fb *Framebuffer) At(x, y int) color.Color {
	if fb.Pixel(x, y) {
		return color.Gray{Y: 0xFF}
	}
	return color.Gray{Y: 0x00}
}

// Set thresholds the incoming color at mid gray.
func (fb *Framebuffer) Set(x, y int, c color.Color) {
	g := color.GrayModel.Convert(c).(color.Gray)
	fb.SetPixel(x, y, g.Y >= 0x80)
}

// Driver is the e-ink panel contract. Refresh blocks for the duration of
// the physical update.
type Driver interface {
	Init() error
	Refresh(fb *Framebuffer, mode Mode) error
	Sleep() error
	Wake() error
	Close() error
}

// Null is a no-panel driver used by headless pagination and tests.
type Null struct {
	Refreshes []Mode
}

func (n *Null) Init() error { return nil }

func (n *Null) Refresh(fb *Framebuffer, mode Mode) error {
	if fb == nil {
		return errs.E(errs.DisplayFailed, "display.Refresh", nil)
	}
	n.Refreshes = append(n.Refreshes, mode)
	return nil
}

func (n *Null) Sleep() error { return nil }
func (n *Null) Wake() error  { return nil }
func (n *Null) Close() error { return nil }
