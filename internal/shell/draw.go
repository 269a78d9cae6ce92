package shell

import (
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/sumireader/sumi/internal/bmp"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/storage"
)

// drawLine renders one black text run at (x, top-of-line y) in the UI
// face.
func drawLine(c *Core, x, y int, text string, style fonts.Style) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  c.Fb,
		Src:  image.Black,
		Face: c.UIFace.StyleFace(style),
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + c.UIFace.Ascent())},
	}
	d.DrawString(text)
}

// drawCentered renders a text run horizontally centered at top y.
func drawCentered(c *Core, y int, text string, style fonts.Style) {
	w := c.UIFace.WidthOf(text, style)
	x := (c.Fb.W - w) / 2
	if x < 0 {
		x = 0
	}
	drawLine(c, x, y, text, style)
}

// drawProgressBar renders an outlined bar filled to pct (0-100).
func drawProgressBar(c *Core, x, y, w, h int, pct int) {
	c.Fb.HLine(x, y, w, false)
	c.Fb.HLine(x, y+h-1, w, false)
	c.Fb.FillRect(x, y, 1, h, false)
	c.Fb.FillRect(x+w-1, y, 1, h, false)
	if pct > 100 {
		pct = 100
	}
	if pct > 0 {
		c.Fb.FillRect(x+1, y+1, (w-2)*pct/100, h-2, false)
	}
}

// drawBmpFile blits a cached 1-bit BMP with its top-left at (x, y).
// Missing or corrupt files draw nothing.
func drawBmpFile(c *Core, path string, x, y int) bool {
	if path == "" || !storage.Exists(path) {
		return false
	}
	data, err := storage.ReadFile(path)
	if err != nil {
		return false
	}
	img, err := bmp.Decode1(data)
	if err != nil {
		log.Printf("warning: bad bitmap %s: %v", path, err)
		return false
	}
	c.Fb.Blit1bpp(img.Bits, img.Stride, x, y, img.W, img.H)
	return true
}
