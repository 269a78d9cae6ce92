package reader

import (
	"image"
	"log"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/sumireader/sumi/internal/bmp"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/pagecache"
	"github.com/sumireader/sumi/internal/storage"
)

// PageRenderer replays cached page records into the framebuffer. Op
// coordinates are absolute panel pixels; text Y is the top of the line.
type PageRenderer struct {
	fb   *display.Framebuffer
	face *fonts.Face
}

// NewPageRenderer draws with the reader's current face.
func NewPageRenderer(fb *display.Framebuffer, face *fonts.Face) *PageRenderer {
	return &PageRenderer{fb: fb, face: face}
}

// Draw clears the framebuffer and replays every op of the page.
func (r *PageRenderer) Draw(page *pagecache.Page) {
	r.fb.Clear(true)
	for _, op := range page.Ops {
		switch op.Kind {
		case pagecache.OpText:
			r.drawText(op)
		case pagecache.OpRule:
			r.fb.HLine(int(op.X), int(op.Y), int(op.W), false)
		case pagecache.OpImage:
			r.drawImage(op)
		case pagecache.OpFill:
			r.fb.FillRect(int(op.X), int(op.Y), int(op.W), int(op.H), op.Style != 0)
		case pagecache.OpAnchor:
			// No visual output.
		}
	}
}

func (r *PageRenderer) drawText(op pagecache.Op) {
	d := font.Drawer{
		Dst:  r.fb,
		Src:  image.Black,
		Face: r.face.StyleFace(fonts.Style(op.Style)),
		Dot: fixed.Point26_6{
			X: fixed.I(int(op.X)),
			Y: fixed.I(int(op.Y) + r.face.Ascent()),
		},
	}
	d.DrawString(op.Text)
}

func (r *PageRenderer) drawImage(op pagecache.Op) {
	data, err := storage.ReadFile(op.Text)
	if err != nil {
		log.Printf("warning: cached image %s unreadable: %v", op.Text, err)
		return
	}
	img, err := bmp.Decode1(data)
	if err != nil {
		log.Printf("warning: cached image %s corrupt: %v", op.Text, err)
		return
	}
	// Cached images are written at display size; a mismatch means the
	// cache predates a config change, draw what fits.
	w, h := int(op.W), int(op.H)
	if w > img.W {
		w = img.W
	}
	if h > img.H {
		h = img.H
	}
	r.fb.Blit1bpp(img.Bits, img.Stride, int(op.X), int(op.Y), w, h)
}

// DrawMessage renders a single centered line, used for load failures
// and empty sections.
func (r *PageRenderer) DrawMessage(text string) {
	r.fb.Clear(true)
	w := r.face.WidthOf(text, fonts.Regular)
	x := (r.fb.W - w) / 2
	if x < 0 {
		x = 0
	}
	y := r.fb.H/2 - r.face.LineHeight()/2
	d := font.Drawer{
		Dst:  r.fb,
		Src:  image.Black,
		Face: r.face.StyleFace(fonts.Regular),
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + r.face.Ascent())},
	}
	d.DrawString(text)
}
