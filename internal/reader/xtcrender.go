package reader

import (
	"log"

	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/xtc"
)

// RenderResult reports the outcome of rendering one pre-paginated page.
type RenderResult uint8

const (
	RenderSuccess RenderResult = iota
	RenderEndOfBook
	RenderInvalidDimensions
	RenderAllocationFailed
	RenderPageLoadFailed
)

func (r RenderResult) String() string {
	switch r {
	case RenderSuccess:
		return "success"
	case RenderEndOfBook:
		return "end of book"
	case RenderInvalidDimensions:
		return "invalid dimensions"
	case RenderAllocationFailed:
		return "allocation failed"
	default:
		return "page load failed"
	}
}

// maxPlaneBytes rejects headers whose dimensions would ask for an
// absurd page allocation.
const maxPlaneBytes = 1 << 20

// XtcRenderer blits pre-paginated bitmap pages into the framebuffer.
// The content is already pixels, so it bypasses reflow and the page
// cache entirely.
type XtcRenderer struct {
	fb *display.Framebuffer
}

// NewXtcRenderer targets the given framebuffer.
func NewXtcRenderer(fb *display.Framebuffer) *XtcRenderer {
	return &XtcRenderer{fb: fb}
}

// RenderPage draws page i. 1-bit pages are a single blit and the caller
// performs the refresh. 2-bit grayscale pages render in four passes:
// each pass thresholds the two planes into the framebuffer and invokes
// refresh, approximating four gray levels by duty cycle. The final pass
// leaves the framebuffer holding the 1-bit quantization (dark half of
// the levels black).
func (r *XtcRenderer) RenderPage(book *xtc.Book, page uint32, refresh func(fb *display.Framebuffer)) RenderResult {
	if page >= book.PageCount() {
		return RenderEndOfBook
	}
	if int(book.Width()) != r.fb.W || int(book.Height()) != r.fb.H {
		log.Printf("warning: page size %dx%d does not match panel %dx%d",
			book.Width(), book.Height(), r.fb.W, r.fb.H)
		return RenderInvalidDimensions
	}
	if book.PlaneSize() > maxPlaneBytes {
		return RenderAllocationFailed
	}

	plane1, plane2, err := book.ReadPage(page)
	if err != nil {
		log.Printf("warning: failed to read page %d: %v", page, err)
		return RenderPageLoadFailed
	}

	if plane2 == nil {
		r.fb.Blit1bpp(plane1, (r.fb.W+7)/8, 0, 0, r.fb.W, r.fb.H)
		return RenderSuccess
	}
	return r.renderGrayscale(plane1, plane2, refresh)
}

// grayPassMin[k] is the minimum 2-bit level shown white during pass k.
// Level v is white in v of the first three passes; the last pass writes
// the midpoint threshold as the resting image.
var grayPassMin = [4]uint8{1, 2, 3, 2}

func (r *XtcRenderer) renderGrayscale(low, high []byte, refresh func(fb *display.Framebuffer)) RenderResult {
	stride := (r.fb.W + 7) / 8
	for pass := 0; pass < 4; pass++ {
		min := grayPassMin[pass]
		for y := 0; y < r.fb.H; y++ {
			for x := 0; x < r.fb.W; x++ {
				bit := byte(0x80) >> uint(x%8)
				idx := y*stride + x/8
				v := uint8(0)
				if low[idx]&bit != 0 {
					v = 1
				}
				if high[idx]&bit != 0 {
					v += 2
				}
				r.fb.SetPixel(x, y, v >= min)
			}
		}
		if refresh != nil {
			refresh(r.fb)
		}
	}
	return RenderSuccess
}
