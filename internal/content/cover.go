package content

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/sumireader/sumi/internal/bmp"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/storage"
)

const (
	thumbWidth  = 120
	thumbHeight = 200
)

// GenerateCover extracts the book cover, converts it to a 1-bit BMP and
// caches it in the book's cache directory. The cached path is recorded
// in the metadata and returned. Books without a cover return "" with no
// error; the home screen falls back to a text tile.
func (h *Handle) GenerateCover() (string, error) {
	out := filepath.Join(h.cacheDir, "cover.bmp")
	if storage.Exists(out) {
		h.meta.CoverPath = out
		return out, nil
	}

	img, err := h.coverImage()
	if err != nil {
		return "", err
	}
	if img == nil {
		return "", nil
	}

	img = imaging.Fit(img, display.PanelWidth, display.PanelHeight, imaging.Lanczos)
	if err := storage.WriteFileAtomic(out, bmp.Encode1(imaging.Grayscale(img))); err != nil {
		return "", err
	}
	h.meta.CoverPath = out
	return out, nil
}

// GenerateThumbnail writes the small home-rail rendition of the cover.
func (h *Handle) GenerateThumbnail() (string, error) {
	out := filepath.Join(h.cacheDir, "thumb.bmp")
	if storage.Exists(out) {
		return out, nil
	}

	img, err := h.coverImage()
	if err != nil {
		return "", err
	}
	if img == nil {
		return "", nil
	}

	img = imaging.Fit(img, thumbWidth, thumbHeight, imaging.Lanczos)
	return out, storage.WriteFileAtomic(out, bmp.Encode1(imaging.Grayscale(img)))
}

// coverImage decodes the source cover, or nil when the format carries
// none. XTC books use their first page as the cover.
func (h *Handle) coverImage() (image.Image, error) {
	switch h.typ {
	case TypeEpub:
		href, ok := h.epubBook.OPF().CoverHref()
		if !ok {
			return nil, nil
		}
		data, err := h.epubBook.ReadFile(href)
		if err != nil {
			log.Printf("warning: cover %s missing from container: %v", href, err)
			return nil, nil
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode cover %s: %w", href, err)
		}
		return img, nil
	case TypeXtc:
		if h.xtcBook.PageCount() == 0 {
			return nil, nil
		}
		plane1, _, err := h.xtcBook.ReadPage(0)
		if err != nil {
			return nil, err
		}
		return planeImage(plane1, int(h.xtcBook.Width()), int(h.xtcBook.Height())), nil
	default:
		return nil, nil
	}
}

// planeImage wraps a packed 1-bit plane as a grayscale image.
func planeImage(bits []byte, w, h int) image.Image {
	stride := (w + 7) / 8
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bits[y*stride+x/8]&(0x80>>uint(x%8)) != 0 {
				img.SetGray(x, y, color.Gray{Y: 0xFF})
			}
		}
	}
	return img
}
