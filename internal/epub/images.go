package epub

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/sumireader/sumi/internal/bmp"
	"github.com/sumireader/sumi/internal/storage"
)

// ImageCache extracts images referenced by spine sections, converts
// them to 1-bit BMPs sized for the viewport, and caches them under
// <bookCache>/images/<hash>.bmp. Failures are reported as a cache miss
// and the caller skips the image.
type ImageCache struct {
	book     *Book
	dir      string
	maxW     int
	maxH     int
	resolved map[string]cachedImage
}

type cachedImage struct {
	path string
	w, h uint16
	ok   bool
}

// NewImageCache creates the cache for one book. maxW/maxH bound the
// display size of extracted images.
func NewImageCache(book *Book, cacheDir string, maxW, maxH int) *ImageCache {
	return &ImageCache{
		book:     book,
		dir:      filepath.Join(cacheDir, "images"),
		maxW:     maxW,
		maxH:     maxH,
		resolved: make(map[string]cachedImage),
	}
}

// Resolver returns the reflow image resolver for spine section i.
func (ic *ImageCache) Resolver(sectionIndex int) func(src string) (string, uint16, uint16, bool) {
	href, err := ic.book.SectionHref(sectionIndex)
	if err != nil {
		return func(string) (string, uint16, uint16, bool) { return "", 0, 0, false }
	}
	return func(src string) (string, uint16, uint16, bool) {
		abs := ResolveHref(href, src)
		if abs == "" {
			return "", 0, 0, false
		}
		ci := ic.resolve(abs)
		return ci.path, ci.w, ci.h, ci.ok
	}
}

func (ic *ImageCache) resolve(containerPath string) cachedImage {
	if ci, ok := ic.resolved[containerPath]; ok {
		return ci
	}
	ci := ic.extract(containerPath)
	ic.resolved[containerPath] = ci
	return ci
}

func (ic *ImageCache) extract(containerPath string) cachedImage {
	name := fmt.Sprintf("%08x.bmp", storage.PathHash(containerPath))
	out := filepath.Join(ic.dir, name)

	data, err := ic.book.ReadFile(containerPath)
	if err != nil {
		log.Printf("warning: image %s missing from container: %v", containerPath, err)
		return cachedImage{}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("warning: failed to decode image %s: %v", containerPath, err)
		return cachedImage{}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return cachedImage{}
	}
	if w > ic.maxW || h > ic.maxH {
		img = imaging.Fit(img, ic.maxW, ic.maxH, imaging.Lanczos)
		bounds = img.Bounds()
		w, h = bounds.Dx(), bounds.Dy()
	}

	if !storage.Exists(out) {
		gray := imaging.Grayscale(img)
		if err := storage.WriteFileAtomic(out, bmp.Encode1(gray)); err != nil {
			log.Printf("warning: failed to cache image %s: %v", containerPath, err)
			return cachedImage{}
		}
	}
	return cachedImage{path: out, w: uint16(w), h: uint16(h), ok: true}
}
