// Package bmp packs images into the 1-bit BMP files the renderer blits
// straight to the framebuffer, and reads them back. Only the subset the
// firmware writes is supported: uncompressed, 1 bpp, two-entry palette.
package bmp

import (
	"encoding/binary"
	"fmt"
	"image"
)

const (
	fileHeaderSize = 14
	infoHeaderSize = 40
	paletteSize    = 8 // two BGRA entries
)

// Image is a decoded 1-bit bitmap: packed rows, MSB first, bit 1 white.
type Image struct {
	W, H   int
	Stride int
	Bits   []byte
}

// Encode1 converts an image to a 1-bit BMP with Floyd-Steinberg
// dithering on the gray channel.
func Encode1(src image.Image) []byte {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Gray copy with error diffusion.
	gray := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			gray[y*w+x] = float32(19595*r+38470*g+7471*b) / float32(1<<16) / 65536 * 255
		}
	}
	stride := (w + 7) / 8
	// BMP rows are padded to 4 bytes and stored bottom-up.
	rowSize := (stride + 3) &^ 3
	bits := make([]byte, rowSize*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := gray[y*w+x]
			var out float32
			if v >= 128 {
				out = 255
			}
			if out > 0 {
				bits[(h-1-y)*rowSize+x/8] |= 0x80 >> uint(x%8)
			}
			err := v - out
			if x+1 < w {
				gray[y*w+x+1] += err * 7 / 16
			}
			if y+1 < h {
				if x > 0 {
					gray[(y+1)*w+x-1] += err * 3 / 16
				}
				gray[(y+1)*w+x] += err * 5 / 16
				if x+1 < w {
					gray[(y+1)*w+x+1] += err * 1 / 16
				}
			}
		}
	}

	dataOffset := fileHeaderSize + infoHeaderSize + paletteSize
	fileSize := dataOffset + len(bits)
	out := make([]byte, fileSize)

	out[0] = 'B'
	out[1] = 'M'
	binary.LittleEndian.PutUint32(out[2:], uint32(fileSize))
	binary.LittleEndian.PutUint32(out[10:], uint32(dataOffset))

	info := out[fileHeaderSize:]
	binary.LittleEndian.PutUint32(info[0:], infoHeaderSize)
	binary.LittleEndian.PutUint32(info[4:], uint32(w))
	binary.LittleEndian.PutUint32(info[8:], uint32(h))
	binary.LittleEndian.PutUint16(info[12:], 1) // planes
	binary.LittleEndian.PutUint16(info[14:], 1) // bpp
	binary.LittleEndian.PutUint32(info[20:], uint32(len(bits)))

	// Palette: index 0 black, index 1 white.
	palette := out[fileHeaderSize+infoHeaderSize:]
	palette[4], palette[5], palette[6] = 0xFF, 0xFF, 0xFF

	copy(out[dataOffset:], bits)
	return out
}

// Decode1 parses a 1-bit BMP produced by Encode1 (or equivalent),
// returning top-down packed rows.
func Decode1(data []byte) (*Image, error) {
	if len(data) < fileHeaderSize+infoHeaderSize || data[0] != 'B' || data[1] != 'M' {
		return nil, fmt.Errorf("not a BMP file")
	}
	dataOffset := int(binary.LittleEndian.Uint32(data[10:]))
	info := data[fileHeaderSize:]
	w := int(int32(binary.LittleEndian.Uint32(info[4:])))
	h := int(int32(binary.LittleEndian.Uint32(info[8:])))
	bpp := binary.LittleEndian.Uint16(info[14:])
	if bpp != 1 {
		return nil, fmt.Errorf("unsupported BMP depth %d", bpp)
	}
	topDown := false
	if h < 0 {
		topDown = true
		h = -h
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("bad BMP dimensions %dx%d", w, h)
	}

	stride := (w + 7) / 8
	rowSize := (stride + 3) &^ 3
	if dataOffset+rowSize*h > len(data) {
		return nil, fmt.Errorf("truncated BMP pixel data")
	}

	img := &Image{W: w, H: h, Stride: stride, Bits: make([]byte, stride*h)}
	for y := 0; y < h; y++ {
		srcRow := y
		if !topDown {
			srcRow = h - 1 - y
		}
		copy(img.Bits[y*stride:(y+1)*stride], data[dataOffset+srcRow*rowSize:])
	}
	return img, nil
}
