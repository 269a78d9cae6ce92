package xtc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sumireader/sumi/internal/storage"
)

// WriteOptions describes a container to be written. Used by the
// authoring CLI and tests; the device itself only reads XTC.
type WriteOptions struct {
	Title     string
	Author    string
	Width     uint16
	Height    uint16
	Grayscale bool
	Chapters  []Chapter
}

// Write assembles a container. pages carries one entry per page; for
// grayscale books each entry is the concatenation of the two planes.
func Write(path string, opts WriteOptions, pages [][]byte) error {
	stride := int(opts.Width+7) / 8
	planeSize := stride * int(opts.Height)
	want := planeSize
	if opts.Grayscale {
		want *= 2
	}
	for i, p := range pages {
		if len(p) != want {
			return fmt.Errorf("page %d has %d bytes, want %d", i, len(p), want)
		}
	}

	// First pass: fixed header size determines the page offsets.
	headerSize := 4 + 1 + 1 + 2 + 2 + 4 + titleLen + authorLen + 2 +
		len(opts.Chapters)*(chapterLen+4) + len(pages)*4

	buf := &bytes.Buffer{}
	flags := uint8(0)
	if opts.Grayscale {
		flags |= flagGrayscale
	}
	var title [titleLen]byte
	var author [authorLen]byte
	copy(title[:titleLen-1], opts.Title)
	copy(author[:authorLen-1], opts.Author)

	fields := []any{
		uint32(Magic), uint8(Version), flags,
		opts.Width, opts.Height, uint32(len(pages)),
		title, author, uint16(len(opts.Chapters)),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, ch := range opts.Chapters {
		var name [chapterLen]byte
		copy(name[:chapterLen-1], ch.Name)
		if err := binary.Write(buf, binary.LittleEndian, name); err != nil {
			return fmt.Errorf("failed to write chapter: %w", err)
		}
		if err := binary.Write(buf, binary.LittleEndian, ch.StartPage); err != nil {
			return fmt.Errorf("failed to write chapter: %w", err)
		}
	}
	offset := uint32(headerSize)
	for range pages {
		if err := binary.Write(buf, binary.LittleEndian, offset); err != nil {
			return fmt.Errorf("failed to write page index: %w", err)
		}
		offset += uint32(want)
	}
	for _, p := range pages {
		buf.Write(p)
	}
	return storage.WriteFileAtomic(path, buf.Bytes())
}
