// Package library persists reading state across power cycles: the
// per-book progress file, the compact per-device position index, and
// the recent-books list shown on the home screen.
package library

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/storage"
)

// Progress is the full reading position for one book. Reflowable books
// use SpineIndex/SectionPage, pre-paginated books use FlatPage; the
// unused pair is zero.
type Progress struct {
	SpineIndex  uint16
	SectionPage uint16
	FlatPage    uint32
}

const progressSize = 2 + 2 + 4

// SaveProgress writes the position atomically to the book's cache dir.
func SaveProgress(path string, p Progress) error {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, p.SpineIndex)
	binary.Write(buf, binary.LittleEndian, p.SectionPage)
	binary.Write(buf, binary.LittleEndian, p.FlatPage)
	return storage.WriteFileAtomic(path, buf.Bytes())
}

// LoadProgress reads a saved position. A missing or malformed file
// yields the zero position without error; the reader starts from the
// beginning.
func LoadProgress(path string) Progress {
	data, err := storage.ReadFile(path)
	if err != nil || len(data) != progressSize {
		return Progress{}
	}
	return Progress{
		SpineIndex:  binary.LittleEndian.Uint16(data[0:]),
		SectionPage: binary.LittleEndian.Uint16(data[2:]),
		FlatPage:    binary.LittleEndian.Uint32(data[4:]),
	}
}

// validate guards against indexes from a stale file layout.
func (p Progress) validate(spineCount int) error {
	if spineCount > 0 && int(p.SpineIndex) >= spineCount {
		return errs.E(errs.InvalidState, "library.Progress",
			fmt.Errorf("spine index %d out of range (have %d)", p.SpineIndex, spineCount))
	}
	return nil
}

// Clamp bounds the position to the given spine count, resetting the
// section page when the index was out of range.
func (p Progress) Clamp(spineCount int) Progress {
	if err := p.validate(spineCount); err != nil {
		return Progress{}
	}
	return p
}
