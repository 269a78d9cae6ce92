package shell

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/sumireader/sumi/internal/storage"
)

// BootMode selects which image the device boots into.
type BootMode uint8

const (
	BootNormal BootMode = iota
	// BootReader boots the slim reader-only image straight into a book.
	BootReader
)

const (
	bootMagic    = 0x544F4F42 // "BOOT"
	bootPathLen  = 128
	bootBlockLen = 4 + 1 + 1 + 1 + 1 + bootPathLen

	flagHandoff = 0x01

	// bootLoopLimit triggers the fatal reset path when the device
	// keeps restarting without reaching the home screen.
	bootLoopLimit = 3
)

// BootBlock is the retained-memory handoff between boot images: which
// mode to enter, which state to return to, and the book to open. It
// also carries the boot-loop counter. On this platform it is
// file-backed; on the device it lives at a fixed retained-RAM address.
// A handoff is invalidated after being consumed.
type BootBlock struct {
	path string

	Mode        BootMode
	ReturnState StateID
	BookPath    string
	LoopCount   uint8

	valid bool
}

// OpenBootBlock reads the block. A missing file or bad magic yields an
// empty block with no handoff and a zero loop counter.
func OpenBootBlock(path string) *BootBlock {
	b := &BootBlock{path: path}
	data, err := storage.ReadFile(path)
	if err != nil || len(data) != bootBlockLen {
		return b
	}
	if binary.LittleEndian.Uint32(data) != bootMagic {
		log.Printf("warning: discarding boot block %s: bad magic", path)
		return b
	}
	b.valid = data[4]&flagHandoff != 0
	b.Mode = BootMode(data[5])
	b.ReturnState = StateID(data[6])
	b.LoopCount = data[7]
	b.BookPath = cString(data[8 : 8+bootPathLen])
	return b
}

// Valid reports whether the block carries a pending handoff.
func (b *BootBlock) Valid() bool { return b.valid }

// Consume returns the pending handoff and invalidates it, so a crash
// loop cannot replay it.
func (b *BootBlock) Consume() (BootMode, StateID, string) {
	mode, ret, book := b.Mode, b.ReturnState, b.BookPath
	b.valid = false
	b.Mode = BootNormal
	b.BookPath = ""
	if err := b.write(); err != nil {
		log.Printf("warning: failed to invalidate boot block: %v", err)
	}
	return mode, ret, book
}

// Arm records a handoff for the next boot.
func (b *BootBlock) Arm(mode BootMode, ret StateID, bookPath string) error {
	b.Mode = mode
	b.ReturnState = ret
	b.BookPath = bookPath
	b.valid = true
	return b.write()
}

// CountBoot increments the boot-loop counter and reports whether the
// limit was hit; ClearLoop resets it once the UI is up.
func (b *BootBlock) CountBoot() bool {
	b.LoopCount++
	if err := b.write(); err != nil {
		log.Printf("warning: failed to persist boot counter: %v", err)
	}
	return b.LoopCount > bootLoopLimit
}

// ClearLoop resets the boot-loop counter after a successful start.
func (b *BootBlock) ClearLoop() {
	if b.LoopCount == 0 {
		return
	}
	b.LoopCount = 0
	if err := b.write(); err != nil {
		log.Printf("warning: failed to clear boot counter: %v", err)
	}
}

func (b *BootBlock) write() error {
	out := make([]byte, bootBlockLen)
	binary.LittleEndian.PutUint32(out, bootMagic)
	if b.valid {
		out[4] |= flagHandoff
	}
	out[5] = uint8(b.Mode)
	out[6] = uint8(b.ReturnState)
	out[7] = b.LoopCount
	copy(out[8:8+bootPathLen-1], b.BookPath)
	return storage.WriteFileAtomic(b.path, out)
}

func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}
