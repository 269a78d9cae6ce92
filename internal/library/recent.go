package library

import (
	"bytes"
	"encoding/binary"
	"log"

	"github.com/sumireader/sumi/internal/storage"
)

const (
	recentCapacity = 10

	recentPathLen   = 128
	recentTitleLen  = 64
	recentAuthorLen = 48
	recentSize      = recentPathLen + recentTitleLen + recentAuthorLen + 4 + 2
)

// RecentBook is one home-screen rail entry. Paths longer than the fixed
// field are skipped at record time rather than truncated, since a
// truncated path would not open.
type RecentBook struct {
	Path            string
	Title           string
	Author          string
	LastAccess      uint32
	ProgressPercent uint16
}

// Recents is the newest-first list of recently opened books.
type Recents struct {
	path  string
	books []RecentBook
	dirty bool
}

// OpenRecents loads the list, starting empty on a missing or corrupt
// file.
func OpenRecents(path string) *Recents {
	r := &Recents{path: path}
	data, err := storage.ReadFile(path)
	if err != nil {
		return r
	}
	if len(data)%recentSize != 0 || len(data) > recentCapacity*recentSize {
		log.Printf("warning: discarding recent books %s: bad size %d", path, len(data))
		return r
	}
	for off := 0; off < len(data); off += recentSize {
		rec := data[off:]
		b := RecentBook{
			Path:            cString(rec[:recentPathLen]),
			Title:           cString(rec[recentPathLen : recentPathLen+recentTitleLen]),
			Author:          cString(rec[recentPathLen+recentTitleLen : recentPathLen+recentTitleLen+recentAuthorLen]),
			LastAccess:      binary.LittleEndian.Uint32(rec[recentPathLen+recentTitleLen+recentAuthorLen:]),
			ProgressPercent: binary.LittleEndian.Uint16(rec[recentPathLen+recentTitleLen+recentAuthorLen+4:]),
		}
		if b.Path == "" {
			continue
		}
		r.books = append(r.books, b)
	}
	return r
}

// Books returns the list, newest first.
func (r *Recents) Books() []RecentBook { return r.books }

// Touch records an open of the given book at the head of the list,
// replacing any previous entry for the same path. Books whose path does
// not fit the fixed record are not tracked.
func (r *Recents) Touch(b RecentBook) {
	if len(b.Path) >= recentPathLen {
		log.Printf("warning: path too long for recent books: %s", b.Path)
		return
	}
	for i := range r.books {
		if r.books[i].Path == b.Path {
			r.books = append(r.books[:i], r.books[i+1:]...)
			break
		}
	}
	r.books = append([]RecentBook{b}, r.books...)
	if len(r.books) > recentCapacity {
		r.books = r.books[:recentCapacity]
	}
	r.dirty = true
}

// Remove drops a book from the list.
func (r *Recents) Remove(path string) {
	for i := range r.books {
		if r.books[i].Path == path {
			r.books = append(r.books[:i], r.books[i+1:]...)
			r.dirty = true
			return
		}
	}
}

// Save writes the list if it changed since load.
func (r *Recents) Save() error {
	if !r.dirty {
		return nil
	}
	buf := &bytes.Buffer{}
	for _, b := range r.books {
		var rec [recentSize]byte
		copy(rec[:recentPathLen-1], b.Path)
		copyTruncated(rec[recentPathLen:recentPathLen+recentTitleLen], b.Title)
		copyTruncated(rec[recentPathLen+recentTitleLen:recentPathLen+recentTitleLen+recentAuthorLen], b.Author)
		binary.LittleEndian.PutUint32(rec[recentPathLen+recentTitleLen+recentAuthorLen:], b.LastAccess)
		binary.LittleEndian.PutUint16(rec[recentPathLen+recentTitleLen+recentAuthorLen+4:], b.ProgressPercent)
		buf.Write(rec[:])
	}
	if err := storage.WriteFileAtomic(r.path, buf.Bytes()); err != nil {
		return err
	}
	r.dirty = false
	return nil
}

// copyTruncated fills a NUL-padded field, always leaving a terminator.
func copyTruncated(dst []byte, s string) {
	copy(dst[:len(dst)-1], s)
}

func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return string(b)
}
