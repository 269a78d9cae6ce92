package library

import (
	"encoding/binary"
	"log"

	"github.com/sumireader/sumi/internal/storage"
)

const (
	indexVersion  = 2
	indexCapacity = 200
	entrySize     = 4 + 2 + 2 + 1
)

// IndexEntry is one compact per-book record, keyed by the 32-bit path
// hash. It lets the file browser show progress without opening books.
type IndexEntry struct {
	PathHash    uint32
	CurrentPage uint16
	TotalPages  uint16
	Hint        uint8
}

// Index is the device-wide book position index. Entries are kept in
// recency order: lookups leave order untouched, updates move the entry
// to the tail, and a full index evicts from the head.
type Index struct {
	path    string
	entries []IndexEntry
	dirty   bool
}

// OpenIndex loads the index, starting empty if the file is missing,
// stale-versioned or corrupt.
func OpenIndex(path string) *Index {
	idx := &Index{path: path}
	data, err := storage.ReadFile(path)
	if err != nil {
		return idx
	}
	if len(data) < 3 || data[0] != indexVersion {
		log.Printf("warning: discarding library index %s: bad version", path)
		return idx
	}
	count := int(binary.LittleEndian.Uint16(data[1:]))
	if count > indexCapacity || len(data) < 3+count*entrySize {
		log.Printf("warning: discarding library index %s: truncated", path)
		return idx
	}
	idx.entries = make([]IndexEntry, 0, count)
	for i := 0; i < count; i++ {
		rec := data[3+i*entrySize:]
		idx.entries = append(idx.entries, IndexEntry{
			PathHash:    binary.LittleEndian.Uint32(rec[0:]),
			CurrentPage: binary.LittleEndian.Uint16(rec[4:]),
			TotalPages:  binary.LittleEndian.Uint16(rec[6:]),
			Hint:        rec[8],
		})
	}
	return idx
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Lookup finds the entry for a book path without changing recency.
func (idx *Index) Lookup(path string) (IndexEntry, bool) {
	hash := storage.PathHash(path)
	for _, e := range idx.entries {
		if e.PathHash == hash {
			return e, true
		}
	}
	return IndexEntry{}, false
}

// Update records the position for a book, moving it to the most-recent
// slot. When the index is full the least recently touched entry is
// evicted.
func (idx *Index) Update(path string, current, total uint16, hint uint8) {
	e := IndexEntry{
		PathHash:    storage.PathHash(path),
		CurrentPage: current,
		TotalPages:  total,
		Hint:        hint,
	}
	for i := range idx.entries {
		if idx.entries[i].PathHash == e.PathHash {
			idx.entries = append(append(idx.entries[:i:i], idx.entries[i+1:]...), e)
			idx.dirty = true
			return
		}
	}
	if len(idx.entries) >= indexCapacity {
		idx.entries = idx.entries[1:]
	}
	idx.entries = append(idx.entries, e)
	idx.dirty = true
}

// Remove drops a book from the index.
func (idx *Index) Remove(path string) {
	hash := storage.PathHash(path)
	for i := range idx.entries {
		if idx.entries[i].PathHash == hash {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			idx.dirty = true
			return
		}
	}
}

// Save writes the index if any entry changed since load.
func (idx *Index) Save() error {
	if !idx.dirty {
		return nil
	}
	out := make([]byte, 3+len(idx.entries)*entrySize)
	out[0] = indexVersion
	binary.LittleEndian.PutUint16(out[1:], uint16(len(idx.entries)))
	for i, e := range idx.entries {
		rec := out[3+i*entrySize:]
		binary.LittleEndian.PutUint32(rec[0:], e.PathHash)
		binary.LittleEndian.PutUint16(rec[4:], e.CurrentPage)
		binary.LittleEndian.PutUint16(rec[6:], e.TotalPages)
		rec[8] = e.Hint
	}
	if err := storage.WriteFileAtomic(idx.path, out); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}
