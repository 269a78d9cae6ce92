package pagecache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sumireader/sumi/internal/storage"
)

// AnchorMap is the in-memory form of the .anchors sidecar: anchor id to
// page index within the owning cache file.
type AnchorMap map[string]uint16

// Sidecar layout, little-endian:
//
//	u16 count
//	count x { u16 idLen, idLen bytes, u16 pageIndex }

// Save writes the map atomically, entries sorted by id so the file is
// deterministic.
func (m AnchorMap) Save(path string) error {
	if len(m) > math.MaxUint16 {
		return fmt.Errorf("too many anchors: %d", len(m))
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(ids))); err != nil {
		return fmt.Errorf("failed to write anchor count: %w", err)
	}
	for _, id := range ids {
		if len(id) > math.MaxUint16 {
			return fmt.Errorf("anchor id too long: %d bytes", len(id))
		}
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(id))); err != nil {
			return fmt.Errorf("failed to write anchor id length: %w", err)
		}
		buf.WriteString(id)
		if err := binary.Write(buf, binary.LittleEndian, m[id]); err != nil {
			return fmt.Errorf("failed to write anchor page: %w", err)
		}
	}
	return storage.WriteFileAtomic(path, buf.Bytes())
}

// LoadAnchors reads a sidecar file.
func LoadAnchors(path string) (AnchorMap, error) {
	data, err := storage.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read anchor count: %w", err)
	}
	m := make(AnchorMap, count)
	for i := 0; i < int(count); i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("failed to read anchor %d: %w", i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("failed to read anchor %d id: %w", i, err)
		}
		var page uint16
		if err := binary.Read(r, binary.LittleEndian, &page); err != nil {
			return nil, fmt.Errorf("failed to read anchor %d page: %w", i, err)
		}
		m[string(id)] = page
	}
	return m, nil
}
