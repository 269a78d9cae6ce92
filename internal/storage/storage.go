// Package storage abstracts the SD card root.
//
// All firmware paths are relative to a single root directory; a Store
// resolves them and provides the atomic write primitive every on-SD
// format relies on: write to a temp file, sync, rename. Readers observe
// either the old complete file or the new one, never a torn write.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sumireader/sumi/internal/errs"
)

// SumiDir is the cache root under the SD root.
const SumiDir = ".sumi"

// Store is rooted at the SD mount point.
type Store struct {
	root string
}

// Open validates the SD root and returns a Store.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errs.E(errs.SdCardNotFound, "storage.Open", err)
	}
	return &Store{root: root}, nil
}

// Root returns the SD mount point.
func (s *Store) Root() string { return s.root }

// Abs resolves a root-relative path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// SumiPath resolves a path under the cache root, e.g. SumiPath("library.bin").
func (s *Store) SumiPath(rel string) string {
	return filepath.Join(s.root, SumiDir, filepath.FromSlash(rel))
}

// Exists reports whether the path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MkdirAll creates a directory tree.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errs.E(errs.IOError, "storage.MkdirAll", err)
	}
	return nil
}

// ReadFile reads a whole file, mapping the not-found case to FileNotFound.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.E(errs.FileNotFound, "storage.ReadFile", err)
		}
		return nil, errs.E(errs.IOError, "storage.ReadFile", err)
	}
	return data, nil
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory, an fsync, and a rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.E(errs.IOError, "storage.WriteFileAtomic", err)
	}
	return nil
}

// Remove deletes a file, ignoring the not-found case.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.E(errs.IOError, "storage.Remove", err)
	}
	return nil
}

// RemoveAll deletes a directory tree.
func RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errs.E(errs.IOError, "storage.RemoveAll", err)
	}
	return nil
}

// ListBooks returns the names of supported book files directly under dir,
// sorted case-insensitively.
func ListBooks(dir string, supported func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.E(errs.IOError, "storage.ListBooks", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

// CacheDirFor derives the per-book cache directory for a book path.
// EPUB books cache under epub_<hash8>, everything else under txt_<hash8>
// except XTC which uses xtc_<hash8>.
func (s *Store) CacheDirFor(bookAbs string, prefix string) string {
	return s.SumiPath(fmt.Sprintf("%s_%08x", prefix, PathHash(bookAbs)))
}
