// Package theme loads theme definitions from /config/themes. A theme
// names the font sets available to the reader and the default layout
// metrics, plus optional home-screen art.
package theme

import (
	"encoding/json"
	"path/filepath"

	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/storage"
)

// FontDef names the files of one font set, relative to the theme dir.
type FontDef struct {
	Regular    string `json:"regular"`
	Bold       string `json:"bold,omitempty"`
	Italic     string `json:"italic,omitempty"`
	BoldItalic string `json:"bold_italic,omitempty"`
}

// Theme is one parsed theme file.
type Theme struct {
	Name     string             `json:"name"`
	Fonts    map[string]FontDef `json:"fonts"`
	MarginX  uint8              `json:"margin_x"`
	MarginY  uint8              `json:"margin_y"`
	HomeArt  string             `json:"home_art,omitempty"` // 480x800 1-bit BMP
	themeDir string
}

// Dir is the theme directory under the SD root.
const Dir = "config/themes"

// Load reads a theme by name from the store. Missing themes fall back to
// built-in defaults with no fonts registered.
func Load(store *storage.Store, name string) (*Theme, error) {
	dir := store.Abs(Dir)
	path := filepath.Join(dir, name+".json")
	data, err := storage.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := &Theme{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, errs.E(errs.ParseFailed, "theme.Load", err)
	}
	t.themeDir = dir
	if t.Name == "" {
		t.Name = name
	}
	return t, nil
}

// RegisterFonts installs every font set of the theme into the manager.
func (t *Theme) RegisterFonts(mgr *fonts.Manager) {
	for id, def := range t.Fonts {
		set := fonts.Set{ID: id}
		set.Paths[fonts.Regular] = t.resolve(def.Regular)
		set.Paths[fonts.Bold] = t.resolve(def.Bold)
		set.Paths[fonts.Italic] = t.resolve(def.Italic)
		set.Paths[fonts.BoldItalic] = t.resolve(def.BoldItalic)
		mgr.Register(set)
	}
}

// HomeArtPath returns the absolute path of the home art, or "".
func (t *Theme) HomeArtPath() string {
	return t.resolve(t.HomeArt)
}

func (t *Theme) resolve(rel string) string {
	if rel == "" {
		return ""
	}
	return filepath.Join(t.themeDir, rel)
}
