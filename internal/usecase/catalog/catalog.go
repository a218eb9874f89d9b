package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"music-concierge/internal/domain"
)

// Catalog is the immutable playlist catalog, loaded once at start.
type Catalog struct {
	Playlists []domain.Playlist
	byID      map[string]domain.Playlist
	byName    map[string]domain.Playlist
}

// Load reads the catalog file from disk.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a catalog from raw JSON.
func Parse(raw []byte) (*Catalog, error) {
	var file struct {
		Playlists []domain.Playlist `json:"playlists"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(file.Playlists) == 0 {
		return nil, fmt.Errorf("catalog: no playlists")
	}
	c := &Catalog{
		Playlists: file.Playlists,
		byID:      make(map[string]domain.Playlist, len(file.Playlists)),
		byName:    make(map[string]domain.Playlist, len(file.Playlists)),
	}
	for _, p := range file.Playlists {
		c.byID[p.ID] = p
		c.byName[strings.ToLower(p.Name)] = p
	}
	return c, nil
}

// ByID looks a playlist up by its catalog id.
func (c *Catalog) ByID(id string) (domain.Playlist, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ByName looks a playlist up by name, case-insensitively. Liked
// playlists arrive from the client as display names.
func (c *Catalog) ByName(name string) (domain.Playlist, bool) {
	p, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Resolve accepts either an id or a name.
func (c *Catalog) Resolve(ref string) (domain.Playlist, bool) {
	if p, ok := c.ByID(ref); ok {
		return p, true
	}
	return c.ByName(ref)
}
