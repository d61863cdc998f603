// Package catalog holds the immutable point-of-interest master list. It is
// loaded once at startup and shared lock-free across requests; a missing or
// invalid catalog aborts startup because no degraded search mode exists.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"dilldrill/internal/geo"
	"dilldrill/pkg/sentinel"
)

// POI is a single catalog entry. InternalNotes is private curation context
// and must never reach any serialized output.
type POI struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Images        []string `json:"images,omitempty"`
	InternalNotes string   `json:"-"`
}

// Location returns the POI's coordinate.
func (p POI) Location() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// masterList mirrors the masterlist.json root object.
type masterList struct {
	Points []POI `json:"points"`
}

// Catalog is the immutable in-memory master list.
type Catalog struct {
	pois []POI
	byID map[string]POI
}

// New validates the points and builds a catalog. Duplicate ids and
// out-of-range coordinates are rejected.
func New(pois []POI) (*Catalog, error) {
	byID := make(map[string]POI, len(pois))
	for _, p := range pois {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %q has no id", p.Name)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", p.ID)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("catalog id %q has out-of-range coordinates (%f, %f)", p.ID, p.Lat, p.Lon)
		}
		byID[p.ID] = p
	}
	return &Catalog{pois: pois, byID: byID}, nil
}

// LoadFile reads a masterlist.json file into a catalog.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var list masterList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	if len(list.Points) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no points", path)
	}
	return New(list.Points)
}

// All returns the full point list. Callers must not mutate it.
func (c *Catalog) All() []POI {
	return c.pois
}

// Get returns the POI with the given id, or sentinel.ErrNotFound.
func (c *Catalog) Get(id string) (POI, error) {
	p, ok := c.byID[id]
	if !ok {
		return POI{}, fmt.Errorf("poi %q: %w", id, sentinel.ErrNotFound)
	}
	return p, nil
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.pois)
}
