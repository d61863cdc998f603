// Package spatial answers radius queries over the catalog and shapes the
// raw candidate set into a well-spaced result list.
package spatial

import (
	"dilldrill/internal/catalog"
	"dilldrill/internal/geo"
)

// Candidate is a catalog point paired with its distance from a query point.
type Candidate struct {
	POI       catalog.POI
	DistanceM float64
}

// Index answers radius queries against the immutable catalog. It is a pure
// function of the catalog plus the query point, safe for lock-free sharing.
type Index struct {
	cat *catalog.Catalog
}

// NewIndex wraps a loaded catalog.
func NewIndex(cat *catalog.Catalog) *Index {
	return &Index{cat: cat}
}

// Within returns every catalog point whose haversine distance from center is
// at most radiusM, boundary included. Result order is unspecified; the
// selector sorts.
func (ix *Index) Within(center geo.Point, radiusM float64) []Candidate {
	var out []Candidate
	for _, p := range ix.cat.All() {
		d := geo.HaversineMeters(center, p.Location())
		if d <= radiusM {
			out = append(out, Candidate{POI: p, DistanceM: d})
		}
	}
	return out
}
