package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dilldrill/internal/catalog"
	"dilldrill/internal/geo"
)

// metersPerDegreeLat converts a northward offset in meters into degrees of
// latitude, letting tests place points at known haversine distances.
const metersPerDegreeLat = 111194.9266

func north(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/metersPerDegreeLat, Lon: p.Lon}
}

func mustCatalog(t *testing.T, pois []catalog.POI) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(pois)
	require.NoError(t, err)
	return c
}

func TestIndexWithin(t *testing.T) {
	center := geo.Point{Lat: 16.0610, Lon: 108.2350}

	near := north(center, 50)
	edge := north(center, 99.9)
	far := north(center, 130)

	cat := mustCatalog(t, []catalog.POI{
		{ID: "near", Name: "Near", Lat: near.Lat, Lon: near.Lon},
		{ID: "edge", Name: "Edge", Lat: edge.Lat, Lon: edge.Lon},
		{ID: "far", Name: "Far", Lat: far.Lat, Lon: far.Lon},
	})
	ix := NewIndex(cat)

	t.Run("returns points inside the radius with distances", func(t *testing.T) {
		got := ix.Within(center, 100)
		require.Len(t, got, 2)
		byID := map[string]float64{}
		for _, c := range got {
			byID[c.POI.ID] = c.DistanceM
		}
		assert.InDelta(t, 50, byID["near"], 0.05)
		assert.InDelta(t, 99.9, byID["edge"], 0.05)
	})

	t.Run("radius boundary is closed", func(t *testing.T) {
		// A radius equal to a point's own distance must include it.
		d := geo.HaversineMeters(center, near)
		got := ix.Within(center, d)
		require.Len(t, got, 1)
		assert.Equal(t, "near", got[0].POI.ID)
	})

	t.Run("no candidates yields empty, not error", func(t *testing.T) {
		got := ix.Within(geo.Point{Lat: 16.30, Lon: 108.5}, 100)
		assert.Empty(t, got)
	})
}
