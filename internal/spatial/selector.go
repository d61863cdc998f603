package spatial

import (
	"sort"

	"dilldrill/internal/geo"
)

// Selector applies greedy minimum-separation selection over radius-query
// candidates. Greedy-by-proximity keeps the closest distinct entry first and
// drops near-duplicate listings of the same development; globally optimal
// packing is not a goal, determinism is.
type Selector struct {
	minSeparationM float64
}

// NewSelector creates a selector with the given minimum pairwise separation
// in meters.
func NewSelector(minSeparationM float64) *Selector {
	return &Selector{minSeparationM: minSeparationM}
}

// Select returns at most max candidates, ordered ascending by distance from
// the query point, such that every selected pair is strictly more than the
// minimum separation apart. Exactly at the separation counts as too close.
//
// Ties on distance break on catalog id so output is reproducible. Pairwise
// distances are true point-to-point haversine distances, not differences of
// distances from the query point.
func (s *Selector) Select(candidates []Candidate, max int) []Candidate {
	if max <= 0 || len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DistanceM != sorted[j].DistanceM {
			return sorted[i].DistanceM < sorted[j].DistanceM
		}
		return sorted[i].POI.ID < sorted[j].POI.ID
	})

	accepted := make([]Candidate, 0, max)
	for _, c := range sorted {
		if s.farEnough(c, accepted) {
			accepted = append(accepted, c)
			if len(accepted) == max {
				break
			}
		}
	}
	return accepted
}

func (s *Selector) farEnough(c Candidate, accepted []Candidate) bool {
	for _, a := range accepted {
		if geo.HaversineMeters(c.POI.Location(), a.POI.Location()) <= s.minSeparationM {
			return false
		}
	}
	return true
}
