package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"dilldrill/internal/admission/models"
	"dilldrill/internal/spatial"
	pkgerrors "dilldrill/pkg/errors"
)

// poiResult is the public projection of a selected POI. Raw coordinates
// are omitted unless the caller opted in; internal notes never leave the
// catalog package.
type poiResult struct {
	Name           string   `json:"name"`
	DistanceM      float64  `json:"distance_m"`
	GoogleMapsLink string   `json:"google_maps_link"`
	Images         []string `json:"images,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
}

type findNearestResponse struct {
	Decision *models.PolicyDecision `json:"decision"`
	Results  []poiResult            `json:"results,omitempty"`
}

type errorResponse struct {
	Error             string `json:"error"`
	Detail            string `json:"detail,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func toResults(selected []spatial.Candidate, includeCoords bool, mapsLink func(lat, lon float64) string) []poiResult {
	out := make([]poiResult, 0, len(selected))
	for _, c := range selected {
		r := poiResult{
			Name:           c.POI.Name,
			DistanceM:      c.DistanceM,
			GoogleMapsLink: mapsLink(c.POI.Lat, c.POI.Lon),
			Images:         c.POI.Images,
		}
		if includeCoords {
			lat, lon := c.POI.Lat, c.POI.Lon
			r.Lat, r.Lon = &lat, &lon
		}
		out = append(out, r)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	detail := ""
	var de *pkgerrors.Error
	if errors.As(err, &de) {
		detail = de.Message
	}
	writeJSON(w, pkgerrors.ToHTTPStatus(code), errorResponse{
		Error:  string(code),
		Detail: detail,
	})
}

// writeVerdict translates a non-ALLOW decision into its HTTP shape.
func writeVerdict(w http.ResponseWriter, decision *models.PolicyDecision) {
	switch decision.Verdict {
	case models.VerdictBlock:
		if decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
		}
		writeJSON(w, http.StatusTooManyRequests, findNearestResponse{Decision: decision})
	case models.VerdictChallengeRequired:
		writeJSON(w, http.StatusForbidden, findNearestResponse{Decision: decision})
	default:
		writeJSON(w, http.StatusOK, findNearestResponse{Decision: decision})
	}
}
