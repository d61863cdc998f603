package httptransport

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"dilldrill/internal/geo"
	pkgerrors "dilldrill/pkg/errors"
)

// findNearestRequest is the /api/find-nearest body. Coordinates is free
// text in "lat, lon" form; there is no address geocoding.
type findNearestRequest struct {
	Coordinates        string `json:"coordinates"`
	TurnstileToken     string `json:"turnstile_token"`
	IncludeCoordinates bool   `json:"include_coordinates"`
}

// parseCoordinates validates and splits a "lat, lon" pair.
func parseCoordinates(raw string) (geo.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "coordinates must be \"lat, lon\"")
	}
	latStr := strings.TrimSpace(parts[0])
	lonStr := strings.TrimSpace(parts[1])

	if !govalidator.IsLatitude(latStr) {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "latitude out of range")
	}
	if !govalidator.IsLongitude(lonStr) {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "longitude out of range")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "latitude is not a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geo.Point{}, pkgerrors.New(pkgerrors.CodeInvalidInput, "longitude is not a number")
	}
	return geo.Point{Lat: lat, Lon: lon}, nil
}
