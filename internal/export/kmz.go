// Package export renders a selected result set as a KMZ archive: a zip
// whose single doc.kml entry holds one placemark per result.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"

	"dilldrill/internal/spatial"
	pkgerrors "dilldrill/pkg/errors"
)

const (
	kmlNamespace = "http://www.opengis.net/kml/2.2"
	docEntryName = "doc.kml"
)

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description"`
	Placemarks  []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	Point       kmlPoint `xml:"Point"`
}

type kmlPoint struct {
	// KML coordinate order is lon,lat,alt.
	Coordinates string `xml:"coordinates"`
}

// KMZ builds the archive for a non-empty result set.
func KMZ(results []spatial.Candidate) ([]byte, error) {
	if len(results) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "cannot generate KMZ without results")
	}

	doc := kmlRoot{
		Xmlns: kmlNamespace,
		Document: kmlDocument{
			Name:        "Geo-Proximity Lead Magnet Results",
			Description: "Nearest real-estate points of interest.",
		},
	}
	for _, r := range results {
		doc.Document.Placemarks = append(doc.Document.Placemarks, kmlPlacemark{
			Name: r.POI.Name,
			Description: fmt.Sprintf("Distance: %.0f m. <a href='%s'>Navigate Here</a>",
				r.DistanceM, MapsLink(r.POI.Lat, r.POI.Lon)),
			Point: kmlPoint{
				Coordinates: fmt.Sprintf("%f,%f,0", r.POI.Lon, r.POI.Lat),
			},
		})
	}

	kmlBytes, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "marshal KML")
	}
	kmlBytes = append([]byte(xml.Header), kmlBytes...)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create(docEntryName)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "create KMZ entry")
	}
	if _, err := entry.Write(kmlBytes); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "write KMZ entry")
	}
	if err := zw.Close(); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "finalize KMZ")
	}
	return buf.Bytes(), nil
}

// MapsLink builds a Google Maps navigation link for a coordinate pair.
func MapsLink(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", lat, lon)
}
