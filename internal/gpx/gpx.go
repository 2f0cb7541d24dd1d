package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"ride_tracker/internal/models"
)

// GPX 1.1 writer for sharing/backup. Write-only: nothing in this app
// reads GPX back in.

const (
	namespace = "http://www.topografix.com/GPX/1/1"
	creator   = "ride_tracker"
)

type document struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Meta    metadata `xml:"metadata"`
	Trk     track    `xml:"trk"`
}

type metadata struct {
	Name string `xml:"name,omitempty"`
	Time string `xml:"time,omitempty"`
}

type track struct {
	Name     string  `xml:"name"`
	Segments segment `xml:"trkseg"`
}

type segment struct {
	Points []trackPoint `xml:"trkpt"`
}

type trackPoint struct {
	Lat        float64     `xml:"lat,attr"`
	Lon        float64     `xml:"lon,attr"`
	Elevation  *float64    `xml:"ele,omitempty"`
	Time       string      `xml:"time,omitempty"`
	Extensions *extensions `xml:"extensions,omitempty"`
}

// GPX 1.1 dropped the 1.0 <speed> element; reported speeds travel in
// <extensions> instead.
type extensions struct {
	Speed *float64 `xml:"speed,omitempty"`
}

// Marshal renders a ride as a GPX 1.1 document.
func Marshal(ride models.Ride) ([]byte, error) {
	if len(ride.Route) == 0 {
		return nil, errors.New("ride has no route to export")
	}

	points := make([]trackPoint, 0, len(ride.Route))
	for _, c := range ride.Route {
		pt := trackPoint{
			Lat:       c.Latitude,
			Lon:       c.Longitude,
			Elevation: c.Altitude,
			Time:      c.Timestamp.UTC().Format(time.RFC3339),
		}
		if c.Speed != nil {
			pt.Extensions = &extensions{Speed: c.Speed}
		}
		points = append(points, pt)
	}

	title := ride.Title
	if title == "" {
		title = fmt.Sprintf("Ride %s", ride.StartTime.UTC().Format("2006-01-02 15:04"))
	}

	doc := document{
		Version: "1.1",
		Creator: creator,
		Xmlns:   namespace,
		Meta: metadata{
			Name: title,
			Time: ride.StartTime.UTC().Format(time.RFC3339),
		},
		Trk: track{
			Name:     title,
			Segments: segment{Points: points},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
