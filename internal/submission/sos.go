package submission

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxNoteRunes = 1000

// Location is a WGS84 position with optional accuracy in metres. Nil
// coordinates mark a field absent from the request.
type Location struct {
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// NewLocation returns a Location at lat, lng.
func NewLocation(lat, lng float64) *Location {
	return &Location{Lat: &lat, Lng: &lng}
}

// SOSRequest is the payload submitted to the SOS trigger endpoint.
type SOSRequest struct {
	Location         *Location      `json:"location"`
	FallbackLocation *Location      `json:"fallbackLocation,omitempty"`
	Note             string         `json:"note,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Offline          bool           `json:"offline"`
}

// Normalize trims and NFC-normalizes free text.
func (r *SOSRequest) Normalize() {
	r.Note = norm.NFC.String(strings.TrimSpace(r.Note))
}

// Validate checks that a location is present, coordinate ranges and note
// length.
func (r SOSRequest) Validate() error {
	var p problems
	if r.Location == nil {
		p.add("location", "is required")
	} else {
		validateLocation(&p, "location", *r.Location)
	}
	if r.FallbackLocation != nil {
		validateLocation(&p, "fallbackLocation", *r.FallbackLocation)
	}
	if utf8.RuneCountInString(r.Note) > maxNoteRunes {
		p.add("note", "must be at most 1000 characters")
	}
	return p.err()
}

func validateLocation(p *problems, field string, loc Location) {
	switch {
	case loc.Lat == nil:
		p.add(field+".lat", "is required")
	case math.IsNaN(*loc.Lat) || *loc.Lat < -90 || *loc.Lat > 90:
		p.add(field+".lat", "must be between -90 and 90")
	}
	switch {
	case loc.Lng == nil:
		p.add(field+".lng", "is required")
	case math.IsNaN(*loc.Lng) || *loc.Lng < -180 || *loc.Lng > 180:
		p.add(field+".lng", "must be between -180 and 180")
	}
	if loc.Accuracy != nil && (math.IsNaN(*loc.Accuracy) || *loc.Accuracy < 0) {
		p.add(field+".accuracy", "must not be negative")
	}
}
