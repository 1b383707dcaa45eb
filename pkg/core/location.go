// pkg/core/location.go
package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LocationType distinguishes point locations from polygon locations.
type LocationType string

const (
	// Place is a single-point location rendered as a marker.
	Place LocationType = "place"
	// Area is a polygon location rendered as a filled path.
	Area LocationType = "area"
)

// ParseLocationType validates a stored type string.
func ParseLocationType(s string) (LocationType, error) {
	switch LocationType(strings.TrimSpace(s)) {
	case Place:
		return Place, nil
	case Area:
		return Area, nil
	default:
		return "", fmt.Errorf("unknown location type %q", s)
	}
}

// Image is a content image attached to a location.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Location is a clickable place or area on a map.
// Content is pre-rendered markup and is passed through untouched.
type Location struct {
	ID          uint         `json:"id"`
	MapID       uint         `json:"map_id,omitempty"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Type        LocationType `json:"type"`
	Coordinates Coordinates  `json:"coordinates"`
	Color       string       `json:"color,omitempty"`
	Images      []Image      `json:"images"`

	// CoordinatesErr records why the stored payload could not be decoded.
	// The location is kept so the rest of the map still renders.
	CoordinatesErr error `json:"-"`
}

// wireLocation mirrors Location with the payload left raw so the type can be read first.
type wireLocation struct {
	ID          uint            `json:"id"`
	MapID       uint            `json:"map_id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Color       string          `json:"color"`
	Images      []Image         `json:"images"`
}

// UnmarshalJSON decodes a location record. A malformed coordinate payload or an
// unknown type does not fail the record; see CoordinatesErr.
func (l *Location) UnmarshalJSON(data []byte) error {
	var w wireLocation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*l = Location{
		ID:      w.ID,
		MapID:   w.MapID,
		Title:   w.Title,
		Content: w.Content,
		Color:   w.Color,
		Images:  w.Images,
	}

	kind, err := ParseLocationType(w.Type)
	if err != nil {
		l.Type = LocationType(w.Type)
		l.CoordinatesErr = fmt.Errorf("%w: %v", ErrInvalidCoordinatePayload, err)
		return nil
	}
	l.Type = kind

	coords, err := DecodeCoordinates(kind, w.Coordinates)
	if err != nil {
		l.Coordinates = Coordinates{Kind: kind}
		l.CoordinatesErr = err
		return nil
	}
	l.Coordinates = coords
	return nil
}

// ImageAlt returns the alt text for an image, falling back to the location title.
func (l *Location) ImageAlt(img Image) string {
	if img.Alt != "" {
		return img.Alt
	}
	return l.Title
}
