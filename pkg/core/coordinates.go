// pkg/core/coordinates.go
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MinAreaPoints is the smallest vertex count that forms a polygon.
const MinAreaPoints = 3

// ErrInvalidCoordinatePayload is returned when a stored payload is malformed or has the wrong shape.
var ErrInvalidCoordinatePayload = errors.New("invalid coordinate payload")

// Point is a position in native (image pixel) or display space, depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Coordinates is the tagged union stored against a location.
// A Place uses Point, an Area uses Points; the two are never both set.
type Coordinates struct {
	Kind   LocationType
	Point  *Point
	Points []Point
}

// PlaceAt returns Place coordinates for a single native point.
func PlaceAt(x, y float64) Coordinates {
	return Coordinates{Kind: Place, Point: &Point{X: x, Y: y}}
}

// AreaOf returns Area coordinates for an ordered vertex list.
func AreaOf(points []Point) Coordinates {
	cp := make([]Point, len(points))
	copy(cp, points)
	return Coordinates{Kind: Area, Points: cp}
}

// Empty reports whether no position has been stored.
func (c Coordinates) Empty() bool {
	switch c.Kind {
	case Place:
		return c.Point == nil
	case Area:
		return len(c.Points) == 0
	default:
		return true
	}
}

// Drawable reports whether the coordinates can be rendered: a non-negative
// point for a Place, at least MinAreaPoints vertices for an Area.
func (c Coordinates) Drawable() bool {
	switch c.Kind {
	case Place:
		return c.Point != nil && c.Point.X >= 0 && c.Point.Y >= 0
	case Area:
		return len(c.Points) >= MinAreaPoints
	default:
		return false
	}
}

type placePayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type areaPayload struct {
	Points [][]float64 `json:"points"`
}

// MarshalJSON writes {"x":..,"y":..} for a Place and {"points":[[x,y],..]} for an Area.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case Place:
		if c.Point == nil {
			return []byte("null"), nil
		}
		return json.Marshal(struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}{c.Point.X, c.Point.Y})
	case Area:
		pts := make([][2]float64, len(c.Points))
		for i, p := range c.Points {
			pts[i] = [2]float64{p.X, p.Y}
		}
		return json.Marshal(struct {
			Points [][2]float64 `json:"points"`
		}{pts})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON infers the kind from the payload shape. Use DecodeCoordinates
// when the location type is known.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*c = Coordinates{}
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinatePayload, err)
	}
	kind := Place
	if _, ok := probe["points"]; ok {
		kind = Area
	}
	decoded, err := DecodeCoordinates(kind, data)
	if err != nil {
		return err
	}
	*c = decoded
	return nil
}

// DecodeCoordinates parses a stored payload for the given location type.
// An empty or null payload yields empty coordinates. Area payloads with fewer
// than MinAreaPoints vertices are returned as-is; they are simply not Drawable.
func DecodeCoordinates(kind LocationType, data []byte) (Coordinates, error) {
	if isNull(data) {
		return Coordinates{Kind: kind}, nil
	}

	switch kind {
	case Place:
		var p placePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCoordinatePayload, err)
		}
		if p.X == nil || p.Y == nil {
			return Coordinates{}, fmt.Errorf("%w: place requires x and y", ErrInvalidCoordinatePayload)
		}
		if *p.X < 0 || *p.Y < 0 {
			return Coordinates{}, fmt.Errorf("%w: negative place coordinate", ErrInvalidCoordinatePayload)
		}
		return PlaceAt(*p.X, *p.Y), nil

	case Area:
		var a areaPayload
		if err := json.Unmarshal(data, &a); err != nil {
			return Coordinates{}, fmt.Errorf("%w: %v", ErrInvalidCoordinatePayload, err)
		}
		if a.Points == nil {
			return Coordinates{}, fmt.Errorf("%w: area requires points", ErrInvalidCoordinatePayload)
		}
		points, err := pointsFromPairs(a.Points)
		if err != nil {
			return Coordinates{}, err
		}
		return Coordinates{Kind: Area, Points: points}, nil

	default:
		return Coordinates{}, fmt.Errorf("%w: unknown location type %q", ErrInvalidCoordinatePayload, kind)
	}
}

// pointsFromPairs converts [[x,y],...] pairs into points, rejecting
// malformed pairs and negative values.
func pointsFromPairs(pairs [][]float64) ([]Point, error) {
	points := make([]Point, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: point %d has %d values", ErrInvalidCoordinatePayload, i, len(pair))
		}
		if pair[0] < 0 || pair[1] < 0 {
			return nil, fmt.Errorf("%w: point %d is negative", ErrInvalidCoordinatePayload, i)
		}
		points = append(points, Point{X: pair[0], Y: pair[1]})
	}
	return points, nil
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
