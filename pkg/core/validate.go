// pkg/core/validate.go
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned by stores when a map or location does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord is returned when a map or location is rejected on write.
	ErrInvalidRecord = errors.New("invalid record")
)

var hexColor = regexp.MustCompile(`^#([A-Fa-f0-9]{3}){1,2}$`)

// ValidColor reports whether s is a #rgb or #rrggbb color.
func ValidColor(s string) bool {
	return hexColor.MatchString(s)
}

// ValidateMap checks a map before it is persisted.
func ValidateMap(m *Map) error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: map title is empty", ErrInvalidRecord)
	}
	if strings.TrimSpace(m.ImageURL) == "" {
		return fmt.Errorf("%w: map image url is empty", ErrInvalidRecord)
	}
	if m.NativeWidth <= 0 || m.NativeHeight <= 0 {
		return fmt.Errorf("%w: map dimensions %dx%d", ErrInvalidRecord, m.NativeWidth, m.NativeHeight)
	}
	return nil
}

// ValidateLocation checks a location before it is persisted. Stored payloads
// must be complete: a Place needs a point and an Area needs MinAreaPoints vertices.
func ValidateLocation(l *Location) error {
	if l.MapID == 0 {
		return fmt.Errorf("%w: location has no map", ErrInvalidRecord)
	}
	if _, err := ParseLocationType(string(l.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if l.Color != "" && !ValidColor(l.Color) {
		return fmt.Errorf("%w: color %q", ErrInvalidRecord, l.Color)
	}

	c := l.Coordinates
	if c.Empty() {
		return nil
	}
	if c.Kind != l.Type {
		return fmt.Errorf("%w: %s coordinates on a %s location", ErrInvalidRecord, c.Kind, l.Type)
	}
	switch c.Kind {
	case Place:
		if c.Point.X < 0 || c.Point.Y < 0 {
			return fmt.Errorf("%w: negative place coordinate", ErrInvalidRecord)
		}
	case Area:
		if len(c.Points) < MinAreaPoints {
			return fmt.Errorf("%w: area has %d points, need %d", ErrInvalidRecord, len(c.Points), MinAreaPoints)
		}
		for i, p := range c.Points {
			if p.X < 0 || p.Y < 0 {
				return fmt.Errorf("%w: point %d is negative", ErrInvalidRecord, i)
			}
		}
	}
	return nil
}
