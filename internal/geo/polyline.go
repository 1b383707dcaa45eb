package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wim-maps/engine/pkg/core"
)

// Polygon builds a closed polygon from an ordered vertex list. The ring is
// closed by repeating the first vertex; simplicity is not checked.
func Polygon(points []core.Point) (geom.Polygon, error) {
	if len(points) < core.MinAreaPoints {
		return geom.Polygon{}, fmt.Errorf("polygon must have at least %d points, got %d", core.MinAreaPoints, len(points))
	}

	flatCoords := make([]float64, 0, (len(points)+1)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}
	if first, last := points[0], points[len(points)-1]; first != last {
		flatCoords = append(flatCoords, first.X, first.Y)
	}

	// Rings are not required to be simple; bowties and repeated vertices still draw.
	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ring, err := geom.NewLineString(seq, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("polygon ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring}, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("polygon: %w", err)
	}
	return poly, nil
}

// ContainsPoint reports whether p lies inside or on the boundary of poly.
func ContainsPoint(poly geom.Polygon, p core.Point) bool {
	pt, err := geom.XY{X: p.X, Y: p.Y}.AsPoint()
	if err != nil {
		return false
	}
	return geom.Intersects(poly.AsGeometry(), pt.AsGeometry())
}

// PolygonArea returns the planar area enclosed by an ordered vertex list.
func PolygonArea(points []core.Point) float64 {
	poly, err := Polygon(points)
	if err != nil {
		return 0
	}
	return poly.Area()
}
