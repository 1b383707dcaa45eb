package geo

import (
	"errors"
	"math"

	"github.com/wim-maps/engine/pkg/core"
)

// NATIVE / DISPLAY SPACE
// Native space is the pixel grid of the decoded map image. Display space is the
// grid of the image element as currently rendered, which may be scaled in either
// axis. Conversions need both sizes and are meaningless until the image has been
// laid out, so a zero dimension is reported instead of dividing by it.

// ErrDimensionsNotReady is returned when a conversion is attempted before the
// render frame (or the map's native size) is known.
var ErrDimensionsNotReady = errors.New("render dimensions not ready")

// RenderFrame is the current display size of the map image.
type RenderFrame struct {
	Width  float64
	Height float64
}

// Ready reports whether the frame can be used for conversion.
func (f RenderFrame) Ready() bool {
	return f.Width > 0 && f.Height > 0
}

// ToNative converts a display-space point to native space, rounded to whole
// pixels. Place coordinates are captured at this precision.
func ToNative(display core.Point, frame RenderFrame, nativeW, nativeH float64) (core.Point, error) {
	p, err := ToNativeExact(display, frame, nativeW, nativeH)
	if err != nil {
		return core.Point{}, err
	}
	return core.Point{X: math.Round(p.X), Y: math.Round(p.Y)}, nil
}

// ToNativeExact converts a display-space point to native space without rounding.
func ToNativeExact(display core.Point, frame RenderFrame, nativeW, nativeH float64) (core.Point, error) {
	if !frame.Ready() || nativeW <= 0 || nativeH <= 0 {
		return core.Point{}, ErrDimensionsNotReady
	}
	scaleX := nativeW / frame.Width
	scaleY := nativeH / frame.Height
	return core.Point{X: display.X * scaleX, Y: display.Y * scaleY}, nil
}

// ToDisplay converts a native-space point to display space.
func ToDisplay(native core.Point, frame RenderFrame, nativeW, nativeH float64) (core.Point, error) {
	if !frame.Ready() || nativeW <= 0 || nativeH <= 0 {
		return core.Point{}, ErrDimensionsNotReady
	}
	return core.Point{
		X: native.X * (frame.Width / nativeW),
		Y: native.Y * (frame.Height / nativeH),
	}, nil
}

// Mapper binds a render frame to a map's native size.
type Mapper struct {
	Frame        RenderFrame
	NativeWidth  float64
	NativeHeight float64
}

// NewMapper creates a Mapper for a map with the given native size.
func NewMapper(frame RenderFrame, nativeW, nativeH int) Mapper {
	return Mapper{Frame: frame, NativeWidth: float64(nativeW), NativeHeight: float64(nativeH)}
}

// Ready reports whether both the frame and the native size are known.
func (m Mapper) Ready() bool {
	return m.Frame.Ready() && m.NativeWidth > 0 && m.NativeHeight > 0
}

// ToNative converts a display point to rounded native pixels.
func (m Mapper) ToNative(display core.Point) (core.Point, error) {
	return ToNative(display, m.Frame, m.NativeWidth, m.NativeHeight)
}

// ToNativeExact converts a display point to native space at full precision.
func (m Mapper) ToNativeExact(display core.Point) (core.Point, error) {
	return ToNativeExact(display, m.Frame, m.NativeWidth, m.NativeHeight)
}

// ToDisplay converts a native point to display space.
func (m Mapper) ToDisplay(native core.Point) (core.Point, error) {
	return ToDisplay(native, m.Frame, m.NativeWidth, m.NativeHeight)
}

// ToDisplayAll converts an ordered point list, failing on the first error.
func (m Mapper) ToDisplayAll(native []core.Point) ([]core.Point, error) {
	out := make([]core.Point, len(native))
	for i, p := range native {
		d, err := m.ToDisplay(p)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
