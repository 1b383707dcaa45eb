package overlay

import "github.com/wim-maps/engine/internal/config"

// Style holds the presentation defaults applied when a location has no color of its own.
// Radii and stroke widths are display pixels and do not scale with the image.
type Style struct {
	MarkerColor       string
	MarkerStroke      string
	MarkerRadius      float64
	MarkerHoverRadius float64
	MarkerStrokeWidth float64

	AreaFillColor     string
	AreaStrokeColor   string
	AreaStrokeWidth   float64
	AreaFillOpacity   float64
	HoverOpacityBoost float64

	VertexRadius     float64
	DraftFillOpacity float64
}

// DefaultStyle returns the built-in presentation defaults.
func DefaultStyle() Style {
	return Style{
		MarkerColor:       "#ff6600",
		MarkerStroke:      "#ffffff",
		MarkerRadius:      8,
		MarkerHoverRadius: 12,
		MarkerStrokeWidth: 2,

		AreaFillColor:     "#3388ff",
		AreaStrokeColor:   "#0055cc",
		AreaStrokeWidth:   2,
		AreaFillOpacity:   0.3,
		HoverOpacityBoost: 0.2,

		VertexRadius:     5,
		DraftFillOpacity: 0.3,
	}
}

// Merge returns s with every zero field taken from DefaultStyle.
func (s Style) Merge() Style {
	d := DefaultStyle()
	if s.MarkerColor == "" {
		s.MarkerColor = d.MarkerColor
	}
	if s.MarkerStroke == "" {
		s.MarkerStroke = d.MarkerStroke
	}
	if s.MarkerRadius <= 0 {
		s.MarkerRadius = d.MarkerRadius
	}
	if s.MarkerHoverRadius <= 0 {
		s.MarkerHoverRadius = d.MarkerHoverRadius
	}
	if s.MarkerStrokeWidth <= 0 {
		s.MarkerStrokeWidth = d.MarkerStrokeWidth
	}
	if s.AreaFillColor == "" {
		s.AreaFillColor = d.AreaFillColor
	}
	if s.AreaStrokeColor == "" {
		s.AreaStrokeColor = d.AreaStrokeColor
	}
	if s.AreaStrokeWidth <= 0 {
		s.AreaStrokeWidth = d.AreaStrokeWidth
	}
	if s.AreaFillOpacity <= 0 || s.AreaFillOpacity > 1 {
		s.AreaFillOpacity = d.AreaFillOpacity
	}
	if s.HoverOpacityBoost <= 0 {
		s.HoverOpacityBoost = d.HoverOpacityBoost
	}
	if s.VertexRadius <= 0 {
		s.VertexRadius = d.VertexRadius
	}
	if s.DraftFillOpacity <= 0 || s.DraftFillOpacity > 1 {
		s.DraftFillOpacity = d.DraftFillOpacity
	}
	return s
}

// StyleFromDisplay applies the configured display options over the defaults.
func StyleFromDisplay(cfg config.DisplayConfig) Style {
	return Style{
		MarkerColor:     cfg.MarkerColor,
		AreaFillColor:   cfg.AreaFillColor,
		AreaStrokeColor: cfg.AreaStrokeColor,
		AreaFillOpacity: cfg.AreaFillOpacity,
	}.Merge()
}
