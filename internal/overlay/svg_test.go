package overlay

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wim-maps/engine/internal/geo"
	"github.com/wim-maps/engine/pkg/core"
)

func TestSVG_Document(t *testing.T) {
	s, err := Build(sampleLocations(), halfScale(), DefaultStyle())
	require.NoError(t, err)
	s.SetActive(2)

	out, err := s.SVG()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, `viewBox="0 0 1000 500"`)
	assert.Contains(t, out, `class="wim-marker"`)
	assert.Contains(t, out, `data-location-id="1"`)
	assert.Contains(t, out, `cx="500" cy="300" r="8" fill="#ff6600"`)
	assert.Contains(t, out, `class="wim-area wim-active"`)
	assert.Contains(t, out, `points="50,50 150,50 150,150 50,150"`)
	assert.Contains(t, out, `fill-opacity="0.3"`)
	assert.Contains(t, out, `class="wim-marker-hit"`)

	var parsed struct {
		Circles  []struct{} `xml:"circle"`
		Polygons []struct{} `xml:"polygon"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &parsed))
	assert.Len(t, parsed.Circles, 2)
	assert.Len(t, parsed.Polygons, 1)
}

func TestSVG_HoveredMarkerGrows(t *testing.T) {
	s, err := Build(sampleLocations(), halfScale(), DefaultStyle())
	require.NoError(t, err)
	s.SetHover(1)

	out, err := s.SVG()
	require.NoError(t, err)
	assert.Contains(t, out, `class="wim-marker wim-hover"`)
	assert.Contains(t, out, `r="12" fill="#ff6600"`)
}

func TestSVG_Draft(t *testing.T) {
	s := NewScene(geo.RenderFrame{Width: 100, Height: 80}, DefaultStyle())
	s.AddDraftPolygon([]core.Point{{X: 10, Y: 10}, {X: 20.5, Y: 10}, {X: 20, Y: 20}}, true)

	out, err := s.SVG()
	require.NoError(t, err)
	assert.Contains(t, out, `class="wim-draft"`)
	assert.Contains(t, out, `class="wim-edge" x1="10" y1="10" x2="20.5" y2="10"`)
	assert.Equal(t, 3, strings.Count(out, `class="wim-vertex"`))
	assert.NotContains(t, out, "data-location-id")
}
