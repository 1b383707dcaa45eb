// pkg/core/map.go
package core

// Map is a static image with locations drawn on top of it.
// NativeWidth and NativeHeight are the pixel dimensions of the decoded image and
// define native space for every location on the map.
type Map struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ImageURL     string     `json:"image_url"`
	NativeWidth  int        `json:"image_width"`
	NativeHeight int        `json:"image_height"`
	Locations    []Location `json:"locations"`
}

// Data returns the editor metadata for the map.
func (m *Map) Data() MapData {
	return MapData{
		ImageURL: m.ImageURL,
		Width:    m.NativeWidth,
		Height:   m.NativeHeight,
	}
}

// Location finds a location on the map by ID.
func (m *Map) Location(id uint) (*Location, bool) {
	for i := range m.Locations {
		if m.Locations[i].ID == id {
			return &m.Locations[i], true
		}
	}
	return nil, false
}

// MapData is the metadata the editor needs to place coordinates on a map.
type MapData struct {
	ImageURL string `json:"image_url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Valid reports whether the metadata can drive coordinate conversion.
func (d MapData) Valid() bool {
	return d.ImageURL != "" && d.Width > 0 && d.Height > 0
}
