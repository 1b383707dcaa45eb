package gormstorage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/wim-maps/engine/pkg/core"
)

// MapRecord is the persisted form of a map.
type MapRecord struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Title       string `gorm:"size:255;not null"`
	Description string
	ImageURL    string `gorm:"not null"`
	ImageWidth  int    `gorm:"not null"`
	ImageHeight int    `gorm:"not null"`

	Locations []LocationRecord `gorm:"foreignKey:MapID;constraint:OnDelete:CASCADE"`
}

// TableName implements gorm's tabler.
func (MapRecord) TableName() string { return "wim_maps" }

// LocationRecord is the persisted form of a location. Coordinates hold the
// payload verbatim so legacy or corrupt rows can still be read back.
type LocationRecord struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	MapID       uint   `gorm:"index;not null"`
	Title       string `gorm:"size:255"`
	Content     string
	Type        string `gorm:"size:16;not null"`
	Coordinates datatypes.JSON
	Color       string `gorm:"size:7"`
	Images      datatypes.JSON
}

// TableName implements gorm's tabler.
func (LocationRecord) TableName() string { return "wim_locations" }

// Models lists the tables this backend migrates.
var Models = []any{&MapRecord{}, &LocationRecord{}}

func mapToRecord(m *core.Map) MapRecord {
	return MapRecord{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		ImageWidth:  m.NativeWidth,
		ImageHeight: m.NativeHeight,
	}
}

func recordToMap(r MapRecord, log zerolog.Logger) core.Map {
	m := core.Map{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		NativeWidth:  r.ImageWidth,
		NativeHeight: r.ImageHeight,
	}
	for _, l := range r.Locations {
		m.Locations = append(m.Locations, recordToLocation(l, log))
	}
	return m
}

func locationToRecord(l *core.Location) (LocationRecord, error) {
	rec := LocationRecord{
		ID:      l.ID,
		MapID:   l.MapID,
		Title:   l.Title,
		Content: l.Content,
		Type:    string(l.Type),
		Color:   l.Color,
	}
	if !l.Coordinates.Empty() {
		raw, err := json.Marshal(l.Coordinates)
		if err != nil {
			return LocationRecord{}, fmt.Errorf("encode coordinates: %w", err)
		}
		rec.Coordinates = datatypes.JSON(raw)
	}
	images := l.Images
	if images == nil {
		images = []core.Image{}
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return LocationRecord{}, fmt.Errorf("encode images: %w", err)
	}
	rec.Images = datatypes.JSON(raw)
	return rec, nil
}

// recordToLocation never fails; a bad type or payload is kept on CoordinatesErr
// and unreadable images are logged and dropped.
func recordToLocation(r LocationRecord, log zerolog.Logger) core.Location {
	l := core.Location{
		ID:      r.ID,
		MapID:   r.MapID,
		Title:   r.Title,
		Content: r.Content,
		Type:    core.LocationType(r.Type),
		Color:   r.Color,
	}
	if len(r.Images) > 0 {
		if err := json.Unmarshal(r.Images, &l.Images); err != nil {
			log.Warn().Err(err).Uint("location", r.ID).Msg("Stored images could not be decoded")
			l.Images = nil
		}
	}

	kind, err := core.ParseLocationType(r.Type)
	if err != nil {
		l.CoordinatesErr = fmt.Errorf("%w: %v", core.ErrInvalidCoordinatePayload, err)
		return l
	}
	l.Type = kind

	coords, err := core.DecodeCoordinates(kind, r.Coordinates)
	if err != nil {
		l.Coordinates = core.Coordinates{Kind: kind}
		l.CoordinatesErr = err
		return l
	}
	l.Coordinates = coords
	return l
}
