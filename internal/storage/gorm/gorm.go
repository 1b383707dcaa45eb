// Package gormstorage implements the storage.Backend interface on top of GORM.
// The same backend serves SQLite and PostgreSQL; the caller opens the database.
package gormstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wim-maps/engine/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend stores maps and locations in a relational database.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := b.deps.DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// GetMap loads a map and its locations ordered by ID.
func (b *Backend) GetMap(ctx context.Context, id uint) (*core.Map, error) {
	var rec MapRecord
	err := b.deps.DB.WithContext(ctx).
		Preload("Locations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&rec, id).Error
	if err != nil {
		return nil, notFound(err, "map", id)
	}

	m := recordToMap(rec, b.deps.Logger)
	for _, l := range m.Locations {
		if l.CoordinatesErr != nil {
			b.deps.Logger.Warn().Err(l.CoordinatesErr).Uint("location", l.ID).Uint("map", id).Msg("Stored coordinates could not be decoded")
		}
	}
	return &m, nil
}

// GetMapData loads the editor metadata of a map.
func (b *Backend) GetMapData(ctx context.Context, id uint) (core.MapData, error) {
	var rec MapRecord
	err := b.deps.DB.WithContext(ctx).
		Select("id", "image_url", "image_width", "image_height").
		First(&rec, id).Error
	if err != nil {
		return core.MapData{}, notFound(err, "map", id)
	}
	return core.MapData{ImageURL: rec.ImageURL, Width: rec.ImageWidth, Height: rec.ImageHeight}, nil
}

// GetLocation loads a single location.
func (b *Backend) GetLocation(ctx context.Context, id uint) (*core.Location, error) {
	var rec LocationRecord
	if err := b.deps.DB.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "location", id)
	}
	l := recordToLocation(rec, b.deps.Logger)
	return &l, nil
}

// SaveMap validates and upserts map metadata. Locations on m are not touched.
func (b *Backend) SaveMap(ctx context.Context, m *core.Map) error {
	if err := core.ValidateMap(m); err != nil {
		return err
	}
	rec := mapToRecord(m)
	if err := upsert(b.deps.DB.WithContext(ctx).Omit(clause.Associations).Session(&gorm.Session{}), &rec, rec.ID); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	m.ID = rec.ID
	return nil
}

// SaveLocation validates and upserts a location. The map must exist.
func (b *Backend) SaveLocation(ctx context.Context, l *core.Location) error {
	if err := core.ValidateLocation(l); err != nil {
		return err
	}
	rec, err := locationToRecord(l)
	if err != nil {
		return err
	}

	db := b.deps.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&MapRecord{}).Where("id = ?", l.MapID).Count(&count).Error; err != nil {
		return fmt.Errorf("check map: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("map %d: %w", l.MapID, core.ErrNotFound)
	}

	if err := upsert(db, &rec, rec.ID); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	l.ID = rec.ID
	return nil
}

// upsert inserts rec when id is zero or unknown and otherwise rewrites every
// column except the creation time.
func upsert(db *gorm.DB, rec any, id uint) error {
	if id != 0 {
		res := db.Model(rec).Select("*").Omit("id", "created_at").Updates(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return db.Create(rec).Error
}

func notFound(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", kind, id, err)
}
