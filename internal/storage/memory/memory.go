// internal/storage/memory/memory.go
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/pkg/core"
)

// Backend keeps maps and locations in memory. It is used by tests and by the
// CLI when no database is configured; SeedFile preloads it from a JSON array of
// map responses.
type Backend struct {
	cfg config.MemoryConfig

	maps      map[uint]core.Map
	locations map[uint]core.Location

	mapSeq      uint
	locationSeq uint
	mu          sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		maps:      make(map[uint]core.Map),
		locations: make(map[uint]core.Location),
	}
}

// Init loads the seed file, if one is configured.
func (b *Backend) Init() error {
	if b.cfg.SeedFile == "" {
		return nil
	}
	data, err := os.ReadFile(b.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.Map
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	return b.Load(seed)
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Load stores maps with their locations as-is, keeping their IDs. Seed data is
// not validated so legacy payloads can be reproduced.
func (b *Backend) Load(maps []core.Map) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range maps {
		if m.ID == 0 {
			b.mapSeq++
			m.ID = b.mapSeq
		} else if m.ID > b.mapSeq {
			b.mapSeq = m.ID
		}
		for _, l := range m.Locations {
			if l.ID == 0 {
				b.locationSeq++
				l.ID = b.locationSeq
			} else if l.ID > b.locationSeq {
				b.locationSeq = l.ID
			}
			l.MapID = m.ID
			b.locations[l.ID] = cloneLocation(l)
		}
		m.Locations = nil
		b.maps[m.ID] = m
	}
	return nil
}

// GetMap returns a copy of the map and its locations ordered by ID.
func (b *Backend) GetMap(_ context.Context, id uint) (*core.Map, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.maps[id]
	if !ok {
		return nil, fmt.Errorf("map %d: %w", id, core.ErrNotFound)
	}
	for _, l := range b.locations {
		if l.MapID == id {
			m.Locations = append(m.Locations, cloneLocation(l))
		}
	}
	sort.Slice(m.Locations, func(i, j int) bool { return m.Locations[i].ID < m.Locations[j].ID })
	return &m, nil
}

// GetMapData returns the editor metadata of a map.
func (b *Backend) GetMapData(_ context.Context, id uint) (core.MapData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.maps[id]
	if !ok {
		return core.MapData{}, fmt.Errorf("map %d: %w", id, core.ErrNotFound)
	}
	return m.Data(), nil
}

// GetLocation returns a copy of a single location.
func (b *Backend) GetLocation(_ context.Context, id uint) (*core.Location, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.locations[id]
	if !ok {
		return nil, fmt.Errorf("location %d: %w", id, core.ErrNotFound)
	}
	l = cloneLocation(l)
	return &l, nil
}

// SaveMap validates and stores map metadata. Locations on m are ignored; they
// are saved individually.
func (b *Backend) SaveMap(_ context.Context, m *core.Map) error {
	if err := core.ValidateMap(m); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if m.ID == 0 {
		b.mapSeq++
		m.ID = b.mapSeq
	}
	stored := *m
	stored.Locations = nil
	b.maps[m.ID] = stored
	return nil
}

// SaveLocation validates and stores a location. The map must exist.
func (b *Backend) SaveLocation(_ context.Context, l *core.Location) error {
	if err := core.ValidateLocation(l); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.maps[l.MapID]; !ok {
		return fmt.Errorf("map %d: %w", l.MapID, core.ErrNotFound)
	}
	if l.ID == 0 {
		b.locationSeq++
		l.ID = b.locationSeq
	}
	b.locations[l.ID] = cloneLocation(*l)
	return nil
}

func cloneLocation(l core.Location) core.Location {
	if l.Coordinates.Point != nil {
		p := *l.Coordinates.Point
		l.Coordinates.Point = &p
	}
	if l.Coordinates.Points != nil {
		l.Coordinates.Points = append([]core.Point(nil), l.Coordinates.Points...)
	}
	if l.Images != nil {
		l.Images = append([]core.Image(nil), l.Images...)
	}
	return l
}
