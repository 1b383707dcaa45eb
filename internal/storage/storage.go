// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/wim-maps/engine/pkg/core"
)

// Source is the read side of a map store. The viewer and editor depend only on this.
type Source interface {
	// GetMap returns a map together with its published locations.
	GetMap(ctx context.Context, id uint) (*core.Map, error)
	// GetMapData returns the image URL and native dimensions of a map.
	GetMapData(ctx context.Context, id uint) (core.MapData, error)
	GetLocation(ctx context.Context, id uint) (*core.Location, error)
}

// Writer persists maps and locations. Records are validated before they are
// stored; an ID of zero creates a new record and assigns its ID.
type Writer interface {
	SaveMap(ctx context.Context, m *core.Map) error
	SaveLocation(ctx context.Context, l *core.Location) error
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	Source
	Writer
}
