// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wim-maps/engine/internal/config"
	"github.com/wim-maps/engine/pkg/core"
)

func newSeeded(t *testing.T) *Backend {
	t.Helper()
	b := New(config.MemoryConfig{})
	err := b.Load([]core.Map{{
		ID: 7, Title: "Campus", ImageURL: "https://example.com/campus.png", NativeWidth: 2000, NativeHeight: 1000,
		Locations: []core.Location{
			{ID: 3, Title: "Library", Type: core.Place, Coordinates: core.PlaceAt(200, 100)},
			{ID: 2, Title: "Quad", Type: core.Area, Coordinates: core.AreaOf([]core.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}})},
		},
	}})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return b
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestInit_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[{"id":1,"title":"Zoo","image_url":"zoo.png","image_width":800,"image_height":600,
		"locations":[{"id":4,"title":"Lions","type":"place","coordinates":{"x":10,"y":20}},
		             {"id":5,"title":"Broken","type":"area","coordinates":"{bad"}]}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	b := New(config.MemoryConfig{SeedFile: path})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	m, err := b.GetMap(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetMap failed: %v", err)
	}
	if len(m.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(m.Locations))
	}
	if m.Locations[0].MapID != 1 {
		t.Errorf("expected map id to be set on seeded locations, got %d", m.Locations[0].MapID)
	}
	if m.Locations[1].CoordinatesErr == nil {
		t.Error("expected broken payload to be kept with an error")
	}
}

func TestInit_MissingSeedFile(t *testing.T) {
	b := New(config.MemoryConfig{SeedFile: filepath.Join(t.TempDir(), "nope.json")})
	if err := b.Init(); err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestGetMap_OrdersLocations(t *testing.T) {
	b := newSeeded(t)

	m, err := b.GetMap(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetMap failed: %v", err)
	}
	if m.Locations[0].ID != 2 || m.Locations[1].ID != 3 {
		t.Errorf("expected locations ordered by id, got %d,%d", m.Locations[0].ID, m.Locations[1].ID)
	}
}

func TestGetMap_NotFound(t *testing.T) {
	b := New(config.MemoryConfig{})
	_, err := b.GetMap(context.Background(), 1)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMap_ReturnsCopies(t *testing.T) {
	b := newSeeded(t)
	ctx := context.Background()

	m, _ := b.GetMap(ctx, 7)
	m.Locations[1].Coordinates.Point.X = 999
	m.Title = "changed"

	again, _ := b.GetMap(ctx, 7)
	if again.Locations[1].Coordinates.Point.X != 200 {
		t.Errorf("stored coordinates were mutated through a returned copy")
	}
	if again.Title != "Campus" {
		t.Errorf("stored title was mutated through a returned copy")
	}
}

func TestGetMapData(t *testing.T) {
	b := newSeeded(t)
	d, err := b.GetMapData(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetMapData failed: %v", err)
	}
	if d.Width != 2000 || d.Height != 1000 || d.ImageURL != "https://example.com/campus.png" {
		t.Errorf("unexpected map data %+v", d)
	}
}

func TestSaveMap_AssignsID(t *testing.T) {
	b := newSeeded(t)
	m := &core.Map{Title: "Harbour", ImageURL: "harbour.png", NativeWidth: 100, NativeHeight: 50}

	if err := b.SaveMap(context.Background(), m); err != nil {
		t.Fatalf("SaveMap failed: %v", err)
	}
	if m.ID != 8 {
		t.Errorf("expected id 8 after seeded id 7, got %d", m.ID)
	}
}

func TestSaveMap_Rejected(t *testing.T) {
	b := New(config.MemoryConfig{})
	err := b.SaveMap(context.Background(), &core.Map{Title: "No image", NativeWidth: 10, NativeHeight: 10})
	if !errors.Is(err, core.ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestSaveLocation(t *testing.T) {
	b := newSeeded(t)
	ctx := context.Background()

	l := &core.Location{MapID: 7, Title: "Gym", Type: core.Place, Coordinates: core.PlaceAt(5, 6)}
	if err := b.SaveLocation(ctx, l); err != nil {
		t.Fatalf("SaveLocation failed: %v", err)
	}
	if l.ID != 4 {
		t.Errorf("expected id 4, got %d", l.ID)
	}

	got, err := b.GetLocation(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if got.Title != "Gym" || got.Coordinates.Point.Y != 6 {
		t.Errorf("unexpected location %+v", got)
	}
}

func TestSaveLocation_UnknownMap(t *testing.T) {
	b := newSeeded(t)
	l := &core.Location{MapID: 99, Type: core.Place, Coordinates: core.PlaceAt(1, 1)}
	if err := b.SaveLocation(context.Background(), l); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLocation_ShortAreaRejected(t *testing.T) {
	b := newSeeded(t)
	l := &core.Location{MapID: 7, Type: core.Area, Coordinates: core.AreaOf([]core.Point{{X: 1, Y: 1}, {X: 2, Y: 2}})}
	if err := b.SaveLocation(context.Background(), l); !errors.Is(err, core.ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := newSeeded(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = b.SaveLocation(ctx, &core.Location{MapID: 7, Type: core.Place, Coordinates: core.PlaceAt(float64(i), 1)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = b.GetMap(ctx, 7)
		}()
	}
	wg.Wait()

	m, _ := b.GetMap(ctx, 7)
	if len(m.Locations) != 22 {
		t.Errorf("expected 22 locations, got %d", len(m.Locations))
	}
}
