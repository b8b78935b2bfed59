package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleSnapshot(name string) *Snapshot {
	return &Snapshot{
		Name:    name,
		State:   "game",
		Frame:   42,
		SavedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Entities: []EntityRecord{
			{Systems: []string{"position"}, Components: map[string]map[string]any{"position": {"x": 1.5, "y": 2.0}}},
			{Zone: "level", Systems: []string{"position", "velocity"}},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, sampleSnapshot("slot1")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, "slot1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "game" || got.Frame != 42 || len(got.Entities) != 2 {
		t.Fatalf("loaded %+v", got)
	}
	if x := got.Entities[0].Components["position"]["x"]; x != 1.5 {
		t.Errorf("x = %v", x)
	}
	if got.Entities[1].Zone != "level" {
		t.Errorf("zone %q", got.Entities[1].Zone)
	}
	if !got.SavedAt.Equal(sampleSnapshot("").SavedAt) {
		t.Errorf("saved_at %v", got.SavedAt)
	}
}

func TestFileStoreOverwriteLeavesNoTemp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir, nil)
	for i := 0; i < 3; i++ {
		snap := sampleSnapshot("slot")
		snap.Frame = uint64(i)
		if err := s.Save(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("%d files in store dir", len(entries))
	}
	got, _ := s.Load(ctx, "slot")
	if got.Frame != 2 {
		t.Errorf("frame %d, want 2", got.Frame)
	}
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir, nil)
	if err := s.Save(ctx, sampleSnapshot("slot")); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "slot.yaml")
	raw, _ := os.ReadFile(path)
	raw[len(raw)-2] ^= 0x01
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "slot"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("flipped byte: %v", err)
	}

	if err := os.WriteFile(path, []byte("name: slot\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "slot"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("missing header: %v", err)
	}
}

func TestFileStoreNotFoundAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir(), nil)
	if _, err := s.Load(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load: %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
	for _, n := range []string{"b", "a"} {
		if err := s.Save(ctx, sampleSnapshot(n)); err != nil {
			t.Fatal(err)
		}
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names %v", names)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if names, _ := s.List(ctx); len(names) != 1 {
		t.Errorf("names after delete %v", names)
	}
}

func TestFileStoreRejectsPathNames(t *testing.T) {
	s, _ := NewFileStore(t.TempDir(), nil)
	for _, n := range []string{"", "..", "../x", `a\b`} {
		if err := s.Save(context.Background(), sampleSnapshot(n)); err == nil {
			t.Errorf("saved %q", n)
		}
	}
}
