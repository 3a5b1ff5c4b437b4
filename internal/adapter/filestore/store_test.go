package filestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/Strob0t/PertForge/internal/adapter/filestore"
	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
)

func newSnapshot(t *testing.T, name string, created time.Time) *snapshot.Snapshot {
	t.Helper()
	raw := []schedule.RawTask{
		{Name: "A", Duration: 3},
		{Name: "B", Duration: 2, Predecessors: []string{"A"}},
	}
	res, err := schedule.Compute(raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	s := snapshot.New(name, 1, raw, res)
	s.CreatedAt = created
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	snap := newSnapshot(t, "plan", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := store.Put(ctx, snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "project_*.json"))
	if len(files) != 1 || !strings.Contains(files[0], "20260301T120000Z_"+snap.ID) {
		t.Fatalf("unexpected files %v", files)
	}

	got, err := store.Get(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := store.Put(ctx, snap); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate put, got %v", err)
	}

	if err := store.Delete(ctx, snap.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, snap.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, snap.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListNewestFirstSkipsJunk(t *testing.T) {
	dir := t.TempDir()
	store, err := filestore.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := newSnapshot(t, "old", base)
	mid := newSnapshot(t, "mid", base.Add(time.Hour))
	recent := newSnapshot(t, "new", base.Add(2*time.Hour))
	for _, s := range []*snapshot.Snapshot{mid, old, recent} {
		if err := store.Put(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "project_broken.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range list {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, names); diff != "" {
		t.Errorf("list order mismatch (-want +got):\n%s", diff)
	}
	if list[0].TasksCount != 2 || list[0].ProjectDuration != 5 {
		t.Errorf("unexpected summary %+v", list[0])
	}
}

func TestStore_EmptyList(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	list, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestStore_RejectsPathLikeIDs(t *testing.T) {
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../secret", "*", ""} {
		if _, err := store.Get(context.Background(), id); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Get(%q): expected ErrValidation, got %v", id, err)
		}
	}
	if _, err := store.Get(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
