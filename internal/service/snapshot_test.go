package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/port/broadcast"
	"github.com/Strob0t/PertForge/internal/port/messagequeue"
)

func TestSnapshotService(t *testing.T) {
	f := newFixture(testLimits())
	snaps := NewSnapshotService(f.store, f.svc, f.queue, f.hub)
	ctx := context.Background()

	resp, err := f.svc.Compute(ctx, Request{Name: "plan", Tasks: exampleTasks(), ProjectStart: intPtr(5)})
	if err != nil {
		t.Fatal(err)
	}

	list, err := snaps.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != resp.SnapshotID || list[0].TasksCount != 4 || list[0].ProjectDuration != 8 {
		t.Fatalf("unexpected list %+v", list)
	}

	got, err := snaps.Get(ctx, resp.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "plan" || got.ProjectStart != 5 {
		t.Errorf("unexpected snapshot %+v", got)
	}

	re, err := snaps.Recompute(ctx, resp.SnapshotID, false)
	if err != nil {
		t.Fatal(err)
	}
	if re.ProjectFinish != resp.ProjectFinish || re.SnapshotID != "" {
		t.Errorf("recompute: finish=%d id=%q", re.ProjectFinish, re.SnapshotID)
	}
	if f.store.count() != 1 {
		t.Error("recompute must not store a new snapshot")
	}

	if err := snaps.Delete(ctx, resp.SnapshotID); err != nil {
		t.Fatal(err)
	}
	if _, err := snaps.Get(ctx, resp.SnapshotID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	subjects := f.queue.subjects()
	if subjects[len(subjects)-1] != messagequeue.SubjectSnapshotDeleted {
		t.Errorf("expected deletion event last, got %v", subjects)
	}
	if f.hub.events[len(f.hub.events)-1] != broadcast.EventSnapshotDeleted {
		t.Errorf("expected deletion broadcast last, got %v", f.hub.events)
	}
}

func TestSnapshotService_Errors(t *testing.T) {
	snaps := NewSnapshotService(newMockStore(), nil, nil, nil)
	ctx := context.Background()

	if _, err := snaps.Get(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := snaps.Delete(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := snaps.Recompute(ctx, uuid.NewString(), false); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	noStore := NewSnapshotService(nil, nil, nil, nil)
	list, err := noStore.List(ctx)
	if err != nil || len(list) != 0 {
		t.Errorf("expected empty list without store, got %v %v", list, err)
	}
	if _, err := noStore.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
}

func TestSnapshotService_NotFoundDoesNotTripBreaker(t *testing.T) {
	snaps := NewSnapshotService(newMockStore(), nil, nil, nil)
	for range 20 {
		_, _ = snaps.Get(context.Background(), uuid.NewString())
	}
	if _, err := snaps.List(context.Background()); err != nil {
		t.Fatalf("breaker opened on not-found lookups: %v", err)
	}
}
