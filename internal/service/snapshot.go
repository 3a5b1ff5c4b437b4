package service

import (
	"context"
	"fmt"
	"log/slog"

	cfotel "github.com/Strob0t/PertForge/internal/adapter/otel"
	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/logger"
	"github.com/Strob0t/PertForge/internal/port/broadcast"
	"github.com/Strob0t/PertForge/internal/port/database"
	"github.com/Strob0t/PertForge/internal/port/messagequeue"
	"github.com/Strob0t/PertForge/internal/resilience"
)

// ErrNoStore is returned by SnapshotService when no store is configured.
var ErrNoStore = fmt.Errorf("snapshot store not configured: %w", domain.ErrNotFound)

// SnapshotService reads and deletes stored schedules.
type SnapshotService struct {
	store     database.Store
	schedules *ScheduleService
	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	breaker   *resilience.Breaker
	qbreaker  *resilience.Breaker
}

// NewSnapshotService creates a SnapshotService. queue and hub may be nil.
func NewSnapshotService(store database.Store, schedules *ScheduleService, queue messagequeue.Queue, hub broadcast.Broadcaster) *SnapshotService {
	s := &SnapshotService{store: store, schedules: schedules, queue: queue, hub: hub}
	if schedules != nil {
		s.breaker, s.qbreaker = schedules.storeBreaker, schedules.queueBreaker
	} else {
		def := config.Defaults().Breaker
		s.breaker = NewStoreBreaker(def)
		s.qbreaker = resilience.NewBreaker(def.MaxFailures, def.Timeout)
	}
	return s
}

// List returns snapshot summaries, newest first.
func (s *SnapshotService) List(ctx context.Context) ([]snapshot.Summary, error) {
	if s.store == nil {
		return []snapshot.Summary{}, nil
	}
	var out []snapshot.Summary
	err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.store.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the snapshot with the given ID.
func (s *SnapshotService) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrNoStore
	}
	ctx, span := cfotel.StartStoreSpan(ctx, "get", id)
	var snap *snapshot.Snapshot
	err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		var err error
		snap, err = s.store.Get(ctx, id)
		return err
	})
	cfotel.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Delete removes a snapshot and announces the deletion.
func (s *SnapshotService) Delete(ctx context.Context, id string) error {
	if err := snapshot.ValidateID(id); err != nil {
		return err
	}
	if s.store == nil {
		return ErrNoStore
	}
	ctx, span := cfotel.StartStoreSpan(ctx, "delete", id)
	err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, id)
	})
	cfotel.EndSpan(span, err)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "snapshot deleted", "snapshot_id", id)
	payload := messagequeue.SnapshotDeletedPayload{SnapshotID: id, RequestID: logger.RequestID(ctx)}
	publish(ctx, s.queue, s.qbreaker, messagequeue.SubjectSnapshotDeleted, payload)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventSnapshotDeleted, payload)
	}
	return nil
}

// Recompute schedules the stored input of a snapshot again. The fresh
// result is returned and not stored.
func (s *SnapshotService) Recompute(ctx context.Context, id string, strictEdges bool) (*Response, error) {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.schedules == nil {
		return nil, fmt.Errorf("recompute %s: no schedule service", id)
	}
	t0 := snap.ProjectStart
	persist := false
	return s.schedules.Compute(ctx, Request{
		Name:         snap.Name,
		Tasks:        snap.Input,
		ProjectStart: &t0,
		Persist:      &persist,
		StrictEdges:  strictEdges,
	})
}
