// Package service implements business logic on top of ports.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/PertForge/internal/adapter/otel"
	"github.com/Strob0t/PertForge/internal/adapter/mermaid"
	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/logger"
	"github.com/Strob0t/PertForge/internal/port/broadcast"
	"github.com/Strob0t/PertForge/internal/port/cache"
	"github.com/Strob0t/PertForge/internal/port/database"
	"github.com/Strob0t/PertForge/internal/port/messagequeue"
	"github.com/Strob0t/PertForge/internal/resilience"
)

// ErrLimitExceeded is returned when a request is larger than the
// configured limits allow. It wraps domain.ErrValidation.
var ErrLimitExceeded = errors.New("limit exceeded")

const cacheKeyPrefix = "sched:"

// Request is one schedule computation.
type Request struct {
	Name  string             `json:"name,omitempty"`
	Tasks []schedule.RawTask `json:"tasks"`
	// ProjectStart defaults to schedule.DefaultProjectStart when nil.
	ProjectStart *int `json:"t0,omitempty"`
	// Persist defaults to the configured store.persist_default when nil.
	Persist     *bool `json:"persist,omitempty"`
	StrictEdges bool  `json:"strict_edges,omitempty"`
}

func (r *Request) start() int {
	if r.ProjectStart == nil {
		return schedule.DefaultProjectStart
	}
	return *r.ProjectStart
}

// Response is a computed schedule plus delivery metadata.
type Response struct {
	*schedule.Result
	Duration   int    `json:"duration"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Cached     bool   `json:"cached"`
}

// BatchItem is the outcome of one request in a batch. Exactly one of
// Response and Err is set.
type BatchItem struct {
	Response *Response
	Err      error
}

// ScheduleService computes schedules and fans out the results.
type ScheduleService struct {
	limits         config.Limits
	persistDefault bool
	cacheTTL       time.Duration

	cache   cache.Cache
	store   database.Store
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *cfotel.Metrics

	storeBreaker *resilience.Breaker
	queueBreaker *resilience.Breaker

	pool  *resilience.Pool
	group singleflight.Group
}

// ScheduleDeps are the optional collaborators of ScheduleService. Nil
// members disable the corresponding step.
type ScheduleDeps struct {
	Cache        cache.Cache
	CacheTTL     time.Duration
	Store        database.Store
	Queue        messagequeue.Queue
	Hub          broadcast.Broadcaster
	Metrics      *cfotel.Metrics
	StoreBreaker *resilience.Breaker
	QueueBreaker *resilience.Breaker
}

// NewScheduleService creates a ScheduleService.
func NewScheduleService(limits config.Limits, persistDefault bool, deps ScheduleDeps) *ScheduleService {
	s := &ScheduleService{
		limits:         limits,
		persistDefault: persistDefault,
		cacheTTL:       deps.CacheTTL,
		cache:          deps.Cache,
		store:          deps.Store,
		queue:          deps.Queue,
		hub:            deps.Hub,
		metrics:        deps.Metrics,
		storeBreaker:   deps.StoreBreaker,
		queueBreaker:   deps.QueueBreaker,
		pool:           resilience.NewPool(limits.ComputeParallel),
	}
	if s.storeBreaker == nil {
		s.storeBreaker = NewStoreBreaker(config.Defaults().Breaker)
	}
	if s.queueBreaker == nil {
		s.queueBreaker = resilience.NewBreaker(config.Defaults().Breaker.MaxFailures, config.Defaults().Breaker.Timeout)
	}
	return s
}

// NewStoreBreaker returns a breaker that ignores not-found and conflict
// errors, which report on the request rather than on store health.
func NewStoreBreaker(cfg config.Breaker) *resilience.Breaker {
	return resilience.NewBreaker(cfg.MaxFailures, cfg.Timeout, resilience.WithBenign(func(err error) bool {
		return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation)
	}))
}

// Compute schedules req. Scheduling errors are returned as-is; failures to
// persist, publish or broadcast are logged and do not fail the call.
func (s *ScheduleService) Compute(ctx context.Context, req Request) (*Response, error) {
	if err := s.checkLimits(&req); err != nil {
		s.recordFailure(ctx, "limit_exceeded")
		return nil, err
	}

	res, cached, err := s.compute(ctx, req.Tasks, req.start())
	if err != nil {
		s.recordFailure(ctx, schedule.Kind(err))
		return nil, err
	}

	resp := &Response{Result: res, Duration: res.Duration(), Cached: cached}
	if req.StrictEdges {
		strict := *res
		strict.CriticalEdges = schedule.StrictCriticalEdges(res)
		resp.Result = &strict
	}

	if s.shouldPersist(req.Persist) {
		snap := snapshot.New(req.Name, req.start(), req.Tasks, resp.Result)
		if err := s.persist(ctx, snap); err != nil {
			slog.WarnContext(ctx, "snapshot not persisted", "name", snap.Name, "error", err)
		} else {
			resp.SnapshotID = snap.ID
		}
	}

	s.announce(ctx, req.Name, resp)
	return resp, nil
}

// ComputeBatch computes every request with at most limits.BatchParallel in
// flight. Per-item failures are reported in the result; the returned error
// is set only when the batch itself is rejected or ctx is cancelled.
func (s *ScheduleService) ComputeBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("empty batch: %w", domain.ErrValidation)
	}
	if len(reqs) > s.limits.MaxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d: %w", ErrLimitExceeded, len(reqs), s.limits.MaxBatch, domain.ErrValidation)
	}

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.limits.BatchParallel, 1))
	for i := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := s.Compute(gctx, reqs[i])
			items[i] = BatchItem{Response: resp, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Render computes req and returns its Mermaid flowchart. Nothing is
// persisted or announced.
func (s *ScheduleService) Render(ctx context.Context, req Request, dates bool) (string, error) {
	if err := s.checkLimits(&req); err != nil {
		return "", err
	}
	res, _, err := s.compute(ctx, req.Tasks, req.start())
	if err != nil {
		s.recordFailure(ctx, schedule.Kind(err))
		return "", err
	}
	opts := mermaid.Options{Dates: dates}
	if req.StrictEdges {
		opts.CriticalEdges = schedule.StrictCriticalEdges(res)
	}
	return mermaid.Render(res, opts), nil
}

// compute returns the schedule for tasks from cache, or computes it once
// for all concurrent callers asking for the same input.
func (s *ScheduleService) compute(ctx context.Context, tasks []schedule.RawTask, t0 int) (*schedule.Result, bool, error) {
	key, err := cacheKey(tasks, t0)
	if err != nil {
		return nil, false, err
	}
	if res, ok := s.cached(ctx, key); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Add(ctx, 1)
		}
		return res, true, nil
	}

	// The shared computation outlives any single caller; each caller
	// stops waiting when its own context ends.
	ch := s.group.DoChan(key, func() (any, error) {
		ctx, span := cfotel.StartComputeSpan(context.WithoutCancel(ctx), len(tasks), t0)
		start := time.Now()
		var res *schedule.Result
		err := s.pool.Run(ctx, func() (err error) {
			res, err = schedule.Compute(tasks, t0)
			return err
		})
		cfotel.EndSpan(span, err)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.SchedulesComputed.Add(ctx, 1)
			s.metrics.ComputeDuration.Record(ctx, time.Since(start).Seconds())
			s.metrics.TasksPerSchedule.Record(ctx, int64(len(res.Order)))
		}
		s.remember(ctx, key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*schedule.Result), false, nil
	}
}

func (s *ScheduleService) cached(ctx context.Context, key string) (*schedule.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var res schedule.Result
	if err := json.Unmarshal(data, &res); err != nil {
		slog.WarnContext(ctx, "discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (s *ScheduleService) remember(ctx context.Context, key string, res *schedule.Result) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// cacheKey hashes the inputs that determine a schedule. Name, persistence
// and edge filtering are applied after the cached computation.
func cacheKey(tasks []schedule.RawTask, t0 int) (string, error) {
	data, err := json.Marshal(struct {
		Tasks []schedule.RawTask `json:"tasks"`
		T0    int                `json:"t0"`
	}{tasks, t0})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}

func (s *ScheduleService) checkLimits(req *Request) error {
	if len(req.Name) > snapshot.MaxNameLength {
		return fmt.Errorf("name exceeds %d characters: %w", snapshot.MaxNameLength, domain.ErrValidation)
	}
	if n := len(req.Tasks); n > s.limits.MaxTasks {
		return fmt.Errorf("%w: %d tasks exceeds %d: %w", ErrLimitExceeded, n, s.limits.MaxTasks, domain.ErrValidation)
	}
	for i := range req.Tasks {
		if n := len(req.Tasks[i].Predecessors); n > s.limits.MaxPredecessors {
			return fmt.Errorf("%w: task %q has %d predecessors, limit %d: %w",
				ErrLimitExceeded, req.Tasks[i].Name, n, s.limits.MaxPredecessors, domain.ErrValidation)
		}
	}
	return nil
}

func (s *ScheduleService) shouldPersist(flag *bool) bool {
	if s.store == nil {
		return false
	}
	if flag == nil {
		return s.persistDefault
	}
	return *flag
}

func (s *ScheduleService) persist(ctx context.Context, snap *snapshot.Snapshot) error {
	ctx, span := cfotel.StartStoreSpan(ctx, "put", snap.ID)
	err := s.storeBreaker.ExecuteContext(ctx, func(ctx context.Context) error {
		return s.store.Put(ctx, snap)
	})
	cfotel.EndSpan(span, err)
	if err == nil && s.metrics != nil {
		s.metrics.SnapshotsPersisted.Add(ctx, 1)
	}
	return err
}

func (s *ScheduleService) announce(ctx context.Context, name string, resp *Response) {
	payload := messagequeue.ScheduleComputedPayload{
		SnapshotID:    resp.SnapshotID,
		Name:          name,
		RequestID:     logger.RequestID(ctx),
		TasksCount:    len(resp.Order),
		ProjectStart:  resp.ProjectStart,
		ProjectFinish: resp.ProjectFinish,
		CriticalPath:  resp.CriticalPath,
		ComputedAt:    time.Now().UTC(),
	}
	publish(ctx, s.queue, s.queueBreaker, messagequeue.SubjectScheduleComputed, payload)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, broadcast.EventScheduleComputed, payload)
	}
}

func (s *ScheduleService) recordFailure(ctx context.Context, kind string) {
	if s.metrics != nil {
		s.metrics.RecordFailure(ctx, kind)
	}
}

// publish sends payload on subject through b. Failures are logged.
func publish(ctx context.Context, q messagequeue.Queue, b *resilience.Breaker, subject string, payload any) {
	if q == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		return
	}
	if err := b.ExecuteContext(ctx, func(ctx context.Context) error {
		return q.Publish(ctx, subject, data)
	}); err != nil {
		slog.WarnContext(ctx, "publish failed", "subject", subject, "error", err)
	}
}
