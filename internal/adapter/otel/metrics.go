package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pertforge"

// Metrics holds the PertForge metric instruments.
type Metrics struct {
	SchedulesComputed  metric.Int64Counter
	ScheduleFailures   metric.Int64Counter
	CacheHits          metric.Int64Counter
	SnapshotsPersisted metric.Int64Counter
	ComputeDuration    metric.Float64Histogram
	TasksPerSchedule   metric.Int64Histogram
}

// NewMetrics creates all instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.SchedulesComputed, err = meter.Int64Counter("pertforge.schedules.computed",
		metric.WithDescription("Schedules computed successfully")); err != nil {
		return nil, err
	}
	if m.ScheduleFailures, err = meter.Int64Counter("pertforge.schedules.failed",
		metric.WithDescription("Schedule requests rejected, by error kind")); err != nil {
		return nil, err
	}
	if m.CacheHits, err = meter.Int64Counter("pertforge.cache.hits",
		metric.WithDescription("Schedule requests served from cache")); err != nil {
		return nil, err
	}
	if m.SnapshotsPersisted, err = meter.Int64Counter("pertforge.snapshots.persisted",
		metric.WithDescription("Snapshots written to the store")); err != nil {
		return nil, err
	}
	if m.ComputeDuration, err = meter.Float64Histogram("pertforge.compute.duration_seconds",
		metric.WithDescription("Time spent computing a schedule"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.TasksPerSchedule, err = meter.Int64Histogram("pertforge.schedule.tasks",
		metric.WithDescription("Number of tasks per computed schedule")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordFailure counts a rejected request under its error kind.
func (m *Metrics) RecordFailure(ctx context.Context, kind string) {
	if kind == "" {
		kind = "internal"
	}
	m.ScheduleFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
