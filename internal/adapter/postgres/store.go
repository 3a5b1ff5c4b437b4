package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Put(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	input, err := json.Marshal(orEmpty(snap.Input))
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	result, err := json.Marshal(snap.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	sum := snap.Summary()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, name, created_at, t0, tasks_count, project_duration, critical_path, input_tasks, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snap.ID, snap.Name, snap.CreatedAt, snap.ProjectStart, sum.TasksCount, sum.ProjectDuration,
		orEmpty(snap.Result.CriticalPath), input, result)
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]snapshot.Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, t0, tasks_count, project_duration
		 FROM snapshots ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return orEmpty(out), nil
}

func (s *Store) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, t0, input_tasks, result FROM snapshots WHERE id = $1`, id)

	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, notFoundWrap(err, "get snapshot %s", id)
	}
	return snap, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := snapshot.ValidateID(id); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete snapshot %s", id)
}

func scanSummary(row scannable) (snapshot.Summary, error) {
	var sum snapshot.Summary
	var created time.Time
	if err := row.Scan(&sum.ID, &sum.Name, &created, &sum.ProjectStart, &sum.TasksCount, &sum.ProjectDuration); err != nil {
		return snapshot.Summary{}, err
	}
	sum.CreatedAt = created.UTC()
	return sum, nil
}

func scanSnapshot(row scannable) (*snapshot.Snapshot, error) {
	var (
		snap          snapshot.Snapshot
		input, result []byte
	)
	if err := row.Scan(&snap.ID, &snap.Name, &snap.CreatedAt, &snap.ProjectStart, &input, &result); err != nil {
		return nil, err
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	if err := json.Unmarshal(input, &snap.Input); err != nil {
		return nil, fmt.Errorf("decode input_tasks: %w", err)
	}
	snap.Result = &schedule.Result{}
	if err := json.Unmarshal(result, snap.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &snap, nil
}
