// Package database defines the snapshot store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/PertForge/internal/domain/snapshot"
)

// Store persists schedule snapshots. Get and Delete return an error
// wrapping domain.ErrNotFound for unknown IDs.
type Store interface {
	Put(ctx context.Context, s *snapshot.Snapshot) error
	// List returns summaries newest first.
	List(ctx context.Context) ([]snapshot.Summary, error)
	Get(ctx context.Context, id string) (*snapshot.Snapshot, error)
	Delete(ctx context.Context, id string) error
}
