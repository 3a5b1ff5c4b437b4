// Package filestore implements the snapshot store as one JSON document per
// snapshot in a directory. It needs no database and suits single-node and
// CLI use.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
)

const (
	filePrefix = "project_"
	fileSuffix = ".json"
	timeLayout = "20060102T150405Z"
)

// Store keeps snapshots as files named project_<created>_<id>.json.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func fileName(s *snapshot.Snapshot) string {
	return filePrefix + s.CreatedAt.UTC().Format(timeLayout) + "_" + s.ID + fileSuffix
}

// Put writes the snapshot to a temporary file and renames it into place.
func (s *Store) Put(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.find(snap.ID); err == nil {
		return fmt.Errorf("put snapshot %s: %w", snap.ID, domain.ErrConflict)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.ID, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("put snapshot %s: %w", snap.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.ID, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, fileName(snap))); err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// List decodes every snapshot file. Unreadable files are skipped.
func (s *Store) List(ctx context.Context) ([]snapshot.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := []snapshot.Summary{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isSnapshotFile(e.Name()) {
			continue
		}
		snap, err := readFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, snap.Summary())
	}
	snapshot.SortNewestFirst(out)
	return out, nil
}

// Get returns the snapshot with the given ID.
func (s *Store) Get(_ context.Context, id string) (*snapshot.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.find(id)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	snap, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Delete removes the snapshot file with the given ID.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := snapshot.ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// find returns the path of the file holding id. id must already be
// validated so that it cannot contain glob or path characters.
func (s *Store) find(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*_"+id+fileSuffix))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", domain.ErrNotFound
	}
	return matches[0], nil
}

func isSnapshotFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

func readFile(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from ReadDir/Glob of the store dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}
