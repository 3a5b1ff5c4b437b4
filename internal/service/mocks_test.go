package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/port/messagequeue"
)

// mockStore implements database.Store in memory.
type mockStore struct {
	mu     sync.Mutex
	snaps  map[string]*snapshot.Snapshot
	putErr error
}

func newMockStore() *mockStore { return &mockStore{snaps: map[string]*snapshot.Snapshot{}} }

func (m *mockStore) Put(_ context.Context, s *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.snaps[s.ID]; ok {
		return fmt.Errorf("snapshot %s: %w", s.ID, domain.ErrConflict)
	}
	m.snaps[s.ID] = s
	return nil
}

func (m *mockStore) List(_ context.Context) ([]snapshot.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]snapshot.Summary, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s.Summary())
	}
	snapshot.SortNewestFirst(out)
	return out, nil
}

func (m *mockStore) Get(_ context.Context, id string) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[id]; !ok {
		return fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
	}
	delete(m.snaps, id)
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

type published struct {
	subject string
	data    []byte
}

// mockQueue implements messagequeue.Queue, recording published messages.
type mockQueue struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{subject, data})
	return nil
}

func (m *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.msgs))
	for i, p := range m.msgs {
		out[i] = p.subject
	}
	return out
}

// mockHub implements broadcast.Broadcaster.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (m *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
}

// mockCache implements cache.Cache.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var errStoreDown = errors.New("connection refused")

func testLimits() config.Limits {
	return config.Defaults().Limits
}
