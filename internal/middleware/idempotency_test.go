package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestIdempotency(t *testing.T) {
	calls := 0
	status := http.StatusCreated
	h := Idempotency(&memCache{data: map[string][]byte{}}, time.Hour)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(calls) + `}`))
		}))

	do := func(method, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/v1/schedules", http.NoBody)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do(http.MethodPost, "k1")
	second := do(http.MethodPost, "k1")
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %q vs %q", second.Code, second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay marker")
	}

	do(http.MethodPost, "")
	do(http.MethodGet, "k1")
	if calls != 3 {
		t.Fatalf("requests without key or non-mutating should pass through, calls=%d", calls)
	}

	status = http.StatusInternalServerError
	do(http.MethodPost, "k2")
	do(http.MethodPost, "k2")
	if calls != 5 {
		t.Fatalf("5xx responses must not be replayed, calls=%d", calls)
	}
}
