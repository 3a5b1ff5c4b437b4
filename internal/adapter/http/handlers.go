package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/PertForge/internal/service"
)

// Version is reported by GET /api/v1/.
var Version = "0.1.0"

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Schedules    *service.ScheduleService
	Snapshots    *service.SnapshotService
	Schemas      *Schemas
	MaxBodyBytes int64
	// Checks are run by the readiness probe, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every readiness check and reports 503 when any fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

// APIVersion reports the server version.
func (h *Handlers) APIVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// ComputeSchedule handles POST /api/v1/schedules.
func (h *Handlers) ComputeSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.Request](w, r, h.MaxBodyBytes, h.Schemas.Schedule)
	if !ok {
		return
	}
	resp, err := h.Schedules.Compute(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, "not found")
		return
	}
	status := http.StatusOK
	if resp.SnapshotID != "" {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/v1/snapshots/"+resp.SnapshotID)
	}
	writeJSON(w, status, resp)
}

type batchRequest struct {
	Requests []service.Request `json:"requests"`
}

type batchItem struct {
	Index  int               `json:"index"`
	Result *service.Response `json:"result,omitempty"`
	Error  *errorResponse    `json:"error,omitempty"`
	Status int               `json:"status"`
}

// ComputeBatch handles POST /api/v1/schedules/batch. Every item carries
// its own status; the response itself is 200 unless the batch is rejected.
func (h *Handlers) ComputeBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[batchRequest](w, r, h.MaxBodyBytes, h.Schemas.Batch)
	if !ok {
		return
	}
	items, err := h.Schedules.ComputeBatch(r.Context(), req.Requests)
	if err != nil {
		writeDomainError(w, r, err, "not found")
		return
	}
	out := make([]batchItem, len(items))
	for i, it := range items {
		out[i] = batchItem{Index: i, Result: it.Response, Status: http.StatusOK}
		if it.Err != nil {
			status, body := errorBody(it.Err, "not found")
			out[i].Status, out[i].Error = status, &body
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// RenderMermaid handles POST /api/v1/schedules/mermaid. Pass ?dates=true
// to label nodes with their dates.
func (h *Handlers) RenderMermaid(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.Request](w, r, h.MaxBodyBytes, h.Schemas.Schedule)
	if !ok {
		return
	}
	diagram, err := h.Schedules.Render(r.Context(), req, queryBool(r, "dates"))
	if err != nil {
		writeDomainError(w, r, err, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(diagram))
}

// RecomputeSnapshot handles POST /api/v1/snapshots/{id}/recompute.
func (h *Handlers) RecomputeSnapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Snapshots.Recompute(r.Context(), urlParam(r, "id"), queryBool(r, "strict_edges"))
	if err != nil {
		writeDomainError(w, r, err, "snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
