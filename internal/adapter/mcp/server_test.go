package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	cfmcp "github.com/Strob0t/PertForge/internal/adapter/mcp"
	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/domain/snapshot"
	"github.com/Strob0t/PertForge/internal/service"
)

// --- Mocks ---

type mockSnapshotReader struct {
	snaps []*snapshot.Snapshot
	err   error
}

func (m *mockSnapshotReader) List(_ context.Context) ([]snapshot.Summary, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]snapshot.Summary, len(m.snaps))
	for i, s := range m.snaps {
		out[i] = s.Summary()
	}
	return out, nil
}

func (m *mockSnapshotReader) Get(_ context.Context, id string) (*snapshot.Snapshot, error) {
	for _, s := range m.snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
}

func newTestServer(t *testing.T, snaps cfmcp.SnapshotReader) *cfmcp.Server {
	t.Helper()
	schedules := service.NewScheduleService(config.Defaults().Limits, false, service.ScheduleDeps{})
	return cfmcp.NewServer(
		cfmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test", Version: "0.1.0"},
		cfmcp.ServerDeps{Schedules: schedules, Snapshots: snaps},
	)
}

func callTool(t *testing.T, s *cfmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := r.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

func exampleArgs() map[string]any {
	return map[string]any{
		"tasks": []any{
			map[string]any{"name": "A", "duration": 3.0},
			map[string]any{"name": "B", "duration": 2.0, "predecessors": []any{"A"}},
			map[string]any{"name": "C", "duration": 4.0, "predecessors": []any{"A"}},
			map[string]any{"name": "D", "duration": 1.0, "predecessors": []any{"B", "C"}},
		},
	}
}

// --- Tests ---

func TestServerStartStop(t *testing.T) {
	s := newTestServer(t, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.Addr() == nil {
		t.Fatal("expected bound address")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t, &mockSnapshotReader{})
	tools := s.MCPServer().ListTools()
	expected := []string{"compute_schedule", "render_mermaid", "list_snapshots", "get_snapshot"}
	if len(tools) != len(expected) {
		t.Errorf("expected %d tools, got %d", len(expected), len(tools))
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleComputeSchedule(t *testing.T) {
	s := newTestServer(t, nil)
	args := exampleArgs()
	args["t0"] = 0.0
	result := callTool(t, s, "compute_schedule", args)
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	var resp struct {
		ProjectFinish int      `json:"project_finish"`
		CriticalPath  []string `json:"critical_path"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.ProjectFinish != 7 || strings.Join(resp.CriticalPath, ",") != "A,C,D" {
		t.Errorf("unexpected schedule %+v", resp)
	}
}

func TestHandleComputeScheduleErrors(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing tasks", map[string]any{}, "tasks is required"},
		{"tasks not objects", map[string]any{"tasks": "A,B"}, "array of task objects"},
		{"fractional t0", map[string]any{"tasks": []any{}, "t0": 1.5}, "t0 must be an integer"},
		{"negative t0", map[string]any{"tasks": []any{}, "t0": -1.0}, "t0 must be between 0 and"},
		{"huge t0", map[string]any{"tasks": []any{}, "t0": 9.2e18}, "t0 must be between 0 and"},
		{
			"cycle",
			map[string]any{"tasks": []any{
				map[string]any{"name": "A", "duration": 1.0, "predecessors": []any{"B"}},
				map[string]any{"name": "B", "duration": 1.0, "predecessors": []any{"A"}},
			}},
			schedule.KindCycleDetected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "compute_schedule", tt.args)
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("expected %q in %q", tt.want, text)
			}
		})
	}
}

func TestHandleRenderMermaid(t *testing.T) {
	s := newTestServer(t, nil)
	result := callTool(t, s, "render_mermaid", exampleArgs())
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	if text := resultText(t, result); !strings.HasPrefix(text, "flowchart LR") {
		t.Errorf("unexpected diagram %q", text)
	}
}

func TestHandleSnapshots(t *testing.T) {
	res, err := schedule.Compute([]schedule.RawTask{{Name: "A", Duration: 2}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	snap := snapshot.New("one", 1, []schedule.RawTask{{Name: "A", Duration: 2}}, res)
	s := newTestServer(t, &mockSnapshotReader{snaps: []*snapshot.Snapshot{snap}})

	list := callTool(t, s, "list_snapshots", nil)
	if list.IsError {
		t.Fatalf("list_snapshots error: %v", list.Content)
	}
	var summaries []snapshot.Summary
	if err := json.Unmarshal([]byte(resultText(t, list)), &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].ID != snap.ID || summaries[0].ProjectDuration != 2 {
		t.Errorf("unexpected summaries %+v", summaries)
	}

	got := callTool(t, s, "get_snapshot", map[string]any{"snapshot_id": snap.ID})
	if got.IsError {
		t.Fatalf("get_snapshot error: %v", got.Content)
	}
	var decoded snapshot.Snapshot
	if err := json.Unmarshal([]byte(resultText(t, got)), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Name != "one" || decoded.Result.ProjectFinish != 2 {
		t.Errorf("unexpected snapshot %+v", decoded)
	}

	if r := callTool(t, s, "get_snapshot", map[string]any{"snapshot_id": "missing"}); !r.IsError {
		t.Error("expected error for unknown snapshot")
	}
	if r := callTool(t, s, "get_snapshot", nil); !r.IsError {
		t.Error("expected error for missing snapshot_id")
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := cfmcp.NewServer(cfmcp.ServerConfig{Name: "test", Version: "0.1.0"}, cfmcp.ServerDeps{})
	for _, name := range []string{"compute_schedule", "list_snapshots"} {
		if r := callTool(t, s, name, exampleArgs()); !r.IsError {
			t.Errorf("%s: expected error result when deps are nil", name)
		}
	}
}
