package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.computeScheduleTool(),
		s.renderMermaidTool(),
		s.listSnapshotsTool(),
		s.getSnapshotTool(),
	)
}

var taskItemSchema = map[string]any{
	"type":     "object",
	"required": []string{"name"},
	"properties": map[string]any{
		"name":         map[string]any{"type": "string"},
		"duration":     map[string]any{"type": "number"},
		"optimistic":   map[string]any{"type": "number"},
		"most_likely":  map[string]any{"type": "number"},
		"pessimistic":  map[string]any{"type": "number"},
		"predecessors": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

func scheduleArgs() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithArray("tasks",
			mcplib.Required(),
			mcplib.Description("Tasks with name, duration (or optimistic/most_likely/pessimistic) and predecessors"),
			mcplib.Items(taskItemSchema),
		),
		mcplib.WithNumber("t0",
			mcplib.Description("Project start offset, default 1"),
		),
		mcplib.WithBoolean("strict_edges",
			mcplib.Description("Only report critical edges without slack between the two tasks"),
		),
	}
}

func (s *Server) computeScheduleTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Compute a CPM/PERT schedule: dates, slack and the critical path"),
		mcplib.WithString("name", mcplib.Description("Optional name stored with the snapshot")),
		mcplib.WithBoolean("persist", mcplib.Description("Store the result as a snapshot")),
	}, scheduleArgs()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool("compute_schedule", opts...),
		Handler: s.handleComputeSchedule,
	}
}

func (s *Server) renderMermaidTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Render a schedule as a Mermaid flowchart with the critical path highlighted"),
		mcplib.WithBoolean("dates", mcplib.Description("Label nodes with duration, ES, EF and slack")),
	}, scheduleArgs()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool("render_mermaid", opts...),
		Handler: s.handleRenderMermaid,
	}
}

func (s *Server) listSnapshotsTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcplib.NewTool("list_snapshots",
			mcplib.WithDescription("List stored schedule snapshots, newest first"),
		),
		Handler: s.handleListSnapshots,
	}
}

func (s *Server) getSnapshotTool() mcpserver.ServerTool {
	return mcpserver.ServerTool{
		Tool: mcplib.NewTool("get_snapshot",
			mcplib.WithDescription("Get a stored schedule snapshot by ID"),
			mcplib.WithString("snapshot_id",
				mcplib.Required(),
				mcplib.Description("The snapshot ID to look up"),
			),
		),
		Handler: s.handleGetSnapshot,
	}
}

// requestFromArgs builds a schedule request from tool arguments.
func requestFromArgs(args map[string]any) (service.Request, error) {
	var req service.Request
	raw, ok := args["tasks"]
	if !ok {
		return req, fmt.Errorf("tasks is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return req, fmt.Errorf("tasks: %w", err)
	}
	if err := json.Unmarshal(data, &req.Tasks); err != nil {
		return req, fmt.Errorf("tasks must be an array of task objects: %w", err)
	}
	if name, ok := args["name"].(string); ok {
		req.Name = name
	}
	if t0, ok := args["t0"].(float64); ok {
		if t0 < 0 || t0 > schedule.MaxProjectStart {
			return req, fmt.Errorf("t0 must be between 0 and %d", schedule.MaxProjectStart)
		}
		if t0 != float64(int(t0)) {
			return req, fmt.Errorf("t0 must be an integer")
		}
		n := int(t0)
		req.ProjectStart = &n
	}
	if p, ok := args["persist"].(bool); ok {
		req.Persist = &p
	}
	if strict, ok := args["strict_edges"].(bool); ok {
		req.StrictEdges = strict
	}
	return req, nil
}

// scheduleError reports a scheduling failure with its kind so that the
// caller can tell input problems apart.
func scheduleError(err error) *mcplib.CallToolResult {
	if kind := schedule.Kind(err); kind != "" {
		return mcplib.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
	}
	return mcplib.NewToolResultErrorFromErr("schedule failed", err)
}

func (s *Server) handleComputeSchedule(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Schedules == nil {
		return mcplib.NewToolResultError("schedule service not configured"), nil
	}
	sreq, err := requestFromArgs(req.GetArguments())
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	resp, err := s.deps.Schedules.Compute(ctx, sreq)
	if err != nil {
		return scheduleError(err), nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal schedule", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleRenderMermaid(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Schedules == nil {
		return mcplib.NewToolResultError("schedule service not configured"), nil
	}
	args := req.GetArguments()
	sreq, err := requestFromArgs(args)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	dates, _ := args["dates"].(bool)
	diagram, err := s.deps.Schedules.Render(ctx, sreq, dates)
	if err != nil {
		return scheduleError(err), nil
	}
	return mcplib.NewToolResultText(diagram), nil
}

func (s *Server) handleListSnapshots(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return mcplib.NewToolResultError("snapshot store not configured"), nil
	}
	list, err := s.deps.Snapshots.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list snapshots", err), nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal snapshots", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetSnapshot(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return mcplib.NewToolResultError("snapshot store not configured"), nil
	}
	id, ok := req.GetArguments()["snapshot_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("snapshot_id is required"), nil
	}
	snap, err := s.deps.Snapshots.Get(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get snapshot %s", id), err), nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal snapshot", err), nil
	}
	return toolResultJSON(string(data)), nil
}
