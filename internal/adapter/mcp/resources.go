package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	snapshotsURI      = "pertforge://snapshots"
	snapshotURIPrefix = snapshotsURI + "/"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			snapshotsURI,
			"Snapshot List",
			mcplib.WithResourceDescription("Stored schedule snapshots, newest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleSnapshotsResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			snapshotURIPrefix+"{id}",
			"Snapshot",
			mcplib.WithTemplateDescription("A stored schedule snapshot with its input and result"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleSnapshotResource,
	)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSnapshotsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return jsonContents(req.Params.URI, map[string]string{"error": "snapshot store not configured"})
	}
	list, err := s.deps.Snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, list)
}

func (s *Server) handleSnapshotResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Snapshots == nil {
		return jsonContents(req.Params.URI, map[string]string{"error": "snapshot store not configured"})
	}
	snap, err := s.deps.Snapshots.Get(ctx, strings.TrimPrefix(req.Params.URI, snapshotURIPrefix))
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, snap)
}
