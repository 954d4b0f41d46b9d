// ABOUTME: MCP resource implementations for liftlog.
// ABOUTME: Provides liftlog://summary with sync state, recent logs and records.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/liftlog/internal/models"
)

const summaryURI = "liftlog://summary"

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         summaryURI,
		Name:        "Training Summary",
		Description: "Sync state, the last 10 workout logs and current personal records",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

// Resource handlers

func (s *Server) handleSummaryResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	status, err := s.app.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	recent := []*models.WorkoutLog{}
	recs := []*models.PersonalRecord{}
	if status.SignedIn {
		logs, err := s.app.Workouts.List(status.UID)
		if err != nil {
			return nil, fmt.Errorf("failed to list workouts: %w", err)
		}
		recent = newestFirst(logs, 10)

		if recs, err = s.app.Records.ListForUser(status.UID); err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
	}

	result := map[string]interface{}{
		"generated_at":     time.Now().Format(time.RFC3339),
		"status":           status,
		"recent_workouts":  recent,
		"personal_records": recs,
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      summaryURI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
