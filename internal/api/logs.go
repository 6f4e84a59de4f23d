package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/framelink/internal/api/models"
	"github.com/smazurov/framelink/internal/logging"
)

// registerLogRoutes registers the recent-log endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent logs",
		Description: "Most recent log entries kept in memory, oldest first.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.LogsInput) (*models.LogsResponse, error) {
		resp := &models.LogsResponse{}
		resp.Body.Entries = []models.LogEntryData{}

		buffer := logging.GetBuffer()
		if buffer == nil || input.Limit == 0 {
			return resp, nil
		}

		var entries []logging.LogEntry
		if input.Module == "" {
			entries = buffer.Tail(input.Limit)
		} else {
			for _, e := range buffer.ReadAll() {
				if e.Module == input.Module {
					entries = append(entries, e)
				}
			}
			if len(entries) > input.Limit {
				entries = entries[len(entries)-input.Limit:]
			}
		}

		for _, e := range entries {
			resp.Body.Entries = append(resp.Body.Entries, models.LogEntryData{
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		return resp, nil
	})
}
