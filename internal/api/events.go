package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/framelink/internal/events"
)

// registerEventRoutes registers the session event stream. Per-frame success
// events are left out; they are visible through /metrics instead.
func (s *Server) registerEventRoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Session events",
		Description: "Server-Sent Events stream of session state changes, skipped and failed frames, and config reloads.",
		Tags:        []string{"events"},
		Security:    withAuth(),
	}, map[string]any{
		"session-state":   events.SessionStateChangedEvent{},
		"frame-skipped":   events.FrameSkippedEvent{},
		"frame-failed":    events.FrameFailedEvent{},
		"config-reloaded": events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubs := []func(){
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameSkippedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
