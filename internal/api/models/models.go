package models

import "github.com/smazurov/framelink/internal/frames"

// Health models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	Modified  bool   `json:"modified,omitempty" doc:"Built from a dirty tree"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
	GStreamer bool   `json:"gstreamer" doc:"Built with the GStreamer source"`
}

type VersionResponse struct {
	Body VersionData
}

// Session models
type SessionData struct {
	Role       string            `json:"role" example:"producer" doc:"Session role: producer or consumer"`
	SessionID  string            `json:"session_id" doc:"Session identifier"`
	State      string            `json:"state" example:"serving" doc:"Current session state"`
	SocketPath string            `json:"socket_path" example:"/tmp/dmabuf_socket" doc:"Rendezvous socket"`
	Geometry   frames.Geometry   `json:"geometry" doc:"Agreed frame geometry"`
	Counters   map[string]uint64 `json:"counters" doc:"Cumulative session counters"`
}

type StatusResponse struct {
	Body SessionData
}

// Log models
type LogsInput struct {
	Limit  int    `query:"limit" default:"100" minimum:"0" maximum:"500" doc:"Maximum number of entries, newest last"`
	Module string `query:"module" doc:"Only entries from this module"`
}

type LogEntryData struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"producer" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntryData `json:"entries" doc:"Recent log entries"`
	}
}
