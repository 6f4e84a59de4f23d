package events

// Event type constants for kelindar/event.
const (
	TypeSessionStateChanged uint32 = iota + 1
	TypeFramePublished
	TypeFrameSkipped
	TypeFrameConsumed
	TypeFrameFailed
	TypeConfigReloaded
)

// Session roles.
const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStateChangedEvent is published on every session state transition.
type SessionStateChangedEvent struct {
	Role      string `json:"role" example:"producer" doc:"Session role"`
	SessionID string `json:"session_id" doc:"Session identifier"`
	From      string `json:"from" example:"listening" doc:"Previous state"`
	To        string `json:"to" example:"connected" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// FramePublishedEvent is published after a descriptor was handed to the consumer.
type FramePublishedEvent struct {
	SessionID  string `json:"session_id"`
	Sequence   uint64 `json:"sequence" doc:"Frames published on this connection, starting at 0"`
	BatchIndex uint64 `json:"batch_index" doc:"Index reported by the media pipeline"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for FramePublishedEvent.
func (e FramePublishedEvent) Type() uint32 { return TypeFramePublished }

// FrameSkippedEvent is published when the producer drops a frame it could not export.
type FrameSkippedEvent struct {
	SessionID  string `json:"session_id"`
	BatchIndex uint64 `json:"batch_index"`
	Reason     string `json:"reason" example:"geometry mismatch"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for FrameSkippedEvent.
func (e FrameSkippedEvent) Type() uint32 { return TypeFrameSkipped }

// FrameConsumedEvent is published after the consumer visited a frame successfully.
type FrameConsumedEvent struct {
	SessionID string `json:"session_id"`
	Index     uint64 `json:"index"`
	Bytes     uint64 `json:"bytes" doc:"Mapped region size"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for FrameConsumedEvent.
func (e FrameConsumedEvent) Type() uint32 { return TypeFrameConsumed }

// FrameFailedEvent is published when the consumer could not map or visit a frame.
type FrameFailedEvent struct {
	SessionID string `json:"session_id"`
	Index     uint64 `json:"index"`
	Code      string `json:"code" example:"VISITOR_FAILED"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for FrameFailedEvent.
func (e FrameFailedEvent) Type() uint32 { return TypeFrameFailed }

// ConfigReloadedEvent is published after the config file changed and was reapplied.
type ConfigReloadedEvent struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
