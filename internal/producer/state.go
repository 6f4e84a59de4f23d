package producer

// State is the producer session lifecycle state.
type State string

// Producer states.
const (
	StateIdle      State = "idle"      // Not bound
	StateListening State = "listening" // Bound, waiting for a consumer
	StateConnected State = "connected" // Consumer accepted, handshake done
	StateServing   State = "serving"   // Publishing frames
	StateClosed    State = "closed"    // Terminal, rendezvous released
)

// Stats are cumulative counters over the session lifetime.
type Stats struct {
	Connections uint64 `json:"connections" doc:"Consumers accepted"`
	Published   uint64 `json:"published" doc:"Frames handed to a consumer"`
	Skipped     uint64 `json:"skipped" doc:"Frames dropped because they could not be exported"`
}
