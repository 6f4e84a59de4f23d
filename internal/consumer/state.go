package consumer

// State is the consumer session lifecycle state.
type State string

// Consumer states.
const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateLooping    State = "looping"
	StateClosed     State = "closed"
)

// Stats are cumulative counters over the session lifetime.
type Stats struct {
	Attempts uint64 `json:"attempts" doc:"Dials made"`
	Consumed uint64 `json:"consumed" doc:"Frames visited successfully"`
	Failed   uint64 `json:"failed" doc:"Frames the visitor rejected"`
}
