// Package trace provides time-ordered trace recording for simulation runs.
// This package has no dependencies on sim/ or sim/dag/; it stores pure data types.
package trace

// EventRecord captures a single dispatched event.
type EventRecord struct {
	Seq    uint64  `json:"seq"`
	Time   float64 `json:"time"`
	Target int     `json:"target"`
	Kind   string  `json:"kind"`
	Detail string  `json:"detail,omitempty"`
}

// TransferRecord captures a completed model transfer between two participants.
type TransferRecord struct {
	Sender   int     `json:"sender"`
	Receiver int     `json:"receiver"`
	Model    string  `json:"model"`
	Bytes    float64 `json:"bytes"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	// Reschedules counts how many times contention changed the completion time.
	Reschedules int `json:"reschedules"`
}

// Duration returns the simulated time the transfer took.
func (r TransferRecord) Duration() float64 {
	return r.End - r.Start
}
