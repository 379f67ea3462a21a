package sim

import "fmt"

// EventKind names what an event asks its target participant to do.
type EventKind string

const (
	KindInit                   EventKind = "init"
	KindStartTrain             EventKind = "start_train"
	KindFinishTrain            EventKind = "finish_train"
	KindStartTransfer          EventKind = "start_transfer"
	KindFinishOutgoingTransfer EventKind = "finish_outgoing_transfer"
	KindIncomingModel          EventKind = "incoming_model"
	KindDisseminate            EventKind = "disseminate"
	KindTest                   EventKind = "test"
)

// EventID is the insertion sequence assigned by Simulator.Schedule.
// It breaks ties between events with the same timestamp (FIFO).
type EventID uint64

// Event is an immutable request for a participant to act at a simulated time.
// Payload is opaque to the engine; handlers know the concrete type for their kind.
type Event struct {
	Time    float64
	Target  int
	Kind    EventKind
	Payload any

	id EventID
}

// NewEvent creates an event that has not been scheduled yet.
func NewEvent(time float64, target int, kind EventKind, payload any) Event {
	return Event{Time: time, Target: target, Kind: kind, Payload: payload}
}

// ID returns the insertion sequence, or 0 if the event was never scheduled.
func (e Event) ID() EventID {
	return e.id
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%.3f->%d", e.Kind, e.Time, e.Target)
}

// TrainResult is the payload of KindFinishTrain.
type TrainResult struct {
	Model string // name of the train task that just finished
}

// TransferRequest is the payload of KindStartTransfer.
type TransferRequest struct {
	To       int
	Model    string
	Metadata map[string]any
}

// ModelDelivery is the payload of KindIncomingModel.
type ModelDelivery struct {
	From     int
	Model    string
	Metadata map[string]any
}
