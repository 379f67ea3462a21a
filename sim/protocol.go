package sim

import (
	"fmt"
	"sort"
)

// HandlerFunc reacts to one event addressed to client c.
// Returning an error aborts the run.
type HandlerFunc func(c *Client, ev Event) error

// BusyPolicy says what happens to an incoming model while its receiver is
// training or aggregating. Every protocol must pick one explicitly.
type BusyPolicy string

const (
	// BusyDrop discards the model; the sender is not notified.
	BusyDrop BusyPolicy = "drop"
	// BusyQueue buffers the model and replays it once the receiver is available.
	BusyQueue BusyPolicy = "queue"
)

// IsValidBusyPolicy reports whether name is a known busy policy.
func IsValidBusyPolicy(name string) bool {
	return name == string(BusyDrop) || name == string(BusyQueue)
}

// Protocol is the pluggable behavior layered on the fixed client core.
// The core owns start_train, start_transfer and finish_outgoing_transfer;
// a protocol binds the remaining kinds it needs.
type Protocol interface {
	Name() string
	// Handlers is the EventKind → handler table, read once by NewSimulator.
	Handlers() map[EventKind]HandlerFunc
	// Bootstrap returns the events that start the run.
	Bootstrap(s *Simulator) []Event
	// Finished reports whether c has reached the protocol's round limit.
	Finished(c *Client) bool
	BusyPolicy() BusyPolicy
}

// ProtocolFactory builds a protocol from a resolved configuration.
type ProtocolFactory func(cfg Config) (Protocol, error)

// protocols is filled by init() functions of protocol sub-packages
// (e.g. sim/gossip/register.go), which breaks the sim ↔ variant import cycle.
var protocols = map[string]ProtocolFactory{}

// RegisterProtocol makes a protocol available to NewProtocol under name.
// Panics on duplicate registration, which can only happen through a wiring bug.
func RegisterProtocol(name string, factory ProtocolFactory) {
	if _, exists := protocols[name]; exists {
		panic(fmt.Sprintf("RegisterProtocol: %q registered twice", name))
	}
	protocols[name] = factory
}

// NewProtocol builds the protocol registered under cfg.Algorithm.
func NewProtocol(cfg Config) (Protocol, error) {
	factory, ok := protocols[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q; registered: %v", cfg.Algorithm, RegisteredProtocols())
	}
	return factory(cfg)
}

// RegisteredProtocols returns the sorted names of all registered protocols.
func RegisteredProtocols() []string {
	names := make([]string, 0, len(protocols))
	for name := range protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
