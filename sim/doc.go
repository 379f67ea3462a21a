// Package sim provides the discrete-event engine for simulating decentralized
// learning sessions.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: Event kinds and payloads that drive the simulation
//   - simulator.go: The event loop, scheduling, cancellation and stop rules
//   - client.go: The participant core (train, send, aggregate, test)
//   - bandwidth.go: Fair sharing of link capacity between concurrent transfers
//
// # Architecture
//
// The sim package defines the engine and the Protocol interface; concrete
// learning algorithms live in sub-packages:
//   - sim/gossip/: Asynchronous gossip learning
//   - sim/dag/: Workflow graph of compute tasks emitted by a run
//   - sim/trace/: Event and transfer trace recording
//
// Protocol sub-packages register their factories via init() functions that call
// RegisterProtocol; callers build a run with NewProtocol and NewSimulator.
//
// # Determinism
//
// All randomness flows through PartitionedRNG. Two runs with the same seed and
// configuration dispatch the same events and emit the same workflow graph.
package sim
