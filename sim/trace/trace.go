package trace

import (
	"encoding/json"
	"fmt"
	"io"
)

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransfers captures completed model transfers only.
	TraceLevelTransfers TraceLevel = "transfers"
	// TraceLevelEvents captures every dispatched event as well as transfers.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelTransfers: true,
	TraceLevelEvents:    true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation run.
type SimulationTrace struct {
	Config    TraceConfig      `json:"-"`
	Events    []EventRecord    `json:"events"`
	Transfers []TransferRecord `json:"transfers"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Events:    make([]EventRecord, 0),
		Transfers: make([]TransferRecord, 0),
	}
}

// RecordsEvents reports whether dispatched events should be recorded.
// Safe on a nil trace.
func (st *SimulationTrace) RecordsEvents() bool {
	return st != nil && st.Config.Level == TraceLevelEvents
}

// RecordsTransfers reports whether completed transfers should be recorded.
func (st *SimulationTrace) RecordsTransfers() bool {
	return st != nil && (st.Config.Level == TraceLevelEvents || st.Config.Level == TraceLevelTransfers)
}

// RecordEvent appends a dispatched-event record.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	st.Events = append(st.Events, record)
}

// RecordTransfer appends a completed-transfer record.
func (st *SimulationTrace) RecordTransfer(record TransferRecord) {
	st.Transfers = append(st.Transfers, record)
}

// WriteJSON writes the collected records as indented JSON.
func (st *SimulationTrace) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	return nil
}
