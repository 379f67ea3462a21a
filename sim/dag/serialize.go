package dag

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
)

// TaskRecord is the flat, persisted form of a Task consumed by compute backends.
type TaskRecord struct {
	Name    string         `json:"name"`
	Kind    Kind           `json:"kind"`
	Data    map[string]any `json:"data"`
	Inputs  []string       `json:"inputs"`
	Outputs []string       `json:"outputs"`
}

// Serialize returns one record per task in insertion order.
func (d *WorkflowDAG) Serialize() []TaskRecord {
	records := make([]TaskRecord, 0, len(d.order))
	for _, t := range d.order {
		records = append(records, TaskRecord{
			Name:    t.Name,
			Kind:    t.Kind,
			Data:    maps.Clone(t.Data),
			Inputs:  names(t.inputs),
			Outputs: names(t.outputs),
		})
	}
	return records
}

// Deserialize rebuilds a graph from records produced by Serialize.
// Records may appear in any order; edges are resolved after all tasks exist.
// Unknown references, asymmetric edges and cycles are rejected.
func Deserialize(records []TaskRecord) (*WorkflowDAG, error) {
	d := New()
	for _, r := range records {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: record without a name", ErrInvalidTask)
		}
		if _, exists := d.tasks[r.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, r.Name)
		}
		t := NewTask(r.Name, r.Kind, maps.Clone(r.Data))
		d.tasks[t.Name] = t
		d.order = append(d.order, t)
	}

	// consumers[x] collects every task that lists x as an input.
	consumers := make(map[string][]string, len(records))
	for _, r := range records {
		t := d.tasks[r.Name]
		for _, in := range r.Inputs {
			dep, ok := d.tasks[in]
			if !ok {
				return nil, fmt.Errorf("%w: %s requires %s", ErrUnknownDependency, r.Name, in)
			}
			t.inputs = append(t.inputs, dep)
			consumers[in] = append(consumers[in], r.Name)
		}
		for _, out := range r.Outputs {
			next, ok := d.tasks[out]
			if !ok {
				return nil, fmt.Errorf("%w: %s feeds unknown task %s", ErrUnknownDependency, r.Name, out)
			}
			t.outputs = append(t.outputs, next)
		}
	}

	for _, r := range records {
		declared := slices.Clone(r.Outputs)
		derived := consumers[r.Name]
		slices.Sort(declared)
		slices.Sort(derived)
		if !slices.Equal(declared, derived) {
			return nil, fmt.Errorf("%w: %s declares outputs %v but is consumed by %v", ErrInconsistentEdges, r.Name, declared, derived)
		}
	}

	if err := d.validateAcyclic(); err != nil {
		return nil, err
	}
	return d, nil
}

// WriteJSON writes the serialized graph as an indented JSON array.
func (d *WorkflowDAG) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.Serialize()); err != nil {
		return fmt.Errorf("encoding workflow dag: %w", err)
	}
	return nil
}

// ReadJSON parses a graph written by WriteJSON.
func ReadJSON(r io.Reader) (*WorkflowDAG, error) {
	var records []TaskRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding workflow dag: %w", err)
	}
	return Deserialize(records)
}
