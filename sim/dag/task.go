// Package dag holds the workflow graph of compute work produced by a simulation.
// It has no dependencies on sim/: tasks carry opaque data and name references only.
package dag

// Kind identifies the compute function a task stands for.
type Kind string

const (
	KindTrain     Kind = "train"
	KindAggregate Kind = "aggregate"
	KindTest      Kind = "test"
)

// Task is a single unit of compute work in the workflow.
// Inputs and outputs are wired by WorkflowDAG.Register and never edited afterwards.
type Task struct {
	Name string
	Kind Kind
	Data map[string]any

	inputs  []*Task
	outputs []*Task
}

// NewTask creates an unregistered task.
func NewTask(name string, kind Kind, data map[string]any) *Task {
	return &Task{Name: name, Kind: kind, Data: data}
}

// Inputs returns the tasks this task depends on, in declaration order.
func (t *Task) Inputs() []*Task {
	return append([]*Task(nil), t.inputs...)
}

// Outputs returns the tasks that depend on this task, in registration order.
func (t *Task) Outputs() []*Task {
	return append([]*Task(nil), t.outputs...)
}

// IsSource reports whether the task has no inputs.
func (t *Task) IsSource() bool { return len(t.inputs) == 0 }

// IsSink reports whether no registered task consumes this one (yet).
func (t *Task) IsSink() bool { return len(t.outputs) == 0 }

func (t *Task) String() string {
	return string(t.Kind) + ":" + t.Name
}

func names(tasks []*Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}
