package dag

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTask     = errors.New("duplicate task name")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycle             = errors.New("cycle detected")
	ErrInconsistentEdges = errors.New("inconsistent input/output edges")
	ErrInvalidTask       = errors.New("invalid task")
)

// WorkflowDAG owns every task of one simulation run, keyed by name.
// Tasks are only ever added; insertion order is kept for deterministic output.
// Acyclicity holds by construction: a task may only depend on tasks registered before it.
type WorkflowDAG struct {
	tasks map[string]*Task
	order []*Task
}

// New creates an empty WorkflowDAG.
func New() *WorkflowDAG {
	return &WorkflowDAG{tasks: make(map[string]*Task)}
}

// Register adds task to the graph with the given input task names.
// Duplicate names in inputs collapse to one edge. On error the graph is unchanged.
func (d *WorkflowDAG) Register(task *Task, inputs []string) error {
	if task == nil || task.Name == "" {
		return fmt.Errorf("%w: task must have a name", ErrInvalidTask)
	}
	if _, exists := d.tasks[task.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.Name)
	}
	if len(task.inputs) > 0 || len(task.outputs) > 0 {
		return fmt.Errorf("%w: %s is already wired", ErrInvalidTask, task.Name)
	}

	deps := make([]*Task, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		if seen[name] {
			continue
		}
		seen[name] = true
		dep, ok := d.tasks[name]
		if !ok {
			return fmt.Errorf("%w: %s requires %s", ErrUnknownDependency, task.Name, name)
		}
		deps = append(deps, dep)
	}

	// All checks passed; wire both directions.
	for _, dep := range deps {
		dep.outputs = append(dep.outputs, task)
		task.inputs = append(task.inputs, dep)
	}
	d.tasks[task.Name] = task
	d.order = append(d.order, task)
	return nil
}

// Get returns the task registered under name.
func (d *WorkflowDAG) Get(name string) (*Task, bool) {
	t, ok := d.tasks[name]
	return t, ok
}

// Len returns the number of registered tasks.
func (d *WorkflowDAG) Len() int {
	return len(d.order)
}

// Tasks returns all tasks in insertion order.
func (d *WorkflowDAG) Tasks() []*Task {
	return append([]*Task(nil), d.order...)
}

// SourceTasks returns the tasks without any input.
func (d *WorkflowDAG) SourceTasks() []*Task {
	out := make([]*Task, 0)
	for _, t := range d.order {
		if t.IsSource() {
			out = append(out, t)
		}
	}
	return out
}

// SinkTasks returns the tasks without any output.
func (d *WorkflowDAG) SinkTasks() []*Task {
	out := make([]*Task, 0)
	for _, t := range d.order {
		if t.IsSink() {
			out = append(out, t)
		}
	}
	return out
}

// CountByKind returns the number of tasks per kind.
func (d *WorkflowDAG) CountByKind() map[Kind]int {
	counts := make(map[Kind]int)
	for _, t := range d.order {
		counts[t.Kind]++
	}
	return counts
}

// TopologicalOrder returns the tasks so that every task follows all of its inputs.
// Ties are broken by insertion order, so the result is deterministic.
func (d *WorkflowDAG) TopologicalOrder() ([]*Task, error) {
	inDegree := make(map[*Task]int, len(d.order))
	queue := make([]*Task, 0)
	for _, t := range d.order {
		inDegree[t] = len(t.inputs)
		if len(t.inputs) == 0 {
			queue = append(queue, t)
		}
	}

	result := make([]*Task, 0, len(d.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)
		for _, out := range current.outputs {
			inDegree[out]--
			if inDegree[out] == 0 {
				queue = append(queue, out)
			}
		}
	}

	if len(result) != len(d.order) {
		return nil, fmt.Errorf("%w: %d of %d tasks unreachable in topological sort", ErrCycle, len(d.order)-len(result), len(d.order))
	}
	return result, nil
}

// validateAcyclic runs a DFS over input edges. Only needed for graphs that did
// not come through Register, i.e. deserialized ones.
func (d *WorkflowDAG) validateAcyclic() error {
	visited := make(map[*Task]bool)
	onStack := make(map[*Task]bool)

	var dfs func(t *Task) error
	dfs = func(t *Task) error {
		visited[t] = true
		onStack[t] = true
		for _, in := range t.inputs {
			if !visited[in] {
				if err := dfs(in); err != nil {
					return err
				}
			} else if onStack[in] {
				return fmt.Errorf("%w: involving tasks %s and %s", ErrCycle, t.Name, in.Name)
			}
		}
		onStack[t] = false
		return nil
	}

	for _, t := range d.order {
		if !visited[t] {
			if err := dfs(t); err != nil {
				return err
			}
		}
	}
	return nil
}
