package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/learning-sim/learning-sim/sim/dag"
)

// ClientState is the lifecycle phase of a participant.
type ClientState int

const (
	StateIdle ClientState = iota
	StateTraining
	StateAvailable
	StateAggregating
	StateFinished
)

func (s ClientState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraining:
		return "training"
	case StateAvailable:
		return "available"
	case StateAggregating:
		return "aggregating"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("ClientState(%d)", int(s))
	}
}

// Client is the fixed core shared by every protocol: training, sending and
// aggregating models, and recording each step as a compute task.
// Only handlers addressed to a client mutate it.
type Client struct {
	Index int
	Round int
	// Model is the name of the task that produced the current own model, "" before the first training.
	Model      string
	LatestTask *dag.Task
	State      ClientState
	Speed      float64

	sim     *Simulator
	bw      *BandwidthScheduler
	pending []Event // incoming models held back by the queue busy policy
}

func newClient(s *Simulator, index int, speed, bandwidth float64) *Client {
	c := &Client{
		Index: index,
		Speed: speed,
		sim:   s,
	}
	c.bw = newBandwidthScheduler(s, index, bandwidth)
	return c
}

// Sim returns the simulator this client belongs to.
func (c *Client) Sim() *Simulator { return c.sim }

// Bandwidth returns the client's bandwidth scheduler.
func (c *Client) Bandwidth() *BandwidthScheduler { return c.bw }

// PendingModels returns how many incoming models wait for the client to become available.
func (c *Client) PendingModels() int { return len(c.pending) }

// TrainTime is the simulated duration of one local training step.
// A speed of 0 means training is instantaneous.
func (c *Client) TrainTime() float64 {
	if c.Speed == 0 {
		return 0
	}
	l := c.sim.config.Learning
	return l.AugmentationFactor * float64(l.LocalSteps) * float64(l.BatchSize) * (c.Speed / 1000)
}

// Schedule enqueues an event for this client delay time units from now.
func (c *Client) Schedule(delay float64, kind EventKind, payload any) (EventID, error) {
	return c.sim.Schedule(NewEvent(c.sim.clock+delay, c.Index, kind, payload))
}

// SetState moves the client to state. Becoming available replays incoming
// models queued while the client was busy, at the current time.
func (c *Client) SetState(state ClientState) error {
	c.State = state
	if state != StateAvailable || len(c.pending) == 0 {
		return nil
	}
	queued := c.pending
	c.pending = nil
	for _, ev := range queued {
		if _, err := c.Schedule(0, KindIncomingModel, ev.Payload); err != nil {
			return fmt.Errorf("replaying queued model: %w", err)
		}
	}
	c.Logf("replaying %d queued model(s)", len(queued))
	return nil
}

// StartTrain registers a train task on top of the own model and schedules
// finish_train after TrainTime.
func (c *Client) StartTrain(ev Event) error {
	name, err := c.sim.rng.TaskName(string(dag.KindTrain))
	if err != nil {
		return err
	}
	data := map[string]any{"round": c.Round, "peer": c.Index}
	var inputs []string
	if c.Model != "" {
		data["model"] = c.Model
		inputs = []string{c.Model}
	}
	if err := c.AddComputeTask(dag.NewTask(name, dag.KindTrain, data), inputs); err != nil {
		return err
	}
	if err := c.SetState(StateTraining); err != nil {
		return err
	}
	_, err = c.Schedule(c.TrainTime(), KindFinishTrain, TrainResult{Model: name})
	return err
}

// SendModel asks the core to start transferring model to participant to.
func (c *Client) SendModel(to int, model string, metadata map[string]any) error {
	if to == c.Index {
		return fmt.Errorf("%w: client %d sending to itself", ErrInvalidTransfer, c.Index)
	}
	if metadata == nil {
		metadata = make(map[string]any)
	}
	_, err := c.Schedule(0, KindStartTransfer, TransferRequest{To: to, Model: model, Metadata: metadata})
	return err
}

// StartTransfer hands a TransferRequest to the bandwidth scheduler.
func (c *Client) StartTransfer(ev Event) error {
	req, ok := ev.Payload.(TransferRequest)
	if !ok {
		return fmt.Errorf("%w: %s payload %T", ErrInvalidTransfer, ev.Kind, ev.Payload)
	}
	_, err := c.bw.AddTransfer(req.To, c.sim.config.Network.ModelSize, req.Model, req.Metadata)
	return err
}

// FinishOutgoingTransfer completes the transfer carried by ev. Completions
// superseded by a reschedule, or for a transfer that is already done, are ignored.
func (c *Client) FinishOutgoingTransfer(ev Event) error {
	t, ok := ev.Payload.(*Transfer)
	if !ok || t == nil {
		return fmt.Errorf("%w: %s payload %T", ErrInvalidTransfer, ev.Kind, ev.Payload)
	}
	if t.done || t.event != ev.ID() {
		c.sim.metrics.staleCompletion()
		logrus.Debugf("[t=%.3f] ignoring stale completion of transfer %d", c.sim.clock, t.ID)
		return nil
	}
	t.event = 0
	_, err := c.bw.OnOutgoingTransferComplete(t)
	return err
}

// AggregateModels registers an aggregate task over models and returns its name.
// Weights, when given, must match models one to one.
func (c *Client) AggregateModels(models []string, weights []float64) (string, error) {
	if len(weights) > 0 && len(weights) != len(models) {
		return "", fmt.Errorf("aggregating %d models with %d weights", len(models), len(weights))
	}
	name, err := c.sim.rng.TaskName(string(dag.KindAggregate))
	if err != nil {
		return "", err
	}
	data := map[string]any{"models": models, "round": c.Round, "peer": c.Index}
	if len(weights) > 0 {
		data["weights"] = weights
	}
	if err := c.AddComputeTask(dag.NewTask(name, dag.KindAggregate, data), models); err != nil {
		return "", err
	}
	return name, nil
}

// TestModel registers a test task consuming the own model and makes it the new
// own model. It returns the test task's name.
func (c *Client) TestModel() (string, error) {
	if c.Model == "" {
		return "", fmt.Errorf("client %d has no model to test", c.Index)
	}
	name, err := c.sim.rng.TaskName(string(dag.KindTest))
	if err != nil {
		return "", err
	}
	data := map[string]any{"model": c.Model, "time": c.sim.clock, "peer": c.Index, "rounds": c.Round}
	if err := c.AddComputeTask(dag.NewTask(name, dag.KindTest, data), []string{c.Model}); err != nil {
		return "", err
	}
	c.Model = name
	return name, nil
}

// AddComputeTask registers task in the run's workflow graph and records it as
// the client's latest task.
func (c *Client) AddComputeTask(task *dag.Task, inputs []string) error {
	if err := c.sim.dag.Register(task, inputs); err != nil {
		return fmt.Errorf("client %d: %w", c.Index, err)
	}
	c.LatestTask = task
	c.sim.metrics.taskRegistered(string(task.Kind))
	return nil
}

// Logf logs at info level with the simulated time and client index.
func (c *Client) Logf(format string, args ...any) {
	logrus.Infof("[t=%.3f] client %d: %s", c.sim.clock, c.Index, fmt.Sprintf(format, args...))
}
