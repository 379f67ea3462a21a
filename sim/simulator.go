// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/learning-sim/learning-sim/sim/dag"
	"github.com/learning-sim/learning-sim/sim/trace"
)

// Simulator is the core object that holds simulation time, the participants,
// the workflow graph and the event loop.
// A Simulator is single-threaded and runs once; build a new one per run.
type Simulator struct {
	clock float64
	queue eventQueue
	// pending maps scheduled-but-not-dispatched events to their heap slot for Cancel
	pending map[EventID]*queueItem
	nextID  EventID

	handlers map[EventKind]HandlerFunc
	clients  []*Client
	protocol Protocol
	config   Config

	dag     *dag.WorkflowDAG
	rng     *PartitionedRNG
	trace   *trace.SimulationTrace
	metrics *Metrics

	nextTransferID int
	dispatched     uint64
	hasRun         bool
	stopWhen       func(*Simulator) bool
}

// NewSimulator validates cfg and wires the client core and the protocol's
// handlers. The protocol's incoming_model handler is wrapped by its busy policy.
func NewSimulator(cfg Config, protocol Protocol) (*Simulator, error) {
	if protocol == nil {
		return nil, errors.New("NewSimulator: protocol must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !IsValidBusyPolicy(string(protocol.BusyPolicy())) {
		return nil, fmt.Errorf("protocol %s declares unknown busy policy %q", protocol.Name(), protocol.BusyPolicy())
	}

	level := trace.TraceLevel(cfg.TraceLevel)
	if level == "" {
		level = trace.TraceLevelNone
	}
	s := &Simulator{
		queue:    make(eventQueue, 0),
		pending:  make(map[EventID]*queueItem),
		handlers: make(map[EventKind]HandlerFunc),
		protocol: protocol,
		config:   cfg,
		dag:      dag.New(),
		rng:      NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		trace:    trace.NewSimulationTrace(trace.TraceConfig{Level: level}),
		metrics:  NewMetrics(),
	}

	s.clients = make([]*Client, cfg.Participants)
	for i := range s.clients {
		s.clients[i] = newClient(s, i, cfg.SpeedOf(i), cfg.BandwidthOf(i))
	}

	core := map[EventKind]HandlerFunc{
		KindStartTrain:             (*Client).StartTrain,
		KindStartTransfer:          (*Client).StartTransfer,
		KindFinishOutgoingTransfer: (*Client).FinishOutgoingTransfer,
	}
	for _, kind := range []EventKind{KindStartTrain, KindStartTransfer, KindFinishOutgoingTransfer} {
		if err := s.RegisterHandler(kind, core[kind]); err != nil {
			return nil, err
		}
	}

	variant := protocol.Handlers()
	for _, kind := range sortedKinds(variant) {
		handler := variant[kind]
		if kind == KindIncomingModel {
			handler = s.guardBusy(handler)
		}
		if err := s.RegisterHandler(kind, handler); err != nil {
			return nil, fmt.Errorf("protocol %s: %w", protocol.Name(), err)
		}
	}
	return s, nil
}

// RegisterHandler binds kind to handler. Each kind has exactly one handler.
func (s *Simulator) RegisterHandler(kind EventKind, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", kind)
	}
	if _, exists := s.handlers[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, kind)
	}
	s.handlers[kind] = handler
	return nil
}

// Schedule enqueues ev and returns its insertion sequence.
// Events in the past, for unknown participants or without a handler are rejected.
func (s *Simulator) Schedule(ev Event) (EventID, error) {
	if math.IsNaN(ev.Time) || math.IsInf(ev.Time, 0) || ev.Time < s.clock {
		return 0, fmt.Errorf("%w: %s at now=%.3f", ErrInvalidTime, ev, s.clock)
	}
	if ev.Target < 0 || ev.Target >= len(s.clients) {
		return 0, fmt.Errorf("%w: %d (have %d)", ErrUnknownParticipant, ev.Target, len(s.clients))
	}
	if _, ok := s.handlers[ev.Kind]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnhandledEvent, ev.Kind)
	}
	s.nextID++
	ev.id = s.nextID
	item := &queueItem{ev: ev}
	s.queue.push(item)
	s.pending[ev.id] = item
	return ev.id, nil
}

// Cancel removes a pending event. It returns false if id was never scheduled
// or has already been dispatched or cancelled.
func (s *Simulator) Cancel(id EventID) bool {
	item, ok := s.pending[id]
	if !ok {
		return false
	}
	s.queue.remove(item)
	delete(s.pending, id)
	return true
}

// StopWhen installs an extra stop predicate checked before every dispatch.
func (s *Simulator) StopWhen(pred func(*Simulator) bool) {
	s.stopWhen = pred
}

// Run schedules the protocol's bootstrap events and processes the queue until
// it drains, the stop condition holds, or a handler fails.
func (s *Simulator) Run() error {
	if s.hasRun {
		return ErrAlreadyRun
	}
	s.hasRun = true

	for _, ev := range s.protocol.Bootstrap(s) {
		if _, err := s.Schedule(ev); err != nil {
			return fmt.Errorf("bootstrapping %s: %w", s.protocol.Name(), err)
		}
	}
	logrus.Infof("[t=%.3f] Starting %s with %d participants", s.clock, s.protocol.Name(), len(s.clients))

	for {
		next := s.queue.peek()
		if next == nil {
			break
		}
		if s.shouldStop(next.ev) {
			logrus.Debugf("[t=%.3f] Stop condition reached before %s", s.clock, next.ev)
			break
		}
		item := s.queue.popNext()
		delete(s.pending, item.ev.id)
		ev := item.ev

		s.clock = ev.Time
		s.dispatched++
		s.metrics.eventDispatched(ev.Kind)
		if s.trace.RecordsEvents() {
			s.trace.RecordEvent(trace.EventRecord{
				Seq:    uint64(ev.id),
				Time:   ev.Time,
				Target: ev.Target,
				Kind:   string(ev.Kind),
				Detail: describePayload(ev.Payload),
			})
		}
		logrus.Debugf("[t=%.3f] Executing %s on client %d", s.clock, ev.Kind, ev.Target)

		if err := s.handlers[ev.Kind](s.clients[ev.Target], ev); err != nil {
			s.metrics.simEnded(s.clock)
			return &RunError{Time: ev.Time, Kind: ev.Kind, Target: ev.Target, Err: err}
		}
	}

	s.metrics.simEnded(s.clock)
	logrus.Infof("[t=%.3f] Simulation ended after %d events, %d tasks", s.clock, s.dispatched, s.dag.Len())
	return nil
}

func (s *Simulator) shouldStop(next Event) bool {
	if s.stopWhen != nil && s.stopWhen(s) {
		return true
	}
	switch s.config.Stop {
	case StopRounds:
		return s.allFinished()
	default:
		return next.Time > s.config.Duration
	}
}

func (s *Simulator) allFinished() bool {
	for _, c := range s.clients {
		if !s.protocol.Finished(c) {
			return false
		}
	}
	return true
}

// guardBusy applies the busy policy in front of an incoming_model handler.
func (s *Simulator) guardBusy(next HandlerFunc) HandlerFunc {
	policy := s.protocol.BusyPolicy()
	return func(c *Client, ev Event) error {
		if c.State == StateAvailable {
			return next(c, ev)
		}
		switch policy {
		case BusyQueue:
			c.pending = append(c.pending, ev)
			s.metrics.modelQueued()
			c.Logf("queued incoming model while %s (%d waiting)", c.State, len(c.pending))
		default:
			s.metrics.modelDropped()
			if d, ok := ev.Payload.(ModelDelivery); ok {
				logrus.Warnf("[t=%.3f] client %d dropped model %s from %d while %s", s.clock, c.Index, d.Model, d.From, c.State)
			}
		}
		return nil
	}
}

// RandomPeer draws a participant other than exclude from the peers subsystem.
func (s *Simulator) RandomPeer(exclude int) (int, error) {
	n := len(s.clients)
	if exclude >= 0 && exclude < n {
		n--
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d participant(s)", ErrNoPeers, len(s.clients))
	}
	peer := s.rng.ForSubsystem(SubsystemPeers).Intn(n)
	if exclude >= 0 && peer >= exclude {
		peer++
	}
	return peer, nil
}

// Now returns the current simulated time.
func (s *Simulator) Now() float64 { return s.clock }

// Clients returns the participants indexed by id.
func (s *Simulator) Clients() []*Client { return s.clients }

// Client returns participant idx.
func (s *Simulator) Client(idx int) (*Client, error) {
	if idx < 0 || idx >= len(s.clients) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParticipant, idx)
	}
	return s.clients[idx], nil
}

func (s *Simulator) DAG() *dag.WorkflowDAG         { return s.dag }
func (s *Simulator) Trace() *trace.SimulationTrace { return s.trace }
func (s *Simulator) Metrics() *Metrics             { return s.metrics }
func (s *Simulator) Config() Config                { return s.config }
func (s *Simulator) RNG() *PartitionedRNG          { return s.rng }
func (s *Simulator) Protocol() Protocol            { return s.protocol }

// Pending returns the number of scheduled events not yet dispatched.
func (s *Simulator) Pending() int { return s.queue.Len() }

// Dispatched returns the number of events handled so far.
func (s *Simulator) Dispatched() uint64 { return s.dispatched }

func sortedKinds(handlers map[EventKind]HandlerFunc) []EventKind {
	return slices.Sorted(maps.Keys(handlers))
}

func describePayload(p any) string {
	switch v := p.(type) {
	case nil:
		return ""
	case TrainResult:
		return "model=" + v.Model
	case TransferRequest:
		return fmt.Sprintf("to=%d model=%s", v.To, v.Model)
	case ModelDelivery:
		return fmt.Sprintf("from=%d model=%s", v.From, v.Model)
	case *Transfer:
		return fmt.Sprintf("transfer=%d %d->%d", v.ID, v.Sender, v.Receiver)
	default:
		return fmt.Sprintf("%v", v)
	}
}
