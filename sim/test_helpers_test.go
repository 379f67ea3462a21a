package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// stubProtocol lets tests bind arbitrary handlers and bootstrap events
// without pulling in a real learning algorithm.
type stubProtocol struct {
	handlers  map[EventKind]HandlerFunc
	bootstrap []Event
	busy      BusyPolicy
	finished  func(*Client) bool
}

func (p *stubProtocol) Name() string                        { return "stub" }
func (p *stubProtocol) Handlers() map[EventKind]HandlerFunc { return p.handlers }
func (p *stubProtocol) Bootstrap(*Simulator) []Event        { return p.bootstrap }
func (p *stubProtocol) BusyPolicy() BusyPolicy              { return p.busy }

func (p *stubProtocol) Finished(c *Client) bool {
	if p.finished == nil {
		return false
	}
	return p.finished(c)
}

// testConfig returns a small configuration: n participants with
// capacity 100, model size 100 and a train time of 1.6.
func testConfig(n int) Config {
	cfg := DefaultConfig()
	cfg.Algorithm = "stub"
	cfg.Participants = n
	cfg.Duration = 1000
	cfg.Network = NetworkConfig{ModelSize: 100, Bandwidth: 100}
	cfg.Compute = ComputeConfig{Speed: 10}
	return cfg
}

// recorder collects the (time, client) pairs seen by a handler.
type recorder struct {
	times   []float64
	targets []int
	labels  []any
}

func (r *recorder) handle(c *Client, ev Event) error {
	r.times = append(r.times, ev.Time)
	r.targets = append(r.targets, c.Index)
	r.labels = append(r.labels, ev.Payload)
	return nil
}

// finishTrain is a minimal finish_train handler: adopt the model, become available, count a round.
func finishTrain(c *Client, ev Event) error {
	c.Model = ev.Payload.(TrainResult).Model
	c.Round++
	return c.SetState(StateAvailable)
}

func newTestSimulator(t *testing.T, cfg Config, p *stubProtocol) *Simulator {
	t.Helper()
	if p.busy == "" {
		p.busy = BusyDrop
	}
	s, err := NewSimulator(cfg, p)
	require.NoError(t, err)
	return s
}

// availableAll marks every client available so incoming models pass the busy guard.
func availableAll(s *Simulator) {
	for _, c := range s.Clients() {
		c.State = StateAvailable
	}
}
