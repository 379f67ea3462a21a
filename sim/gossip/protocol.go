// Package gossip implements asynchronous gossip learning on top of the sim
// client core. Every participant trains, periodically pushes its model to one
// random peer, and merges each model it receives while idle into its own.
package gossip

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/learning-sim/learning-sim/sim"
)

// Name is the algorithm name used in configuration files.
const Name = "gossip"

// Protocol holds the timing parameters of one gossip run.
type Protocol struct {
	period     float64
	testPeriod float64
	duration   float64
	rounds     int
	stop       sim.StopMode
	busy       sim.BusyPolicy
}

// New builds the gossip protocol from a resolved configuration.
func New(cfg sim.Config) (*Protocol, error) {
	if !sim.IsValidBusyPolicy(cfg.BusyPolicy) {
		return nil, fmt.Errorf("gossip: unknown busy_policy %q", cfg.BusyPolicy)
	}
	return &Protocol{
		period:     cfg.Period,
		testPeriod: cfg.TestPeriod,
		duration:   cfg.Duration,
		rounds:     cfg.Rounds,
		stop:       cfg.Stop,
		busy:       sim.BusyPolicy(cfg.BusyPolicy),
	}, nil
}

func (p *Protocol) Name() string               { return Name }
func (p *Protocol) BusyPolicy() sim.BusyPolicy { return p.busy }

// Handlers binds the gossip event kinds; the core supplies the rest.
func (p *Protocol) Handlers() map[sim.EventKind]sim.HandlerFunc {
	return map[sim.EventKind]sim.HandlerFunc{
		sim.KindInit:          p.initClient,
		sim.KindFinishTrain:   p.finishTrain,
		sim.KindIncomingModel: p.onIncomingModel,
		sim.KindDisseminate:   p.disseminate,
		sim.KindTest:          p.test,
	}
}

// Bootstrap starts every participant at time 0.
func (p *Protocol) Bootstrap(s *sim.Simulator) []sim.Event {
	events := make([]sim.Event, 0, len(s.Clients()))
	for _, c := range s.Clients() {
		events = append(events, sim.NewEvent(0, c.Index, sim.KindInit, nil))
	}
	return events
}

// Finished reports whether c has trained the configured number of rounds.
// Clients never finish in duration mode.
func (p *Protocol) Finished(c *sim.Client) bool {
	return p.stop == sim.StopRounds && c.Round >= p.rounds
}

func (p *Protocol) initClient(c *sim.Client, ev sim.Event) error {
	c.Round = 0
	if _, err := c.Schedule(0, sim.KindStartTrain, nil); err != nil {
		return err
	}
	if err := p.scheduleTick(c, ev, sim.KindDisseminate, p.period); err != nil {
		return err
	}
	return p.scheduleTick(c, ev, sim.KindTest, p.testPeriod)
}

// scheduleTick schedules the next periodic event if it still falls within the
// run. A non-positive period disables the tick.
func (p *Protocol) scheduleTick(c *sim.Client, ev sim.Event, kind sim.EventKind, period float64) error {
	if period <= 0 || ev.Time+period > p.duration {
		return nil
	}
	_, err := c.Schedule(period, kind, nil)
	return err
}

func (p *Protocol) finishTrain(c *sim.Client, ev sim.Event) error {
	res, ok := ev.Payload.(sim.TrainResult)
	if !ok {
		return fmt.Errorf("finish_train payload %T", ev.Payload)
	}
	c.Model = res.Model
	c.Round++
	if p.Finished(c) {
		c.Logf("finished after %d rounds", c.Round)
		return c.SetState(sim.StateFinished)
	}
	return c.SetState(sim.StateAvailable)
}

func (p *Protocol) onIncomingModel(c *sim.Client, ev sim.Event) error {
	d, ok := ev.Payload.(sim.ModelDelivery)
	if !ok {
		return fmt.Errorf("incoming_model payload %T", ev.Payload)
	}
	c.Logf("received model %s from %d", d.Model, d.From)
	if ev.Time > p.duration {
		return nil
	}
	if err := c.SetState(sim.StateAggregating); err != nil {
		return err
	}

	models := []string{d.Model, c.Model}
	rounds := []int{roundsOf(d.Metadata), c.Round}
	weights := weightsFor(rounds)
	c.Round = max(rounds[0], rounds[1])
	c.Logf("will aggregate and train %v", models)
	agg, err := c.AggregateModels(models, weights)
	if err != nil {
		return err
	}
	c.Model = agg
	_, err = c.Schedule(0, sim.KindStartTrain, nil)
	return err
}

func (p *Protocol) disseminate(c *sim.Client, ev sim.Event) error {
	if c.Round > 0 {
		peer, err := c.Sim().RandomPeer(c.Index)
		if err != nil {
			logrus.Warnf("[t=%.3f] client %d has nobody to gossip with: %v", ev.Time, c.Index, err)
		} else {
			if err := c.SendModel(peer, c.Model, map[string]any{"rounds": c.Round}); err != nil {
				return err
			}
			c.Logf("will send model %s to %d", c.Model, peer)
		}
	}
	return p.scheduleTick(c, ev, sim.KindDisseminate, p.period)
}

func (p *Protocol) test(c *sim.Client, ev sim.Event) error {
	if c.Round > 0 {
		switch c.State {
		case sim.StateAvailable, sim.StateFinished:
			name, err := c.TestModel()
			if err != nil {
				return err
			}
			c.Logf("tested model as %s", name)
		default:
			logrus.Warnf("[t=%.3f] client %d skipped test while %s", ev.Time, c.Index, c.State)
		}
	}
	return p.scheduleTick(c, ev, sim.KindTest, p.testPeriod)
}

// weightsFor weights each model by the rounds behind it.
func weightsFor(rounds []int) []float64 {
	total := 0
	for _, r := range rounds {
		total += r
	}
	weights := make([]float64, len(rounds))
	for i, r := range rounds {
		if total == 0 {
			weights[i] = 1 / float64(len(rounds))
			continue
		}
		weights[i] = float64(r) / float64(total)
	}
	return weights
}

func roundsOf(metadata map[string]any) int {
	switch v := metadata["rounds"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
