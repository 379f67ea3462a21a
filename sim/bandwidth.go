package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/learning-sim/learning-sim/sim/trace"
)

// Transfer is one model moving from a sender to a receiver.
// Remaining and Rate are only meaningful as of LastUpdate.
type Transfer struct {
	ID             int
	Sender         int
	Receiver       int
	Size           float64
	Model          string
	Metadata       map[string]any
	StartTime      float64
	Remaining      float64
	Rate           float64
	LastUpdate     float64
	CompletionTime float64
	Reschedules    int

	event    EventID // pending finish_outgoing_transfer, 0 once dispatched or done
	done     bool
	sender   *BandwidthScheduler
	receiver *BandwidthScheduler
}

// Done reports whether the transfer has completed.
func (t *Transfer) Done() bool { return t.done }

// BandwidthScheduler owns the transfers entering and leaving one participant.
// Concurrent transfers share capacity equally: a transfer's rate is the smaller
// of its sender's per-outgoing share and its receiver's per-incoming share.
type BandwidthScheduler struct {
	owner    int
	capacity float64
	outgoing []*Transfer
	incoming []*Transfer
	// knownPeers records the capacity of every peer this participant has exchanged a model with.
	knownPeers map[int]float64
	sim        *Simulator
}

func newBandwidthScheduler(s *Simulator, owner int, capacity float64) *BandwidthScheduler {
	return &BandwidthScheduler{
		owner:      owner,
		capacity:   capacity,
		outgoing:   make([]*Transfer, 0),
		incoming:   make([]*Transfer, 0),
		knownPeers: make(map[int]float64),
		sim:        s,
	}
}

// AddTransfer starts sending model to participant receiver and reallocates the
// capacity of every transfer sharing the sender's uplink or receiver's downlink.
func (b *BandwidthScheduler) AddTransfer(receiver int, size float64, model string, metadata map[string]any) (*Transfer, error) {
	if math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return nil, fmt.Errorf("%w: size %f", ErrInvalidTransfer, size)
	}
	if receiver == b.owner {
		return nil, fmt.Errorf("%w: client %d sending to itself", ErrInvalidTransfer, b.owner)
	}
	rc, err := b.sim.Client(receiver)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransfer, err)
	}
	to := rc.bw
	if b.capacity <= 0 || to.capacity <= 0 {
		return nil, fmt.Errorf("%w: %d (%.0f) -> %d (%.0f)", ErrStalledTransfer, b.owner, b.capacity, receiver, to.capacity)
	}

	now := b.sim.Now()
	b.sim.nextTransferID++
	t := &Transfer{
		ID:         b.sim.nextTransferID,
		Sender:     b.owner,
		Receiver:   receiver,
		Size:       size,
		Model:      model,
		Metadata:   metadata,
		StartTime:  now,
		Remaining:  size,
		LastUpdate: now,
		sender:     b,
		receiver:   to,
	}
	b.outgoing = append(b.outgoing, t)
	to.incoming = append(to.incoming, t)
	b.knownPeers[receiver] = to.capacity
	to.knownPeers[b.owner] = b.capacity
	b.sim.metrics.transferStarted()

	if err := reallocate(now, b.outgoing, to.incoming); err != nil {
		return nil, err
	}
	logrus.Debugf("[t=%.3f] transfer %d: %d -> %d model %s rate %.3f eta %.3f", now, t.ID, t.Sender, t.Receiver, model, t.Rate, t.CompletionTime)
	return t, nil
}

// OnOutgoingTransferComplete finishes t and delivers its model to the receiver.
// A second call for the same transfer is a no-op and returns false.
func (b *BandwidthScheduler) OnOutgoingTransferComplete(t *Transfer) (bool, error) {
	if t == nil || t.done {
		b.sim.metrics.staleCompletion()
		return false, nil
	}
	if t.sender != b {
		return false, fmt.Errorf("%w: transfer %d is not owned by client %d", ErrInvalidTransfer, t.ID, b.owner)
	}
	now := b.sim.Now()
	if t.event != 0 {
		b.sim.Cancel(t.event)
		t.event = 0
	}
	t.done = true
	t.Remaining = 0
	t.LastUpdate = now
	t.CompletionTime = now
	b.outgoing = removeTransfer(b.outgoing, t)
	t.receiver.incoming = removeTransfer(t.receiver.incoming, t)

	if err := reallocate(now, b.outgoing, t.receiver.incoming); err != nil {
		return true, err
	}

	delivery := ModelDelivery{From: t.Sender, Model: t.Model, Metadata: t.Metadata}
	if _, err := b.sim.Schedule(NewEvent(now, t.Receiver, KindIncomingModel, delivery)); err != nil {
		return true, fmt.Errorf("delivering model %s: %w", t.Model, err)
	}

	b.sim.metrics.transferCompleted(now - t.StartTime)
	if b.sim.trace.RecordsTransfers() {
		b.sim.trace.RecordTransfer(trace.TransferRecord{
			Sender:      t.Sender,
			Receiver:    t.Receiver,
			Model:       t.Model,
			Bytes:       t.Size,
			Start:       t.StartTime,
			End:         now,
			Reschedules: t.Reschedules,
		})
	}
	return true, nil
}

// reallocate brings every transfer in the given sets up to now, recomputes its
// fair share and moves its completion event accordingly.
func reallocate(now float64, sets ...[]*Transfer) error {
	seen := make(map[*Transfer]bool)
	for _, set := range sets {
		for _, t := range set {
			if seen[t] {
				continue
			}
			seen[t] = true
			if err := t.reschedule(now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Transfer) reschedule(now float64) error {
	s := t.sender.sim
	t.Remaining -= t.Rate * (now - t.LastUpdate)
	if t.Remaining < 0 {
		t.Remaining = 0
	}
	t.LastUpdate = now

	rate := fairShare(t)
	if rate <= 0 {
		return fmt.Errorf("%w: transfer %d %d -> %d", ErrStalledTransfer, t.ID, t.Sender, t.Receiver)
	}
	if t.event != 0 && rate == t.Rate {
		return nil
	}
	completion := now + t.Remaining/rate
	if t.event != 0 {
		s.Cancel(t.event)
		t.Reschedules++
		s.metrics.transferRescheduled()
	}
	t.Rate = rate
	t.CompletionTime = completion
	id, err := s.Schedule(NewEvent(completion, t.Sender, KindFinishOutgoingTransfer, t))
	if err != nil {
		return fmt.Errorf("scheduling completion of transfer %d: %w", t.ID, err)
	}
	t.event = id
	return nil
}

func fairShare(t *Transfer) float64 {
	up := t.sender.capacity / float64(len(t.sender.outgoing))
	down := t.receiver.capacity / float64(len(t.receiver.incoming))
	return math.Min(up, down)
}

func removeTransfer(set []*Transfer, t *Transfer) []*Transfer {
	return slices.DeleteFunc(set, func(o *Transfer) bool { return o == t })
}

// Capacity returns the link capacity in bytes per time unit.
func (b *BandwidthScheduler) Capacity() float64 { return b.capacity }

// Outgoing returns a copy of the in-flight transfers sent by this participant.
func (b *BandwidthScheduler) Outgoing() []*Transfer { return slices.Clone(b.outgoing) }

// Incoming returns a copy of the in-flight transfers addressed to this participant.
func (b *BandwidthScheduler) Incoming() []*Transfer { return slices.Clone(b.incoming) }

// KnownPeerBandwidth returns the capacity of peer as learned from a past exchange.
func (b *BandwidthScheduler) KnownPeerBandwidth(peer int) (float64, bool) {
	bw, ok := b.knownPeers[peer]
	return bw, ok
}
