package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_DispatchesInTimeOrderWithFIFOTies(t *testing.T) {
	rec := &recorder{}
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{KindTest: rec.handle},
		bootstrap: []Event{
			NewEvent(5, 0, KindTest, "e"),
			NewEvent(1, 1, KindTest, "a"),
			NewEvent(3, 0, KindTest, "c"),
			NewEvent(1, 0, KindTest, "b"),
			NewEvent(3, 1, KindTest, "d"),
		},
	}
	s := newTestSimulator(t, testConfig(2), p)

	require.NoError(t, s.Run())

	assert.Equal(t, []float64{1, 1, 3, 3, 5}, rec.times)
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, rec.labels)
	assert.Equal(t, 5.0, s.Now())
	assert.Equal(t, uint64(5), s.Dispatched())
}

func TestSchedule_EventsScheduledDuringRunKeepOrder(t *testing.T) {
	rec := &recorder{}
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{
			KindInit: func(c *Client, ev Event) error {
				// GIVEN two events at the same future time, scheduled in this order
				if _, err := c.Schedule(2, KindTest, "first"); err != nil {
					return err
				}
				_, err := c.Schedule(2, KindTest, "second")
				return err
			},
			KindTest: rec.handle,
		},
		bootstrap: []Event{NewEvent(0, 0, KindInit, nil)},
	}
	s := newTestSimulator(t, testConfig(1), p)

	require.NoError(t, s.Run())

	assert.Equal(t, []any{"first", "second"}, rec.labels)
	assert.Equal(t, []float64{2, 2}, rec.times)
}

func TestSchedule_RejectsPastAndInvalidTimes(t *testing.T) {
	s := newTestSimulator(t, testConfig(1), &stubProtocol{
		handlers: map[EventKind]HandlerFunc{KindTest: (&recorder{}).handle},
	})

	_, err := s.Schedule(NewEvent(-1, 0, KindTest, nil))
	assert.True(t, errors.Is(err, ErrInvalidTime), "got %v", err)

	_, err = s.Schedule(NewEvent(math.NaN(), 0, KindTest, nil))
	assert.True(t, errors.Is(err, ErrInvalidTime), "got %v", err)
	assert.Equal(t, 0, s.Pending())
}

func TestRun_SchedulingInThePastAbortsWithRunError(t *testing.T) {
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{
			KindTest: func(c *Client, ev Event) error {
				_, err := c.Schedule(-1, KindTest, nil)
				return err
			},
		},
		bootstrap: []Event{NewEvent(5, 0, KindTest, nil)},
	}
	s := newTestSimulator(t, testConfig(1), p)

	err := s.Run()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTime))
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, 5.0, runErr.Time)
	assert.Equal(t, KindTest, runErr.Kind)
	assert.Equal(t, 0, runErr.Target)
	assert.Contains(t, err.Error(), "[t=5.000] test on client 0")
}

func TestSchedule_RejectsUnhandledKindAndUnknownParticipant(t *testing.T) {
	s := newTestSimulator(t, testConfig(2), &stubProtocol{})

	_, err := s.Schedule(NewEvent(0, 0, KindDisseminate, nil))
	assert.True(t, errors.Is(err, ErrUnhandledEvent), "got %v", err)

	_, err = s.Schedule(NewEvent(0, 2, KindStartTrain, nil))
	assert.True(t, errors.Is(err, ErrUnknownParticipant), "got %v", err)

	_, err = s.Schedule(NewEvent(0, -1, KindStartTrain, nil))
	assert.True(t, errors.Is(err, ErrUnknownParticipant), "got %v", err)
}

func TestCancel_RemovesPendingEventOnly(t *testing.T) {
	rec := &recorder{}
	s := newTestSimulator(t, testConfig(1), &stubProtocol{
		handlers: map[EventKind]HandlerFunc{KindTest: rec.handle},
	})
	keep, err := s.Schedule(NewEvent(1, 0, KindTest, "keep"))
	require.NoError(t, err)
	drop, err := s.Schedule(NewEvent(2, 0, KindTest, "drop"))
	require.NoError(t, err)

	assert.True(t, s.Cancel(drop))
	assert.False(t, s.Cancel(drop), "second cancel must report false")
	assert.False(t, s.Cancel(EventID(999)))
	require.NoError(t, s.Run())

	assert.Equal(t, []any{"keep"}, rec.labels)
	assert.False(t, s.Cancel(keep), "dispatched events cannot be cancelled")
}

func TestRun_DurationModeStopsBeforeLaterEvents(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig(1)
	cfg.Duration = 100
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{KindTest: rec.handle},
		bootstrap: []Event{
			NewEvent(50, 0, KindTest, nil),
			NewEvent(100, 0, KindTest, nil),
			NewEvent(100.5, 0, KindTest, nil),
		},
	}
	s := newTestSimulator(t, cfg, p)

	require.NoError(t, s.Run())

	assert.Equal(t, []float64{50, 100}, rec.times)
	assert.Equal(t, 1, s.Pending())
}

func TestRun_RoundsModeStopsWhenEveryClientFinished(t *testing.T) {
	cfg := testConfig(2)
	cfg.Stop = StopRounds
	cfg.Rounds = 2
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{
			KindFinishTrain: func(c *Client, ev Event) error {
				if err := finishTrain(c, ev); err != nil {
					return err
				}
				if c.Round >= 2 {
					return c.SetState(StateFinished)
				}
				_, err := c.Schedule(0, KindStartTrain, nil)
				return err
			},
		},
		bootstrap: []Event{
			NewEvent(0, 0, KindStartTrain, nil),
			NewEvent(0, 1, KindStartTrain, nil),
		},
		finished: func(c *Client) bool { return c.State == StateFinished },
	}
	s := newTestSimulator(t, cfg, p)

	require.NoError(t, s.Run())

	for _, c := range s.Clients() {
		assert.Equal(t, 2, c.Round)
		assert.Equal(t, StateFinished, c.State)
	}
	assert.Equal(t, 4, s.DAG().Len())
}

func TestRun_StopWhenPredicate(t *testing.T) {
	rec := &recorder{}
	p := &stubProtocol{
		handlers:  map[EventKind]HandlerFunc{KindTest: rec.handle},
		bootstrap: []Event{NewEvent(1, 0, KindTest, nil), NewEvent(2, 0, KindTest, nil)},
	}
	s := newTestSimulator(t, testConfig(1), p)
	s.StopWhen(func(s *Simulator) bool { return s.Dispatched() >= 1 })

	require.NoError(t, s.Run())

	assert.Len(t, rec.times, 1)
}

func TestRun_OnlyOnce(t *testing.T) {
	s := newTestSimulator(t, testConfig(1), &stubProtocol{})

	require.NoError(t, s.Run())
	assert.True(t, errors.Is(s.Run(), ErrAlreadyRun))
}

func TestNewSimulator_RejectsDuplicateHandler(t *testing.T) {
	p := &stubProtocol{
		handlers: map[EventKind]HandlerFunc{KindStartTrain: (&recorder{}).handle},
		busy:     BusyDrop,
	}

	_, err := NewSimulator(testConfig(1), p)

	assert.True(t, errors.Is(err, ErrDuplicateHandler), "got %v", err)
}

func TestNewSimulator_RejectsInvalidSetup(t *testing.T) {
	_, err := NewSimulator(testConfig(1), nil)
	assert.Error(t, err)

	cfg := testConfig(1)
	cfg.Participants = 0
	_, err = NewSimulator(cfg, &stubProtocol{busy: BusyDrop})
	assert.Error(t, err)

	_, err = NewSimulator(testConfig(1), &stubProtocol{busy: "maybe"})
	assert.Error(t, err)
}

func TestRandomPeer_NeverSelf(t *testing.T) {
	s := newTestSimulator(t, testConfig(4), &stubProtocol{})

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		peer, err := s.RandomPeer(2)
		require.NoError(t, err)
		assert.NotEqual(t, 2, peer)
		assert.True(t, peer >= 0 && peer < 4)
		seen[peer] = true
	}
	assert.Len(t, seen, 3, "every other peer should be drawn eventually")
}

func TestRandomPeer_SingleParticipant(t *testing.T) {
	s := newTestSimulator(t, testConfig(1), &stubProtocol{})

	_, err := s.RandomPeer(0)

	assert.True(t, errors.Is(err, ErrNoPeers))
}

func TestRun_RecordsEventTrace(t *testing.T) {
	cfg := testConfig(1)
	cfg.TraceLevel = "events"
	p := &stubProtocol{
		handlers:  map[EventKind]HandlerFunc{KindFinishTrain: finishTrain},
		bootstrap: []Event{NewEvent(0, 0, KindStartTrain, nil)},
	}
	s := newTestSimulator(t, cfg, p)

	require.NoError(t, s.Run())

	events := s.Trace().Events
	require.Len(t, events, 2)
	assert.Equal(t, "start_train", events[0].Kind)
	assert.Equal(t, "finish_train", events[1].Kind)
	assert.InDelta(t, 1.6, events[1].Time, 1e-9)
	assert.Contains(t, events[1].Detail, "model=train_")
}
