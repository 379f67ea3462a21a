package sim

import (
	"bytes"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsPerRun(t *testing.T) {
	m := NewMetrics()
	m.eventDispatched(KindStartTrain)
	m.eventDispatched(KindStartTrain)
	m.eventDispatched(KindTest)
	m.taskRegistered("train")
	m.transferStarted()
	m.transferCompleted(2.5)
	m.simEnded(42)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.eventsDispatched.WithLabelValues("start_train")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.transfersCompleted))

	summary, err := m.Summary()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"start_train": 2, "test": 1}, summary.EventsDispatched)
	assert.Equal(t, map[string]float64{"train": 1}, summary.TasksRegistered)
	assert.Equal(t, 1.0, summary.TransfersStarted)
	assert.Equal(t, 42.0, summary.SimEndedTime)

	// a second run starts from zero
	other, err := NewMetrics().Summary()
	require.NoError(t, err)
	assert.Empty(t, other.EventsDispatched)
}

func TestMetrics_WriteTextAndPrint(t *testing.T) {
	m := NewMetrics()
	m.modelDropped()
	m.transferCompleted(1)

	var text bytes.Buffer
	require.NoError(t, m.WriteText(&text))
	assert.Contains(t, text.String(), "learning_sim_models_dropped_total 1")
	assert.Contains(t, text.String(), "# TYPE learning_sim_transfer_duration_sim_seconds histogram")

	summary, err := m.Summary()
	require.NoError(t, err)
	var out bytes.Buffer
	summary.Print(&out)
	assert.Contains(t, out.String(), "=== Simulation Metrics ===")
	assert.Contains(t, out.String(), "Models Dropped       : 1")
}
