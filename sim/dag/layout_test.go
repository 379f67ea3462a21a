package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_AssignsLayersBelowLowestInput(t *testing.T) {
	d := buildChain(t)

	layout := d.Layer(10)

	assert.Equal(t, map[string]int{"train_a": 0, "train_b": 0, "agg_a": -1, "test_a": -2}, layout.Layers)
	for _, task := range d.Tasks() {
		for _, in := range task.Inputs() {
			assert.Less(t, layout.Layers[task.Name], layout.Layers[in.Name])
		}
	}
}

func TestLayer_AlternatesPositionsWithinLayer(t *testing.T) {
	d := New()
	for _, name := range []string{"s0", "s1", "s2", "s3", "s4"} {
		require.NoError(t, d.Register(NewTask(name, KindTrain, nil), nil))
	}

	layout := d.Layer(5)

	xs := make([]int, 0)
	for _, name := range layout.Nodes {
		xs = append(xs, layout.Positions[name].X)
	}
	assert.Equal(t, []int{0, 1, -1, 2, -2}, xs)
}

func TestLayer_RespectsMaxNodes(t *testing.T) {
	d := buildChain(t)

	assert.Equal(t, []string{"train_a", "train_b"}, d.Layer(2).Nodes)
	assert.Empty(t, d.Layer(0).Nodes)
	assert.Empty(t, d.Layer(-3).Positions)
}

func TestLayer_EdgesPointToInputs(t *testing.T) {
	d := buildChain(t)

	layout := d.Layer(4)

	assert.ElementsMatch(t, []Edge{
		{From: "agg_a", To: "train_b"},
		{From: "agg_a", To: "train_a"},
		{From: "test_a", To: "agg_a"},
	}, layout.Edges)
}
