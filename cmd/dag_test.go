package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learning-sim/learning-sim/sim/dag"
)

func TestInspectDAG_PrintsShapeAndLayout(t *testing.T) {
	layoutPath := filepath.Join(t.TempDir(), "layout.json")
	var buf bytes.Buffer

	err := inspectDAG(&buf, filepath.Join("..", "testdata", "workflow_small.json"), 3, layoutPath)

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Tasks   : 5 (train 3, aggregate 1, test 1)")
	assert.Contains(t, out, "Sources : 2")
	assert.Contains(t, out, "  test:test_b")

	raw, err := os.ReadFile(layoutPath)
	require.NoError(t, err)
	var layout dag.Layout
	require.NoError(t, json.Unmarshal(raw, &layout))
	assert.Equal(t, []string{"train_a", "train_b", "agg_a"}, layout.Nodes)
	assert.Equal(t, -1, layout.Layers["agg_a"])
}

func TestInspectDAG_RejectsBrokenGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	broken := `[{"name":"a","kind":"train","inputs":[],"outputs":["b"]},{"name":"b","kind":"test","inputs":[],"outputs":[]}]`
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o644))

	err := inspectDAG(&bytes.Buffer{}, path, 0, "")

	assert.ErrorIs(t, err, dag.ErrInconsistentEdges)
}

func TestInspectDAG_MissingFile(t *testing.T) {
	err := inspectDAG(&bytes.Buffer{}, filepath.Join(t.TempDir(), "nope.json"), 0, "")

	assert.Error(t, err)
}
