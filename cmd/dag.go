package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/learning-sim/learning-sim/sim/dag"
)

var (
	layoutNodes int    // Number of tasks to lay out, 0 to skip
	layoutOut   string // Layout JSON output path
)

// dagCmd groups commands working on workflow graphs written by run --dag-out
var dagCmd = &cobra.Command{
	Use:   "dag",
	Short: "Inspect workflow DAGs produced by a run",
}

var dagInspectCmd = &cobra.Command{
	Use:   "inspect <dag.json>",
	Short: "Validate a workflow DAG and print its shape",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := inspectDAG(os.Stdout, args[0], layoutNodes, layoutOut); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// inspectDAG loads path, which fails on unknown references, asymmetric edges
// or cycles, and prints the task counts, sources and sinks.
func inspectDAG(w io.Writer, path string, maxNodes int, layoutPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening workflow dag: %w", err)
	}
	defer f.Close()
	d, err := dag.ReadJSON(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, "=== Workflow DAG ===")
	counts := d.CountByKind()
	fmt.Fprintf(w, "Tasks   : %d (train %d, aggregate %d, test %d)\n",
		d.Len(), counts[dag.KindTrain], counts[dag.KindAggregate], counts[dag.KindTest])
	fmt.Fprintf(w, "Sources : %d\n", len(d.SourceTasks()))
	for _, t := range d.SourceTasks() {
		fmt.Fprintf(w, "  %s\n", t)
	}
	fmt.Fprintf(w, "Sinks   : %d\n", len(d.SinkTasks()))
	for _, t := range d.SinkTasks() {
		fmt.Fprintf(w, "  %s\n", t)
	}

	if maxNodes <= 0 || layoutPath == "" {
		return nil
	}
	out, err := os.Create(layoutPath)
	if err != nil {
		return fmt.Errorf("creating layout file: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.Layer(maxNodes)); err != nil {
		_ = out.Close()
		return fmt.Errorf("encoding layout: %w", err)
	}
	return out.Close()
}

func init() {
	dagInspectCmd.Flags().IntVar(&layoutNodes, "layout-nodes", 0, "Lay out the first N tasks (0 skips the layout)")
	dagInspectCmd.Flags().StringVar(&layoutOut, "layout-out", "", "Write the layout as JSON to this file")
	dagCmd.AddCommand(dagInspectCmd)
}
