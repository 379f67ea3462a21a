package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/learning-sim/learning-sim/sim"
	_ "github.com/learning-sim/learning-sim/sim/gossip"
	"github.com/learning-sim/learning-sim/sim/trace"
)

var (
	// CLI flags shared by run and sweep
	configPath string // YAML or TOML configuration file
	logLevel   string // Log verbosity level

	// Output artifacts of run
	dagOut     string // Workflow DAG JSON
	traceOut   string // Event and transfer trace JSON
	metricsOut string // Prometheus text exposition

	runFlags overrides
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "learning-sim",
	Short: "Discrete-event simulator for decentralized learning",
}

// artifacts names the files a run writes; empty paths are skipped.
type artifacts struct {
	dag     string
	trace   string
	metrics string
}

// runCmd executes one simulation using the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulated learning session",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := resolveConfig(configPath, cmd.Flags(), &runFlags)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Starting %s with %d participants, stop=%s, duration=%.1f, seed=%d",
			cfg.Algorithm, cfg.Participants, cfg.Stop, cfg.Duration, cfg.Seed)

		startTime := time.Now()
		s, err := runSimulation(cfg)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := writeArtifacts(s, artifacts{dag: dagOut, trace: traceOut, metrics: metricsOut}); err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := printRunSummary(os.Stdout, s, time.Since(startTime)); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runSimulation builds the configured protocol and runs it to completion.
func runSimulation(cfg sim.Config) (*sim.Simulator, error) {
	protocol, err := sim.NewProtocol(cfg)
	if err != nil {
		return nil, err
	}
	s, err := sim.NewSimulator(cfg, protocol)
	if err != nil {
		return nil, err
	}
	if err := s.Run(); err != nil {
		return s, err
	}
	return s, nil
}

// writeArtifacts saves the workflow graph, trace and metrics of a finished run.
func writeArtifacts(s *sim.Simulator, out artifacts) error {
	if err := writeFile(out.dag, s.DAG().WriteJSON); err != nil {
		return fmt.Errorf("writing workflow dag: %w", err)
	}
	if err := writeFile(out.trace, s.Trace().WriteJSON); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	if err := writeFile(out.metrics, s.Metrics().WriteText); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logrus.Infof("Wrote %s", path)
	return nil
}

// printRunSummary writes the graph, trace and metric summaries of a run.
func printRunSummary(w io.Writer, s *sim.Simulator, wall time.Duration) error {
	header := color.New(color.FgCyan, color.Bold)
	cfg := s.Config()

	header.Fprintln(w, "=== Workflow DAG ===")
	counts := s.DAG().CountByKind()
	fmt.Fprintf(w, "Algorithm            : %s (%d participants, seed %d)\n", cfg.Algorithm, cfg.Participants, cfg.Seed)
	fmt.Fprintf(w, "Tasks                : %d (train %d, aggregate %d, test %d)\n",
		s.DAG().Len(), counts["train"], counts["aggregate"], counts["test"])
	fmt.Fprintf(w, "Sources / Sinks      : %d / %d\n", len(s.DAG().SourceTasks()), len(s.DAG().SinkTasks()))
	fmt.Fprintf(w, "Wall Time            : %s\n", wall.Round(time.Millisecond))

	if ts := trace.Summarize(s.Trace()); ts.TotalTransfers > 0 {
		header.Fprintln(w, "=== Transfers ===")
		fmt.Fprintf(w, "Completed            : %d (%.0f bytes)\n", ts.TotalTransfers, ts.TransferredBytes)
		fmt.Fprintf(w, "Mean / Max Time      : %.3f / %.3f\n", ts.MeanTransferTime, ts.MaxTransferTime)
	}

	summary, err := s.Metrics().Summary()
	if err != nil {
		return err
	}
	summary.Print(w)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runFlags.register(runCmd.Flags())
	runCmd.Flags().StringVar(&dagOut, "dag-out", "", "Write the workflow DAG as JSON to this file")
	runCmd.Flags().StringVar(&traceOut, "trace-out", "", "Write the event/transfer trace as JSON to this file")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write metrics in Prometheus text format to this file")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(dagCmd)
}
