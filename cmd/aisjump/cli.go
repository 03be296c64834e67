package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aisjump/detector/internal/config"
	"github.com/aisjump/detector/internal/logging"
	"github.com/aisjump/detector/internal/otel"
	"github.com/aisjump/detector/internal/pipeline"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aisjump",
		Short:         "Detect implausible position jumps in AIS data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config-dir", ".", "directory containing "+config.FileName)
	root.AddCommand(newDetectCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aisjump %s (built %s)\n", Version, BuildDate)
		},
	}
}

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run sequential and concurrent detection over a CSV file and write the report",
		Args:  cobra.NoArgs,
		RunE:  runDetect,
	}

	f := cmd.Flags()
	f.String("input", "", "AIS CSV file to analyse")
	f.String("output-dir", "", "directory for the report and charts")
	f.Int("workers", 0, "concurrent worker count")
	f.Float64("distance-threshold", 0, "jump distance threshold in km")
	f.Float64("velocity-threshold", 0, "implied velocity threshold in km/h")
	f.Int("batch-size", 0, "rows read per batch")
	f.String("log-level", "", "debug, info, warn or error")
	f.Bool("no-charts", false, "skip PNG charts and the HTML dashboard")

	bind(cmd, "input.path", "input")
	bind(cmd, "output.dir", "output-dir")
	bind(cmd, "detection.workerCount", "workers")
	bind(cmd, "detection.distanceThresholdKm", "distance-threshold")
	bind(cmd, "detection.velocityThresholdKmh", "velocity-threshold")
	bind(cmd, "input.batchSize", "batch-size")
	bind(cmd, "logLevel", "log-level")

	return cmd
}

func bind(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func runDetect(cmd *cobra.Command, _ []string) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	if err := config.Load(configDir); err != nil {
		return err
	}
	if noCharts, _ := cmd.Flags().GetBool("no-charts"); noCharts {
		viper.Set("output.charts", false)
		viper.Set("output.html", false)
	}

	start := time.Now()
	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFile, err := os.Create(logging.LogFilePath(logsDir, "aisjump", start))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	componentFile, err := os.Create(logging.LogFilePath(logsDir, "aisjump-components", start))
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer componentFile.Close()

	slogOpts := logging.Options{
		Level:   level,
		Console: cmd.ErrOrStderr(),
		File:    logFile,
		Context: logging.RunIDProvider,
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		slogOpts.GraylogAddress = gl.Address
	}
	mgr := logging.NewSlogManager()
	if err := mgr.Setup(slogOpts); err != nil {
		return err
	}
	defer mgr.Close()

	var metricsOut io.Writer
	if mc := config.GetMetricsConfig(); mc.Enabled {
		metricsFile, err := os.Create(logging.LogFilePath(logsDir, "aisjump-metrics", start))
		if err != nil {
			return fmt.Errorf("failed to create metrics file: %w", err)
		}
		defer metricsFile.Close()
		metricsOut = metricsFile
	}
	provider, err := otel.New(cmd.Context(), otel.Config{
		Enabled:     metricsOut != nil,
		ServiceName: "aisjump",
		Writer:      metricsOut,
		Interval:    config.GetMetricsConfig().Interval,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			mgr.Logger().Error("failed to flush metrics", "error", err)
		}
	}()

	res, err := pipeline.Run(cmd.Context(), pipeline.Options{
		Input:         config.GetInputConfig(),
		Detection:     config.GetDetectionConfig(),
		Output:        config.GetOutputConfig(),
		Influx:        config.GetInfluxConfig(),
		Logger:        mgr.Logger(),
		RunnerLogger:  logging.NewComponentLogger(logging.NewZerolog(componentFile, level, "runner")),
		InfluxLogger:  logging.NewZerolog(componentFile, level, "influx"),
		MeterProvider: provider.MeterProvider(),
	})
	if err != nil {
		mgr.Logger().Error("detection failed", "error", err)
		return err
	}

	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "run %s\n", res.RunID)
	fmt.Fprintf(w, "rows read %d, kept %d, dropped %d\n", res.Stats.RowsRead, res.Stats.RowsKept, res.Stats.Dropped())
	fmt.Fprintf(w, "vessels %d, anomalies %d\n", res.Tracks, len(res.Events))
	fmt.Fprintf(w, "sequential %.4fs, parallel %.4fs, ", res.Timing.SequentialSeconds, res.Timing.ParallelSeconds)
	if res.Timing.IsInfinite() {
		fmt.Fprintln(w, "speedup +Inf")
	} else {
		fmt.Fprintf(w, "speedup %.2fx\n", res.Timing.Speedup)
	}
	for _, f := range res.Files {
		fmt.Fprintf(w, "wrote %s\n", filepath.ToSlash(f))
	}
}

// executeContext runs the root command with args.
func executeContext(ctx context.Context, args []string, out, errOut io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}
