// Package main provides the CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	av1an "github.com/emrakyz/Av1an"
	"github.com/emrakyz/Av1an/internal/config"
	"github.com/emrakyz/Av1an/internal/logging"
	"github.com/emrakyz/Av1an/internal/metric"
	"github.com/emrakyz/Av1an/internal/reporter"
	"github.com/emrakyz/Av1an/internal/tq"
	"github.com/emrakyz/Av1an/internal/util"
)

const appVersion = "0.3.0"

type encodeFlags struct {
	input       string
	output      string
	workDir     string
	logDir      string
	scenesFile  string
	zonesFile   string
	totalFrames uint64

	encoderBin  string
	encoderArgs []string

	target     string
	bounds     string
	metricName string
	maxProbes  int
	probeStep  float64

	workers      int
	retryCeiling int
	failFast     bool
	allowPartial bool
	noPin        bool
	minFrames    int
	resume       bool

	jsonOutput bool
	verbose    bool
}

func main() {
	root := &cobra.Command{
		Use:           "av1an",
		Short:         "Scene-based chunked video encoding with target quality search",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newEncodeCmd() *cobra.Command {
	var ef encodeFlags

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a video as independent scene chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(&ef)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ef.input, "input", "i", "", "input video file")
	f.StringVarP(&ef.output, "output", "o", "", "output file")
	f.StringVar(&ef.workDir, "work-dir", "", "scratch directory (default beside output)")
	f.StringVar(&ef.logDir, "log-dir", "", "log directory (default work dir)")
	f.StringVar(&ef.scenesFile, "scenes", "", "scene cut file, one frame index per line")
	f.StringVar(&ef.zonesFile, "zones", "", "YAML zone overrides file")
	f.Uint64Var(&ef.totalFrames, "frames", 0, "total frame count of the input")

	f.StringVar(&ef.encoderBin, "encoder", config.DefaultEncoderBin, "encoder executable")
	f.StringArrayVar(&ef.encoderArgs, "video-params", nil, "encoder flag as name=value, repeatable")

	f.StringVarP(&ef.target, "target-quality", "t", "", "target metric score range, e.g. 70-75")
	f.StringVar(&ef.bounds, "quantizer-range", "", "quantizer search bounds, e.g. 8-48")
	f.StringVar(&ef.metricName, "metric", "vmaf", "quality metric (vmaf, ssimulacra2)")
	f.IntVar(&ef.maxProbes, "max-probes", 0, "quality search iteration budget")
	f.Float64Var(&ef.probeStep, "probe-step", 0, "quantizer granularity for the search")

	f.IntVarP(&ef.workers, "workers", "w", 0, "concurrent encoder processes (0 auto)")
	f.IntVar(&ef.retryCeiling, "max-tries", config.DefaultRetryCeiling, "retries per chunk after a transient failure")
	f.BoolVar(&ef.failFast, "fail-fast", false, "abort the whole run on the first terminal chunk failure")
	f.BoolVar(&ef.allowPartial, "allow-partial", false, "assemble output even when chunks failed")
	f.BoolVar(&ef.noPin, "no-affinity", false, "disable per-worker CPU pinning")
	f.IntVar(&ef.minFrames, "min-scene-len", config.DefaultMinChunkFrames, "merge scenes shorter than this many frames")
	f.BoolVar(&ef.resume, "resume", false, "reuse completed chunks from an earlier run")

	f.BoolVar(&ef.jsonOutput, "json", false, "emit NDJSON progress events instead of the progress bar")
	f.BoolVarP(&ef.verbose, "verbose", "v", false, "enable debug logging")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("frames")

	return cmd
}

func runEncode(ef *encodeFlags) error {
	cfg, err := buildConfig(ef)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if ef.verbose {
		level = slog.LevelDebug
	}
	logDir := ef.logDir
	if logDir == "" {
		logDir = cfg.EffectiveWorkDir()
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath, err := logging.SetupFile(logDir, level, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logging.Info("logging to file", "path", logPath)

	sys := util.GetSystemInfo()
	logging.Info("host",
		"hostname", sys.Hostname, "os", sys.OS, "arch", sys.Arch,
		"logical_cores", util.LogicalCores(), "physical_cores", util.PhysicalCores())

	var rep reporter.Reporter = reporter.NewTerminalReporter()
	if ef.jsonOutput {
		rep = reporter.NewJSONReporter()
	}
	// A machine-readable event record lands next to the run log either way.
	if f, ferr := os.Create(filepath.Join(logDir, "events.ndjson")); ferr == nil {
		defer f.Close()
		rep = reporter.NewCompositeReporter(rep, reporter.NewJSONReporterWithWriter(f))
	}

	runner, err := av1an.New(cfg, av1an.WithReporter(rep))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Warn("interrupt received, stopping after in-flight chunks")
		cancel()
	}()

	res, err := runner.RunFromConfig(ctx)
	if err != nil {
		return err
	}
	if res.Cancelled {
		// Progress is on disk; a rerun with --resume picks it up.
		return nil
	}
	if len(res.Failed) > 0 && !res.Partial {
		return fmt.Errorf("%d chunk(s) failed", len(res.Failed))
	}
	return nil
}

func buildConfig(ef *encodeFlags) (*config.Config, error) {
	output, err := filepath.Abs(ef.output)
	if err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}

	cfg := config.New(ef.input, output)
	cfg.WorkDir = ef.workDir
	cfg.TotalFrames = ef.totalFrames
	cfg.ScenesFile = ef.scenesFile
	cfg.ZonesFile = ef.zonesFile
	cfg.EncoderBin = ef.encoderBin
	cfg.Workers = ef.workers
	cfg.RetryCeiling = ef.retryCeiling
	cfg.FailFast = ef.failFast
	cfg.AllowPartial = ef.allowPartial
	cfg.PinCPUs = !ef.noPin
	cfg.MinChunkFrames = ef.minFrames
	cfg.Resume = ef.resume

	if len(ef.encoderArgs) > 0 {
		cfg.EncoderArgs = make(map[string]string, len(ef.encoderArgs))
		for _, arg := range ef.encoderArgs {
			name, value, _ := strings.Cut(arg, "=")
			cfg.EncoderArgs[name] = value
		}
	}

	if ef.target != "" {
		tgt, err := buildTarget(ef)
		if err != nil {
			return nil, err
		}
		cfg.Target = tgt
	}
	return cfg, nil
}

func buildTarget(ef *encodeFlags) (*tq.Target, error) {
	tgt := tq.DefaultTarget()

	score, tol, err := tq.ParseTargetRange(ef.target)
	if err != nil {
		return nil, fmt.Errorf("invalid --target-quality: %w", err)
	}
	tgt.Score = score
	tgt.Tolerance = tol

	if ef.bounds != "" {
		min, max, err := tq.ParseBounds(ef.bounds)
		if err != nil {
			return nil, fmt.Errorf("invalid --quantizer-range: %w", err)
		}
		tgt.BoundMin = min
		tgt.BoundMax = max
	}
	if ef.metricName != "" {
		kind, err := metric.ParseKind(ef.metricName)
		if err != nil {
			return nil, err
		}
		tgt.Metric = kind
	}
	if ef.maxProbes > 0 {
		tgt.MaxIterations = ef.maxProbes
	}
	if ef.probeStep > 0 {
		tgt.Step = ef.probeStep
	}
	return tgt, nil
}
