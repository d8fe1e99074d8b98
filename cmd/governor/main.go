// Package main wires the governor CLI entrypoint.
package main

//nolint:depguard // main wires project-internal modules and zap logging
import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cgroupgov/internal/buildinfo"
	"cgroupgov/internal/lockfile"
	"cgroupgov/pkg/httpapi/metrics"
	"cgroupgov/pkg/httpapi/status"
	"cgroupgov/pkg/kernel"
	"cgroupgov/pkg/observe"
	"cgroupgov/pkg/orchestrate"
	"cgroupgov/pkg/policy"
	"cgroupgov/pkg/trace"
	"cgroupgov/pkg/workload"
)

const (
	defaultConfigPath = "/etc/cgroupgov/config.yaml"
	defaultLogLevel   = "info"

	exitCodeSuccess      = 0
	exitCodeRuntimeError = 1
	exitCodeParseError   = 2
)

func main() {
	code := run(context.Background(), os.Args[1:], defaultRunDeps(), os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

type runDeps struct {
	newLogger        func(level string) (*zap.Logger, error)
	loadConfig       func(path string) (runtimeConfig, error)
	acquireLock      func(path string) (*lockfile.Lock, error)
	currentBuildInfo func() buildinfo.Info
}

func defaultRunDeps() runDeps {
	return runDeps{
		newLogger:        newLogger,
		loadConfig:       loadConfig,
		acquireLock:      lockfile.Acquire,
		currentBuildInfo: buildinfo.Current,
	}
}

func run(ctx context.Context, args []string, deps runDeps, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)

		return exitCodeParseError
	}

	logger, err := deps.newLogger(opts.logLevel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to configure logger: %v\n", err)

		return exitCodeRuntimeError
	}

	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := deps.loadConfig(opts.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)

		return exitCodeParseError
	}

	info := deps.currentBuildInfo()
	logger.Info("starting cgroupgov",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("configPath", opts.configPath),
		zap.String("mode", opts.mode),
		zap.Int64("capacityUs", cfg.Orchestrator.CapacityUS),
		zap.Int64("windowUs", cfg.Orchestrator.WindowUS),
		zap.Int("workloads", len(cfg.Workloads)),
	)

	quotaWriter := kernel.WriteQuota
	if opts.mode == modeDryRun {
		quotaWriter = dryRunQuotaWriter(logger)
	}

	lock, err := deps.acquireLock(cfg.Lock.Path)
	if err != nil {
		logger.Error("failed to acquire single-instance lock", zap.Error(err))

		return exitCodeRuntimeError
	}
	defer func() {
		_ = lock.Release()
	}()

	exporter := metrics.NewExporter()

	var tracer *trace.Emitter
	if cfg.Trace.Path != "" {
		traceFile, err := os.OpenFile(cfg.Trace.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open trace output", zap.Error(err))

			return exitCodeRuntimeError
		}
		defer traceFile.Close()

		tracer = trace.New(newFileLogger(traceFile))
	} else {
		tracer = trace.New(logger)
	}

	multi, err := orchestrate.NewMulti(
		cfg.Orchestrator.CapacityUS,
		cfg.Orchestrator.WindowUS,
		quotaWriter,
		orchestrate.RealClock{},
		logger,
		tracer,
	)
	if err != nil {
		logger.Error("failed to construct orchestrator", zap.Error(err))

		return exitCodeRuntimeError
	}

	multi.SetDecisionObserver(func(id workload.ID, record policy.Record) {
		var windowIndex int64
		if record.WindowIndex != nil {
			windowIndex = *record.WindowIndex
		}

		exporter.RecordDecision(
			id.String(),
			record.StateAfter.Mode().String(),
			record.DebtAfterUS,
			record.EnforcedQuotaUS,
			record.UsageUS,
			windowIndex,
		)
	})

	for _, w := range cfg.Workloads {
		id, err := workload.New(w.ID)
		if err != nil {
			logger.Error("invalid workload id", zap.String("id", w.ID), zap.Error(err))

			return exitCodeParseError
		}

		if err := kernel.ValidateCgroupV2Path(w.CgroupPath); err != nil {
			logger.Error("invalid cgroup path",
				zap.String("workloadId", w.ID), zap.String("cgroupPath", w.CgroupPath), zap.Error(err),
			)

			return exitCodeRuntimeError
		}

		source := observe.KernelSource{CgroupPath: w.CgroupPath}

		if err := multi.Register(id, w.CgroupPath, w.BudgetUS, source); err != nil {
			logger.Error("failed to register workload", zap.String("workloadId", w.ID), zap.Error(err))

			return exitCodeParseError
		}

		exporter.RegisterWorkload(w.ID)
	}

	mux := http.NewServeMux()
	mux.Handle("/status", status.NewHandler(multi))
	mux.Handle("/metrics", exporter)

	server := &http.Server{Addr: cfg.HTTP.Bind, Handler: mux}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- multi.RunLoop(ctx, nil)
	}()

	select {
	case err := <-runErr:
		_ = server.Close()

		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("orchestrator run failed", zap.Error(err))

			return exitCodeRuntimeError
		}

		return exitCodeSuccess
	case err := <-serverErr:
		logger.Error("status/metrics server failed", zap.Error(err))

		return exitCodeRuntimeError
	case <-ctx.Done():
		_ = server.Close()

		return exitCodeSuccess
	}
}

// dryRunQuotaWriter returns a QuotaWriter that logs the quota the enforcer
// would have written instead of calling kernel.WriteQuota, for -mode
// dry-run: the full decision pipeline runs and traces exactly as it would
// under enforcement, only the final cgroup write is suppressed.
func dryRunQuotaWriter(logger *zap.Logger) orchestrate.QuotaWriter {
	return func(cgroupPath string, quotaUS *int64, periodUS int64) error {
		quota := "max"
		if quotaUS != nil {
			quota = fmt.Sprintf("%d", *quotaUS)
		}

		logger.Info("dry-run: would write cpu.max",
			zap.String("cgroupPath", cgroupPath),
			zap.String("quotaUs", quota),
			zap.Int64("periodUs", periodUS),
		)

		return nil
	}
}

// newFileLogger builds a minimal zap logger that writes JSON lines straight
// to w, used for the decision trace sink when it's pointed at its own file
// instead of the process's main log stream.
func newFileLogger(w io.Writer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), zap.InfoLevel)

	return zap.New(core)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = defaultLogLevel
	}

	cfg := zap.NewProductionConfig()

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger, nil
}

const (
	modeEnforce = "enforce"
	modeDryRun  = "dry-run"
	defaultMode = modeEnforce
)

type options struct {
	configPath string
	logLevel   string
	mode       string
}

func parseArgs(args []string) (options, error) {
	var opts options

	flagSet := flag.NewFlagSet("governor", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to the governor configuration file")
	flagSet.StringVar(&opts.logLevel, "log-level", defaultLogLevel, "Structured log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.mode, "mode", defaultMode, "Run mode: enforce or dry-run")

	if err := flagSet.Parse(args); err != nil {
		return options{}, fmt.Errorf("parse CLI arguments: %w", err)
	}

	opts.logLevel = strings.TrimSpace(opts.logLevel)
	if opts.logLevel == "" {
		opts.logLevel = defaultLogLevel
	}

	opts.configPath = strings.TrimSpace(opts.configPath)
	if opts.configPath == "" {
		opts.configPath = defaultConfigPath
	}

	opts.mode = strings.TrimSpace(opts.mode)
	if opts.mode == "" {
		opts.mode = defaultMode
	}

	if opts.mode != modeEnforce && opts.mode != modeDryRun {
		return options{}, fmt.Errorf("%w: %q", errInvalidMode, opts.mode)
	}

	return opts, nil
}

var (
	errInvalidLogLevel = errors.New("invalid log level")
	errInvalidMode     = errors.New("invalid run mode")
)
