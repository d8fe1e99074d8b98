package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cgroupgov/pkg/policy"
)

const (
	envCapacityUS = "GOVERNOR_CAPACITY_US"
	envWindowUS   = "GOVERNOR_WINDOW_US"
	envHTTPBind   = "GOVERNOR_HTTP_ADDR"
	envLockPath   = "GOVERNOR_LOCK_PATH"
	envTracePath  = "GOVERNOR_TRACE_PATH"

	defaultWindowUS = int64(1_000_000) // 1 second, per §3's symbolic W
	defaultHTTPBind = ":9108"
	defaultLockPath = "/run/cgroupgov.lock"
)

// errNoWorkloads is returned when a configuration declares no workloads at all.
var errNoWorkloads = errors.New("config: no workloads declared")

type runtimeConfig struct {
	Orchestrator orchestratorConfig
	Workloads    []workloadConfig
	HTTP         httpConfig
	Lock         lockConfig
	Trace        traceConfig
}

type orchestratorConfig struct {
	CapacityUS int64
	WindowUS   int64
}

type workloadConfig struct {
	ID         string
	CgroupPath string
	BudgetUS   int64
}

type httpConfig struct {
	Bind string
}

type lockConfig struct {
	Path string
}

type traceConfig struct {
	Path string
}

type fileConfig struct {
	Orchestrator orchestratorFileConfig `yaml:"orchestrator"`
	Workloads    []workloadFileConfig   `yaml:"workloads"`
	HTTP         httpFileConfig         `yaml:"http"`
	Lock         lockFileConfig         `yaml:"lock"`
	Trace        traceFileConfig        `yaml:"trace"`
}

type orchestratorFileConfig struct {
	CapacityUS *int64 `yaml:"capacityUs"`
	WindowUS   *int64 `yaml:"windowUs"`
}

type workloadFileConfig struct {
	ID         string `yaml:"id"`
	CgroupPath string `yaml:"cgroupPath"`
	BudgetUS   int64  `yaml:"budgetUs"`
}

type httpFileConfig struct {
	Bind *string `yaml:"bind"`
}

type lockFileConfig struct {
	Path *string `yaml:"path"`
}

type traceFileConfig struct {
	Path *string `yaml:"path"`
}

func defaultRuntimeConfig() runtimeConfig {
	var cfg runtimeConfig

	cfg.Orchestrator.WindowUS = defaultWindowUS
	cfg.HTTP.Bind = defaultHTTPBind
	cfg.Lock.Path = defaultLockPath

	return cfg
}

func loadConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		applyEnvOverrides(&cfg)

		return cfg, validateRuntimeConfig(&cfg)
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return runtimeConfig{}, fmt.Errorf("read config file %q: %w", trimmed, err)
		}
	} else {
		var fileCfg fileConfig

		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return runtimeConfig{}, fmt.Errorf("decode config file %q: %w", trimmed, err)
		}

		mergeOrchestratorConfig(&cfg.Orchestrator, fileCfg.Orchestrator)
		mergeHTTPConfig(&cfg.HTTP, fileCfg.HTTP)
		mergeLockConfig(&cfg.Lock, fileCfg.Lock)
		mergeTraceConfig(&cfg.Trace, fileCfg.Trace)

		cfg.Workloads = make([]workloadConfig, 0, len(fileCfg.Workloads))
		for _, w := range fileCfg.Workloads {
			cfg.Workloads = append(cfg.Workloads, workloadConfig{
				ID:         strings.TrimSpace(w.ID),
				CgroupPath: strings.TrimSpace(w.CgroupPath),
				BudgetUS:   w.BudgetUS,
			})
		}
	}

	applyEnvOverrides(&cfg)

	return cfg, validateRuntimeConfig(&cfg)
}

func mergeOrchestratorConfig(dst *orchestratorConfig, src orchestratorFileConfig) {
	assignInt64(&dst.CapacityUS, src.CapacityUS)
	assignInt64(&dst.WindowUS, src.WindowUS)
}

func mergeHTTPConfig(dst *httpConfig, src httpFileConfig) {
	assignString(&dst.Bind, src.Bind)
}

func mergeLockConfig(dst *lockConfig, src lockFileConfig) {
	assignString(&dst.Path, src.Path)
}

func mergeTraceConfig(dst *traceConfig, src traceFileConfig) {
	assignString(&dst.Path, src.Path)
}

func applyEnvOverrides(cfg *runtimeConfig) {
	cfg.Orchestrator.CapacityUS = envInt64(envCapacityUS, cfg.Orchestrator.CapacityUS)
	cfg.Orchestrator.WindowUS = envInt64(envWindowUS, cfg.Orchestrator.WindowUS)
	cfg.HTTP.Bind = envString(envHTTPBind, cfg.HTTP.Bind)
	cfg.Lock.Path = envString(envLockPath, cfg.Lock.Path)
	cfg.Trace.Path = envString(envTracePath, cfg.Trace.Path)

	if cfg.Orchestrator.WindowUS <= 0 {
		cfg.Orchestrator.WindowUS = defaultWindowUS
	}
}

// validateRuntimeConfig enforces the admission invariant (C1) ahead of time,
// so a misconfigured capacity fails at startup rather than mid-run.
func validateRuntimeConfig(cfg *runtimeConfig) error {
	if len(cfg.Workloads) == 0 {
		return errNoWorkloads
	}

	var total int64

	seen := make(map[string]struct{}, len(cfg.Workloads))

	for _, w := range cfg.Workloads {
		if w.ID == "" {
			return errors.New("config: workload with empty id")
		}

		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("config: duplicate workload id %q", w.ID)
		}
		seen[w.ID] = struct{}{}

		if w.CgroupPath == "" {
			return fmt.Errorf("config: workload %q has no cgroupPath", w.ID)
		}

		if w.BudgetUS <= 0 {
			return fmt.Errorf("config: workload %q has non-positive budgetUs", w.ID)
		}

		total += w.BudgetUS
	}

	if cfg.Orchestrator.CapacityUS <= 0 {
		cfg.Orchestrator.CapacityUS = total
	}

	if total > cfg.Orchestrator.CapacityUS {
		return fmt.Errorf(
			"config: %w: sum of workload budgets %d exceeds capacity_us %d",
			policy.ErrInvalidInput, total, cfg.Orchestrator.CapacityUS,
		)
	}

	return nil
}

var lookupEnv = os.LookupEnv //nolint:gochecknoglobals // overridden in tests

func assignInt64(target *int64, value *int64) {
	if value != nil {
		*target = *value
	}
}

func assignString(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func envInt64(key string, fallback int64) int64 {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func envString(key, fallback string) string {
	value, ok := lookupEnv(key)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}
