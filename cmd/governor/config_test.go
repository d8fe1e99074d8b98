package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cgroupgov/pkg/policy"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()

	prev := lookupEnv
	t.Cleanup(func() { lookupEnv = prev })

	lookupEnv = func(key string) (string, bool) {
		v, ok := values[key]

		return v, ok
	}
}

func TestDefaultRuntimeConfigHasSaneDefaults(t *testing.T) {
	t.Parallel()

	cfg := defaultRuntimeConfig()

	if cfg.Orchestrator.WindowUS != defaultWindowUS {
		t.Fatalf("expected default window %d, got %d", defaultWindowUS, cfg.Orchestrator.WindowUS)
	}

	if cfg.HTTP.Bind != defaultHTTPBind {
		t.Fatalf("expected default bind %q, got %q", defaultHTTPBind, cfg.HTTP.Bind)
	}

	if cfg.Lock.Path != defaultLockPath {
		t.Fatalf("expected default lock path %q, got %q", defaultLockPath, cfg.Lock.Path)
	}
}

func TestLoadConfigReadsFileOverrides(t *testing.T) {
	// Not parallel: withEnv swaps the package-level lookupEnv.
	withEnv(t, nil)

	path := filepath.Join("testdata", "config.yaml")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.WindowUS != 500_000 {
		t.Fatalf("expected windowUs 500000, got %d", cfg.Orchestrator.WindowUS)
	}

	if cfg.HTTP.Bind != ":9191" {
		t.Fatalf("expected bind :9191, got %q", cfg.HTTP.Bind)
	}

	if len(cfg.Workloads) != 2 {
		t.Fatalf("expected 2 workloads, got %d", len(cfg.Workloads))
	}

	if cfg.Workloads[0].ID != "web" || cfg.Workloads[0].BudgetUS != 200_000 {
		t.Fatalf("unexpected first workload: %+v", cfg.Workloads[0])
	}

	if cfg.Orchestrator.CapacityUS != 500_000 {
		t.Fatalf("expected derived capacityUs 500000, got %d", cfg.Orchestrator.CapacityUS)
	}
}

func TestLoadConfigMissingFileFallsBackToDefaults(t *testing.T) {
	// Not parallel: withEnv swaps the package-level lookupEnv.
	withEnv(t, map[string]string{
		envCapacityUS: "100000",
		envWindowUS:   "100000",
	})

	_, err := loadConfig(filepath.Join("testdata", "does-not-exist.yaml"))
	if !errors.Is(err, errNoWorkloads) {
		t.Fatalf("expected errNoWorkloads for a missing file with no workloads, got %v", err)
	}
}

func TestLoadConfigEnvOverridesWinOverFile(t *testing.T) {
	// Not parallel: withEnv swaps the package-level lookupEnv.
	withEnv(t, map[string]string{
		envHTTPBind:  ":9999",
		envLockPath:  "/tmp/custom.lock",
		envTracePath: "/tmp/trace.log",
	})

	cfg, err := loadConfig(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Bind != ":9999" {
		t.Fatalf("expected env override bind :9999, got %q", cfg.HTTP.Bind)
	}

	if cfg.Lock.Path != "/tmp/custom.lock" {
		t.Fatalf("expected env override lock path, got %q", cfg.Lock.Path)
	}

	if cfg.Trace.Path != "/tmp/trace.log" {
		t.Fatalf("expected env override trace path, got %q", cfg.Trace.Path)
	}
}

func TestLoadConfigEmptyPathUsesDefaultsAndEnv(t *testing.T) {
	// Not parallel: withEnv swaps the package-level lookupEnv.
	withEnv(t, map[string]string{
		envCapacityUS: "300000",
		envWindowUS:   "200000",
	})

	cfg, err := loadConfig("")
	if !errors.Is(err, errNoWorkloads) {
		t.Fatalf("expected errNoWorkloads, got %v", err)
	}

	if cfg.Orchestrator.WindowUS != 200_000 || cfg.Orchestrator.CapacityUS != 300_000 {
		t.Fatalf("expected env window 200000 and capacity 300000, got %d and %d",
			cfg.Orchestrator.WindowUS, cfg.Orchestrator.CapacityUS)
	}

	if cfg.HTTP.Bind != defaultHTTPBind {
		t.Fatalf("expected default bind %q, got %q", defaultHTTPBind, cfg.HTTP.Bind)
	}
}

func TestLoadConfigReturnsDecodeError(t *testing.T) {
	// Not parallel: withEnv swaps the package-level lookupEnv.
	withEnv(t, nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(path, []byte("orchestrator: ["), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := loadConfig(path)
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidateRuntimeConfigRejectsCapacityOverrun(t *testing.T) {
	t.Parallel()

	cfg := runtimeConfig{
		Orchestrator: orchestratorConfig{CapacityUS: 100_000, WindowUS: defaultWindowUS},
		Workloads: []workloadConfig{
			{ID: "a", CgroupPath: "/sys/fs/cgroup/a", BudgetUS: 60_000},
			{ID: "b", CgroupPath: "/sys/fs/cgroup/b", BudgetUS: 60_000},
		},
	}

	err := validateRuntimeConfig(&cfg)
	if !errors.Is(err, policy.ErrInvalidInput) {
		t.Fatalf("expected policy.ErrInvalidInput, got %v", err)
	}
}

func TestValidateRuntimeConfigDefaultsCapacityToSumOfBudgets(t *testing.T) {
	t.Parallel()

	cfg := runtimeConfig{
		Orchestrator: orchestratorConfig{WindowUS: defaultWindowUS},
		Workloads: []workloadConfig{
			{ID: "a", CgroupPath: "/sys/fs/cgroup/a", BudgetUS: 40_000},
			{ID: "b", CgroupPath: "/sys/fs/cgroup/b", BudgetUS: 60_000},
		},
	}

	if err := validateRuntimeConfig(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.CapacityUS != 100_000 {
		t.Fatalf("expected derived capacity 100000, got %d", cfg.Orchestrator.CapacityUS)
	}
}

func TestValidateRuntimeConfigRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	cfg := runtimeConfig{
		Orchestrator: orchestratorConfig{WindowUS: defaultWindowUS},
		Workloads: []workloadConfig{
			{ID: "a", CgroupPath: "/sys/fs/cgroup/a", BudgetUS: 10_000},
			{ID: "a", CgroupPath: "/sys/fs/cgroup/a2", BudgetUS: 10_000},
		},
	}

	if err := validateRuntimeConfig(&cfg); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateRuntimeConfigRejectsEmptyFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  runtimeConfig
	}{
		{
			name: "empty id",
			cfg: runtimeConfig{
				Orchestrator: orchestratorConfig{WindowUS: defaultWindowUS},
				Workloads:    []workloadConfig{{ID: "", CgroupPath: "/x", BudgetUS: 1}},
			},
		},
		{
			name: "empty cgroup path",
			cfg: runtimeConfig{
				Orchestrator: orchestratorConfig{WindowUS: defaultWindowUS},
				Workloads:    []workloadConfig{{ID: "a", CgroupPath: "", BudgetUS: 1}},
			},
		},
		{
			name: "non-positive budget",
			cfg: runtimeConfig{
				Orchestrator: orchestratorConfig{WindowUS: defaultWindowUS},
				Workloads:    []workloadConfig{{ID: "a", CgroupPath: "/x", BudgetUS: 0}},
			},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if err := validateRuntimeConfig(&tc.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
