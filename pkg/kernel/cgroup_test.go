package kernel

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// fakeCgroup simulates a cgroup v2 directory with cpu.stat and cpu.max so
// tests can exercise the real file-parsing and file-writing logic without
// root or a live kernel.
type fakeCgroup struct {
	dir string
}

func newFakeCgroup(t *testing.T) *fakeCgroup {
	t.Helper()

	dir := t.TempDir()

	return &fakeCgroup{dir: dir}
}

func (f *fakeCgroup) setUsage(t *testing.T, usageUsec int64) {
	t.Helper()

	content := "usage_usec " + strconv.FormatInt(usageUsec, 10) + "\nuser_usec 0\nsystem_usec 0\n"
	if err := os.WriteFile(filepath.Join(f.dir, statFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write cpu.stat: %v", err)
	}
}

func (f *fakeCgroup) readMax(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(f.dir, maxFile))
	if err != nil {
		t.Fatalf("read cpu.max: %v", err)
	}

	return string(data)
}

func TestReadUsageParsesUsageUsec(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)
	cgroup.setUsage(t, 123456)

	usage, err := ReadUsage(cgroup.dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if usage != 123456 {
		t.Fatalf("expected 123456, got %d", usage)
	}
}

func TestReadUsageIgnoresOtherLines(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	content := "some_other_key 999\nusage_usec 42\nyet_another 7\n"
	if err := os.WriteFile(filepath.Join(cgroup.dir, statFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write cpu.stat: %v", err)
	}

	usage, err := ReadUsage(cgroup.dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if usage != 42 {
		t.Fatalf("expected 42, got %d", usage)
	}
}

func TestReadUsageMissingKeyIsError(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	if err := os.WriteFile(filepath.Join(cgroup.dir, statFile), []byte("nr_periods 0\n"), 0o644); err != nil {
		t.Fatalf("write cpu.stat: %v", err)
	}

	if _, err := ReadUsage(cgroup.dir); !errors.Is(err, ErrUsageNotFound) {
		t.Fatalf("expected ErrUsageNotFound, got %v", err)
	}
}

func TestReadUsageMissingFileIsError(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	if _, err := ReadUsage(cgroup.dir); err == nil {
		t.Fatalf("expected error for missing cpu.stat")
	}
}

func TestWriteQuotaWritesIntegerQuota(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	quota := int64(50_000)
	if err := WriteQuota(cgroup.dir, &quota, 100_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cgroup.readMax(t); got != "50000 100000" {
		t.Fatalf("expected %q, got %q", "50000 100000", got)
	}
}

func TestWriteQuotaWritesMaxForNilQuota(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	if err := WriteQuota(cgroup.dir, nil, 100_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cgroup.readMax(t); got != "max 100000" {
		t.Fatalf("expected %q, got %q", "max 100000", got)
	}
}

func TestWriteQuotaRejectsNegative(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	quota := int64(-1)
	if err := WriteQuota(cgroup.dir, &quota, 100_000); !errors.Is(err, ErrNegativeQuota) {
		t.Fatalf("expected ErrNegativeQuota, got %v", err)
	}
}

func TestWriteQuotaIsIdempotent(t *testing.T) {
	t.Parallel()

	cgroup := newFakeCgroup(t)

	quota := int64(0)
	if err := WriteQuota(cgroup.dir, &quota, 100_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := cgroup.readMax(t)

	if err := WriteQuota(cgroup.dir, &quota, 100_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := cgroup.readMax(t)

	if first != second {
		t.Fatalf("expected idempotent write, got %q then %q", first, second)
	}
}
