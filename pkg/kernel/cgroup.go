// Package kernel is the only boundary to the cgroup v2 control files. It
// parses cpu.stat and writes cpu.max; it holds no state of its own and
// performs no retries (§7: a kernel I/O failure is surfaced and aborts the
// caller's run).
package kernel

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	statFile = "cpu.stat"
	maxFile  = "cpu.max"

	usageUsecKey = "usage_usec"
)

var (
	// ErrUsageNotFound means cpu.stat was read successfully but never
	// contained a usage_usec line.
	ErrUsageNotFound = errors.New("kernel: usage_usec not found in cpu.stat")
	// ErrNegativeQuota means WriteQuota was asked to write a negative
	// microsecond quota.
	ErrNegativeQuota = errors.New("kernel: quota_us must not be negative")
)

// ReadUsage parses <cgroupPath>/cpu.stat and returns the usage_usec field in
// microseconds. Other lines are ignored (invariant O2/O3: derived
// exclusively from usage_usec, no interpretation or smoothing).
func ReadUsage(cgroupPath string) (int64, error) {
	path := filepath.Join(cgroupPath, statFile)

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	usage, err := parseUsageUsec(file)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	return usage, nil
}

func parseUsageUsec(r *os.File) (int64, error) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := scanner.Text()

		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != usageUsecKey {
			continue
		}

		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s value %q: %w", usageUsecKey, fields[1], err)
		}

		return value, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan cpu.stat: %w", err)
	}

	return 0, ErrUsageNotFound
}

// WriteQuota writes "<quota> <period>" to <cgroupPath>/cpu.max in one
// write. quotaUS nil means unlimited ("max"); otherwise it must be
// non-negative. Writing the same value twice produces the same file
// contents (invariant E3).
func WriteQuota(cgroupPath string, quotaUS *int64, periodUS int64) error {
	var quotaStr string

	if quotaUS == nil {
		quotaStr = "max"
	} else {
		if *quotaUS < 0 {
			return fmt.Errorf("%w: got %d", ErrNegativeQuota, *quotaUS)
		}

		quotaStr = strconv.FormatInt(*quotaUS, 10)
	}

	path := filepath.Join(cgroupPath, maxFile)
	contents := fmt.Sprintf("%s %d", quotaStr, periodUS)

	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
