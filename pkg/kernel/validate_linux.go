//go:build linux

package kernel

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// cgroup2SuperMagic is CGROUP2_SUPER_MAGIC from linux/magic.h.
const cgroup2SuperMagic = 0x63677270

// ValidateCgroupV2Path confirms path is a directory mounted on a cgroup2
// filesystem before the orchestrator ever reads or writes its control
// files. It is a registration-time sanity check, not part of the per-window
// hot path.
func ValidateCgroupV2Path(path string) error {
	var stat unix.Statfs_t

	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}

	if int64(stat.Type) != cgroup2SuperMagic {
		return fmt.Errorf("kernel: %s is not a cgroup v2 mount (fs type 0x%x)", path, stat.Type)
	}

	return nil
}
