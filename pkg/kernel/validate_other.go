//go:build !linux

package kernel

// ValidateCgroupV2Path is a no-op off Linux: cgroup v2 is a Linux-only
// concept, and non-Linux builds exist only to run the pure policy/window/
// replay tests, never the kernel binding itself.
func ValidateCgroupV2Path(string) error {
	return nil
}
