//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pin picks the slot-th allowed CPU (modulo the allowed count) so pinned
// workers respect cgroup and taskset restrictions.
func pin(slot int) error {
	var allowed unix.CPUSet
	if err := unix.SchedGetaffinity(0, &allowed); err != nil {
		return fmt.Errorf("read affinity: %w", err)
	}

	n := allowed.Count()
	if n == 0 {
		return nil
	}
	if slot < 0 {
		slot = -slot
	}
	target := slot % n

	cpu := -1
	for i, seen := 0, 0; i < len(allowed)*64; i++ {
		if !allowed.IsSet(i) {
			continue
		}
		if seen == target {
			cpu = i
			break
		}
		seen++
	}
	if cpu < 0 {
		return nil
	}

	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("pin to cpu %d: %w", cpu, err)
	}
	return nil
}
