//go:build !linux

package cpu

// pin is a no-op: only Linux exposes per-thread affinity through x/sys.
func pin(int) error { return nil }
