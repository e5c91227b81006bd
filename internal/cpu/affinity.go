// Package cpu binds worker goroutines to OS threads and, where the
// platform allows it, to individual cores.
package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread and tries to restrict
// that thread to one of the CPUs the process may run on, chosen by slot.
// The returned function undoes the lock. A non-nil error means the thread
// is locked but not pinned.
func Pin(slot int) (func(), error) {
	runtime.LockOSThread()
	err := pin(slot)
	return runtime.UnlockOSThread, err
}
