package pool

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrTaskPanicked matches any error produced by a task that panicked.
	ErrTaskPanicked = errors.New("pool: task panicked")

	// ErrAlreadyJoined is returned by JoinHandle.Join once the results were drained.
	ErrAlreadyJoined = errors.New("pool: results already joined")

	// ErrInvariant marks corrupted pool bookkeeping. Errors wrapping it are
	// raised as panics and never recovered by the task boundary.
	ErrInvariant = errors.New("pool: internal invariant violated")
)

// stackSize bounds the stack trace captured for a panicking task.
const stackSize = 4096

// PanicError carries the value a task panicked with and the goroutine
// stack at the point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}

// Is reports a match against ErrTaskPanicked.
func (e *PanicError) Is(target error) bool {
	return target == ErrTaskPanicked
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// recovered turns a recovered value into a *PanicError. Invariant
// violations are re-raised.
func recovered(r any) error {
	if err, ok := r.(error); ok && errors.Is(err, ErrInvariant) {
		panic(r)
	}
	buf := make([]byte, stackSize)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: r, Stack: buf[:n]}
}

func invariant(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...)))
}
