package flowstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction. Constructors panic with these
// when given arguments no graph could run with.
var (
	// ErrNilNode indicates a nil *Node was passed to a combinator or operator.
	ErrNilNode = errors.New("node cannot be nil")

	// ErrNilScheduler indicates a time-aware operator was built without a scheduler.
	ErrNilScheduler = errors.New("scheduler cannot be nil")

	// ErrInvalidInterval indicates a non-positive window, interval or count.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrNilFunc indicates a nil fold, predicate, factory or body.
	ErrNilFunc = errors.New("function cannot be nil")
)

// PanicError captures a panic recovered while pushing an event into a
// stream root. It includes the stack trace for debugging.
type PanicError struct {
	// Root is the index of the root, in AddStream order, that panicked.
	Root int
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stream %d panicked: %v", e.Root, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// argPanic reports a construction error for operator op.
func argPanic(op string, err error) {
	panic(fmt.Errorf("flowstream.%s: %w", op, err))
}
