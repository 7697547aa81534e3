package poller

import "fmt"

// PanicError reports a panic recovered inside a cycle.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("cycle panicked: %v", e.Value) }
