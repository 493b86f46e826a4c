package compute

import (
	"errors"
	"fmt"
)

// Device level errors.
var (
	// ErrDevice indicates initialization, submission or execution failure.
	ErrDevice = errors.New("compute: device error")

	// ErrAllocation indicates the device could not satisfy an allocation.
	ErrAllocation = errors.New("compute: insufficient device memory")

	// ErrNotMapped indicates host access to a buffer allocated without UsageHostVisible.
	ErrNotMapped = errors.New("compute: buffer is not host visible")

	// ErrHazard indicates two dispatches touch the same buffer without a barrier between them.
	ErrHazard = errors.New("compute: unsynchronized buffer hazard")

	// ErrFreed indicates use of a buffer after Free.
	ErrFreed = errors.New("compute: buffer already freed")
)

// StageError reports which recorded command failed while a batch executed.
type StageError struct {
	Stage   string
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Wrapped)
}

// Unwrap exposes both ErrDevice and the kernel's own error.
func (e *StageError) Unwrap() []error {
	return []error{ErrDevice, e.Wrapped}
}
