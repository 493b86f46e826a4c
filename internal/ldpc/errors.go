package ldpc

import (
	"errors"
	"fmt"

	"github.com/san-kum/ldpcsim/internal/compute"
)

// Error taxonomy shared by the store, the kernels and the harness.
var (
	// ErrConfiguration indicates a shape or parameter set that cannot be sized or specialized.
	ErrConfiguration = errors.New("ldpc: invalid configuration")

	// ErrResourceExhausted indicates a pooled buffer could not be acquired.
	ErrResourceExhausted = errors.New("ldpc: resource exhausted")

	// ErrMatrixNotGenerated indicates a run against a store that was never generated or was reset.
	ErrMatrixNotGenerated = errors.New("ldpc: parity-check matrix not generated")

	ErrDevice     = compute.ErrDevice
	ErrAllocation = compute.ErrAllocation
	ErrNotMapped  = compute.ErrNotMapped
)

// StageError names the pipeline stage that failed.
type StageError = compute.StageError

// ConfigError wraps ErrConfiguration with the offending field.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%d: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
