package sim

import (
	"time"

	"github.com/san-kum/ldpcsim/internal/ldpc"
)

const (
	DefaultPoolCapacity = 4
	DefaultMatrixSeed   = 1
)

type Options struct {
	Shape        ldpc.Shape
	Rule         ldpc.Rule
	Policy       ldpc.Policy
	ColumnWeight int
	MatrixSeed   uint64
	// Mode ModeEncodeOnly accepts shapes whose decode layout is not byte
	// aligned. Such a session can Encode but not Run.
	Mode ldpc.Mode
	// HostVisibleMatrix lets callers read the matrix back with Matrix().Map.
	HostVisibleMatrix bool
	// PoolCapacity bounds the runs that may hold buffers at the same time.
	PoolCapacity int
}

type Result struct {
	Params        ldpc.RunParams
	BitErrorCount uint32
	// Elapsed is host wall time from submission to completion.
	Elapsed time.Duration
	// DeviceTime is the execution time reported by the fence.
	DeviceTime time.Duration
	Stages     []string
}

func (r *Result) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

type Observer interface {
	OnRun(r *Result)
	OnFailure(stage string, err error)
}

// Stage names for failures that happen before the batch reaches the device.
const (
	StageValidate = "validate"
	StageAcquire  = "acquire"
	StageSubmit   = "submit"
)
