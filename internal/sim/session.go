package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

// Session owns everything that outlives a single run: the matrix, the
// error accumulator, the kernel programs and the buffer pools.
type Session struct {
	backend compute.Backend
	opts    Options

	matrix   *ldpc.MatrixStore
	acc      *ldpc.Accumulator
	programs *ldpc.ProgramCache

	codewords  *BufferPool
	workspaces *BufferPool
	counters   *BufferPool
	encoded    *BufferPool

	mu        sync.RWMutex
	observers []Observer
}

func NewSession(backend compute.Backend, opts Options) (*Session, error) {
	if opts.MatrixSeed == 0 {
		opts.MatrixSeed = DefaultMatrixSeed
	}
	if opts.PoolCapacity <= 0 {
		opts.PoolCapacity = DefaultPoolCapacity
	}

	programs := ldpc.NewProgramCache()
	key := decodeKey(opts)
	if opts.Mode == ldpc.ModeEncodeOnly {
		key = encodeKey(opts)
	}
	if _, err := programs.Get(key); err != nil {
		return nil, err
	}

	matrix, err := ldpc.NewMatrixStore(backend, opts.Shape, ldpc.MatrixOptions{
		ColumnWeight: opts.ColumnWeight,
		HostVisible:  opts.HostVisibleMatrix,
	})
	if err != nil {
		return nil, err
	}
	acc, err := ldpc.NewAccumulator(backend)
	if err != nil {
		return nil, err
	}

	shape, capacity := opts.Shape, opts.PoolCapacity
	return &Session{
		backend:    backend,
		opts:       opts,
		matrix:     matrix,
		acc:        acc,
		programs:   programs,
		codewords:  NewBufferPool(backend, "codeword", shape.CodewordBytes(ldpc.ModeDecode), compute.UsageStorage|compute.UsageAtomic, capacity),
		workspaces: NewBufferPool(backend, "workspace", shape.WorkspaceBytes(), compute.UsageStorage, capacity),
		counters:   NewBufferPool(backend, "run-errors", 4, compute.UsageStorage|compute.UsageAtomic, capacity),
		encoded:    NewBufferPool(backend, "encoded", shape.CodewordBytes(ldpc.ModeEncodeOnly), compute.UsageStorage|compute.UsageHostVisible|compute.UsageAtomic, capacity),
	}, nil
}

func decodeKey(o Options) ldpc.ProgramKey {
	return ldpc.ProgramKey{Shape: o.Shape, Rule: o.Rule, Policy: o.Policy, Mode: ldpc.ModeDecode}
}

func encodeKey(o Options) ldpc.ProgramKey {
	return ldpc.ProgramKey{Shape: o.Shape, Mode: ldpc.ModeEncodeOnly}
}

func (s *Session) Options() Options             { return s.opts }
func (s *Session) Shape() ldpc.Shape            { return s.opts.Shape }
func (s *Session) Backend() compute.Backend     { return s.backend }
func (s *Session) Matrix() *ldpc.MatrixStore    { return s.matrix }
func (s *Session) Programs() *ldpc.ProgramCache { return s.programs }

// InFlight is the number of runs currently holding pooled buffers.
func (s *Session) InFlight() int { return s.codewords.InUse() }

func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Generate publishes the matrix for the session's matrix seed. It waits for
// in-flight runs to finish first.
func (s *Session) Generate(ctx context.Context) error {
	return s.matrix.Generate(ctx, s.opts.MatrixSeed)
}

func (s *Session) Reset(ctx context.Context) error {
	return s.matrix.Reset(ctx)
}

// ResetErrors clears the accumulator before an isolated measurement.
func (s *Session) ResetErrors(ctx context.Context) error {
	return s.acc.Reset(ctx)
}

// TotalErrors reads the accumulator. Call it only once the runs it should
// cover have returned.
func (s *Session) TotalErrors() (uint32, error) {
	return s.acc.Load()
}

// CountedBits is the number of bits the compare policy looks at per run.
func (s *Session) CountedBits() int {
	if s.opts.Policy == ldpc.PolicyCodeword {
		return s.opts.Shape.CodewordBits()
	}
	return s.opts.Shape.MessageBits
}

// Run executes one trial as a single batch:
// encode, channel, decode stages, compare and fold, with a barrier after
// each. It makes exactly one attempt.
func (s *Session) Run(ctx context.Context, p ldpc.RunParams) (*Result, error) {
	if s.opts.Mode == ldpc.ModeEncodeOnly {
		return nil, s.fail(StageValidate, &ldpc.ConfigError{Field: "mode", Value: int(s.opts.Mode),
			Reason: "encode-only session cannot run the decode pipeline"})
	}
	if err := p.Validate(s.opts.Shape); err != nil {
		return nil, s.fail(StageValidate, err)
	}
	program, err := s.programs.Get(decodeKey(s.opts))
	if err != nil {
		return nil, s.fail(StageValidate, err)
	}

	view, err := s.matrix.Acquire()
	if err != nil {
		return nil, s.fail(StageAcquire, err)
	}
	defer view.Release()

	bufs, release, err := s.checkout()
	if err != nil {
		return nil, s.fail(StageAcquire, err)
	}
	defer release()

	b := ldpc.Bindings{
		Matrix:      view.Buffer,
		Graph:       view.Graph,
		Codeword:    bufs[0],
		Workspace:   bufs[1],
		RunErrors:   bufs[2],
		Accumulator: s.acc.Buffer(),
	}

	batch := compute.NewBatch("run")
	batch.Fill(b.Codeword, 0).Fill(b.RunErrors, 0).Barrier()
	batch.Dispatch(program.EncodeKernel(b, p)).Barrier()
	batch.Dispatch(program.ChannelKernel(b, p)).Barrier()
	for _, k := range program.DecodeKernels(b, p) {
		batch.Dispatch(k).Barrier()
	}
	batch.Dispatch(program.CompareKernel(b)).Barrier()
	batch.Dispatch(ldpc.FoldKernel(b))

	start := time.Now()
	fence, err := s.backend.Submit(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(StageSubmit, err)
		}
		return nil, s.fail(StageSubmit, &ldpc.StageError{Stage: StageSubmit, Wrapped: err})
	}
	if err := fence.Wait(); err != nil {
		var stageErr *ldpc.StageError
		if !errors.As(err, &stageErr) {
			err = &ldpc.StageError{Stage: "wait", Wrapped: err}
		}
		return nil, s.fail(stageName(err), err)
	}

	res := &Result{
		Params:        p,
		BitErrorCount: b.RunErrors.LoadUint32(0),
		Elapsed:       time.Since(start),
		DeviceTime:    fence.Elapsed(),
		Stages:        dispatchStages(batch),
	}
	s.notify(res)
	return res, nil
}

// Encode runs the encoder alone and returns the [message | parity] codeword
// of ceil((m+p)/8) bytes.
func (s *Session) Encode(ctx context.Context, p ldpc.RunParams) ([]byte, error) {
	if err := p.Validate(s.opts.Shape); err != nil {
		return nil, err
	}
	program, err := s.programs.Get(encodeKey(s.opts))
	if err != nil {
		return nil, err
	}
	view, err := s.matrix.Acquire()
	if err != nil {
		return nil, err
	}
	defer view.Release()

	cw, err := s.encoded.Get()
	if err != nil {
		return nil, err
	}
	defer s.encoded.Put(cw)

	batch := compute.NewBatch("encode")
	batch.Fill(cw, 0).Barrier()
	batch.Dispatch(program.EncodeKernel(ldpc.Bindings{Matrix: view.Buffer, Codeword: cw}, p))
	fence, err := s.backend.Submit(ctx, batch)
	if err != nil {
		return nil, &ldpc.StageError{Stage: StageSubmit, Wrapped: err}
	}
	if err := fence.Wait(); err != nil {
		return nil, err
	}
	data, err := cw.Map()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(data), nil
}

func (s *Session) checkout() ([3]*compute.Buffer, func(), error) {
	var bufs [3]*compute.Buffer
	pools := [3]*BufferPool{s.codewords, s.workspaces, s.counters}
	release := func() {
		for i, b := range bufs {
			if b != nil {
				pools[i].Put(b)
			}
		}
	}
	for i, pool := range pools {
		b, err := pool.Get()
		if err != nil {
			release()
			return bufs, func() {}, err
		}
		bufs[i] = b
	}
	return bufs, release, nil
}

func (s *Session) fail(stage string, err error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.OnFailure(stage, err)
	}
	return err
}

func (s *Session) notify(r *Result) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.OnRun(r)
	}
}

func stageName(err error) string {
	var stageErr *ldpc.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

func dispatchStages(b *compute.Batch) []string {
	var out []string
	for _, st := range b.Stages() {
		if st != "barrier" {
			out = append(out, st)
		}
	}
	return out
}

// Close frees the session's buffers. The backend stays open.
func (s *Session) Close() {
	s.codewords.Close()
	s.workspaces.Close()
	s.counters.Close()
	s.encoded.Close()
	s.matrix.Free()
	s.acc.Free()
}

func (s *Session) String() string {
	return fmt.Sprintf("%s %s/%s on %s", s.opts.Shape, s.opts.Rule, s.opts.Policy, s.backend.Name())
}
