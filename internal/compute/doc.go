// Package compute provides the device the simulation kernels run on.
//
// A backend hands out device buffers, records kernels into batches and
// executes a submitted batch as a sequence of barrier-separated phases:
//
//   - CPU: lanes of each dispatch are split across a bounded goroutine pool
//   - CUDA: reported unavailable in this build
//
// # Recording a batch
//
//	b := compute.NewBatch("trial")
//	b.Fill(cw, 0).Barrier()
//	b.Dispatch(encode).Barrier()
//	b.Dispatch(compare)
//	fence, err := backend.Submit(ctx, b)
//	err = fence.Wait()
//
// Dispatches recorded without a barrier between them may run at the same
// time. With validation enabled the CPU backend refuses such a batch if the
// dispatches share a written buffer.
package compute
