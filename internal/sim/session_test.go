package sim

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

var scenarioShape = ldpc.Shape{MessageBits: 224, ParityBits: 64, RowsAtOnce: 64}

const (
	scenarioBSeed = 2
	// Seed 2 under matrix seed 1 clears after 3 sum-product iterations;
	// the scenario runs 5.
	scenarioBIterations = 5
)

func newSession(opts Options) *Session {
	s, err := NewSession(compute.NewCPUBackend(compute.WithWorkers(4)), opts)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.Generate(context.Background())).To(Succeed())
	DeferCleanup(s.Close)
	return s
}

var _ = Describe("Session", func() {
	var (
		ctx     context.Context
		session *Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		session = newSession(Options{Shape: scenarioShape, HostVisibleMatrix: true})
	})

	Describe("scenario A", func() {
		It("decodes a clean channel without errors", func() {
			res, err := session.Run(ctx, ldpc.RunParams{BPIterations: 1, Seed: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.BitErrorCount).To(BeZero())
			Expect(res.Elapsed).To(BeNumerically(">", 0))
		})

		It("publishes a 2304 byte matrix", func() {
			data, err := session.Matrix().Map()
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveLen(2304))
		})
	})

	Describe("scenario B", func() {
		It("recovers five injected errors with sum-product", func() {
			res, err := session.Run(ctx, ldpc.RunParams{
				BPIterations:   scenarioBIterations,
				InjectedErrors: 5,
				Seed:           scenarioBSeed,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.BitErrorCount).To(BeZero())
		})

		It("recovers them with min-sum as well", func() {
			ms := newSession(Options{Shape: scenarioShape, Rule: ldpc.RuleMinSum})
			res, err := ms.Run(ctx, ldpc.RunParams{BPIterations: 20, InjectedErrors: 5, Seed: scenarioBSeed})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.BitErrorCount).To(BeZero())
		})

		It("leaves errors when decoding is skipped", func() {
			res, err := session.Run(ctx, ldpc.RunParams{InjectedErrors: 5, Seed: scenarioBSeed})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.BitErrorCount).To(BeEquivalentTo(5))
		})
	})

	It("never reports errors on a clean channel", func() {
		for _, policy := range []ldpc.Policy{ldpc.PolicyMessage, ldpc.PolicyCodeword} {
			s := newSession(Options{Shape: scenarioShape, Policy: policy})
			for seed := uint64(0); seed < 16; seed++ {
				for _, iters := range []int{0, 1, 4} {
					res, err := s.Run(ctx, ldpc.RunParams{BPIterations: iters, Seed: seed * 7919})
					Expect(err).NotTo(HaveOccurred())
					Expect(res.BitErrorCount).To(BeZero(), "policy %s seed %d iterations %d", policy, seed, iters)
				}
			}
		}
	})

	It("is deterministic for fixed parameters", func() {
		params := ldpc.RunParams{BPIterations: 10, InjectedErrors: 40, Seed: 77}
		first, err := session.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 5; i++ {
			again, err := session.Run(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.BitErrorCount).To(Equal(first.BitErrorCount))
		}
	})

	It("accumulates across runs until reset", func() {
		params := ldpc.RunParams{InjectedErrors: 30, Seed: 5}
		var want uint32
		for i := 0; i < 3; i++ {
			res, err := session.Run(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			want += res.BitErrorCount
		}
		Expect(want).To(BeNumerically(">", 0))
		Expect(session.TotalErrors()).To(Equal(want))

		Expect(session.ResetErrors(ctx)).To(Succeed())
		Expect(session.TotalErrors()).To(BeZero())
	})

	It("records every stage in order", func() {
		res, err := session.Run(ctx, ldpc.RunParams{BPIterations: 2, InjectedErrors: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Stages).To(Equal([]string{
			"fill:codeword", "fill:run-errors",
			"encode", "channel",
			"decode.init", "decode.check[0]", "decode.variable[0]", "decode.check[1]", "decode.decide",
			"compare", "fold",
		}))
	})

	It("builds the decode program once", func() {
		for i := 0; i < 4; i++ {
			_, err := session.Run(ctx, ldpc.RunParams{BPIterations: 1, Seed: uint64(i)})
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(session.Programs().Builds()).To(BeEquivalentTo(1))
		Expect(session.InFlight()).To(BeZero())
	})

	Describe("matrix lifecycle", func() {
		It("refuses runs after reset and regenerates the same matrix", func() {
			before, err := session.Matrix().Map()
			Expect(err).NotTo(HaveOccurred())

			Expect(session.Reset(ctx)).To(Succeed())
			_, err = session.Run(ctx, ldpc.RunParams{BPIterations: 1})
			Expect(err).To(MatchError(ldpc.ErrMatrixNotGenerated))

			Expect(session.Generate(ctx)).To(Succeed())
			after, err := session.Matrix().Map()
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})
	})

	Describe("encode-only", func() {
		It("returns the systematic codeword", func() {
			params := ldpc.RunParams{Seed: 9}
			cw, err := session.Encode(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(cw).To(HaveLen(36))
			Expect(ldpc.Syndrome(session.Matrix().Graph(), cw)).To(BeZero())

			msg := ldpc.Message(scenarioShape, params)
			Expect(cw[:28]).To(Equal(msg))
		})

		It("encodes a supplied message", func() {
			msg := make([]byte, 28)
			msg[3] = 0xa5
			cw, err := session.Encode(ctx, ldpc.RunParams{Message: msg})
			Expect(err).NotTo(HaveOccurred())
			Expect(cw[:28]).To(Equal(msg))
		})
	})

	Describe("encode-only session", func() {
		// 2*5+8 = 18 bits is not byte aligned, so only the encode layout fits.
		oddShape := ldpc.Shape{MessageBits: 5, ParityBits: 8, RowsAtOnce: 8}

		It("is refused as a decode session", func() {
			_, err := NewSession(compute.NewCPUBackend(), Options{Shape: oddShape})
			Expect(err).To(MatchError(ldpc.ErrConfiguration))
		})

		It("encodes a shape whose decode layout is not byte aligned", func() {
			enc := newSession(Options{Shape: oddShape, Mode: ldpc.ModeEncodeOnly, HostVisibleMatrix: true})

			params := ldpc.RunParams{Seed: 3}
			cw, err := enc.Encode(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(cw).To(HaveLen(2))
			Expect(ldpc.Syndrome(enc.Matrix().Graph(), cw)).To(BeZero())

			msg := ldpc.Message(oddShape, params)
			for i := 0; i < oddShape.MessageBits; i++ {
				Expect(ldpc.Bit(cw, i)).To(Equal(ldpc.Bit(msg, i)), "message bit %d", i)
			}
		})

		It("refuses to run the decode pipeline", func() {
			enc := newSession(Options{Shape: oddShape, Mode: ldpc.ModeEncodeOnly})
			obs := &recorder{}
			enc.AddObserver(obs)

			_, err := enc.Run(ctx, ldpc.RunParams{BPIterations: 1})
			Expect(err).To(MatchError(ldpc.ErrConfiguration))
			Expect(obs.failures).To(Equal([]string{StageValidate}))
		})
	})

	Describe("configuration", func() {
		It("rejects shapes that cannot be sized", func() {
			_, err := NewSession(compute.NewCPUBackend(), Options{
				Shape: ldpc.Shape{MessageBits: 224, ParityBits: 64, RowsAtOnce: 48},
			})
			Expect(err).To(MatchError(ldpc.ErrConfiguration))
		})

		It("rejects run parameters outside the codeword", func() {
			_, err := session.Run(ctx, ldpc.RunParams{InjectedErrors: 289})
			Expect(err).To(MatchError(ldpc.ErrConfiguration))
		})
	})
})

var _ = Describe("RunSimulation", func() {
	It("runs scenario B in one call and releases its buffers", func() {
		backend := compute.NewCPUBackend()
		DeferCleanup(backend.Cleanup)

		res, err := RunSimulation(context.Background(), backend, scenarioShape, ldpc.RunParams{
			BPIterations:   scenarioBIterations,
			InjectedErrors: 5,
			Seed:           scenarioBSeed,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.BitErrorCount).To(BeZero())
		Expect(res.ElapsedMillis()).To(BeNumerically(">", 0))
		Expect(backend.Stats().Buffers).To(BeZero())
	})

	It("rejects a shape that cannot be sized", func() {
		_, err := RunSimulation(context.Background(), compute.NewCPUBackend(),
			ldpc.Shape{MessageBits: 13, ParityBits: 6, RowsAtOnce: 8}, ldpc.RunParams{})
		Expect(err).To(MatchError(ldpc.ErrConfiguration))
	})
})
