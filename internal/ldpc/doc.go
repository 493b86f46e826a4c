// Package ldpc holds the data model and kernels of the LDPC simulation:
// the packed parity-check matrix and its Tanner graph, the encoder, the
// binary symmetric channel, the belief propagation decoder and the bit
// error accounting.
//
// Kernels are plain compute.Kernel values produced by a Program. A Program
// is specialized for one Shape, decoder Rule, compare Policy and codeword
// Mode; ProgramCache builds each combination once.
//
// Bit i of any packed region lives in byte i/8 at bit position i%8. The
// matrix holds (m+p) rows of p bits, row r being variable node r and
// column c check node c. A decode-mode codeword is laid out as
//
//	[0, m)        message
//	[m, m+p)      parity, replaced by the decoded hard decision
//	[m+p, 2m+p)   pristine copy of the message
//
// Decoder messages are log-likelihood ratios ln P(0)/P(1).
package ldpc
