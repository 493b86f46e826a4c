// Package viz renders simulation output for the terminal.
//
//   - [PlotSweep]: asciigraph curve of a sweep metric against injected errors
//   - [SweepTable]: styled per-point summary
//   - [Canvas]: Braille pixel canvas, used by [MatrixCanvas] to draw the
//     sparsity pattern of a parity-check matrix
//
// Colors come from the current [Theme]; see [SetTheme].
package viz
