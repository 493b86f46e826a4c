package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/ldpcsim/internal/automation"
	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/experiment"
	"github.com/san-kum/ldpcsim/internal/export"
	"github.com/san-kum/ldpcsim/internal/ldpc"
	"github.com/san-kum/ldpcsim/internal/metrics"
	"github.com/san-kum/ldpcsim/internal/sim"
	"github.com/san-kum/ldpcsim/internal/storage"
	"github.com/san-kum/ldpcsim/internal/tui"
	"github.com/san-kum/ldpcsim/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	theme      string
	// Code
	messageBits  int
	parityBits   int
	rowsAtOnce   int
	columnWeight int
	matrixSeed   uint64
	decoder      string
	compare      string
	// Run
	iterations int
	injected   int
	seed       uint64
	runs       int
	// Device
	backend     string
	workers     int
	memoryLimit int64
	// Sweep
	sweepInjected []int
	sweepSeeds    int
	seedStart     uint64
	live          bool
	jsonOut       string
	// Output
	interactive bool
	noSave      bool
	matrixOut   string
	matrixIn    string
	plotMetric  string
	plotWidth   int
	plotHeight  int
	canvasW     int
	canvasH     int
	svgOut      string
	logScale    bool
	maxIters    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ldpcsim",
		Short:         "parallel LDPC encode/channel/decode simulation harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			viz.SetTheme(theme)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ldpcsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a named preset")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one seeded simulation (or an ensemble with --runs)",
		RunE:  runSimulation,
	}
	addCodeFlags(runCmd)
	addRunFlags(runCmd)
	addDeviceFlags(runCmd)
	runCmd.Flags().IntVar(&runs, "runs", 1, "consecutive seeds to run")
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "open the interactive run explorer")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "measure residual errors over a range of injected error counts",
		RunE:  runSweep,
	}
	addCodeFlags(sweepCmd)
	addRunFlags(sweepCmd)
	addDeviceFlags(sweepCmd)
	sweepCmd.Flags().IntSliceVar(&sweepInjected, "injected", nil, "injected error counts")
	sweepCmd.Flags().IntVar(&sweepSeeds, "seeds", config.DefaultSeeds, "seeds per point")
	sweepCmd.Flags().Uint64Var(&seedStart, "seed-start", 0, "first seed of every point")
	sweepCmd.Flags().BoolVar(&live, "live", false, "show live progress")
	sweepCmd.Flags().StringVar(&jsonOut, "json", "", "also export points as JSON to this path")
	sweepCmd.Flags().StringVar(&plotMetric, "metric", "ber", "metric to plot (ber, fer, mean)")
	sweepCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the sweep")

	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "generate the parity-check matrix and show or dump it",
		Long: `Generate the parity-check matrix for the code flags and render it.
With --in, load a dump written by --out instead, render it and check
that its seed still regenerates the same image.`,
		RunE: showMatrix,
	}
	addCodeFlags(matrixCmd)
	addDeviceFlags(matrixCmd)
	matrixCmd.Flags().StringVarP(&matrixOut, "out", "o", "", "write a zstd matrix dump to this path")
	matrixCmd.Flags().StringVar(&matrixIn, "in", "", "load and verify a zstd matrix dump instead of generating")
	matrixCmd.MarkFlagsMutuallyExclusive("in", "out")
	matrixCmd.Flags().IntVar(&canvasW, "width", 32, "canvas width in cells")
	matrixCmd.Flags().IntVar(&canvasH, "height", 40, "canvas height in cells")
	matrixCmd.Flags().StringVar(&svgOut, "svg", "", "also render the pattern as SVG to this path (- for stdout)")

	scriptCmd := &cobra.Command{
		Use:   "script [file]",
		Short: "run a YAML scenario of measurements",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	mincheckCmd := &cobra.Command{
		Use:   "mincheck",
		Short: "find the fewest BP iterations that clear every seed",
		RunE:  runMinCheck,
	}
	addCodeFlags(mincheckCmd)
	addRunFlags(mincheckCmd)
	addDeviceFlags(mincheckCmd)
	mincheckCmd.Flags().IntVar(&maxIters, "max-iterations", 50, "largest iteration count to try")
	mincheckCmd.Flags().IntVar(&sweepSeeds, "seeds", 1, "seeds that must all decode")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs and sweeps",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "print the metadata of a record",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [sweep_id]",
		Short: "plot a recorded sweep",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSweep,
	}
	plotCmd.Flags().StringVar(&plotMetric, "metric", "ber", "metric to plot (ber, fer, mean)")
	plotCmd.Flags().IntVar(&plotWidth, "width", 60, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height")
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "also write the curve as SVG to this path (- for stdout)")
	plotCmd.Flags().BoolVar(&logScale, "log", true, "log10 y axis in the SVG")

	exportCmd := &cobra.Command{
		Use:   "export [sweep_id]",
		Short: "export a recorded sweep as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSweep,
	}
	exportCmd.Flags().StringVarP(&jsonOut, "out", "o", "", "output path (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSHAPE\tDECODER\tCOMPARE\tITERS\tERRORS")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
					name, p.Shape(), p.Decoder, p.Compare, p.Run.BPIterations, p.Run.InjectedErrors)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, sweepCmd, matrixCmd, scriptCmd, mincheckCmd,
		listCmd, showCmd, plotCmd, exportCmd, presetsCmd, newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addCodeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&messageBits, "message-bits", "m", config.DefaultMessageBits, "message bits")
	f.IntVarP(&parityBits, "parity-bits", "p", config.DefaultParityBits, "parity bits")
	f.IntVar(&rowsAtOnce, "rows", config.DefaultRowsAtOnce, "rows processed per dispatch group")
	f.IntVar(&columnWeight, "column-weight", config.DefaultColumnWeight, "checks per message bit (0 picks a default for the shape)")
	f.Uint64Var(&matrixSeed, "matrix-seed", config.DefaultMatrixSeed, "matrix construction seed")
	f.StringVar(&decoder, "decoder", "sum-product", "check-node rule (sum-product, min-sum)")
	f.StringVar(&compare, "compare", "message", "what counts as an error (message, codeword)")
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&iterations, "iterations", "n", config.DefaultIterations, "belief propagation iterations")
	f.IntVarP(&injected, "errors", "k", 0, "channel errors to inject")
	f.Uint64Var(&seed, "seed", 1, "run seed")
}

func addDeviceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&backend, "backend", "auto", "compute backend (auto, cpu, cuda)")
	f.IntVar(&workers, "workers", 0, "device lanes (0 = one per CPU)")
	f.Int64Var(&memoryLimit, "memory-limit", 0, "device memory limit in bytes (0 = none)")
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("message-bits") {
		cfg.Code.MessageBits = messageBits
	}
	if changed("parity-bits") {
		cfg.Code.ParityBits = parityBits
	}
	if changed("rows") {
		cfg.Code.RowsAtOnce = rowsAtOnce
	}
	if changed("column-weight") {
		cfg.Code.ColumnWeight = columnWeight
	}
	if changed("matrix-seed") {
		cfg.Code.MatrixSeed = matrixSeed
	}
	if changed("decoder") {
		cfg.Decoder = decoder
	}
	if changed("compare") {
		cfg.Compare = compare
	}
	if changed("iterations") {
		cfg.Run.BPIterations = iterations
	}
	if changed("errors") {
		cfg.Run.InjectedErrors = injected
	}
	if changed("seed") {
		cfg.Run.Seed = seed
	}
	if changed("backend") {
		cfg.Device.Backend = backend
	}
	if changed("workers") {
		cfg.Device.Workers = workers
	}
	if changed("memory-limit") {
		cfg.Device.MemoryLimit = memoryLimit
	}
	if changed("injected") {
		cfg.Sweep.Injected = sweepInjected
	}
	if changed("seeds") {
		cfg.Sweep.Seeds = sweepSeeds
	}
	if changed("seed-start") {
		cfg.Sweep.SeedStart = seedStart
	}
	if cfg.Output == "" {
		cfg.Output = dataDir
	}

	return cfg, cfg.Validate()
}

func setup(ctx context.Context, cmd *cobra.Command) (*experiment.Experiment, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(ctx, experiment.NewRegistry()); err != nil {
		return nil, err
	}
	return exp, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	exp, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer exp.Close()
	cfg, session := exp.Config(), exp.GetSession()

	if interactive {
		title := fmt.Sprintf("%s  %s/%s", cfg.Shape(), cfg.Decoder, cfg.Compare)
		return tui.RunInteractive(ctx, session, title, cfg.RunParams())
	}

	tracker := metrics.NewBER(session.CountedBits())
	session.AddObserver(tracker)

	fmt.Printf("running %s on %s (%s, %d iterations, %d errors)...\n",
		cfg.Shape(), session.Backend().Name(), cfg.Decoder, cfg.Run.BPIterations, cfg.Run.InjectedErrors)

	results, err := sim.NewEnsemble(session, max(runs, 1), cfg.Run.Seed).
		WithWorkers(cfg.Sweep.Workers).Run(ctx, cfg.RunParams())
	if err != nil {
		return err
	}
	total, err := session.TotalErrors()
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("  seed %-6d residual errors %s  %.3fms\n",
			r.Params.Seed, viz.Status(r.BitErrorCount).Render(fmt.Sprint(r.BitErrorCount)), r.ElapsedMillis())
	}
	fmt.Printf("\ntotal errors: %d\n", total)
	if len(results) > 1 {
		fmt.Printf("BER: %.3e  FER: %.3f\n\n", tracker.Value(), tracker.FER())
		if graph, err := viz.PlotRuns(results, 60, 8); err == nil {
			fmt.Println(graph)
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveRun(cfg, results[0], uint64(total))
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	exp, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer exp.Close()
	cfg := exp.Config()
	if len(cfg.Sweep.Injected) == 0 {
		cfg.Sweep.Injected = []int{cfg.Run.InjectedErrors}
	}
	metric, err := viz.ParseMetric(plotMetric)
	if err != nil {
		return err
	}

	start := time.Now()
	var points []sim.SweepPoint
	if live {
		title := fmt.Sprintf("sweep %s  %s/%s  %d seeds", cfg.Shape(), cfg.Decoder, cfg.Compare, cfg.Sweep.Seeds)
		points, err = tui.RunSweep(ctx, title, len(cfg.Sweep.Injected), exp.Sweep)
	} else {
		points, err = exp.Sweep(ctx, func(done, total int, pt sim.SweepPoint) {
			fmt.Printf("  [%d/%d] k=%-4d mean %.3f  BER %.3e  FER %.3f\n",
				done, total, pt.Injected, pt.Mean, pt.BER, pt.FER)
		})
	}
	if err != nil {
		return err
	}

	fmt.Printf("\ncompleted in %v\n\n", time.Since(start).Round(time.Millisecond))
	fmt.Print(viz.SweepTable(points))
	if graph, err := viz.PlotSweep(points, metric, 60, 10); err == nil {
		fmt.Println()
		fmt.Println(graph)
	}

	if jsonOut != "" {
		if err := storage.ExportJSON(jsonOut, cfg, points); err != nil {
			return err
		}
	}
	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.SaveSweep(cfg, points)
	if err != nil {
		return err
	}
	fmt.Printf("\nsweep id: %s\n", id)
	return nil
}

func showMatrix(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if matrixIn != "" {
		return showMatrixDump(ctx, cmd)
	}

	exp, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer exp.Close()
	store := exp.GetSession().Matrix()

	bits, err := store.Map()
	if err != nil {
		return err
	}
	if err := renderMatrix(&storage.MatrixDump{
		Shape:        store.Shape(),
		ColumnWeight: store.ColumnWeight(),
		Seed:         store.Seed(),
		Bits:         bits,
	}, store.Graph()); err != nil {
		return err
	}

	if matrixOut != "" {
		if err := storage.DumpMatrix(matrixOut, store); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", matrixOut)
	}
	return nil
}

func showMatrixDump(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	d, err := storage.LoadMatrix(matrixIn)
	if err != nil {
		return err
	}
	if err := renderMatrix(d, ldpc.GraphFromMatrix(d.Shape, d.Bits)); err != nil {
		return err
	}

	backend, err := compute.Open(cfg.Device.Backend, compute.WithWorkers(cfg.Device.Workers))
	if err != nil {
		return err
	}
	defer backend.Cleanup()
	if err := storage.VerifyMatrix(ctx, backend, d); err != nil {
		return err
	}
	fmt.Printf("\n%s regenerates from seed %d\n", matrixIn, d.Seed)
	return nil
}

func renderMatrix(d *storage.MatrixDump, g *ldpc.Graph) error {
	minCheck, maxCheck := g.Vars, 0
	for c := 0; c < g.Checks; c++ {
		deg := g.CheckDegree(c)
		minCheck = min(minCheck, deg)
		maxCheck = max(maxCheck, deg)
	}

	fmt.Printf("matrix %s  seed %d  column weight %d\n", d.Shape, d.Seed, d.ColumnWeight)
	fmt.Printf("edges: %d  check degree: %d..%d  4-cycles: %d\n\n", g.Edges(), minCheck, maxCheck, g.FourCycles())

	canvas := viz.MatrixCanvas(d.Bits, d.Shape, canvasW, canvasH)
	fmt.Print(canvas)

	if svgOut != "" {
		return export.WriteFile(svgOut, os.Stdout, export.CanvasToSVG(canvas, 4))
	}
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Printf("%s\n", scenario.Description)
	}
	fmt.Println()

	results, err := automation.RunScenario(ctx, scenario, experiment.NewRegistry(), os.Stdout)
	if err != nil {
		return err
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tDECODER\tERRORS\tITERS\tRUNS\tMEAN\tMAX\tFER")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.3f\t%d\t%.3f\n",
			r.Name, r.Config.Decoder, r.Point.Injected, r.Config.Run.BPIterations,
			r.Point.Runs, r.Point.Mean, r.Point.Max, r.Point.FER)
	}
	return w.Flush()
}

func runMinCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	exp, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer exp.Close()
	cfg := exp.Config()

	candidates := make([]int, 0, maxIters+1)
	for i := 0; i <= maxIters; i++ {
		candidates = append(candidates, i)
	}
	seeds := max(sweepSeeds, 1)

	n, err := automation.MinIterations(ctx, exp.GetSession(), automation.IterationSearch{
		Iterations: candidates,
		Injected:   cfg.Run.InjectedErrors,
		Seeds:      seeds,
		SeedStart:  cfg.Run.Seed,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%d iterations clear %d injected errors for seeds %d..%d\n",
		n, cfg.Run.InjectedErrors, cfg.Run.Seed, cfg.Run.Seed+uint64(seeds)-1)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tSHAPE\tDECODER\tCOMPARE\tITERS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d+%d/%d\t%s\t%s\t%d\n",
			run.ID,
			run.Kind,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.MessageBits, run.ParityBits, run.RowsAtOnce,
			run.Decoder,
			run.Compare,
			run.BPIterations,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func plotSweep(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if meta.Kind != storage.KindSweep {
		return fmt.Errorf("%s is a %s record, not a sweep", meta.ID, meta.Kind)
	}
	points, err := st.LoadPoints(meta.ID)
	if err != nil {
		return err
	}
	metric, err := viz.ParseMetric(plotMetric)
	if err != nil {
		return err
	}

	fmt.Printf("sweep: %s\n", meta.ID)
	fmt.Printf("code: %d+%d, %s/%s, %d iterations\n\n",
		meta.MessageBits, meta.ParityBits, meta.Decoder, meta.Compare, meta.BPIterations)

	graph, err := viz.PlotSweep(points, metric, plotWidth, plotHeight)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	fmt.Println()
	fmt.Print(viz.SweepTable(points))

	if svgOut != "" {
		svg := export.SweepToSVG(points, metric.Value, 640, 400, logScale)
		return export.WriteFile(svgOut, os.Stdout, svg)
	}
	return nil
}

func exportSweep(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	points, err := st.LoadPoints(meta.ID)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Code = config.CodeConfig{
		MessageBits:  meta.MessageBits,
		ParityBits:   meta.ParityBits,
		RowsAtOnce:   meta.RowsAtOnce,
		ColumnWeight: meta.ColumnWeight,
		MatrixSeed:   meta.MatrixSeed,
	}
	cfg.Decoder, cfg.Compare = meta.Decoder, meta.Compare
	cfg.Run.BPIterations = meta.BPIterations

	if jsonOut == "" {
		return storage.WriteJSON(os.Stdout, cfg, points)
	}
	return storage.ExportJSON(jsonOut, cfg, points)
}
