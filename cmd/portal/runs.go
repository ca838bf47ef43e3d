package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/neonportal/internal/config"
	"github.com/san-kum/neonportal/internal/dynamo"
	"github.com/san-kum/neonportal/internal/export"
	"github.com/san-kum/neonportal/internal/field"
	"github.com/san-kum/neonportal/internal/metrics"
	"github.com/san-kum/neonportal/internal/rng"
	"github.com/san-kum/neonportal/internal/sim"
	"github.com/san-kum/neonportal/internal/store"
)

var (
	steps       int
	windows     int
	joinAt      int
	sampleEvery int
	metricNames []string
	seedCount   int
	particle    int
	outFile     string
)

func runCommands() []*cobra.Command {
	headlessFlags := func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&steps, "steps", 600, "fixed steps to run")
		cmd.Flags().IntVar(&windows, "windows", 1, "synthetic side-by-side windows")
		cmd.Flags().IntVar(&joinAt, "join-at", 0, "step at which the extra windows appear")
		cmd.Flags().StringSliceVar(&metricNames, "metrics", metrics.Names(), "metrics to record")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the field headlessly and archive it",
		RunE:  runHeadless,
	}
	headlessFlags(runCmd)
	runCmd.Flags().IntVar(&sampleEvery, "sample", 10, "record positions every n steps (0 disables)")

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "run headlessly and plot metric series",
		RunE:  traceRun,
	}
	headlessFlags(traceCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "run an ensemble of seeds in parallel",
		RunE:  benchRun,
	}
	headlessFlags(benchCmd)
	benchCmd.Flags().IntVar(&seedCount, "seeds", 8, "number of seeds")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  listRuns,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export an archived run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRunJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw one particle's recorded path as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRunSVG,
	}
	exportSVGCmd.Flags().IntVar(&particle, "particle", 0, "particle slot")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default <run_id>.svg)")

	return []*cobra.Command{runCmd, traceCmd, benchCmd, listCmd, exportJSONCmd, exportSVGCmd}
}

// coreSchedule places one core per synthetic window, all windows joining
// at step joinAt. Before that only the first window is live.
func coreSchedule(cfg *config.Config) sim.CoreFunc {
	layout := cfg.SimLayout()
	arranged := sim.Arrange(windows, float64(cfg.Width), float64(cfg.Height), 0)
	all := layout.Cores(arranged, windows > 1)
	first := layout.Cores(arranged[:1], false)
	return func(step int64) []dynamo.Vec3 {
		if step < int64(joinAt) {
			return first
		}
		return all
	}
}

func headlessSetup(cmd *cobra.Command) (*config.Config, field.Params, uint32, error) {
	if windows < 1 {
		return nil, field.Params{}, 0, fmt.Errorf("windows must be at least 1: %w", dynamo.ErrNoWindows)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, field.Params{}, 0, err
	}
	params, err := cfg.FieldParams(cfg.ReducedMotion)
	if err != nil {
		return nil, field.Params{}, 0, err
	}
	s := cfg.Seed
	if s == 0 {
		if s, err = rng.NewSeed(); err != nil {
			return nil, field.Params{}, 0, err
		}
	}
	return cfg, params, s, nil
}

func simulate(cmd *cobra.Command, cfg *config.Config, params field.Params, s uint32, runCfg sim.Config) (*sim.Result, error) {
	f, err := field.New(s, params)
	if err != nil {
		return nil, err
	}
	simulator := sim.New(f, sim.NewClock(0, int64(cfg.Layout.MaxCatchUp)))
	ms, err := metrics.New(params, metricNames...)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		simulator.AddMetric(m)
	}
	return simulator.Run(cmd.Context(), runCfg, coreSchedule(cfg))
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, params, s, err := headlessSetup(cmd)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := simulate(cmd, cfg, params, s, sim.Config{
		Steps:       steps,
		SampleEvery: sampleEvery,
		Record:      sampleEvery > 0,
		Validate:    true,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(store.RunMetadata{
		Preset:    cfg.Preset,
		Seed:      s,
		Particles: params.Count,
		Windows:   windows,
	}, result)
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", runID)
	fmt.Printf("  seed %d, %d particles, %d windows, %d steps in %v\n", s, params.Count, windows, result.StepsTaken, elapsed.Round(time.Millisecond))
	for _, name := range metricNames {
		fmt.Printf("  %-14s %.4f\n", name, result.Metrics[name])
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %v\n", e)
	}
	return nil
}

func traceRun(cmd *cobra.Command, args []string) error {
	cfg, params, s, err := headlessSetup(cmd)
	if err != nil {
		return err
	}
	result, err := simulate(cmd, cfg, params, s, sim.Config{Steps: steps, SampleEvery: 1})
	if err != nil {
		return err
	}

	for _, name := range metricNames {
		data := result.Series[name]
		if len(data) == 0 {
			continue
		}
		graph := asciigraph.Plot(downsample(data, 200),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s (seed %d, %d windows)", name, s, windows)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// downsample keeps at most n evenly spaced values.
func downsample(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = data[i*len(data)/n]
	}
	return out
}

func benchRun(cmd *cobra.Command, args []string) error {
	cfg, params, base, err := headlessSetup(cmd)
	if err != nil {
		return err
	}
	if seedCount < 1 {
		return fmt.Errorf("seeds must be positive: %w", dynamo.ErrParameterBounds)
	}
	if _, err := metrics.New(params, metricNames...); err != nil {
		return err
	}

	seeds := make([]uint32, seedCount)
	for i := range seeds {
		seeds[i] = base + uint32(i)
	}
	ensemble := sim.NewEnsemble(params, func() []sim.Metric {
		ms, _ := metrics.New(params, metricNames...)
		return ms
	})

	start := time.Now()
	results, err := ensemble.Run(cmd.Context(), seeds, sim.Config{Steps: steps}, coreSchedule(cfg))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SEED\tSTEPS\t%s\n", strings.ToUpper(strings.Join(metricNames, "\t")))
	for _, r := range results {
		row := make([]string, len(metricNames))
		for i, name := range metricNames {
			row[i] = fmt.Sprintf("%.4f", r.Metrics[name])
		}
		fmt.Fprintf(w, "%d\t%d\t%s\n", r.Seed, r.StepsTaken, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	total := float64(steps*seedCount) * float64(params.Count)
	fmt.Printf("\n%d seeds x %d steps in %v (%.1fM particle-steps/s)\n",
		seedCount, steps, elapsed.Round(time.Millisecond), total/elapsed.Seconds()/1e6)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tSEED\tSTEPS\tPARTICLES\tWINDOWS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Steps,
			run.Particles,
			run.Windows,
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*store.RunMetadata, *sim.Result, error) {
	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	snaps, err := st.LoadSnapshots(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, &sim.Result{
		Seed:       meta.Seed,
		StepsTaken: meta.Steps,
		Snapshots:  snaps,
		Metrics:    meta.Metrics,
	}, nil
}

func exportRunJSON(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outFile == "" {
		return store.ExportJSONTo(os.Stdout, *meta, result)
	}
	if err := store.ExportJSON(outFile, *meta, result); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}

func exportRunSVG(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if particle < 0 || particle >= meta.Particles {
		return fmt.Errorf("particle %d out of range [0, %d): %w", particle, meta.Particles, dynamo.ErrParameterBounds)
	}

	points := make([]struct{ X, Y float64 }, 0, len(result.Snapshots))
	for _, snap := range result.Snapshots {
		if i := particle * 3; i+1 < len(snap.Positions) {
			points = append(points, struct{ X, Y float64 }{snap.Positions[i], snap.Positions[i+1]})
		}
	}
	svg := export.TrajectoryToSVG(points, 800, 600, "#ff5efb")
	if svg == "" {
		return fmt.Errorf("run %s has fewer than two snapshots", args[0])
	}

	path := outFile
	if path == "" {
		path = args[0] + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d points)\n", path, len(points))
	return nil
}
