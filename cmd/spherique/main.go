package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/spherique/internal/analysis"
	"github.com/san-kum/spherique/internal/colorsrc"
	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/export"
	"github.com/san-kum/spherique/internal/metrics"
	"github.com/san-kum/spherique/internal/optim"
	"github.com/san-kum/spherique/internal/physics"
	"github.com/san-kum/spherique/internal/sim"
	"github.com/san-kum/spherique/internal/storage"
	"github.com/san-kum/spherique/internal/trace"
	"github.com/san-kum/spherique/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	headless   bool
	imagePath  string
	runImage   string
	themeName  string
	snapDir    string
	svgDir     string
	outPath    string
	seed       uint64
	steps      int
	parallel   bool
	format     string
	scale      float64
	numRuns    int
	series     string
	sweepGrid  []string
	metricName string
	top        int

	logger *log.Logger
)

// defaultImage is tried on every run; its absence is not an error.
const defaultImage = "input_image.jpg"

func main() {
	rootCmd := &cobra.Command{
		Use:   "spherique",
		Short: "verlet particle spawner with replayable traces",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = log.NewWithOptions(os.Stderr, log.Options{
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "spherique",
			})
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".spherique", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "compute a run, store it and replay it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&headless, "headless", false, "skip the replay")
	runCmd.Flags().StringVar(&runImage, "image", defaultImage, "recolour spawns from this image")
	runCmd.Flags().StringVar(&outPath, "out", "", "also write the trace to this file")
	runCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "random seed")
	runCmd.Flags().IntVar(&steps, "steps", 0, "override total steps")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "parallel per-particle passes")
	addReplayFlags(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay [run_id|trace.csv]",
		Short: "replay a stored run or a trace file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  replayRun,
	}
	addConfigFlags(replayCmd)
	addReplayFlags(replayCmd)

	recolorCmd := &cobra.Command{
		Use:   "recolor [run_id]",
		Short: "recolour a stored trace from an image",
		Args:  cobra.MaximumNArgs(1),
		RunE:  recolorRun,
	}
	recolorCmd.Flags().StringVar(&imagePath, "image", "", "source image")
	_ = recolorCmd.MarkFlagRequired("image")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot per-step statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgDir, "svg", "", "also write each series as an svg into this directory")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "power spectrum of a per-step statistic",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&series, "series", "energy", "energy, live or contacts")

	exportCmd := &cobra.Command{
		Use:     "export [run_id]",
		Aliases: []string{"export-svg"},
		Short:   "export the final particles as svg, png or json",
		Args:    cobra.MaximumNArgs(1),
		RunE:    exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "svg", "svg, png or json")
	exportCmd.Flags().StringVar(&outPath, "out", "", "output file (default <run_id>.<format>)")
	exportCmd.Flags().Float64Var(&scale, "scale", 1, "svg pixels per world unit")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a preset as an editable yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&preset, "preset", "default", "preset to write")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "run an ensemble of seeds and report throughput",
		RunE:  benchRuns,
	}
	benchCmd.Flags().StringVar(&preset, "preset", "default", "preset")
	benchCmd.Flags().IntVar(&numRuns, "runs", runtime.NumCPU(), "ensemble size")
	benchCmd.Flags().IntVar(&steps, "steps", 0, "override total steps")
	benchCmd.Flags().Uint64Var(&seed, "seed", config.DefaultSeed, "first seed")

	sweepCmd := &cobra.Command{
		Use:     "sweep",
		Short:   "grid search config parameters against a run metric",
		Example: "  spherique sweep --param bounce_loss=0.5,0.7,0.9 --param substeps=4,8 --metric energy_drift",
		Args:    cobra.NoArgs,
		RunE:    sweepParams,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepGrid, "param", nil, "name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&metricName, "metric", "energy_drift", "metric to minimise")
	sweepCmd.Flags().IntVar(&steps, "steps", 0, "override total steps")
	sweepCmd.Flags().IntVar(&top, "top", 10, "rows to print")
	_ = sweepCmd.MarkFlagRequired("param")

	rootCmd.AddCommand(runCmd, replayCmd, recolorCmd, listCmd, plotCmd, analyzeCmd, exportCmd, presetsCmd, configCmd, benchCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addReplayFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&themeName, "theme", viz.Themes[0].Name, fmt.Sprintf("colour theme %v", viz.ThemeNames()))
	cmd.Flags().StringVar(&snapDir, "snapshots", ".", "directory for PNG snapshots")
}

// replay checks the trace, then runs the TUI with the theme and snapshot
// directory from the flags.
func replay(title string, cfg config.Config, records []trace.Record) error {
	if !slices.Contains(viz.ThemeNames(), themeName) {
		return fmt.Errorf("unknown theme: %s (available: %v)", themeName, viz.ThemeNames())
	}
	if err := os.MkdirAll(snapDir, 0755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	if err := sim.CheckTrace(cfg, records); err != nil {
		logger.Warn("replay will stop spawning early", "err", err)
	}

	m := viz.NewModel(title, cfg, records).
		WithTheme(viz.GetTheme(themeName)).
		WithSnapshotDir(snapDir)
	return viz.Run(m)
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "default", "use preset configuration")
}

// loadConfig applies the preset, then the config file, then explicit flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, ok := config.GetPreset(preset)
	if !ok {
		return config.Config{}, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Lookup("steps") != nil && flags.Changed("steps") {
		cfg.TotalSteps = steps
	}
	if flags.Lookup("parallel") != nil && flags.Changed("parallel") {
		cfg.Parallel = parallel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}
	s.SetLogger(logger)
	rec := metrics.NewRecorder(cfg, s.Engine())
	s.AddObserver(rec)
	for _, m := range metrics.Standard(cfg, s.Engine()) {
		s.AddMetric(m)
	}

	logger.Info("computing", "preset", preset, "steps", cfg.TotalSteps, "seed", cfg.Seed, "parallel", cfg.Parallel)
	start := time.Now()
	result := s.Run()
	logger.Info("computed", "balls", len(result.Particles), "spawns", len(result.Trace), "elapsed", time.Since(start).Round(time.Millisecond))

	st := storage.New(dataDir)
	runID, err := st.Save(preset, cfg, result, rec.Samples())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	records := result.Trace
	if runImage != "" {
		quiet := !cmd.Flags().Changed("image")
		if recolored, ok := recolor(cfg, records, result.Particles, runImage, quiet); ok {
			records = recolored
			if err := st.SaveTrace(runID, records, true); err != nil {
				return err
			}
		}
	}

	if outPath != "" {
		if err := writeTraceFile(outPath, records); err != nil {
			return err
		}
		logger.Info("wrote trace", "path", outPath)
	}

	fmt.Printf("saved run: %s\n", runID)

	if headless {
		return nil
	}
	return replay(runID, cfg, records)
}

// recolor loads the image and applies it. A missing or unreadable image keeps
// the placeholder colours; quiet drops the warning when the file is absent.
func recolor(cfg config.Config, records []trace.Record, finals []physics.Particle, path string, quiet bool) ([]trace.Record, bool) {
	img, err := colorsrc.Load(path, int(cfg.Width), int(cfg.Height))
	if err != nil {
		if quiet && errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no colour source", "image", path)
			return records, false
		}
		logger.Warn("colour source unavailable, keeping placeholder colours", "image", path, "err", err)
		return records, false
	}
	return trace.Recolor(records, finals, img), true
}

func writeTraceFile(path string, records []trace.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := trace.Encode(f, records); err != nil {
		return err
	}
	return f.Close()
}

// resolveRun returns the named run or the newest one.
func resolveRun(st *storage.Store, args []string) (*storage.RunMetadata, error) {
	if len(args) == 0 || args[0] == "" {
		return st.Latest()
	}
	return st.Load(args[0])
}

func replayRun(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && strings.HasSuffix(args[0], ".csv") {
		return replayFile(cmd, args[0])
	}

	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	records, err := st.LoadTrace(meta.ID)
	if err != nil {
		if !errors.Is(err, trace.ErrMalformed) {
			return err
		}
		logger.Warn("trace is truncated, replaying the readable part", "records", len(records), "err", err)
	}
	return replay(meta.ID, meta.Config, records)
}

func replayFile(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := trace.ReadAll(f)
	if err != nil {
		if !errors.Is(err, trace.ErrMalformed) {
			return err
		}
		logger.Warn("trace is truncated, replaying the readable part", "records", len(records), "err", err)
	}
	return replay(filepath.Base(path), cfg, records)
}

func recolorRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	records, err := st.LoadTrace(meta.ID)
	if err != nil {
		return err
	}
	finals, err := st.LoadFinal(meta.ID)
	if err != nil {
		return err
	}

	recolored, ok := recolor(meta.Config, records, finals, imagePath, false)
	if !ok {
		return nil
	}
	if err := st.SaveTrace(meta.ID, recolored, true); err != nil {
		return err
	}
	logger.Info("recoloured", "run", meta.ID, "records", len(recolored))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tSEED\tSTEPS\tSPAWNS\tRECOLOURED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Steps,
			run.Records,
			run.Recolored,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	samples, err := st.LoadStats(meta.ID)
	if err != nil {
		return err
	}
	if len(samples) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(samples))

	plots := []struct {
		caption string
		file    string
		stroke  string
		field   func(metrics.Sample) float64
	}{
		{"live balls", "live.svg", "#00d4ff", func(s metrics.Sample) float64 { return float64(s.Live) }},
		{"kinetic energy", "kinetic.svg", "#ff6b6b", func(s metrics.Sample) float64 { return s.Kinetic }},
		{"contacts per step", "contacts.svg", "#ffd93d", func(s metrics.Sample) float64 { return float64(s.Contacts) }},
	}
	if svgDir != "" {
		if err := os.MkdirAll(svgDir, 0755); err != nil {
			return err
		}
	}
	for _, p := range plots {
		values := metrics.Series(samples, p.field)
		if svgDir != "" {
			path := filepath.Join(svgDir, p.file)
			if err := os.WriteFile(path, []byte(export.SeriesToSVG(values, 800, 240, p.stroke)), 0644); err != nil {
				return err
			}
			logger.Info("wrote plot", "path", path)
		}
		graph := asciigraph.Plot(values,
			asciigraph.Height(10),
			asciigraph.Width(70),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if len(meta.Metrics) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for name, v := range meta.Metrics {
			fmt.Fprintf(w, "%s\t%.4f\n", name, v)
		}
		return w.Flush()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	samples, err := st.LoadStats(meta.ID)
	if err != nil {
		return err
	}

	var field func(metrics.Sample) float64
	switch series {
	case "energy":
		field = func(s metrics.Sample) float64 { return s.Kinetic }
	case "live":
		field = func(s metrics.Sample) float64 { return float64(s.Live) }
	case "contacts":
		field = func(s metrics.Sample) float64 { return float64(s.Contacts) }
	default:
		return fmt.Errorf("unknown series %q", series)
	}

	data := metrics.Series(samples, field)
	ps := analysis.PowerSpectrum(data)
	if len(ps) < 2 {
		return fmt.Errorf("not enough samples to analyze")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("series: %s (%d samples)\n\n", series, len(data))

	graph := asciigraph.Plot(ps[1:],
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption("power spectrum"),
	)
	fmt.Println(graph)

	freq, bin := analysis.Dominant(ps, len(data), meta.Config.FixedDt)
	if bin == 0 {
		fmt.Println("\nno dominant frequency")
		return nil
	}
	fmt.Printf("\ndominant frequency: %.3f Hz (period %.1f steps)\n", freq, float64(len(data))/float64(bin))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args)
	if err != nil {
		return err
	}

	finals, err := st.LoadFinal(meta.ID)
	if err != nil {
		return err
	}
	bounds := physics.Bounds{Width: meta.Config.Width, Height: meta.Config.Height}

	if cmd.CalledAs() == "export-svg" {
		format = "svg"
	}
	path := outPath
	if path == "" {
		path = meta.ID + "." + format
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "svg":
		_, err = f.WriteString(export.ParticlesToSVG(finals, bounds, scale))
	case "png":
		caption := fmt.Sprintf("Step %d/%d | %d balls", meta.Steps, meta.Config.TotalSteps, len(finals))
		err = export.WritePNG(f, finals, bounds, caption)
	case "json":
		samples, serr := st.LoadStats(meta.ID)
		if serr != nil {
			logger.Warn("no stats for run", "run", meta.ID, "err", serr)
		}
		err = export.WriteJSON(f, export.NewExportData(meta.ID, meta.Config, meta.Steps, finals, samples, meta.Metrics))
	default:
		err = fmt.Errorf("unknown format %q (want svg, png or json)", format)
	}
	if err != nil {
		return err
	}

	logger.Info("exported", "run", meta.ID, "format", format, "path", path)
	return f.Close()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tWORLD\tRADIUS\tCAPACITY\tSTEPS\tPARALLEL")
	for _, name := range config.ListPresets() {
		cfg, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%gx%g\t%g..%g\t%d\t%d\t%v\n",
			name, cfg.Width, cfg.Height, cfg.MinRadius, cfg.MaxRadius, cfg.MaxObjects, cfg.TotalSteps, cfg.Parallel)
	}
	return w.Flush()
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, ok := config.GetPreset(preset)
	if !ok {
		return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	logger.Info("wrote config", "path", args[0], "preset", preset)
	return nil
}

func benchRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %s: %d runs of %d steps\n\n", preset, numRuns, cfg.TotalSteps)

	start := time.Now()
	ens := sim.NewEnsemble(cfg, numRuns, cfg.Seed, func() []sim.Metric {
		return []sim.Metric{metrics.NewPopulation()}
	})
	results, err := ens.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSPAWNS\tLIVE\tMEAN LIVE")
	totalSteps := 0
	for i, res := range results {
		totalSteps += res.StepsTaken
		fmt.Fprintf(w, "%d\t%d\t%d\t%.1f\n", cfg.Seed+uint64(i), len(res.Trace), len(res.Particles), res.Metrics["population"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\ntime: %v, steps/sec: %.0f\n", elapsed.Round(time.Millisecond), float64(totalSteps)/elapsed.Seconds())
	return nil
}

// parseGrid turns name=v1,v2 flags into parallel name and value slices.
func parseGrid(flags []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(flags))
	ranges := make([][]float64, 0, len(flags))
	for _, flag := range flags {
		name, list, ok := strings.Cut(flag, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2", flag)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in --param %q: %w", flag, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func sweepParams(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	names, ranges, err := parseGrid(sweepGrid)
	if err != nil {
		return err
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	logger.Info("sweeping", "params", names, "metric", metricName, "steps", cfg.TotalSteps)
	start := time.Now()
	points, err := grid.Search(context.Background(), cfg, func(c config.Config) []sim.Metric {
		return metrics.Standard(c, nil)
	}, metricName)
	if err != nil {
		return err
	}
	logger.Info("done", "cells", len(points), "elapsed", time.Since(start).Round(time.Millisecond))

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(sorted, "\t")), strings.ToUpper(metricName))
	for i, p := range points {
		if i == top {
			break
		}
		for _, name := range sorted {
			fmt.Fprintf(w, "%g\t", p.Params[name])
		}
		fmt.Fprintf(w, "%.6f\n", p.Value)
	}
	return w.Flush()
}
