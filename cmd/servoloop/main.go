package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/servoloop/internal/analysis"
	"github.com/san-kum/servoloop/internal/automation"
	"github.com/san-kum/servoloop/internal/config"
	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/experiment"
	"github.com/san-kum/servoloop/internal/export"
	"github.com/san-kum/servoloop/internal/logging"
	"github.com/san-kum/servoloop/internal/motor"
	"github.com/san-kum/servoloop/internal/optim"
	"github.com/san-kum/servoloop/internal/sim"
	"github.com/san-kum/servoloop/internal/storage"
	"github.com/san-kum/servoloop/internal/viz"
)

var (
	dataDir string
	debug   bool
	logger  *zap.Logger

	preset     string
	configFile string
	motorName  string
	integrator string
	duration   float64
	seed       int64
	gearRatio  float64
	speed      int32
	target     int64
	then       string
	kp, ki, kd int32

	outFile string
	dial    bool
	band    float64

	metricName string
	kpRange    []float64
	kiRange    []float64
	kdRange    []float64
	workers    int

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	trials         int
	inertiaSpread  float64
	frictionSpread float64
	tolerance      float64

	theme string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "servoloop",
		Short:         "closed-loop servo motor simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.NewLogger("servoloop", debug)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".servoloop", "data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log servo commands and state changes")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario and save its log",
		Args:  cobra.NoArgs,
		RunE:  runScenario,
	}
	scenarioFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive a simulated servo from the keyboard in real time",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	liveCmd.Flags().StringVar(&motorName, "motor", config.DefaultMotor, "motor type")
	liveCmd.Flags().Float64Var(&gearRatio, "gear-ratio", config.DefaultGearRatio, "output gear ratio")
	liveCmd.Flags().Int32Var(&speed, "speed", 500, "move speed (deg/s)")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme: "+strings.Join(viz.ThemeNames(), ", "))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot angle and speed of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and phase portrait of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&band, "band", analysis.DefaultBand, "settling band as a fraction of the step")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the run log as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export metadata and log as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "chart reference and measured angle as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (stdout when empty)")
	exportSVGCmd.Flags().BoolVar(&dial, "dial", false, "draw the final dial instead of the chart")

	motorsCmd := &cobra.Command{
		Use:   "motors",
		Short: "list motor types, integrators and metrics",
		Args:  cobra.NoArgs,
		RunE:  listMotors,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search PID gains",
		Args:  cobra.NoArgs,
		RunE:  tuneGains,
	}
	scenarioFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&metricName, "metric", "tracking_rms", "metric to minimize")
	tuneCmd.Flags().Float64SliceVar(&kpRange, "kp-range", nil, "kp values to try")
	tuneCmd.Flags().Float64SliceVar(&kiRange, "ki-range", nil, "ki values to try")
	tuneCmd.Flags().Float64SliceVar(&kdRange, "kd-range", nil, "kd values to try")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (GOMAXPROCS when zero)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "vary one parameter across a range",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	scenarioFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "inertia_scale", "parameter: "+strings.Join(automation.SweepParams, ", "))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 2, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 7, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run trials with a randomly perturbed plant",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	scenarioFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	monteCarloCmd.Flags().Float64Var(&inertiaSpread, "inertia-spread", 0.2, "inertia perturbation fraction")
	monteCarloCmd.Flags().Float64Var(&frictionSpread, "friction-spread", 0.2, "friction perturbation fraction")
	monteCarloCmd.Flags().Float64Var(&tolerance, "tolerance", 2, "final error tolerance (deg)")
	monteCarloCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (GOMAXPROCS when zero)")

	scriptCmd := &cobra.Command{
		Use:   "script [file]",
		Short: "run a multi-step scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark every motor with every integrator",
		Args:  cobra.NoArgs,
		RunE:  benchMotors,
	}
	benchCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated seconds per run")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, exportCSVCmd, exportJSONCmd,
		exportSVGCmd, motorsCmd, presetsCmd, tuneCmd, sweepCmd, monteCarloCmd, scriptCmd, benchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml), applied after the preset")
	cmd.Flags().StringVar(&motorName, "motor", config.DefaultMotor, "motor type")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "plant integrator")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated seconds")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&gearRatio, "gear-ratio", config.DefaultGearRatio, "output gear ratio")
	cmd.Flags().Int32Var(&speed, "speed", 500, "run_target speed (deg/s)")
	cmd.Flags().Int64Var(&target, "target", 180, "run_target angle (deg)")
	cmd.Flags().StringVar(&then, "then", "hold", "completion policy: coast, brake, hold or continue")
	cmd.Flags().Int32Var(&kp, "kp", 0, "proportional gain override")
	cmd.Flags().Int32Var(&ki, "ki", 0, "integral gain override")
	cmd.Flags().Int32Var(&kd, "kd", 0, "derivative gain override")
}

// buildConfig layers the preset, the config file and the changed flags,
// in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("motor") {
		cfg.Motor = motorName
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("gear-ratio") {
		cfg.GearRatio = gearRatio
	}
	if flags.Changed("kp") {
		cfg.Gains.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Gains.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Gains.Kd = kd
	}
	if flags.Changed("speed") || flags.Changed("target") || flags.Changed("then") {
		cfg.Commands = []config.CommandConfig{{Op: config.OpRunTarget, Speed: speed, Angle: target, Then: then}}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, cfg.Validate()
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	exp := experiment.New(cfg, logger)
	if err := exp.Setup(registry.DefaultMetrics()); err != nil {
		return err
	}

	logger.Info("running", zap.String("motor", cfg.Motor), zap.String("integrator", cfg.Integrator),
		zap.Float64("duration", cfg.Duration))
	start := time.Now()
	res, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(res)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("ticks: %d  elapsed: %v\n", res.Ticks, elapsed)
	fmt.Printf("final: %s at %d°\n", res.Final, res.Angle)
	for _, e := range res.Errors {
		fmt.Printf("error: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	printMetrics(storage.Metadata(res).Metrics)
	return nil
}

func printMetrics(values map[string]float64) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %.4f\n", name, values[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return errors.Errorf("unknown preset: %s", preset)
		}
	}
	if cmd.Flags().Changed("motor") || preset == "" {
		cfg.Motor = motorName
	}
	if cmd.Flags().Changed("gear-ratio") {
		cfg.GearRatio = gearRatio
	}
	cfg.Commands = nil
	cfg.Plant.Block = nil
	cfg.LogCapacity = 0
	viz.SetTheme(theme)

	// Logs would tear the alternate screen.
	exp := experiment.New(cfg, zap.NewNop())
	if err := exp.Setup(nil); err != nil {
		return err
	}
	loop := sim.NewLoop(exp.GetSimulator(), clock.New(), zap.NewNop())
	return viz.Run(cmd.Context(), loop, viz.NewMonitor(cfg.Motor, exp.Servo(), exp.Port(), speed))
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
	fmt.Fprintln(w, "ID\tMOTOR\tTIME\tDURATION\tINTEG\tFINAL\tANGLE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%s\t%s\t%d°\n",
			run.ID,
			run.Motor,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Integrator,
			run.Final,
			run.Angle,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []datalog.Row, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := st.LoadRows(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, errors.Errorf("run %s has no log", runID)
	}
	return meta, rows, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, rows, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("motor: %s\n", meta.Motor)
	fmt.Printf("samples: %d\n\n", len(rows))

	ref := make([]float64, len(rows))
	measured := make([]float64, len(rows))
	refSpeed := make([]float64, len(rows))
	estSpeed := make([]float64, len(rows))
	for i, r := range rows {
		ref[i] = float64(r.RefAngle) / 1000
		measured[i] = float64(r.Measured) / 1000
		refSpeed[i] = float64(r.RefSpeed) / 1000
		estSpeed[i] = float64(r.EstSpeed) / 1000
	}

	fmt.Println(asciigraph.PlotMany([][]float64{ref, measured},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Magenta, asciigraph.Cyan),
		asciigraph.Caption("angle (°): reference, measured"),
	))
	fmt.Println()
	fmt.Println(asciigraph.PlotMany([][]float64{refSpeed, estSpeed},
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Magenta, asciigraph.Cyan),
		asciigraph.Caption("speed (°/s): reference, estimated"),
	))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, rows, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (%s, %s)\n\n", meta.ID, meta.Motor, meta.Final)

	step, err := analysis.StepResponseOf(rows, band)
	switch {
	case errors.Is(err, analysis.ErrNoStep):
		fmt.Println("step response: reference does not move")
	case err != nil:
		return err
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "step\t%.1f° → %.1f°\n", step.Start, step.Target)
		fmt.Fprintf(w, "rise time\t%.3fs\n", step.RiseTime)
		fmt.Fprintf(w, "overshoot\t%.2f%%\n", step.Overshoot)
		fmt.Fprintf(w, "peak\t%.1f°\n", step.Peak)
		if step.Settled {
			fmt.Fprintf(w, "settling time\t%.3fs\n", step.SettlingTime)
		} else {
			fmt.Fprintf(w, "settling time\tnot settled\n")
		}
		fmt.Fprintf(w, "steady state\t%.2f° ± %.2f°\n", step.SteadyMean, step.SteadyStdDev)
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if p95, err := analysis.TrackingPercentile(rows, 95); err == nil {
		fmt.Printf("tracking error p95: %.2f°\n", p95)
	}

	fmt.Println("\nphase portrait (angle vs speed):")
	fmt.Println(analysis.PhasePortraitToASCII(analysis.PhasePortraitFromRows(rows), 60, 20))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, nil)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, rows, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, rows)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, rows, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, rows)
}

func exportSVG(cmd *cobra.Command, args []string) (err error) {
	meta, rows, err := loadRun(args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	if dial {
		last := rows[len(rows)-1]
		canvas := viz.NewCanvas(24, 12)
		canvas.DrawDial(float64(last.Measured)/1000, float64(last.RefAngle)/1000)
		_, err = fmt.Fprint(out, export.CanvasToSVG(canvas, 8))
		return err
	}

	opts := export.DefaultChartOptions()
	opts.Title = fmt.Sprintf("%s  %s", meta.ID, meta.Final)
	return export.WriteChart(out, rows, opts)
}

func listMotors(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOTOR\tMAX VOLTAGE\tKP\tKI\tKD\tMAX SPEED")
	for _, name := range registry.ListMotors() {
		typ, err := registry.GetMotor(name)
		if err != nil {
			return err
		}
		settings, _, err := motor.LoadSettings(typ)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", name)
			continue
		}
		maxV, _ := motor.MaxVoltage(typ)
		fmt.Fprintf(w, "%s\t%d mV\t%d\t%d\t%d\t%d°/s\n", name, maxV,
			settings.Kp, settings.Ki, settings.Kd, settings.SpeedMax/1000)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nintegrators: %s\n", strings.Join(registry.ListIntegrators(), ", "))
	fmt.Printf("metrics: %s\n", strings.Join(registry.ListMetrics(), ", "))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMOTOR\tDURATION\tCOMMANDS")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		ops := make([]string, 0, len(cfg.Commands))
		for _, c := range cfg.Commands {
			ops = append(ops, c.Op)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1fs\t%s\n", name, cfg.Motor, cfg.Duration, strings.Join(ops, " → "))
	}
	return w.Flush()
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	var names []string
	var ranges [][]float64
	for _, p := range []struct {
		name   string
		values []float64
	}{{"kp", kpRange}, {"ki", kiRange}, {"kd", kdRange}} {
		if len(p.values) > 0 {
			names = append(names, p.name)
			ranges = append(ranges, p.values)
		}
	}
	if len(names) == 0 {
		return errors.New("give at least one of --kp-range, --ki-range, --kd-range")
	}

	search := optim.NewGridSearch(names, ranges)
	search.Workers = workers
	start := time.Now()
	res, err := search.Search(cmd.Context(), optim.Gains(cfg, metricName), metricName)
	if err != nil {
		return err
	}
	logger.Info("grid search done", zap.Int("candidates", len(res.All)), zap.Int("valid", res.Valid),
		zap.Duration("elapsed", time.Since(start)))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metricName))
	for _, c := range res.All {
		cols := make([]string, 0, len(names)+1)
		for _, name := range names {
			cols = append(cols, fmt.Sprintf("%.0f", c.Params[name]))
		}
		if c.Err != nil {
			cols = append(cols, "error: "+c.Err.Error())
		} else {
			cols = append(cols, fmt.Sprintf("%.4f", c.Value))
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: %v  %s=%.4f\n", res.Best.Params, metricName, res.Best.Value)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:      cfg,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL\tANGLE\tRMS\tFINAL ERR\tSTALL\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%s\t%d°\t%.3f\t%.3f\t%.3fs\n", r.ParamValue, r.Final, r.Angle,
			r.Metrics["tracking_rms"], r.Metrics["final_error"], r.Metrics["stall_time"])
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:           cfg,
		InertiaSpread:  inertiaSpread,
		FrictionSpread: frictionSpread,
		NumTrials:      trials,
		Tolerance:      tolerance,
		Seed:           cfg.Seed,
		Workers:        workers,
	}, logger)
	if err != nil {
		return err
	}

	success, failure := automation.MonteCarloStats(results)
	errs := make([]float64, len(results))
	for i, r := range results {
		errs[i] = r.FinalError
	}
	fmt.Printf("trials: %d  on target: %d  missed: %d (%.1f%%)\n",
		len(results), success, failure, 100*float64(success)/float64(len(results)))
	fmt.Println(asciigraph.Plot(errs, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption("final error per trial (°)")))

	for _, r := range results {
		if !r.Success {
			fmt.Printf("  trial %d: inertia ×%.3f friction ×%.3f → %s, error %.2f°\n",
				r.TrialID, r.InertiaScale, r.FrictionScale, r.Final, r.FinalError)
		}
	}
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	results, err := automation.RunScenario(cmd.Context(), scenario, st, logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSTEP\tFINAL\tANGLE\tERRORS\tRUN")
	for _, r := range results {
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d°\t%d\t%s\n", r.Name, r.Result.Final, r.Result.Angle, len(r.Result.Errors), runID)
	}
	return w.Flush()
}

func benchMotors(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MOTOR\tINTEG\tTICKS\tTIME\tTICKS/SEC\tFINAL")
	for _, name := range registry.ListMotors() {
		for _, integ := range registry.ListIntegrators() {
			cfg := config.DefaultConfig()
			cfg.Motor = name
			cfg.Integrator = integ
			cfg.Duration = duration
			cfg.LogCapacity = 0

			exp := experiment.New(cfg, nil)
			if err := exp.Setup(nil); err != nil {
				if errors.Is(err, motor.ErrNotSupported) || errors.Is(err, config.ErrInvalid) {
					continue
				}
				return err
			}

			start := time.Now()
			res, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%.0f\t%s\n",
				name, integ, res.Ticks, elapsed.Round(time.Microsecond),
				float64(res.Ticks)/elapsed.Seconds(), res.Final)
		}
	}
	return w.Flush()
}
