package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/experiment"
	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/metrics"
	"github.com/san-kum/dynopt/internal/nlp"
	"github.com/san-kum/dynopt/internal/ocp"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/store"
)

var (
	dataDir   string
	logLevel  string
	logFormat string
	preset    string
	export    string
	save      bool
	symbolic  bool
	workers   int
	height    int
	params    []string
	metric    string
)

var (
	header = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	label  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	value  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	good   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dynopt",
		Short:         "optimal-control transcription engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynopt", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log output: console or json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return checkLogFormat(logFormat)
	}

	buildCmd := &cobra.Command{
		Use:   "build [config]",
		Short: "transcribe a program and summarize the NLP",
		Args:  cobra.MaximumNArgs(1),
		RunE:  buildProgram,
	}
	buildCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (model/name)")
	buildCmd.Flags().StringVar(&export, "export", "", "write the problem as JSON to this path (- for stdout)")
	buildCmd.Flags().BoolVar(&save, "save", false, "keep the problem in the data directory")
	buildCmd.Flags().BoolVar(&symbolic, "symbolic", false, "include residual expressions in the export")

	residualsCmd := &cobra.Command{
		Use:   "residuals [config]",
		Short: "plot the constraint violation at the initial guess",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotResiduals,
	}
	residualsCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (model/name)")
	residualsCmd.Flags().IntVar(&workers, "workers", 4, "goroutines evaluating g")
	residualsCmd.Flags().IntVar(&height, "height", 12, "plot height")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models, integrators and fatigue models",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := experiment.NewRegistry()
			fmt.Println(header.Render("models"))
			for _, m := range reg.ListModels() {
				fmt.Printf("  %s\n", m)
			}
			fmt.Println(header.Render("integrators"))
			for _, i := range reg.ListIntegrators() {
				fmt.Printf("  %s\n", i)
			}
			fmt.Println(header.Render("fatigue"))
			for _, f := range reg.ListFatigueModels() {
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved problems",
		RunE:  listRuns,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [config]",
		Short: "build a program over a parameter grid and rank the problems",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepProgram,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration (model/name)")
	sweepCmd.Flags().StringArrayVar(&params, "param", nil, "name=v1,v2,... (n_shooting, final_time, steps, model.<param>)")
	sweepCmd.Flags().StringVar(&metric, "metric", "max_violation", "metric to minimize")

	rootCmd.AddCommand(buildCmd, residualsCmd, sweepCmd, presetsCmd, modelsCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, warn.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// loadConfig picks the preset, the config file or the default, in that
// order, and names the result.
func loadConfig(args []string) (*config.Config, string, error) {
	if preset != "" {
		model, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, "", fmt.Errorf("preset must be model/name, got %q", preset)
		}
		cfg := config.GetPreset(model, name)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		return cfg, model + "_" + name, nil
	}
	if len(args) == 1 {
		cfg, err := config.Load(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		name := cfg.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		return cfg, name, nil
	}
	return config.DefaultConfig(), "default", nil
}

func checkLogFormat(format string) error {
	switch format {
	case "console", "json":
		return nil
	}
	return fmt.Errorf("log format must be console or json, got %q", format)
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if logFormat == "json" {
		return logging.NewJSON(level, w)
	}
	return logging.New(level, w)
}

type built struct {
	name      string
	cfg       *config.Config
	problem   *nlp.Problem
	program   *ocp.Program
	collector *metrics.Collector
	elapsed   time.Duration
}

func build(args []string) (*built, error) {
	cfg, name, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector("dynopt")
	exp := experiment.New(cfg, experiment.NewRegistry(),
		experiment.WithLogger(newLogger(cfg, os.Stderr)),
		experiment.WithObserver(collector))
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	start := time.Now()
	prob, err := exp.Run(context.Background())
	if err != nil {
		return nil, err
	}
	return &built{
		name:      name,
		cfg:       cfg,
		problem:   prob,
		program:   exp.Program(),
		collector: collector,
		elapsed:   time.Since(start),
	}, nil
}

func buildProgram(cmd *cobra.Command, args []string) error {
	b, err := build(args)
	if err != nil {
		return err
	}
	prob := b.problem

	_, g, err := prob.Evaluate(prob.X0)
	if err != nil {
		return err
	}
	violation := prob.MaxViolation(g)

	fmt.Println(header.Render("program " + b.name))
	fmt.Printf("%s %v\n", label.Render("built in"), b.elapsed)
	fmt.Printf("%s %s\n", label.Render("variables"), value.Render(fmt.Sprint(prob.NumVars())))
	fmt.Printf("%s %s\n", label.Render("constraints"), value.Render(fmt.Sprint(prob.NumConstraints())))
	fmt.Printf("%s %s\n", label.Render("max violation at x0"), violationStyle(violation).Render(fmt.Sprintf("%.6g", violation)))

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tMODEL\tNX\tNU\tN_SHOOTING\tFINAL_TIME")
	for _, p := range b.program.Phases() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%g\n", p.Index, p.Model.Name(), p.NX(), p.NU(), p.NShooting, p.FinalTime)
	}
	w.Flush()

	counts, err := b.collector.Rows()
	if err != nil {
		return err
	}
	rows := make(map[string]int, len(counts))
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tROWS")
	for _, c := range counts {
		rows[c.Kind] = int(c.Rows)
		fmt.Fprintf(w, "%s\t%d\n", c.Kind, int(c.Rows))
	}
	w.Flush()

	var values []float64
	if symbolic {
		values = g
	}
	data := store.NewExport(b.name, prob, b.program.Phases(), store.ExportOptions{Symbolic: symbolic, Values: values})
	switch export {
	case "":
	case "-":
		if err := store.ExportJSONStdout(data); err != nil {
			return err
		}
	default:
		if err := store.ExportJSON(export, data); err != nil {
			return err
		}
		fmt.Printf("\n%s %s\n", label.Render("exported to"), export)
	}

	if save {
		st := store.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(store.RunMetadata{
			Cyclic:       b.cfg.Cyclic,
			MaxViolation: store.Float(violation),
			Rows:         rows,
		}, data)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", label.Render("run id"), runID)
	}
	return nil
}

func violationStyle(v float64) lipgloss.Style {
	if v <= 1e-9 {
		return good
	}
	return warn
}

func plotResiduals(cmd *cobra.Command, args []string) error {
	b, err := build(args)
	if err != nil {
		return err
	}
	prob := b.problem
	if prob.NumConstraints() == 0 {
		fmt.Println("no constraints")
		return nil
	}

	g, err := prob.EvaluateConstraints(prob.X0, workers)
	if err != nil {
		return err
	}
	viol := prob.Violation(g)
	data := make([]float64, len(viol))
	for i, v := range viol {
		data[i] = math.Log10(1e-12 + v)
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("log10 violation per row at x0 (%d rows, max %.3g)", len(viol), prob.MaxViolation(g))),
	)
	fmt.Println(header.Render("residuals " + b.name))
	fmt.Println(graph)
	return nil
}

func sweepProgram(cmd *cobra.Command, args []string) error {
	base, name, err := loadConfig(args)
	if err != nil {
		return err
	}
	if len(params) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	names := make([]string, len(params))
	ranges := make([][]float64, len(params))
	for i, p := range params {
		key, list, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("param must be name=v1,v2,..., got %q", p)
		}
		names[i] = key
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return fmt.Errorf("param %s: %w", key, err)
			}
			ranges[i] = append(ranges[i], v)
		}
	}

	reg := experiment.NewRegistry()
	logger := newLogger(base, os.Stderr)
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		cfg, err := optim.Override(base, p)
		if err != nil {
			return nil, err
		}
		return experiment.New(cfg, reg, experiment.WithLogger(logger)), nil
	}

	best, points, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, metric)
	if err != nil {
		return err
	}

	fmt.Println(header.Render("sweep " + name))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(metric))
	for _, pt := range points {
		cells := make([]string, len(names))
		for i, n := range names {
			cells[i] = strconv.FormatFloat(pt.Params[n], 'g', -1, 64)
		}
		result := fmt.Sprintf("%.6g", pt.Value)
		if pt.Err != nil {
			result = warn.Render(pt.Err.Error())
		}
		fmt.Fprintf(w, "%s\t%s\n", strings.Join(cells, "\t"), result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%g", n, best.Params[n])
	}
	fmt.Printf("\n%s %s %s\n", label.Render("best"), good.Render(strings.Join(parts, " ")), value.Render(fmt.Sprintf("%.6g", best.Value)))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := experiment.NewRegistry().ListModels()
	if len(args) == 1 {
		models = []string{args[0]}
	}
	for _, m := range models {
		presets := config.ListPresets(m)
		if len(presets) == 0 {
			if len(args) == 1 {
				fmt.Printf("no presets for model: %s\n", m)
			}
			continue
		}
		fmt.Println(header.Render("presets for " + m))
		for _, p := range presets {
			fmt.Printf("  %s/%s\n", m, p)
		}
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := store.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no saved problems")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPHASES\tVARIABLES\tCONSTRAINTS\tMAX_VIOLATION\tSAVED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.3g\t%s\n",
			r.ID, len(r.Phases), r.NumVars, r.NumConstraints, float64(r.MaxViolation), r.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}
