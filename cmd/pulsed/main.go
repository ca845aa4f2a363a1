// Command pulsed is the workbench CLI for pulsed measurements: it samples
// ensembles from the object store into waveforms, compiles sequences into
// play-lists, runs acquisitions against mock hardware and manages the
// results database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/xleonplayz/IQO-s/internal/analysis"
	"github.com/xleonplayz/IQO-s/internal/config"
	"github.com/xleonplayz/IQO-s/internal/db"
	"github.com/xleonplayz/IQO-s/internal/fit"
	"github.com/xleonplayz/IQO-s/internal/hardware"
	"github.com/xleonplayz/IQO-s/internal/measure"
	"github.com/xleonplayz/IQO-s/internal/pulse/store"
	"github.com/xleonplayz/IQO-s/internal/sampler"
	"github.com/xleonplayz/IQO-s/internal/sequencer"
	"github.com/xleonplayz/IQO-s/internal/serialmux"
	"github.com/xleonplayz/IQO-s/internal/units"
	"github.com/xleonplayz/IQO-s/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("pulsed: ")

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sample":
		runSample(os.Args[2:])
	case "compile":
		runCompile(os.Args[2:])
	case "run":
		runMeasure(os.Args[2:])
	case "sessions":
		runSessions(os.Args[2:])
	case "fit":
		runFit(os.Args[2:])
	case "version":
		fmt.Printf("pulsed %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Usage: pulsed <command> [flags]

Commands:
  sample    discretize a block ensemble into a waveform
  compile   compile a pulse sequence into a play-list
  run       run a measurement against mock hardware
  sessions  list recorded measurement sessions
  fit       fit a model to a recorded session curve
  version   print build information
  help      show this help`)
}

func loadConfig(path string) *config.TuningConfig {
	if path == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	storeDir := fs.String("store", "objects", "pulse object store directory")
	name := fs.String("ensemble", "", "ensemble to sample")
	cfgPath := fs.String("config", "", "tuning config JSON")
	fs.Parse(args)

	if *name == "" {
		log.Fatal("Usage: pulsed sample -ensemble <name> [-store <dir>] [-config <file>]")
	}
	cfg := loadConfig(*cfgPath)

	st, err := store.Open(*storeDir)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}
	ens, blocks, err := st.ResolveEnsemble(*name)
	if err != nil {
		log.Fatalf("Failed to resolve ensemble: %v", err)
	}

	wf, _, err := sampler.Sample(ens, blocks, cfg.SamplerSettings(), 0, ens.Name)
	if err != nil {
		log.Fatalf("Sampling failed: %v", err)
	}

	info := wf.Info
	log.Printf("Sampled %q: %d samples (%d elements, ideal length %s, %d laser pulses)",
		wf.Name, info.NumberOfSamples, info.NumberOfElements,
		units.Format(info.IdealLength, units.Second), len(info.LaserRisingBins))
	for _, ch := range info.AnalogChannels {
		log.Printf("  analog  %s: %d samples", ch, len(wf.Analog[ch]))
	}
	for _, ch := range info.DigitalChannels {
		log.Printf("  digital %s: %d samples", ch, len(wf.Digital[ch]))
	}

	// Persist the sampling outcome on the stored ensemble.
	ens.Sampling = wf.SamplingInfo()
	if err := st.SaveEnsemble(ens); err != nil {
		log.Fatalf("Failed to save sampling information: %v", err)
	}
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	storeDir := fs.String("store", "objects", "pulse object store directory")
	name := fs.String("sequence", "", "sequence to compile")
	fs.Parse(args)

	if *name == "" {
		log.Fatal("Usage: pulsed compile -sequence <name> [-store <dir>]")
	}

	st, err := store.Open(*storeDir)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}
	seq, ensembles, _, err := st.ResolveSequence(*name)
	if err != nil {
		log.Fatalf("Failed to resolve sequence: %v", err)
	}

	pl, err := sequencer.Compile(seq, ensembles)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	log.Printf("Compiled %q: %d steps", pl.Name, len(pl.Steps))
	for i := range pl.Steps {
		step := &pl.Steps[i]
		passes := "inf"
		if p := step.Passes(); p >= 0 {
			passes = fmt.Sprintf("%d", p)
		}
		log.Printf("  step %d: %s passes=%s go_to=%d event_jump_to=%d trigger=%s wait=%s",
			step.Index, step.Waveform, passes, step.GoTo, step.EventJumpTo,
			step.EventTrigger, step.WaitFor)
	}
	for _, w := range pl.Warnings {
		log.Printf("  warning: %s", w)
	}
}

func runMeasure(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	storeDir := fs.String("store", "objects", "pulse object store directory")
	name := fs.String("ensemble", "", "ensemble to measure")
	cfgPath := fs.String("config", "", "tuning config JSON")
	dbPath := fs.String("db", "results.db", "results database path")
	mwFreq := fs.Float64("mw-freq", 0, "microwave frequency in Hz (0 leaves the source untouched)")
	mwPower := fs.Float64("mw-power", -20, "microwave power in dBm")
	fs.Parse(args)

	if *name == "" {
		log.Fatal("Usage: pulsed run -ensemble <name> [-store <dir>] [-config <file>] [-db <file>]")
	}
	cfg := loadConfig(*cfgPath)

	st, err := store.Open(*storeDir)
	if err != nil {
		log.Fatalf("Failed to open object store: %v", err)
	}
	ens, blocks, err := st.ResolveEnsemble(*name)
	if err != nil {
		log.Fatalf("Failed to resolve ensemble: %v", err)
	}
	if ens.Measurement == nil {
		log.Fatalf("Ensemble %q carries no measurement information", ens.Name)
	}

	wf, _, err := sampler.Sample(ens, blocks, cfg.SamplerSettings(), 0, ens.Name)
	if err != nil {
		log.Fatalf("Sampling failed: %v", err)
	}
	intervals, warn := wf.Info.LaserIntervals()
	if warn != "" {
		log.Printf("Warning: %s", warn)
	}

	plan := &measure.Plan{
		Waveforms:   []*sampler.Waveform{wf},
		Intervals:   intervals,
		Measurement: ens.Measurement,
		Analysis:    cfg.AnalysisSettings(),
		Mode:        cfg.Mode(),
		Sweeps:      cfg.GetSweeps(),
		Workers:     cfg.GetWorkers(),
	}

	// Mock hardware dry run: the counter replays a flat synthetic trace of
	// the right length.
	trace := make([]int64, wf.Samples())
	for i := range trace {
		trace[i] = 100
	}
	runner := &measure.Runner{
		Generator: hardware.NewMockPulseGenerator(),
		Counter:   hardware.NewMockPhotonCounter(trace),
	}
	if plan.Sweeps == 0 {
		plan.Sweeps = 10
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mwFreq > 0 {
		mux, err := serialmux.NewRealSerialMux(cfg.GetMicrowavePort(),
			serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("Failed to open microwave serial port: %v", err)
		}
		defer mux.Close()
		go func() {
			if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Serial monitor stopped: %v", err)
			}
		}()

		mw := hardware.NewSerialMicrowaveSource(mux)
		if err := mw.SetFrequency(ctx, *mwFreq); err != nil {
			log.Fatalf("Failed to set microwave frequency: %v", err)
		}
		if err := mw.SetPower(ctx, *mwPower); err != nil {
			log.Fatalf("Failed to set microwave power: %v", err)
		}
		if err := mw.On(ctx); err != nil {
			log.Fatalf("Failed to enable microwave output: %v", err)
		}
		defer func() {
			if err := mw.Off(context.Background()); err != nil {
				log.Printf("Failed to disable microwave output: %v", err)
			}
		}()
		log.Printf("Microwave on: %s at %.1f dBm",
			units.Format(*mwFreq, units.Hertz), *mwPower)
	}

	started := time.Now()
	result, err := runner.Run(ctx, plan)
	if err != nil {
		log.Fatalf("Measurement failed: %v", err)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer database.Close()

	session := db.Session{
		ID:         result.SessionID,
		Object:     ens.Name,
		Kind:       "ensemble",
		Sweeps:     result.Sweeps,
		Incomplete: result.Incomplete,
		StartedAt:  started,
	}
	if err := database.RecordSession(session); err != nil {
		log.Fatalf("Failed to record session: %v", err)
	}
	if err := database.RecordCurve(result.SessionID, db.PointsFromCurve(result.Curve)); err != nil {
		log.Fatalf("Failed to record curve: %v", err)
	}
	log.Printf("Session %s recorded: %d points, %d sweeps, incomplete=%v",
		result.SessionID, result.Curve.Points(), result.Sweeps, result.Incomplete)
}

func runSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	dbPath := fs.String("db", "results.db", "results database path")
	limit := fs.Int("limit", 20, "number of sessions to list")
	fs.Parse(args)

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer database.Close()

	sessions, err := database.Sessions(*limit)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	for _, s := range sessions {
		marker := ""
		if s.Incomplete {
			marker = " (incomplete)"
		}
		fmt.Printf("%s  %-10s %-20s sweeps=%d%s\n",
			s.StartedAt.Format(time.RFC3339), s.Kind, s.Object, s.Sweeps, marker)
	}
}

func runFit(args []string) {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	dbPath := fs.String("db", "results.db", "results database path")
	sessionID := fs.String("session", "", "session id to fit")
	modelName := fs.String("model", "decay_exp", "fit model name")
	fs.Parse(args)

	if *sessionID == "" {
		names := make([]string, 0)
		for name := range fit.Models() {
			names = append(names, name)
		}
		log.Fatalf("Usage: pulsed fit -session <id> [-model <%s>]", strings.Join(names, "|"))
	}
	id, err := uuid.Parse(*sessionID)
	if err != nil {
		log.Fatalf("Malformed session id: %v", err)
	}
	model, err := fit.ModelByName(*modelName)
	if err != nil {
		log.Fatal(err)
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer database.Close()

	points, err := database.CurveForSession(id)
	if err != nil {
		log.Fatalf("Failed to load curve: %v", err)
	}
	if len(points) == 0 {
		log.Fatalf("Session %s has no curve points", id)
	}
	curve := db.CurveFromPoints(points)

	result, err := fit.Curve(model, curve.X, curve.Y, nil)
	if err != nil {
		var conv *fit.FitConvergenceError
		if errors.As(err, &conv) {
			log.Printf("Fit did not converge; best effort after %d iterations:", conv.Iterations)
			for i, name := range model.ParamNames() {
				log.Printf("  %s = %g", name, conv.BestParams[i])
			}
			record := db.FitRecord{Model: model.Name(), Params: paramMap(model, conv.BestParams), Residual: conv.BestCost, Converged: false}
			if err := database.RecordFit(id, record); err != nil {
				log.Fatalf("Failed to record fit: %v", err)
			}
			return
		}
		log.Fatalf("Fit failed: %v", err)
	}

	log.Printf("Fit %q converged in %d iterations (reduced chi2 %.4g):",
		result.Model, result.Iterations, result.ReducedChi2)
	for name, value := range result.ParamMap() {
		log.Printf("  %s = %g", name, value)
	}
	record := db.FitRecord{
		Model:       result.Model,
		Params:      result.ParamMap(),
		Residual:    result.Residual,
		ReducedChi2: result.ReducedChi2,
		Converged:   true,
	}
	if err := database.RecordFit(id, record); err != nil {
		log.Fatalf("Failed to record fit: %v", err)
	}

	// Keep the spectrum handy for oscillating data.
	if result.Model == "sine_damped" {
		if spectrum, err := analysis.FFTOf(curve); err == nil {
			log.Printf("Spectrum peak at %g Hz", spectrum.Peak())
		}
	}
}

func paramMap(model fit.Model, params []float64) map[string]float64 {
	m := make(map[string]float64, len(params))
	for i, name := range model.ParamNames() {
		m[name] = params[i]
	}
	return m
}
