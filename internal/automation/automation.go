// Package automation runs batches of scenarios: scripted sequences,
// parameter sweeps and Monte Carlo robustness checks.
package automation

import (
	"context"
	"math"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/servoloop/internal/config"
	"github.com/san-kum/servoloop/internal/experiment"
	"github.com/san-kum/servoloop/internal/metrics"
	"github.com/san-kum/servoloop/internal/servo"
	"github.com/san-kum/servoloop/internal/sim"
)

var (
	ErrUnknownPreset = errors.New("automation: unknown preset")
	ErrUnknownParam  = errors.New("automation: unknown sweep parameter")
	ErrInvalid       = errors.New("automation: invalid batch")
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset, or the default scenario, and
// overrides whatever it sets.
type ScenarioStep struct {
	Name       string                 `yaml:"name"`
	Preset     string                 `yaml:"preset"`
	Motor      string                 `yaml:"motor"`
	Integrator string                 `yaml:"integrator"`
	Duration   float64                `yaml:"duration"`
	GearRatio  float64                `yaml:"gear_ratio"`
	Gains      config.GainsConfig     `yaml:"gains"`
	Plant      *config.PlantConfig    `yaml:"plant"`
	Commands   []config.CommandConfig `yaml:"commands"`
	SaveAs     string                 `yaml:"save_as"`
}

// Config resolves the step into a validated scenario config.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, errors.Wrapf(ErrUnknownPreset, "%q", s.Preset)
		}
	}
	if s.Motor != "" {
		cfg.Motor = s.Motor
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.GearRatio > 0 {
		cfg.GearRatio = s.GearRatio
	}
	if s.Gains != (config.GainsConfig{}) {
		cfg.Gains = s.Gains
	}
	if s.Plant != nil {
		cfg.Plant = *s.Plant
	}
	if s.Commands != nil {
		cfg.Commands = s.Commands
	}
	return cfg, cfg.Validate()
}

// Saver keeps a finished run.
type Saver interface {
	Save(res *experiment.Result) (string, error)
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "automation: read scenario")
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrapf(err, "automation: parse %s", path)
	}
	if len(scenario.Steps) == 0 {
		return nil, errors.Wrapf(ErrInvalid, "%s has no steps", path)
	}
	return &scenario, nil
}

// StepResult is one executed scenario step.
type StepResult struct {
	Name   string
	RunID  string
	Result *experiment.Result
}

// RunScenario executes all steps in order. Steps with SaveAs set are
// passed to saver when it is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, saver Saver, logger *zap.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = step.Preset
		}
		logger.Info("step", zap.Int("n", i+1), zap.Int("of", len(scenario.Steps)), zap.String("name", name))

		cfg, err := step.Config()
		if err != nil {
			return results, errors.Wrapf(err, "step %d", i+1)
		}
		res, err := runOnce(ctx, cfg, metrics.Default())
		if err != nil {
			return results, errors.Wrapf(err, "step %d", i+1)
		}

		sr := StepResult{Name: name, Result: res}
		if step.SaveAs != "" && saver != nil {
			if sr.RunID, err = saver.Save(res); err != nil {
				return results, errors.Wrapf(err, "step %d save", i+1)
			}
			logger.Info("saved", zap.String("as", step.SaveAs), zap.String("run", sr.RunID))
		}
		results = append(results, sr)
	}

	return results, nil
}

func runOnce(ctx context.Context, cfg *config.Config, ms []sim.Metric) (*experiment.Result, error) {
	exp := experiment.New(cfg, nil)
	if err := exp.Setup(ms); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}

// ParameterSweep varies one scenario parameter across a range.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepParams lists the parameters a sweep can vary.
var SweepParams = []string{
	"inertia_scale", "friction_scale", "load_torque", "gear_ratio", "kp", "ki", "kd",
}

// SweepResult holds the outcome at one parameter value.
type SweepResult struct {
	ParamValue float64
	Final      servo.State
	Angle      int64
	Metrics    map[string]float64
}

func applyParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "inertia_scale":
		cfg.Plant.InertiaScale = v
	case "friction_scale":
		cfg.Plant.FrictionScale = v
	case "load_torque":
		cfg.Plant.LoadTorque = v
	case "gear_ratio":
		cfg.GearRatio = v
	case "kp":
		cfg.Gains.Kp = int32(math.Round(v))
	case "ki":
		cfg.Gains.Ki = int32(math.Round(v))
	case "kd":
		cfg.Gains.Kd = int32(math.Round(v))
	default:
		return errors.Wrapf(ErrUnknownParam, "%q", name)
	}
	return nil
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *zap.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweep.Base == nil || sweep.NumSteps < 1 {
		return nil, errors.Wrap(ErrInvalid, "sweep needs a base scenario and at least one step")
	}
	if err := applyParam(sweep.Base.Clone(), sweep.ParamName, 0); err != nil {
		return nil, err
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		if err := applyParam(cfg, sweep.ParamName, paramVal); err != nil {
			return nil, err
		}

		res, err := runOnce(ctx, cfg, metrics.Default())
		if err != nil {
			return results, errors.Wrapf(err, "%s=%g", sweep.ParamName, paramVal)
		}
		port, _ := cfg.ServoPort()
		results = append(results, SweepResult{
			ParamValue: paramVal,
			Final:      res.Final,
			Angle:      res.Angle,
			Metrics:    res.Metrics[port],
		})

		logger.Info("sweep",
			zap.Int("n", i+1), zap.Int("of", sweep.NumSteps),
			zap.String("param", sweep.ParamName), zap.Float64("value", paramVal))
	}

	return results, nil
}

// MonteCarloConfig perturbs the plant of Base around its nominal values.
// Spreads are fractions: 0.2 draws scales uniformly from 0.8 to 1.2.
type MonteCarloConfig struct {
	Base           *config.Config
	InertiaSpread  float64
	FrictionSpread float64
	NumTrials      int
	// Tolerance in degrees for a trial to count as on target.
	Tolerance float64
	Seed      int64
	Workers   int
}

// MonteCarloResult holds one trial.
type MonteCarloResult struct {
	TrialID       int
	InertiaScale  float64
	FrictionScale float64
	Final         servo.State
	Angle         int64
	FinalError    float64
	// Success means the servo ended Holding within tolerance.
	Success bool
}

// RunMonteCarlo executes the trials in parallel. Perturbations are drawn
// up front so a seed always gives the same trials.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *zap.Logger) ([]MonteCarloResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Base == nil || cfg.NumTrials < 1 {
		return nil, errors.Wrap(ErrInvalid, "monte carlo needs a base scenario and at least one trial")
	}
	if cfg.InertiaSpread < 0 || cfg.InertiaSpread >= 1 || cfg.FrictionSpread < 0 || cfg.FrictionSpread >= 1 {
		return nil, errors.Wrapf(ErrInvalid, "spreads must be in [0, 1), got %v and %v", cfg.InertiaSpread, cfg.FrictionSpread)
	}
	if err := cfg.Base.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = cfg.Base.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	perturb := func(spread float64) float64 { return 1 + (rng.Float64()-0.5)*2*spread }

	results := make([]MonteCarloResult, cfg.NumTrials)
	for i := range results {
		results[i] = MonteCarloResult{
			TrialID:       i,
			InertiaScale:  perturb(cfg.InertiaSpread),
			FrictionScale: perturb(cfg.FrictionSpread),
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range results {
		r := &results[i]
		eg.Go(func() error {
			trial := cfg.Base.Clone()
			trial.Plant.InertiaScale = nominal(trial.Plant.InertiaScale) * r.InertiaScale
			trial.Plant.FrictionScale = nominal(trial.Plant.FrictionScale) * r.FrictionScale
			res, err := runOnce(ctx, trial, []sim.Metric{metrics.NewFinalError()})
			if err != nil {
				return errors.Wrapf(err, "trial %d", r.TrialID)
			}
			r.score(res, cfg.Tolerance)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	success, failure := MonteCarloStats(results)
	logger.Info("monte carlo", zap.Int("trials", cfg.NumTrials), zap.Int("success", success), zap.Int("failure", failure))
	return results, nil
}

// score records the outcome of a trial. A trial that holds within
// tolerance succeeds; one without a final error reading does not.
func (r *MonteCarloResult) score(res *experiment.Result, tolerance float64) {
	r.Final, r.Angle = res.Final, res.Angle
	fe, ok := res.Metric("final_error")
	r.FinalError = fe
	r.Success = ok && r.Final == servo.StateHolding && fe <= tolerance
}

func nominal(scale float64) float64 {
	if scale <= 0 {
		return 1
	}
	return scale
}

// MonteCarloStats counts trials that reached their target and those that
// did not.
func MonteCarloStats(results []MonteCarloResult) (success int, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return
}
