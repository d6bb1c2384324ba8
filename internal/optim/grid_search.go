// Package optim tunes servo gains by searching over simulated runs.
package optim

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/servoloop/internal/config"
	"github.com/san-kum/servoloop/internal/experiment"
)

var (
	ErrNoCandidates = errors.New("optim: empty search grid")
	ErrUnknownParam = errors.New("optim: unknown parameter")
	ErrNoResult     = errors.New("optim: no candidate produced the metric")
)

// Builder prepares an experiment for one point of the grid.
type Builder func(params map[string]float64) (*experiment.Experiment, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Workers bounds concurrent runs, GOMAXPROCS when zero.
	Workers int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidate is one evaluated grid point.
type Candidate struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Result struct {
	Best  Candidate
	All   []Candidate
	Valid int
}

// Search runs every grid point and returns the one minimizing metric.
// Points whose run fails or leaves servo errors are kept in All with Err
// set and never win.
func (g *GridSearch) Search(ctx context.Context, build Builder, metric string) (*Result, error) {
	points := g.points()
	if len(points) == 0 {
		return nil, ErrNoCandidates
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	all := make([]Candidate, len(points))
	var mu sync.Mutex
	for i, params := range points {
		i, params := i, params
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := evaluate(ctx, build, params, metric)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			mu.Lock()
			all[i] = Candidate{Params: params, Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{All: all, Best: Candidate{Value: math.Inf(1)}}
	for _, c := range all {
		if c.Err != nil {
			continue
		}
		res.Valid++
		if c.Value < res.Best.Value {
			res.Best = c
		}
	}
	if res.Valid == 0 {
		return res, errors.Wrapf(ErrNoResult, "%q", metric)
	}
	return res, nil
}

func evaluate(ctx context.Context, build Builder, params map[string]float64, metric string) (float64, error) {
	exp, err := build(params)
	if err != nil {
		return 0, err
	}
	res, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, res.Errors[0]
	}
	v, ok := res.Metric(metric)
	if !ok || math.IsNaN(v) {
		return 0, errors.Wrapf(ErrNoResult, "%q", metric)
	}
	return v, nil
}

// points expands the grid, varying the last parameter fastest.
func (g *GridSearch) points() []map[string]float64 {
	if len(g.paramNames) == 0 || len(g.paramNames) != len(g.ranges) {
		return nil
	}
	var out []map[string]float64
	g.expand(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) expand(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val
		g.expand(depth+1, next, out)
	}
}

// Gains returns a Builder that applies kp, ki and kd from the grid to a
// copy of base and attaches the named metrics.
func Gains(base *config.Config, metrics ...string) Builder {
	registry := experiment.NewRegistry()
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v := int32(math.Round(params[name]))
			switch name {
			case "kp":
				cfg.Gains.Kp = v
			case "ki":
				cfg.Gains.Ki = v
			case "kd":
				cfg.Gains.Kd = v
			default:
				return nil, errors.Wrapf(ErrUnknownParam, "%q", name)
			}
		}
		ms, err := registry.GetMetrics(metrics...)
		if err != nil {
			return nil, err
		}
		exp := experiment.New(cfg, nil)
		if err := exp.Setup(ms); err != nil {
			return nil, err
		}
		return exp, nil
	}
}
