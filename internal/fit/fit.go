package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// FitConvergenceError reports an optimization that did not converge
// within the iteration budget. BestParams carries the best parameter
// vector found so callers can inspect a partial result.
type FitConvergenceError struct {
	Model      string
	BestParams []float64
	BestCost   float64
	Iterations int
	Cause      error
}

func (e *FitConvergenceError) Error() string {
	return fmt.Sprintf("fit of model %q did not converge after %d iterations (residual %g)",
		e.Model, e.Iterations, e.BestCost)
}

func (e *FitConvergenceError) Unwrap() error { return e.Cause }

// A Result holds a converged fit.
type Result struct {
	Model  string
	Params []float64
	// ParamNames mirrors Params index by index.
	ParamNames []string
	// Residual is the sum of squared residuals at the optimum.
	Residual float64
	// ReducedChi2 is Residual over degrees of freedom.
	ReducedChi2 float64
	Iterations  int
}

// ParamMap returns the fitted parameters keyed by name.
func (r *Result) ParamMap() map[string]float64 {
	m := make(map[string]float64, len(r.Params))
	for i, name := range r.ParamNames {
		m[name] = r.Params[i]
	}
	return m
}

// Options bounds the optimizer.
type Options struct {
	// MaxIterations caps the Nelder-Mead iterations. Zero means 2000.
	MaxIterations int
	// Guess overrides the model's data-driven starting vector.
	Guess []float64
}

const defaultMaxIterations = 2000

// Curve fits a model to (x, y) by unweighted least squares using
// Nelder-Mead, which needs no analytic gradient and tolerates the noisy
// cost surfaces photon-count data produces. NaN points are skipped.
func Curve(model Model, x, y []float64, opts *Options) (*Result, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("x and y lengths differ: %d vs %d", len(x), len(y))
	}
	xs, ys := dropInvalid(x, y)
	nParams := len(model.ParamNames())
	if len(xs) <= nParams {
		return nil, fmt.Errorf("model %q needs more than %d valid points, got %d",
			model.Name(), nParams, len(xs))
	}

	maxIter := defaultMaxIterations
	var guess []float64
	if opts != nil {
		if opts.MaxIterations > 0 {
			maxIter = opts.MaxIterations
		}
		if opts.Guess != nil {
			guess = append([]float64(nil), opts.Guess...)
		}
	}
	if guess == nil {
		guess = model.Guess(xs, ys)
	}
	if len(guess) != nParams {
		return nil, fmt.Errorf("model %q expects %d parameters, guess has %d",
			model.Name(), nParams, len(guess))
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			var sum float64
			for i := range xs {
				r := model.Eval(p, xs[i]) - ys[i]
				sum += r * r
			}
			if math.IsNaN(sum) || math.IsInf(sum, 0) {
				return math.MaxFloat64
			}
			return sum
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(problem, guess, settings, &optimize.NelderMead{})
	if res == nil {
		return nil, fmt.Errorf("fitting model %q: %w", model.Name(), err)
	}
	if err != nil || res.Status == optimize.IterationLimit {
		return nil, &FitConvergenceError{
			Model:      model.Name(),
			BestParams: append([]float64(nil), res.X...),
			BestCost:   res.F,
			Iterations: res.MajorIterations,
			Cause:      err,
		}
	}

	dof := len(xs) - nParams
	return &Result{
		Model:       model.Name(),
		Params:      append([]float64(nil), res.X...),
		ParamNames:  model.ParamNames(),
		Residual:    res.F,
		ReducedChi2: res.F / float64(dof),
		Iterations:  res.MajorIterations,
	}, nil
}

func dropInvalid(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
