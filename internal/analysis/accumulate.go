package analysis

import (
	"fmt"
	"math"
)

// An Accumulator averages curves from repeated sweeps point by point with
// Welford's running mean and variance, so long acquisitions stay
// numerically stable. NaN contributions are skipped per point; a point
// that never received a valid value snapshots as NaN.
//
// Accumulators are not safe for concurrent use. Parallel acquisition
// paths keep one accumulator each and combine them with Merge.
type Accumulator struct {
	x      []float64
	second bool

	n    []int64
	mean []float64
	m2   []float64

	n2    []int64
	mean2 []float64
	m22   []float64

	incomplete bool
}

// NewAccumulator returns an empty accumulator. The first added curve
// fixes the X axis and series shape.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Sweeps returns the largest per-point contribution count.
func (a *Accumulator) Sweeps() int64 {
	var max int64
	for _, c := range a.n {
		if c > max {
			max = c
		}
	}
	return max
}

// MarkIncomplete flags the accumulated result as coming from an aborted
// acquisition.
func (a *Accumulator) MarkIncomplete() { a.incomplete = true }

// Add folds one sweep's curve into the running statistics.
func (a *Accumulator) Add(c *Curve) error {
	if a.x == nil {
		a.init(c)
	}
	if err := a.checkShape(len(c.X), c.HasSecondSeries()); err != nil {
		return err
	}
	for i := range c.Y {
		welford(&a.n[i], &a.mean[i], &a.m2[i], c.Y[i])
	}
	if a.second {
		for i := range c.Y2 {
			welford(&a.n2[i], &a.mean2[i], &a.m22[i], c.Y2[i])
		}
	}
	if c.Incomplete {
		a.incomplete = true
	}
	return nil
}

// Merge folds another accumulator into this one using the pairwise
// variance combination. Merging a set of per-worker accumulators in
// worker order yields the same statistics as sequential accumulation.
func (a *Accumulator) Merge(b *Accumulator) error {
	if b.x == nil {
		return nil
	}
	if a.x == nil {
		*a = *b
		return nil
	}
	if err := a.checkShape(len(b.x), b.second); err != nil {
		return err
	}
	for i := range a.mean {
		combine(&a.n[i], &a.mean[i], &a.m2[i], b.n[i], b.mean[i], b.m2[i])
	}
	if a.second {
		for i := range a.mean2 {
			combine(&a.n2[i], &a.mean2[i], &a.m22[i], b.n2[i], b.mean2[i], b.m22[i])
		}
	}
	a.incomplete = a.incomplete || b.incomplete
	return nil
}

// Snapshot returns the averaged curve. YErr holds the standard error of
// the mean; points with fewer than two contributions get NaN errors,
// points with none get NaN values.
func (a *Accumulator) Snapshot() *Curve {
	if a.x == nil {
		return &Curve{Incomplete: a.incomplete}
	}
	c := &Curve{
		X:          append([]float64(nil), a.x...),
		Y:          make([]float64, len(a.x)),
		YErr:       make([]float64, len(a.x)),
		Incomplete: a.incomplete,
	}
	for i := range a.mean {
		c.Y[i], c.YErr[i] = stats(a.n[i], a.mean[i], a.m2[i])
	}
	if a.second {
		c.Y2 = make([]float64, len(a.x))
		c.Y2Err = make([]float64, len(a.x))
		for i := range a.mean2 {
			c.Y2[i], c.Y2Err[i] = stats(a.n2[i], a.mean2[i], a.m22[i])
		}
	}
	return c
}

func (a *Accumulator) init(c *Curve) {
	points := len(c.X)
	a.x = append([]float64(nil), c.X...)
	a.second = c.HasSecondSeries()
	a.n = make([]int64, points)
	a.mean = make([]float64, points)
	a.m2 = make([]float64, points)
	if a.second {
		a.n2 = make([]int64, points)
		a.mean2 = make([]float64, points)
		a.m22 = make([]float64, points)
	}
}

func (a *Accumulator) checkShape(points int, second bool) error {
	if points != len(a.x) {
		return fmt.Errorf("curve has %d points, accumulator has %d", points, len(a.x))
	}
	if second != a.second {
		return fmt.Errorf("curve series count does not match accumulator")
	}
	return nil
}

func welford(n *int64, mean, m2 *float64, value float64) {
	if math.IsNaN(value) {
		return
	}
	*n++
	delta := value - *mean
	*mean += delta / float64(*n)
	*m2 += delta * (value - *mean)
}

func combine(n *int64, mean, m2 *float64, bn int64, bmean, bm2 float64) {
	if bn == 0 {
		return
	}
	if *n == 0 {
		*n, *mean, *m2 = bn, bmean, bm2
		return
	}
	total := *n + bn
	delta := bmean - *mean
	*mean += delta * float64(bn) / float64(total)
	*m2 += bm2 + delta*delta*float64(*n)*float64(bn)/float64(total)
	*n = total
}

func stats(n int64, mean, m2 float64) (float64, float64) {
	switch {
	case n == 0:
		return math.NaN(), math.NaN()
	case n == 1:
		return mean, math.NaN()
	default:
		variance := m2 / float64(n-1)
		return mean, math.Sqrt(variance / float64(n))
	}
}
