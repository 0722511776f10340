// Package stats provides the running-moment and convergence-window
// utilities both inference engines consume every iteration. Everything here
// is side-effect free beyond the accumulator it is handed.
package stats

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Running accumulates mean and variance of a scalar stream in a single,
// numerically stable pass (Welford).
type Running struct {
	N    int64
	Mean float64
	M2   float64
}

// Add folds one observation into the accumulator.
func (r *Running) Add(x float64) {
	r.N++
	d := x - r.Mean
	r.Mean += d / float64(r.N)
	r.M2 += d * (x - r.Mean)
}

// Var returns the (population) variance seen so far.
func (r *Running) Var() float64 {
	if r.N < 1 {
		return 0
	}
	return r.M2 / float64(r.N)
}

// RunningVec accumulates per-element running moments across retained
// iterations: one Welford accumulator per variant, updated with the full
// effect state once per retained iteration.
type RunningVec struct {
	N    int64
	Mean []float64
	M2   []float64
}

// NewRunningVec creates an accumulator for vectors of length n.
func NewRunningVec(n int) *RunningVec {
	return &RunningVec{
		Mean: make([]float64, n),
		M2:   make([]float64, n),
	}
}

// Add folds one full vector into the accumulator.
func (r *RunningVec) Add(x []float64) error {
	if len(x) != len(r.Mean) {
		return errors.Errorf("Accumulator holds %d elements, given %d", len(r.Mean), len(x))
	}

	r.N++
	n := float64(r.N)
	for i, xi := range x {
		d := xi - r.Mean[i]
		r.Mean[i] += d / n
		r.M2[i] += d * (xi - r.Mean[i])
	}
	return nil
}

// MeanVar finalizes the accumulator into per-element mean and (population)
// variance vectors. The accumulator itself is left untouched.
func (r *RunningVec) MeanVar() (mean []float64, variance []float64) {
	mean = make([]float64, len(r.Mean))
	variance = make([]float64, len(r.M2))
	copy(mean, r.Mean)

	if r.N > 0 {
		n := float64(r.N)
		for i, m2 := range r.M2 {
			variance[i] = m2 / n
		}
	}
	return mean, variance
}

// Delta is the convergence metric both engines report: the L1 distance
// between successive effect-state vectors.
func Delta(prev []float64, curr []float64) float64 {
	return floats.Distance(prev, curr, 1)
}
