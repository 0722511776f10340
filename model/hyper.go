package model

import "math"

// VarianceFloor is the strictly positive floor every variance hyperparameter
// is clamped to. An update landing at or below zero (or non-finite) is a
// degeneracy, not a clamping case.
const VarianceFloor = 1e-12

// WeightFloor keeps mixture weights away from exact 0/1 so log-weights stay
// finite.
const WeightFloor = 1e-8

// Hyper is one iteration's frozen snapshot of the global hyperparameters.
// Every block reads the same snapshot during an iteration; the single
// hyperparameter-update step publishes the next snapshot at the iteration
// barrier. Snapshots are value types and never mutated in place.
type Hyper struct {
	ResidVar  float64   // residual variance (sigma^2)
	EffectVar []float64 // per-component effect variance (tau^2)
	Weights   []float64 // mixture weights, sum to 1
}

// Clone returns a deep copy of the snapshot.
func (h Hyper) Clone() Hyper {
	cp := Hyper{
		ResidVar:  h.ResidVar,
		EffectVar: make([]float64, len(h.EffectVar)),
		Weights:   make([]float64, len(h.Weights)),
	}
	copy(cp.EffectVar, h.EffectVar)
	copy(cp.Weights, h.Weights)
	return cp
}

// Check validates the snapshot, applying the variance floor and weight
// renormalization in place first. A value that is non-positive or non-finite
// before flooring is a *PriorDegeneracyError; iter identifies the update
// that produced it (-1 for initial values).
func (h *Hyper) Check(iter int) error {
	if bad(h.ResidVar) {
		return &PriorDegeneracyError{Iter: iter, Param: "residual variance", Value: h.ResidVar}
	}
	if h.ResidVar < VarianceFloor {
		h.ResidVar = VarianceFloor
	}

	for i, tau2 := range h.EffectVar {
		if bad(tau2) {
			return &PriorDegeneracyError{Iter: iter, Param: "effect variance", Value: tau2}
		}
		if tau2 < VarianceFloor {
			h.EffectVar[i] = VarianceFloor
		}
	}

	sum := 0.0
	for _, w := range h.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &PriorDegeneracyError{Iter: iter, Param: "mixture weight", Value: w}
		}
		sum += w
	}
	if bad(sum) {
		return &PriorDegeneracyError{Iter: iter, Param: "mixture weight sum", Value: sum}
	}
	for i, w := range h.Weights {
		w /= sum
		if w < WeightFloor {
			w = WeightFloor
		}
		h.Weights[i] = w
	}
	// a second pass keeps the floored weights summing to 1
	sum = 0.0
	for _, w := range h.Weights {
		sum += w
	}
	for i := range h.Weights {
		h.Weights[i] /= sum
	}

	return nil
}

func bad(x float64) bool {
	return !(x > 0) || math.IsInf(x, 0) || math.IsNaN(x)
}
