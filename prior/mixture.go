package prior

import (
	"math"

	"github.com/pkg/errors"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

// mixture is the K-component Gaussian mixture with caller-supplied component
// priors: relative variance scales (scale 0 makes a component a point mass,
// conventionally component 0) and starting weights. Component variances are
// EffectVar[k] = scale_k * base, each updated from its own conditional;
// point-mass components keep variance 0 and never enter the variance
// updates.
type mixture struct {
	scales []float64
	init   *model.Hyper
	start  []float64 // starting weights
}

func newMixture(spec Spec) (*mixture, error) {
	if len(spec.Scales) < 2 {
		return nil, errors.Errorf("Mixture prior needs at least 2 component scales, got %d", len(spec.Scales))
	}
	for k, sc := range spec.Scales {
		if sc < 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return nil, errors.Errorf("Mixture scale %d is invalid: %f", k, sc)
		}
		if sc == 0 && k != 0 {
			return nil, errors.Errorf("Only component 0 may be a point mass (scale %d is 0)", k)
		}
	}

	weights := spec.Weights
	if weights == nil {
		weights = make([]float64, len(spec.Scales))
		for k := range weights {
			weights[k] = 1 / float64(len(weights))
		}
	}
	if len(weights) != len(spec.Scales) {
		return nil, errors.Errorf("Mixture has %d scales but %d weights", len(spec.Scales), len(weights))
	}

	return &mixture{
		scales: spec.Scales,
		init:   spec.Hyper,
		start:  weights,
	}, nil
}

func (f *mixture) Name() string {
	return Mixture
}

func (f *mixture) Components() int {
	return len(f.scales)
}

func (f *mixture) pointMass() bool {
	return f.scales[0] == 0
}

func (f *mixture) NullComponent() bool {
	return f.pointMass()
}

func (f *mixture) Init() model.Hyper {
	if f.init != nil {
		return f.init.Clone()
	}

	h := model.Hyper{
		ResidVar:  1,
		EffectVar: make([]float64, len(f.scales)),
		Weights:   make([]float64, len(f.start)),
	}
	for k, sc := range f.scales {
		h.EffectVar[k] = sc * defaultEffectVar
	}
	copy(h.Weights, f.start)
	return h
}

// responsibilities fills lw with the per-component posterior membership
// probabilities for one variant and returns them (reusing lw's backing).
func (f *mixture) responsibilities(resid, se float64, h model.Hyper, lw []float64) []float64 {
	s2 := h.ResidVar * se * se

	maxLw := math.Inf(-1)
	for k := range f.scales {
		tau2 := 0.0
		if !f.pointMass() || k > 0 {
			tau2 = h.EffectVar[k]
		}
		lw[k] = math.Log(h.Weights[k]) + logNorm(resid, s2+tau2)
		if lw[k] > maxLw {
			maxLw = lw[k]
		}
	}

	sum := 0.0
	for k := range lw {
		lw[k] = math.Exp(lw[k] - maxLw)
		sum += lw[k]
	}
	for k := range lw {
		lw[k] /= sum
	}
	return lw
}

func (f *mixture) Sample(g *rand.Generator, j int, resid, se float64, h model.Hyper, s *Suff) float64 {
	K := len(f.scales)
	lw := make([]float64, K)
	r := f.responsibilities(resid, se, h, lw)

	u := g.Float64()
	comp := K - 1
	acc := 0.0
	for k := 0; k < K; k++ {
		acc += r[k]
		if u < acc {
			comp = k
			break
		}
	}

	s.N++
	s.Incl[comp]++

	if comp == 0 && f.pointMass() {
		return 0
	}

	m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[comp])
	eff := m + sqrtPos(v)*g.NormFloat64()
	s.SumSq[comp] += eff * eff
	return eff
}

func (f *mixture) Update(j int, resid, se float64, h model.Hyper, s *Suff) (float64, float64) {
	K := len(f.scales)
	lw := make([]float64, K)
	r := f.responsibilities(resid, se, h, lw)

	s.N++

	mean := 0.0
	m2 := 0.0
	for k := 0; k < K; k++ {
		s.Incl[k] += r[k]
		if k == 0 && f.pointMass() {
			continue
		}
		m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[k])
		mean += r[k] * m
		mk2 := r[k] * (m*m + v)
		m2 += mk2
		s.SumSq[k] += mk2
	}

	return mean, m2 - mean*mean
}

func (f *mixture) SampleHyper(g *rand.Generator, s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	K := len(f.scales)

	// Dirichlet draw via normalized Gamma draws
	sum := 0.0
	for k := 0; k < K; k++ {
		next.Weights[k] = g.Gamma(1+s.Incl[k], 1)
		sum += next.Weights[k]
	}
	for k := 0; k < K; k++ {
		next.Weights[k] /= sum
	}

	for k := 0; k < K; k++ {
		if k == 0 && f.pointMass() {
			continue
		}
		next.EffectVar[k] = g.InvGamma(hyperShape+s.Incl[k]/2, hyperRate+s.SumSq[k]/2)
	}
	next.ResidVar = sampleResidVar(g, s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}

func (f *mixture) MaximizeHyper(s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	K := len(f.scales)

	for k := 0; k < K; k++ {
		next.Weights[k] = s.Incl[k] / float64(s.N)
	}

	for k := 0; k < K; k++ {
		if k == 0 && f.pointMass() {
			continue
		}
		next.EffectVar[k] = s.SumSq[k] / s.Incl[k]
	}
	next.ResidVar = maximizeResidVar(s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}

// CheckHyper validates a snapshot. Point-mass component 0 is exempt from the
// positive-variance requirement, so the shared Hyper check runs on a view
// without it.
func (f *mixture) CheckHyper(h *model.Hyper) error {
	K := len(f.scales)
	if len(h.EffectVar) != K || len(h.Weights) != K {
		return &model.PriorDegeneracyError{Iter: -1, Param: "hyperparameter shape", Value: float64(len(h.EffectVar))}
	}

	probe := h.Clone()
	if f.pointMass() {
		probe.EffectVar = probe.EffectVar[1:]
	}
	if err := probe.Check(-1); err != nil {
		return err
	}

	// copy floored/renormalized values back
	if f.pointMass() {
		h.EffectVar[0] = 0
		copy(h.EffectVar[1:], probe.EffectVar)
	} else {
		copy(h.EffectVar, probe.EffectVar)
	}
	h.ResidVar = probe.ResidVar
	copy(h.Weights, probe.Weights)

	return nil
}
