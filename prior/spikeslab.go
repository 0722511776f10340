package prior

import (
	"math"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

// spikeSlab is the point-mass-plus-Gaussian family: each effect is exactly
// zero with probability 1-pi or drawn from a shared Gaussian slab with
// probability pi. Weights[0] is the spike weight, Weights[1] the slab
// weight; EffectVar[0] the slab variance. Component 0 of the sufficient
// statistics is the spike, component 1 the slab.
type spikeSlab struct {
	init *model.Hyper
}

func newSpikeSlab(spec Spec) *spikeSlab {
	return &spikeSlab{init: spec.Hyper}
}

func (f *spikeSlab) Name() string {
	return SpikeSlab
}

func (f *spikeSlab) Components() int {
	return 2
}

func (f *spikeSlab) NullComponent() bool {
	return true
}

func (f *spikeSlab) Init() model.Hyper {
	if f.init != nil {
		return f.init.Clone()
	}
	return model.Hyper{
		ResidVar:  1,
		EffectVar: []float64{defaultEffectVar},
		Weights:   []float64{0.9, 0.1},
	}
}

func (f *spikeSlab) CheckHyper(h *model.Hyper) error {
	if len(h.EffectVar) != 1 || len(h.Weights) != 2 {
		return &model.PriorDegeneracyError{Iter: -1, Param: "hyperparameter shape", Value: float64(len(h.EffectVar))}
	}
	return h.Check(-1)
}

// inclusionProb is the posterior probability that the variant is in the slab
// given its residualized statistic: the slab/spike marginal-likelihood ratio
// weighted by the current mixture weights.
func (f *spikeSlab) inclusionProb(resid, se float64, h model.Hyper) float64 {
	s2 := h.ResidVar * se * se
	tau2 := h.EffectVar[0]

	logOdds := math.Log(h.Weights[1]) - math.Log(h.Weights[0]) +
		logNorm(resid, s2+tau2) - logNorm(resid, s2)
	return sigmoid(logOdds)
}

func (f *spikeSlab) Sample(g *rand.Generator, j int, resid, se float64, h model.Hyper, s *Suff) float64 {
	s.N++

	if g.Float64() >= f.inclusionProb(resid, se, h) {
		s.Incl[0]++
		return 0
	}

	m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[0])
	eff := m + sqrtPos(v)*g.NormFloat64()

	s.Incl[1]++
	s.SumSq[1] += eff * eff
	return eff
}

func (f *spikeSlab) Update(j int, resid, se float64, h model.Hyper, s *Suff) (float64, float64) {
	gamma := f.inclusionProb(resid, se, h)
	m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[0])

	mean := gamma * m
	m2 := gamma * (m*m + v)

	s.N++
	s.Incl[0] += 1 - gamma
	s.Incl[1] += gamma
	s.SumSq[1] += m2

	return mean, m2 - mean*mean
}

func (f *spikeSlab) SampleHyper(g *rand.Generator, s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()

	pi := g.Beta(1+s.Incl[1], 1+s.Incl[0])
	next.Weights[0] = 1 - pi
	next.Weights[1] = pi

	next.EffectVar[0] = g.InvGamma(hyperShape+s.Incl[1]/2, hyperRate+s.SumSq[1]/2)
	next.ResidVar = sampleResidVar(g, s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}

func (f *spikeSlab) MaximizeHyper(s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()

	pi := s.Incl[1] / float64(s.N)
	next.Weights[0] = 1 - pi
	next.Weights[1] = pi

	next.EffectVar[0] = (hyperRate + s.SumSq[1]/2) / (hyperShape + s.Incl[1]/2 + 1)
	next.ResidVar = maximizeResidVar(s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}
