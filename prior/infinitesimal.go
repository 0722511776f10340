package prior

import (
	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

// infinitesimal is the all-causal Gaussian family: every variant carries an
// effect drawn from a single shared slab. No indicator, so both the
// conditional draw and the variational update are plain conjugate-normal.
type infinitesimal struct {
	init *model.Hyper
}

func newInfinitesimal(spec Spec) *infinitesimal {
	return &infinitesimal{init: spec.Hyper}
}

func (f *infinitesimal) Name() string {
	return Infinitesimal
}

func (f *infinitesimal) Components() int {
	return 1
}

func (f *infinitesimal) NullComponent() bool {
	return false
}

func (f *infinitesimal) Init() model.Hyper {
	if f.init != nil {
		return f.init.Clone()
	}
	return model.Hyper{
		ResidVar:  1,
		EffectVar: []float64{defaultEffectVar},
		Weights:   []float64{1},
	}
}

func (f *infinitesimal) CheckHyper(h *model.Hyper) error {
	if len(h.EffectVar) != 1 || len(h.Weights) != 1 {
		return &model.PriorDegeneracyError{Iter: -1, Param: "hyperparameter shape", Value: float64(len(h.EffectVar))}
	}
	return h.Check(-1)
}

func (f *infinitesimal) Sample(g *rand.Generator, j int, resid, se float64, h model.Hyper, s *Suff) float64 {
	m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[0])
	eff := m + sqrtPos(v)*g.NormFloat64()

	s.N++
	s.Incl[0]++
	s.SumSq[0] += eff * eff
	return eff
}

func (f *infinitesimal) Update(j int, resid, se float64, h model.Hyper, s *Suff) (float64, float64) {
	m, v := slabMoments(resid, se, h.ResidVar, h.EffectVar[0])

	s.N++
	s.Incl[0]++
	s.SumSq[0] += m*m + v
	return m, v
}

func (f *infinitesimal) SampleHyper(g *rand.Generator, s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	next.EffectVar[0] = g.InvGamma(hyperShape+s.Incl[0]/2, hyperRate+s.SumSq[0]/2)
	next.ResidVar = sampleResidVar(g, s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}

func (f *infinitesimal) MaximizeHyper(s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	next.EffectVar[0] = (hyperRate + s.SumSq[0]/2) / (hyperShape + s.Incl[0]/2 + 1)
	next.ResidVar = maximizeResidVar(s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}
