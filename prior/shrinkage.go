package prior

import (
	"math"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

// psiFloor keeps local shrinkage scales strictly positive, and muCap bounds
// the inverse-Gaussian mean when an effect sits at (numerically) zero.
const (
	psiFloor = 1e-12
	muCap    = 1e8
)

// shrinkage is the continuous-shrinkage family: an exponential scale mixture
// of Gaussians (double-exponential marginal). Each variant carries a local
// scale psi_j with beta_j ~ N(0, tau2*psi_j); the full conditional of
// 1/psi_j is inverse-Gaussian, and the variational fixed point uses its
// mean. psi is the family's per-variant latent state - blocks touch
// disjoint entries, so parallel scans need no locks.
type shrinkage struct {
	init *model.Hyper
	psi  []float64
}

func newShrinkage(spec Spec, p int) *shrinkage {
	psi := make([]float64, p)
	for i := range psi {
		psi[i] = 1
	}
	return &shrinkage{init: spec.Hyper, psi: psi}
}

func (f *shrinkage) Name() string {
	return Shrinkage
}

func (f *shrinkage) Components() int {
	return 1
}

func (f *shrinkage) NullComponent() bool {
	return false
}

func (f *shrinkage) Init() model.Hyper {
	if f.init != nil {
		return f.init.Clone()
	}
	return model.Hyper{
		ResidVar:  1,
		EffectVar: []float64{defaultEffectVar},
		Weights:   []float64{1},
	}
}

func (f *shrinkage) CheckHyper(h *model.Hyper) error {
	if len(h.EffectVar) != 1 || len(h.Weights) != 1 {
		return &model.PriorDegeneracyError{Iter: -1, Param: "hyperparameter shape", Value: float64(len(h.EffectVar))}
	}
	return h.Check(-1)
}

// invGaussMean is the mean parameter of 1/psi_j's full conditional.
func invGaussMean(tau2 float64, absEff float64) float64 {
	mu := math.Sqrt(tau2) / absEff
	if !(mu < muCap) {
		mu = muCap
	}
	return mu
}

func (f *shrinkage) Sample(g *rand.Generator, j int, resid, se float64, h model.Hyper, s *Suff) float64 {
	tau2 := h.EffectVar[0]

	m, v := slabMoments(resid, se, h.ResidVar, tau2*f.psi[j])
	eff := m + sqrtPos(v)*g.NormFloat64()

	inv := g.InvGaussian(invGaussMean(tau2, math.Abs(eff)), 1)
	psi := 1 / inv
	if psi < psiFloor {
		psi = psiFloor
	}
	f.psi[j] = psi

	s.N++
	s.Incl[0]++
	s.SumSq[0] += eff * eff
	s.ShrinkSum += eff * eff / psi
	return eff
}

func (f *shrinkage) Update(j int, resid, se float64, h model.Hyper, s *Suff) (float64, float64) {
	tau2 := h.EffectVar[0]

	m, v := slabMoments(resid, se, h.ResidVar, tau2*f.psi[j])

	// fixed point: psi_j = 1/E[1/psi_j] evaluated at the new mean
	psi := math.Abs(m) / math.Sqrt(tau2)
	if psi < psiFloor {
		psi = psiFloor
	}
	f.psi[j] = psi

	s.N++
	s.Incl[0]++
	s.SumSq[0] += m*m + v
	s.ShrinkSum += (m*m + v) / psi
	return m, v
}

func (f *shrinkage) SampleHyper(g *rand.Generator, s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	next.EffectVar[0] = g.InvGamma(hyperShape+s.Incl[0]/2, hyperRate+s.ShrinkSum/2)
	next.ResidVar = sampleResidVar(g, s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}

func (f *shrinkage) MaximizeHyper(s *Suff, h model.Hyper) (model.Hyper, error) {
	next := h.Clone()
	next.EffectVar[0] = (hyperRate + s.ShrinkSum/2) / (hyperShape + s.Incl[0]/2 + 1)
	next.ResidVar = maximizeResidVar(s)

	if err := f.CheckHyper(&next); err != nil {
		return model.Hyper{}, err
	}
	return next, nil
}
