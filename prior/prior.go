// Package prior implements the shrinkage-prior families the inference
// engines draw from: point-mass-plus-Gaussian (spike-and-slab), continuous
// shrinkage, infinitesimal Gaussian, and a Gaussian mixture with
// caller-supplied component priors. A family exposes the Gibbs conditional
// draw, the variational coordinate update, and the hyperparameter
// sample/maximize rules; engines pick one family at construction and never
// switch mid-run.
package prior

import (
	"math"

	"github.com/pkg/errors"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

// Family names accepted by New.
const (
	SpikeSlab     = "spike_slab"
	Shrinkage     = "shrinkage"
	Infinitesimal = "infinitesimal"
	Mixture       = "mixture"
)

// Weak inverse-gamma prior on the variance hyperparameters.
const (
	hyperShape = 1e-2
	hyperRate  = 1e-2
)

// defaultEffectVar is the starting slab variance when the caller supplies no
// initial hyperparameters.
const defaultEffectVar = 1e-3

// Model is one shrinkage-prior family bound to a fixed variant count. A
// family owns whatever per-variant latent state it needs (e.g. local
// shrinkage scales); distinct variants never share latent entries, so
// parallel block scans over disjoint variants are safe without locks.
type Model interface {
	Name() string

	// Components is the number of mixture components the family tracks in
	// its sufficient statistics (1 for families without an indicator).
	Components() int

	// NullComponent is true when component 0 holds the exactly-zero
	// effects, so its occupancy complement is the proportion causal.
	NullComponent() bool

	// Init returns the starting hyperparameter snapshot, honoring any
	// caller-supplied initial values.
	Init() model.Hyper

	// Sample draws variant j's new effect from its full conditional given
	// the residualized statistic, folding the variant's contribution into s.
	Sample(g *rand.Generator, j int, resid float64, se float64, h model.Hyper, s *Suff) float64

	// Update computes variant j's deterministic variational update: the
	// posterior mean assigned to the effect state and the posterior
	// variance reported in the summary. Contributions go into s.
	Update(j int, resid float64, se float64, h model.Hyper, s *Suff) (mean float64, variance float64)

	// SampleHyper draws the next hyperparameter snapshot from its full
	// conditional given the folded sufficient statistics (Gibbs M-step).
	SampleHyper(g *rand.Generator, s *Suff, h model.Hyper) (model.Hyper, error)

	// MaximizeHyper computes the deterministic hyperparameter update
	// (variational M-step).
	MaximizeHyper(s *Suff, h model.Hyper) (model.Hyper, error)

	// CheckHyper validates a snapshot for this family, flooring variances
	// and renormalizing weights in place. Engines run it once on the
	// initial snapshot; the update rules run it on every candidate.
	CheckHyper(h *model.Hyper) error
}

// Spec is the caller-supplied prior configuration.
type Spec struct {
	Family string

	// Hyper optionally overrides the family's default starting snapshot.
	Hyper *model.Hyper

	// Scales and Weights configure the mixture family: per-component
	// variance scales (component 0 may be 0 for a point mass) and starting
	// weights. Ignored by the other families.
	Scales  []float64
	Weights []float64
}

// New constructs the named family for p variants.
func New(spec Spec, p int) (Model, error) {
	if p < 1 {
		return nil, errors.Errorf("Prior requires a positive variant count, got %d", p)
	}

	switch spec.Family {
	case SpikeSlab:
		return newSpikeSlab(spec), nil
	case Infinitesimal:
		return newInfinitesimal(spec), nil
	case Shrinkage:
		return newShrinkage(spec, p), nil
	case Mixture:
		return newMixture(spec)
	}
	return nil, errors.Errorf("Unknown prior family %q", spec.Family)
}

// Suff aggregates one iteration's sufficient statistics for the
// hyperparameter update. Each block fills its own Suff during the scan; the
// engine folds them in block order at the barrier so results are independent
// of worker scheduling.
type Suff struct {
	N         int       // variants scanned
	Incl      []float64 // per-component occupancy (counts, or responsibilities for VEM)
	SumSq     []float64 // per-component sum of squared effects (moments for VEM)
	ResidSS   float64   // sum over variants of full-residual^2 / se^2
	ShrinkSum float64   // continuous shrinkage: sum of effect^2 / local scale
}

// NewSuff creates empty statistics for k components.
func NewSuff(k int) *Suff {
	return &Suff{
		Incl:  make([]float64, k),
		SumSq: make([]float64, k),
	}
}

// Merge folds o into s.
func (s *Suff) Merge(o *Suff) {
	s.N += o.N
	for i := range s.Incl {
		s.Incl[i] += o.Incl[i]
		s.SumSq[i] += o.SumSq[i]
	}
	s.ResidSS += o.ResidSS
	s.ShrinkSum += o.ShrinkSum
}

// AddResid folds one variant's full-residual contribution (used by the
// residual-variance update). resid is the partial residual excluding the
// variant; eff its newly assigned effect.
func (s *Suff) AddResid(resid float64, eff float64, se float64) {
	d := resid - eff
	s.ResidSS += d * d / (se * se)
}

// slabMoments returns the conjugate posterior moments of an effect with
// Gaussian slab variance tau2 given the residualized statistic:
//
//	resid | beta ~ N(beta, sigma2*se^2),  beta ~ N(0, tau2)
func slabMoments(resid float64, se float64, sigma2 float64, tau2 float64) (m float64, v float64) {
	s2 := sigma2 * se * se
	v = 1 / (1/s2 + 1/tau2)
	m = v * resid / s2
	return m, v
}

// logNorm is log N(x; 0, v).
func logNorm(x float64, v float64) float64 {
	return -0.5 * (math.Log(2*math.Pi*v) + x*x/v)
}

// sigmoid with guard against overflow in either tail.
func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// sqrtPos guards the posterior-variance square root against round-off below
// zero.
func sqrtPos(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// sampleResidVar draws sigma2 from its inverse-gamma full conditional.
func sampleResidVar(g *rand.Generator, s *Suff) float64 {
	return g.InvGamma(hyperShape+float64(s.N)/2, hyperRate+s.ResidSS/2)
}

// maximizeResidVar is the deterministic counterpart: the mode of the same
// conditional.
func maximizeResidVar(s *Suff) float64 {
	return (hyperRate + s.ResidSS/2) / (hyperShape + float64(s.N)/2 + 1)
}
