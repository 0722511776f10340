package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
	"github.com/statbio/prsinfer/stats"
)

// VEM is the variational expectation-maximization engine: the same
// block-parallel partial-residual sweep as the Gibbs engine, but each
// variant receives its deterministic coordinate-ascent posterior mean, and
// the hyperparameter step maximizes instead of sampling. The run ends when
// the L1 change in effect state drops below the tolerance or the iteration
// cap is reached; the cap is a reported, non-fatal outcome.
type VEM struct {
	*core

	vars []float64 // per-variant variational posterior variance, final pass wins
}

// NewVEM creates a variational engine over the partition with the given
// prior family.
func NewVEM(part *model.Partition, pm prior.Model, cfg Config) (*VEM, error) {
	if cfg.MaxIter < 1 {
		return nil, errors.Errorf("VEM requires at least 1 iteration, got %d", cfg.MaxIter)
	}
	if !(cfg.Tol > 0) {
		return nil, errors.Errorf("VEM requires a positive convergence tolerance, got %g", cfg.Tol)
	}

	c, err := newCore(part, pm, cfg)
	if err != nil {
		return nil, err
	}

	return &VEM{
		core: c,
		vars: make([]float64, len(part.Variants)),
	}, nil
}

// Run iterates to convergence, the iteration cap, or a requested stop. The
// summary is the final iterate's per-variant mean and variance - no
// averaging across iterations.
func (s *VEM) Run() (*model.PosteriorSummary, error) {
	prev := make([]float64, len(s.eff))
	term := model.TermMaxIter

	log.Infof("vem: %d variants, %d blocks, max %d iterations, tol %g, %d threads",
		len(s.part.Variants), len(s.part.Blocks), s.cfg.MaxIter, s.cfg.Tol, s.cfg.threads())

	executed := 0
	for it := 0; it < s.cfg.MaxIter; it++ {
		if s.stopped() {
			term = model.TermStopped
			log.Noticef("stop requested, honoring at iteration %d", it)
			break
		}

		s.setState(StateIterating)
		copy(prev, s.eff)
		h := s.hyper

		suff, err := s.pass(it, func(bi int, sf *prior.Suff) func(j int, resid, se float64) float64 {
			return func(j int, resid, se float64) float64 {
				m, v := s.pm.Update(j, resid, se, h, sf)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return math.NaN() // scanBlock turns this into the divergence error
				}
				s.vars[j] = v
				return m
			}
		})
		if err != nil {
			return nil, err
		}

		next, err := s.pm.MaximizeHyper(suff, h)
		if err != nil {
			return nil, tagIter(err, it)
		}
		s.hyper = next

		delta := stats.Delta(prev, s.eff)
		s.record(delta, suff)
		executed = it + 1

		if delta < s.cfg.Tol {
			term = model.TermConverged
			break
		}
	}

	switch term {
	case model.TermConverged:
		s.setState(StateConverged)
		log.Infof("converged after %d iterations (delta %g)", executed, s.Delta())
	case model.TermMaxIter:
		s.setState(StateMaxIterReached)
		log.Noticef("unconverged after %d iterations (delta %g)", executed, s.Delta())
	}

	mean := make([]float64, len(s.eff))
	variance := make([]float64, len(s.vars))
	copy(mean, s.eff)
	copy(variance, s.vars)

	ps := &model.PosteriorSummary{
		Mean:       mean,
		Variance:   variance,
		Hyper:      s.hyper.Clone(),
		Term:       term,
		Iterations: executed,
		Delta:      s.Delta(),
	}
	if err := ps.Check(); err != nil {
		return nil, errors.Wrap(err, "Finalized summary failed validation")
	}

	s.setState(StateDone)
	return ps, nil
}
