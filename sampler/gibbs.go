package sampler

import (
	"github.com/pkg/errors"

	"github.com/statbio/prsinfer/checkpoint"
	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
	"github.com/statbio/prsinfer/rand"
	"github.com/statbio/prsinfer/stats"
)

// Checkpointer persists Gibbs chain snapshots at iteration boundaries so an
// interrupted run can resume. *checkpoint.IO satisfies this.
type Checkpointer interface {
	Old() bool
	Save(*checkpoint.Snapshot) error
	Load() (*checkpoint.Snapshot, error)
}

// Gibbs is the Markov-chain Monte Carlo engine. Each iteration sweeps every
// block (in parallel, one derived random substream per block), draws every
// variant's effect from its full conditional, then draws new
// hyperparameters once behind the barrier. Iterations after burn-in fold
// the effect state into a Welford accumulator; the posterior summary is the
// accumulated mean and variance.
type Gibbs struct {
	*core

	gen       *rand.Generator
	blockGens []*rand.Generator
	acc       *stats.RunningVec
	ckpt      Checkpointer
	startIter int
}

// NewGibbs creates a Gibbs engine over the partition with the given prior
// family.
func NewGibbs(part *model.Partition, pm prior.Model, cfg Config) (*Gibbs, error) {
	if cfg.Samples < 1 {
		return nil, errors.Errorf("Gibbs requires at least 1 sampling iteration, got %d", cfg.Samples)
	}
	if cfg.BurnIn < 0 {
		return nil, errors.Errorf("Invalid burn-in count %d", cfg.BurnIn)
	}

	c, err := newCore(part, pm, cfg)
	if err != nil {
		return nil, err
	}

	gen, err := rand.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not create root generator")
	}

	// One derived substream per block keeps draws reproducible at any
	// worker count.
	blockGens := make([]*rand.Generator, len(part.Blocks))
	for bi := range blockGens {
		blockGens[bi] = gen.Derive(int64(bi))
	}

	return &Gibbs{
		core:      c,
		gen:       gen,
		blockGens: blockGens,
		acc:       stats.NewRunningVec(len(part.Variants)),
	}, nil
}

// SetCheckpointer attaches checkpoint persistence. Call before Run. If the
// store already holds an unfinished snapshot for this run, Run resumes from
// it.
func (s *Gibbs) SetCheckpointer(ckpt Checkpointer) {
	s.ckpt = ckpt
}

func (s *Gibbs) resume() error {
	snap, err := s.ckpt.Load()
	if err != nil {
		return errors.Wrap(err, "Could not load checkpoint")
	}
	if snap == nil || snap.Final {
		return nil
	}
	if len(snap.Effects) != len(s.eff) {
		return errors.Errorf("Checkpoint has %d effects, want %d", len(snap.Effects), len(s.eff))
	}

	copy(s.eff, snap.Effects)
	s.hyper = snap.Hyper.Clone()
	if err := s.pm.CheckHyper(&s.hyper); err != nil {
		return err
	}
	s.acc.N = snap.AccN
	copy(s.acc.Mean, snap.AccMean)
	copy(s.acc.M2, snap.AccM2)
	s.startIter = snap.Iter

	log.Noticef("resuming chain at iteration %d (%d retained)", snap.Iter, snap.AccN)
	return nil
}

func (s *Gibbs) snapshot(iter int, final bool) *checkpoint.Snapshot {
	snap := &checkpoint.Snapshot{
		Iter:    iter,
		Effects: make([]float64, len(s.eff)),
		Hyper:   s.hyper.Clone(),
		AccN:    s.acc.N,
		AccMean: make([]float64, len(s.acc.Mean)),
		AccM2:   make([]float64, len(s.acc.M2)),
		Final:   final,
	}
	copy(snap.Effects, s.eff)
	copy(snap.AccMean, s.acc.Mean)
	copy(snap.AccM2, s.acc.M2)
	return snap
}

// Run executes the chain to completion (or a requested stop) and returns
// the finalized posterior summary. A non-finite draw or a degenerate
// hyperparameter update aborts the run; no partial summary is returned in
// that case.
func (s *Gibbs) Run() (*model.PosteriorSummary, error) {
	if s.ckpt != nil {
		if err := s.resume(); err != nil {
			return nil, err
		}
	}

	total := s.cfg.BurnIn + s.cfg.Samples
	prev := make([]float64, len(s.eff))
	term := model.TermSampled

	log.Infof("gibbs: %d variants, %d blocks, %d+%d iterations, %d threads",
		len(s.part.Variants), len(s.part.Blocks), s.cfg.BurnIn, s.cfg.Samples, s.cfg.threads())

	it := s.startIter
	for ; it < total; it++ {
		if s.stopped() {
			term = model.TermStopped
			log.Noticef("stop requested, honoring at iteration %d", it)
			break
		}

		if it < s.cfg.BurnIn {
			s.setState(StateBurningIn)
		} else {
			s.setState(StateSampling)
		}

		copy(prev, s.eff)
		h := s.hyper

		suff, err := s.pass(it, func(bi int, sf *prior.Suff) func(j int, resid, se float64) float64 {
			g := s.blockGens[bi]
			return func(j int, resid, se float64) float64 {
				return s.pm.Sample(g, j, resid, se, h, sf)
			}
		})
		if err != nil {
			return nil, err
		}

		// barrier: every block is done, publish the next snapshot
		next, err := s.pm.SampleHyper(s.gen, suff, h)
		if err != nil {
			return nil, tagIter(err, it)
		}
		s.hyper = next

		if it >= s.cfg.BurnIn {
			if err := s.acc.Add(s.eff); err != nil {
				return nil, err
			}
		}
		s.record(stats.Delta(prev, s.eff), suff)

		if s.ckpt != nil && s.ckpt.Old() {
			if err := s.ckpt.Save(s.snapshot(it+1, false)); err != nil {
				log.Warningf("checkpoint save failed: %v", err)
			}
		}
	}

	s.setState(StateFinalizing)

	if s.acc.N < 1 {
		return nil, errors.Errorf("Run stopped after %d iterations with no sampling iterations retained", it)
	}

	mean, variance := s.acc.MeanVar()
	ps := &model.PosteriorSummary{
		Mean:       mean,
		Variance:   variance,
		Hyper:      s.hyper.Clone(),
		Term:       term,
		Iterations: it,
		Delta:      s.Delta(),
	}
	if err := ps.Check(); err != nil {
		return nil, errors.Wrap(err, "Finalized summary failed validation")
	}

	if s.ckpt != nil {
		if err := s.ckpt.Save(s.snapshot(it, true)); err != nil {
			log.Warningf("final checkpoint save failed: %v", err)
		}
	}

	s.setState(StateDone)
	return ps, nil
}
