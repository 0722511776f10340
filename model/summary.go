package model

import (
	"math"

	"github.com/pkg/errors"
)

// Termination reports how an inference run ended.
type Termination int

// Termination values. Only the Gibbs engine produces TermSampled; only the
// variational engine produces TermConverged and TermMaxIter. TermMaxIter is
// a user-visible but non-fatal outcome - the last iterate is still returned.
const (
	TermSampled Termination = iota
	TermConverged
	TermMaxIter
	TermStopped
)

func (t Termination) String() string {
	switch t {
	case TermSampled:
		return "Sampled"
	case TermConverged:
		return "Converged"
	case TermMaxIter:
		return "MaxIterReached"
	case TermStopped:
		return "Stopped"
	}
	return "Unknown"
}

// Converged is true for terminations that fully satisfied their engine's
// stopping rule.
func (t Termination) Converged() bool {
	return t == TermSampled || t == TermConverged
}

// PosteriorSummary is the run artifact: the per-variant posterior (or
// variational-posterior) mean and variance, the final hyperparameter
// snapshot, and how the run terminated. It is created when an engine
// finalizes and read-only afterward.
type PosteriorSummary struct {
	Mean       []float64
	Variance   []float64
	Hyper      Hyper
	Term       Termination
	Iterations int     // iterations actually executed
	Delta      float64 // final convergence delta (variational engine only)
}

// Diagnostics is a point-in-time picture of a running (or finished)
// inference: how far it has gotten, how much the effect state is still
// moving, and where the mass currently sits. Engines refresh it at every
// iteration barrier; the monitor and post-run callers read it.
type Diagnostics struct {
	Iterations    int
	Delta         float64
	MeanAbsEffect float64
	ResidVar      float64
	PropCausal    float64   // 1 for families without a null component
	Occupancy     []float64 // per-component fraction of variants
}

// Check returns an error if the summary is not usable by a downstream
// consumer.
func (ps *PosteriorSummary) Check() error {
	if len(ps.Mean) < 1 || len(ps.Mean) != len(ps.Variance) {
		return errors.Errorf("Summary has mean count %d but variance count %d",
			len(ps.Mean), len(ps.Variance))
	}

	for i, m := range ps.Mean {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return errors.Errorf("Summary mean %d is non-finite", i)
		}
		if math.IsNaN(ps.Variance[i]) || ps.Variance[i] < 0 {
			return errors.Errorf("Summary variance %d is invalid: %f", i, ps.Variance[i])
		}
	}

	return nil
}
