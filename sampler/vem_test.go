package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
)

func TestVEMConfigValidation(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.1}, 0.1, 1, 0)
	pm := testPrior(t, prior.Infinitesimal, 1)

	_, err := NewVEM(part, pm, Config{MaxIter: 0, Tol: 1e-6})
	assert.Error(err)

	_, err = NewVEM(part, pm, Config{MaxIter: 10, Tol: 0})
	assert.Error(err)

	_, err = NewVEM(part, pm, Config{MaxIter: 10, Tol: -1})
	assert.Error(err)
}

func TestVEMConvergence(t *testing.T) {
	assert := assert.New(t)

	betas := []float64{0.5, -0.3, 0.0, 0.1}
	part := testPartition(t, betas, 0.1, 4, 0)
	pm := testPrior(t, prior.Infinitesimal, 4)

	eng, err := NewVEM(part, pm, Config{MaxIter: 200, Tol: 1e-6})
	assert.NoError(err)

	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(model.TermConverged, ps.Term)
	assert.True(ps.Term.Converged())
	assert.True(ps.Iterations < 200)
	assert.True(ps.Delta < 1e-6)
	assert.Equal(StateDone, eng.State())
	assert.Equal(ps.Iterations, eng.Iteration())

	// shrinkage: every estimate pulled toward zero, signs preserved
	for i, b := range betas {
		if b == 0 {
			assert.Equal(0.0, ps.Mean[i])
			continue
		}
		assert.True(math.Abs(ps.Mean[i]) < math.Abs(b))
		assert.True(ps.Mean[i]*b > 0)
		assert.True(ps.Variance[i] > 0)
	}
}

func TestVEMThreadInvariance(t *testing.T) {
	assert := assert.New(t)

	betas := []float64{0.4, -0.2, 0.1, 0.0, 0.3, -0.1}

	run := func(threads int) *model.PosteriorSummary {
		part := testPartition(t, betas, 0.1, 3, 0.2)
		pm := testPrior(t, prior.SpikeSlab, len(betas))
		eng, err := NewVEM(part, pm, Config{MaxIter: 100, Tol: 1e-8, Threads: threads})
		assert.NoError(err)
		ps, err := eng.Run()
		assert.NoError(err)
		return ps
	}

	a := run(1)
	b := run(4)
	assert.Equal(a.Mean, b.Mean)
	assert.Equal(a.Variance, b.Variance)
	assert.Equal(a.Hyper, b.Hyper)
	assert.Equal(a.Iterations, b.Iterations)
}

func TestVEMMaxIter(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3, 0.0, 0.1}, 0.1, 4, 0)
	pm := testPrior(t, prior.Infinitesimal, 4)

	eng, err := NewVEM(part, pm, Config{MaxIter: 3, Tol: 1e-300})
	assert.NoError(err)

	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(model.TermMaxIter, ps.Term)
	assert.False(ps.Term.Converged())
	assert.Equal(3, ps.Iterations)
}

func TestVEMTrend(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3, 0.0, 0.1}, 0.1, 4, 0)
	pm := testPrior(t, prior.Infinitesimal, 4)

	eng, err := NewVEM(part, pm, Config{MaxIter: 40, Tol: 1e-300, Window: 10})
	assert.NoError(err)

	_, _, ok := eng.Trend()
	assert.False(ok) // window empty before the run

	_, err = eng.Run()
	assert.NoError(err)

	older, newer, ok := eng.Trend()
	assert.True(ok)
	assert.True(older >= newer) // deltas shrink as the iterate settles
}

func TestVEMStop(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3}, 0.1, 2, 0)
	pm := testPrior(t, prior.Infinitesimal, 2)

	eng, err := NewVEM(part, pm, Config{MaxIter: 100, Tol: 1e-12})
	assert.NoError(err)

	eng.Stop()
	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(model.TermStopped, ps.Term)
	assert.Equal(0, ps.Iterations)
}

func TestVEMDegenerateMidRun(t *testing.T) {
	assert := assert.New(t)

	// every signal is enormous relative to the narrow components, so their
	// responsibilities underflow to zero occupancy and the very first
	// variance maximization has nothing to estimate from
	part := testPartition(t, []float64{1, 1, 1, 1}, 1e-3, 4, 0)
	pm, err := prior.New(prior.Spec{
		Family: prior.Mixture,
		Scales: []float64{0, 1e-4, 1e3},
	}, 4)
	assert.NoError(err)

	eng, err := NewVEM(part, pm, Config{MaxIter: 3, Tol: 1e-6})
	assert.NoError(err)

	_, err = eng.Run()
	assert.Error(err)

	var pde *model.PriorDegeneracyError
	assert.ErrorAs(err, &pde)
	assert.Equal(0, pde.Iter)
}

func TestVEMDiagnostics(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3, 0.0, 0.1}, 0.1, 4, 0)
	pm := testPrior(t, prior.SpikeSlab, 4)

	eng, err := NewVEM(part, pm, Config{MaxIter: 100, Tol: 1e-8})
	assert.NoError(err)

	// nothing recorded before the run
	d := eng.Diag()
	assert.Equal(0, d.Iterations)

	ps, err := eng.Run()
	assert.NoError(err)

	d = eng.Diag()
	assert.Equal(ps.Iterations, d.Iterations)
	assert.Equal(ps.Delta, d.Delta)
	assert.Equal(ps.Hyper.ResidVar, d.ResidVar)

	// the final iterate IS the summary mean, so the diagnostics match it
	want := 0.0
	for _, m := range ps.Mean {
		want += math.Abs(m)
	}
	assert.InDelta(want/4, d.MeanAbsEffect, 1e-15)

	assert.Equal(2, len(d.Occupancy))
	assert.InDelta(1.0, d.Occupancy[0]+d.Occupancy[1], 1e-9)
	assert.True(d.PropCausal >= 0 && d.PropCausal <= 1)
	assert.InDelta(d.Occupancy[1], d.PropCausal, 1e-9)

	// Diag hands out a copy
	d.Occupancy[0] = 99
	assert.NotEqual(99.0, eng.Diag().Occupancy[0])
}

func TestVEMDegenerateInitialHyper(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3}, 0.1, 2, 0)

	pm, err := prior.New(prior.Spec{
		Family: prior.Infinitesimal,
		Hyper:  &model.Hyper{ResidVar: 1, EffectVar: []float64{-1}, Weights: []float64{1}},
	}, 2)
	assert.NoError(err)

	_, err = NewVEM(part, pm, Config{MaxIter: 10, Tol: 1e-6})
	assert.Error(err)

	var pde *model.PriorDegeneracyError
	assert.ErrorAs(err, &pde)
}
