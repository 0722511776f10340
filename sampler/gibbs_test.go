package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
)

func TestGibbsConfigValidation(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.1}, 0.1, 1, 0)
	pm := testPrior(t, prior.Infinitesimal, 1)

	_, err := NewGibbs(part, pm, Config{Samples: 0})
	assert.Error(err)

	_, err = NewGibbs(part, pm, Config{Samples: 10, BurnIn: -1})
	assert.Error(err)
}

func TestGibbsSeedDeterminism(t *testing.T) {
	assert := assert.New(t)

	betas := []float64{0.4, -0.2, 0.1, 0.0, 0.3, -0.1}

	run := func(seed int64, threads int) *model.PosteriorSummary {
		part := testPartition(t, betas, 0.1, 3, 0.2)
		pm := testPrior(t, prior.SpikeSlab, len(betas))
		eng, err := NewGibbs(part, pm, Config{BurnIn: 20, Samples: 50, Seed: seed, Threads: threads})
		assert.NoError(err)
		ps, err := eng.Run()
		assert.NoError(err)
		return ps
	}

	// identical seed: bit-identical results
	a := run(42, 1)
	b := run(42, 1)
	assert.Equal(a.Mean, b.Mean)
	assert.Equal(a.Variance, b.Variance)
	assert.Equal(a.Hyper, b.Hyper)

	// identical seed at a different worker count: still bit-identical
	c := run(42, 3)
	assert.Equal(a.Mean, c.Mean)
	assert.Equal(a.Variance, c.Variance)
	assert.Equal(a.Hyper, c.Hyper)

	// a different seed moves the chain
	d := run(43, 1)
	assert.NotEqual(a.Mean, d.Mean)
}

func TestGibbsNullShrinkage(t *testing.T) {
	assert := assert.New(t)

	// pure-noise input: posterior means should sit near zero
	betas := make([]float64, 8)
	part := testPartition(t, betas, 1.0, 4, 0)
	pm := testPrior(t, prior.SpikeSlab, len(betas))

	eng, err := NewGibbs(part, pm, Config{BurnIn: 200, Samples: 500, Seed: 7})
	assert.NoError(err)

	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(model.TermSampled, ps.Term)
	assert.Equal(700, ps.Iterations)
	assert.Equal(StateDone, eng.State())

	for i := range betas {
		assert.True(math.Abs(ps.Mean[i]) < 0.15, "mean %d too large: %f", i, ps.Mean[i])
		assert.True(ps.Variance[i] >= 0)
	}
}

func TestGibbsSignalRecovery(t *testing.T) {
	assert := assert.New(t)

	betas := []float64{0.5, -0.3, 0.0, 0.1}
	part := testPartition(t, betas, 0.1, 4, 0)
	pm := testPrior(t, prior.Infinitesimal, 4)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 100, Samples: 400, Seed: 1})
	assert.NoError(err)

	ps, err := eng.Run()
	assert.NoError(err)

	// strong signals keep their sign and are shrunk toward zero
	assert.True(ps.Mean[0] > 0 && ps.Mean[0] < 0.5)
	assert.True(ps.Mean[1] < 0 && ps.Mean[1] > -0.3)
}

func TestGibbsDivergence(t *testing.T) {
	assert := assert.New(t)

	// assemble the partition directly so a non-finite correlation reaches
	// the engine
	nan := math.NaN()
	part := &model.Partition{
		Variants: []model.Variant{
			{Index: 0, Beta: 0.1, SE: 0.1, Freq: nan},
			{Index: 1, Beta: 0.2, SE: 0.1, Freq: nan},
		},
		Blocks: []*model.Block{
			{ID: 0, Vars: []int{0, 1}, Corr: mat.NewSymDense(2, []float64{1, nan, nan, 1})},
		},
	}
	pm := testPrior(t, prior.Infinitesimal, 2)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 0, Samples: 10, Seed: 1})
	assert.NoError(err)

	_, err = eng.Run()
	assert.Error(err)

	var nde *model.NumericDivergenceError
	assert.ErrorAs(err, &nde)
	assert.Equal(0, nde.Iter)
	assert.Equal(0, nde.Block)
}

func TestGibbsStopBeforeRun(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.1, 0.2}, 0.1, 2, 0)
	pm := testPrior(t, prior.Infinitesimal, 2)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 10, Samples: 10, Seed: 1})
	assert.NoError(err)

	// a stop before anything is retained cannot produce a summary
	eng.Stop()
	_, err = eng.Run()
	assert.Error(err)
}

func TestGibbsDiagnostics(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.3, -0.1, 0.2}, 0.1, 3, 0)
	pm := testPrior(t, prior.Infinitesimal, 3)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 10, Samples: 20, Seed: 4})
	assert.NoError(err)

	ps, err := eng.Run()
	assert.NoError(err)

	d := eng.Diag()
	assert.Equal(ps.Iterations, d.Iterations)
	assert.Equal(ps.Hyper.ResidVar, d.ResidVar)
	assert.True(d.MeanAbsEffect > 0)
	assert.Equal([]float64{1}, d.Occupancy)
	assert.Equal(1.0, d.PropCausal) // no null component in this family
}

func TestLivePolling(t *testing.T) {
	assert := assert.New(t)

	part := testPartition(t, []float64{0.5, -0.3, 0.0, 0.1}, 0.1, 2, 0.1)
	pm := testPrior(t, prior.SpikeSlab, 4)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 100, Samples: 400, Seed: 9, Window: 10})
	assert.NoError(err)

	// poll the way the monitor does while the chain runs
	done := make(chan struct{})
	go func() {
		defer close(done)
		for eng.State() != StateDone {
			eng.Trend()
			eng.Diag()
			eng.Delta()
			eng.Iteration()
		}
	}()

	ps, err := eng.Run()
	assert.NoError(err)
	<-done

	assert.Equal(ps.Iterations, eng.Iteration())
	older, newer, ok := eng.Trend()
	assert.True(ok)
	assert.True(older >= 0 && newer >= 0)
}

func TestGibbsAllFamilies(t *testing.T) {
	assert := assert.New(t)

	betas := []float64{0.3, -0.2, 0.0, 0.1, 0.05, -0.15}

	specs := []prior.Spec{
		{Family: prior.SpikeSlab},
		{Family: prior.Infinitesimal},
		{Family: prior.Shrinkage},
		{Family: prior.Mixture, Scales: []float64{0, 0.01, 0.1, 1}},
	}

	for _, spec := range specs {
		part := testPartition(t, betas, 0.1, 3, 0.2)
		pm, err := prior.New(spec, len(betas))
		assert.NoError(err)

		eng, err := NewGibbs(part, pm, Config{BurnIn: 30, Samples: 60, Seed: 3})
		assert.NoError(err)

		ps, err := eng.Run()
		assert.NoError(err, "family %s", spec.Family)
		assert.Equal(model.TermSampled, ps.Term)
		assert.NoError(ps.Check())
		assert.True(ps.Hyper.ResidVar > 0)
	}
}
