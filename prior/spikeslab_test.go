package prior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/rand"
)

func TestInclusionProb(t *testing.T) {
	assert := assert.New(t)

	f := newSpikeSlab(Spec{})
	h := f.Init()

	// stronger signals are more likely to be in the slab
	p0 := f.inclusionProb(0.0, 0.1, h)
	p1 := f.inclusionProb(0.1, 0.1, h)
	p2 := f.inclusionProb(0.5, 0.1, h)
	assert.True(p0 < p1)
	assert.True(p1 < p2)

	// sign does not matter
	assert.InDelta(p2, f.inclusionProb(-0.5, 0.1, h), 1e-12)

	for _, p := range []float64{p0, p1, p2} {
		assert.True(p >= 0 && p <= 1)
	}
}

func TestSpikeSlabUpdate(t *testing.T) {
	assert := assert.New(t)

	f := newSpikeSlab(Spec{})
	h := f.Init()
	s := NewSuff(f.Components())

	mean, variance := f.Update(0, 0.5, 0.1, h, s)
	assert.True(mean > 0 && mean < 0.5)
	assert.True(variance > 0)

	// zero signal gives a zero posterior mean
	mean, _ = f.Update(1, 0.0, 0.1, h, s)
	assert.Equal(0.0, mean)

	assert.Equal(2, s.N)
	assert.InDelta(2.0, s.Incl[0]+s.Incl[1], 1e-12)
}

func TestSpikeSlabSample(t *testing.T) {
	assert := assert.New(t)

	f := newSpikeSlab(Spec{})
	h := f.Init()
	g, err := rand.NewGenerator(11)
	assert.NoError(err)

	s := NewSuff(f.Components())
	zeros := 0
	for i := 0; i < 500; i++ {
		if f.Sample(g, 0, 0.0, 1.0, h, s) == 0 {
			zeros++
		}
	}

	// with no signal and a 0.9 spike weight almost everything lands in the spike
	assert.True(zeros > 400)
	assert.Equal(500, s.N)
	assert.InDelta(float64(zeros), s.Incl[0], 1e-12)
}

func TestSpikeSlabHyperUpdates(t *testing.T) {
	assert := assert.New(t)

	f := newSpikeSlab(Spec{})
	h := f.Init()

	s := NewSuff(2)
	s.N = 100
	s.Incl[0] = 80
	s.Incl[1] = 20
	s.SumSq[1] = 0.4
	s.ResidSS = 100

	next, err := f.MaximizeHyper(s, h)
	assert.NoError(err)
	assert.InDelta(0.2, next.Weights[1], 1e-12)
	assert.InDelta(1.0, next.Weights[0]+next.Weights[1], 1e-12)
	assert.True(next.EffectVar[0] > 0)
	assert.True(next.ResidVar > 0)

	g, err := rand.NewGenerator(5)
	assert.NoError(err)
	next, err = f.SampleHyper(g, s, h)
	assert.NoError(err)
	assert.True(next.Weights[1] > 0 && next.Weights[1] < 1)
	assert.True(next.EffectVar[0] > 0)
	assert.True(next.ResidVar > 0)
}

func TestSpikeSlabCheckHyperShape(t *testing.T) {
	assert := assert.New(t)

	f := newSpikeSlab(Spec{})

	var pde *model.PriorDegeneracyError
	bad := model.Hyper{ResidVar: 1, EffectVar: []float64{1e-3, 1e-3}, Weights: []float64{0.5, 0.5}}
	assert.ErrorAs(f.CheckHyper(&bad), &pde)

	bad = model.Hyper{ResidVar: 1, EffectVar: []float64{1e-3}, Weights: []float64{1}}
	assert.ErrorAs(f.CheckHyper(&bad), &pde)

	bad = model.Hyper{ResidVar: 1, EffectVar: []float64{math.Inf(1)}, Weights: []float64{0.5, 0.5}}
	assert.ErrorAs(f.CheckHyper(&bad), &pde)
}
